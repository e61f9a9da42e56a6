package website

import "sync"

// DefaultPages returns the page definitions of the Kilua documentation site.
func DefaultPages() []Page {
	pages := []Page{
		{ID: HomeID, Title: "Kilua"},
		{ID: "Introduction", Title: "Introduction", Route: "/introduction", DrawerOpen: true},
		{ID: "ComposeWorld", Title: "Compose world", Route: "/compose-world", DrawerOpen: true},
		{ID: "GettingStarted", Title: "Getting started", Route: "/getting-started", IsSection: true, DrawerOpen: true},
	}

	pages = append(pages, children("GettingStarted",
		"SettingUp", "Setting up",
		"CreatingANewApplication", "Creating a new application",
		"DevelopmentWorkflow", "Development workflow",
		"BuildingForProduction", "Building for production",
	)...)

	pages = append(pages, Page{ID: "DevelopmentGuide", Title: "Development guide", Route: "/development-guide", IsSection: true, DrawerOpen: true})

	pages = append(pages, children("DevelopmentGuide",
		"Learning", "Learning",
		"ComposableFunctions", "Composable functions",
		"BrowserApis", "Browser APIs",
		"InteroperabilityWithJavascript", "Interoperability with JavaScript",
		"WorkingWithCompose", "Working with Compose",
		"RenderingHtml", "Rendering HTML",
		"WorkingWithCss", "Working with CSS",
		"Resources", "Resources",
		"Icons", "Icons",
		"Modules", "Modules",
		"Routing", "Routing",
		"LayoutContainers", "Layout containers",
		"Events", "Events",
		"Forms", "Forms",
		"SvgImages", "SVG images",
		"DragAndDrop", "Drag and Drop",
		"Toasts", "Toasts",
		"HotModuleReplacement", "Hot Module Replacement",
		"Debugging", "Debugging",
		"Internationalization", "Internationalization",
		"RestClient", "Rest Client",
		"MarkdownAndSanitization", "Markdown and Sanitization",
		"KtmlTemplates", "KTML Templates",
		"UsingBootstrap", "Using Bootstrap",
		"UsingTailwindcss", "Using Tailwindcss",
		"UsingTabulator", "Using Tabulator",
		"Animation", "Animation",
		"UsingJetpackComposeApi", "Using Jetpack Compose API",
		"FullstackComponents", "Fullstack components",
		"ServerSideRendering", "Server-Side Rendering",
	)...)

	pages = append(pages, Page{ID: NotFoundID, Title: "Page not found"})

	for i := range pages {
		pages[i].Order = (i + 1) * 10
	}
	return pages
}

// children builds section pages from (id, title) pairs. Routes are the
// kebab-case form of the title.
func children(parent PageID, pairs ...string) []Page {
	out := make([]Page, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, Page{
			ID:         PageID(pairs[i]),
			Title:      pairs[i+1],
			Route:      "/" + Slugify(pairs[i+1]),
			Parent:     parent,
			DrawerOpen: true,
		})
	}
	return out
}

var (
	defaultCatalog     *Catalog
	defaultCatalogOnce sync.Once
)

// DefaultCatalog returns the shared catalog built from DefaultPages.
func DefaultCatalog() *Catalog {
	defaultCatalogOnce.Do(func() {
		defaultCatalog = MustCatalog(DefaultPages())
	})
	return defaultCatalog
}
