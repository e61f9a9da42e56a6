// Command website serves, prerenders and validates the Kilua documentation site.
package main

import (
	"fmt"
	"os"

	"github.com/kiluadev/website/cmd/website/commands"
)

const version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "serve":
		err = commands.ServeCommand(args)
	case "build":
		err = commands.BuildCommand(args)
	case "validate":
		err = commands.ValidateCommand(args)
	case "version":
		fmt.Printf("website version %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("website - the Kilua documentation site")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  website serve [directory]      Start the site server")
	fmt.Println("  website build [directory]      Prerender the site into static files")
	fmt.Println("  website validate [directory]   Check navigation and page content")
	fmt.Println("  website version                Show version")
	fmt.Println("  website help                   Show this help")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  -c, --config FILE     Configuration file (default: website.yaml in directory)")
	fmt.Println("  -p, --port PORT       serve: listen port")
	fmt.Println("      --host HOST       serve: listen host")
	fmt.Println("  -w, --watch           serve: reload pages when content changes")
	fmt.Println("      --debug           serve: accept session sockets from any origin")
	fmt.Println("  -o, --output DIR      build: output directory (default: dist)")
	fmt.Println("  -j, --concurrency N   build, validate: parallel page fetches")
	fmt.Println("      --strict          build: fail when a page has no content")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  website serve                  # Serve the current directory")
	fmt.Println("  website serve ./site --watch   # Serve with live reload")
	fmt.Println("  website build -o public        # Write the static site to ./public")
	fmt.Println("  website validate               # Check every page has content")
}
