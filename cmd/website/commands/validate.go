package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/kiluadev/website"
	sitepkg "github.com/kiluadev/website/internal/site"
	"github.com/kiluadev/website/internal/source"
)

const defaultCheckConcurrency = 8

// ValidateCommand implements the validate command. It checks the navigation
// catalog and fetches the content of every page.
func ValidateCommand(args []string) error {
	var flags siteFlags
	for i := 0; i < len(args); i++ {
		next, ok, err := flags.parse(args, i)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("unknown flag: %s", args[i])
		}
		i = next
	}
	if flags.concurrency == 0 {
		flags.concurrency = defaultCheckConcurrency
	}

	s, err := loadSite(flags)
	if err != nil {
		return err
	}
	defer s.logger.Sync()

	fmt.Printf("🔍 Validating site in: %s\n\n", s.dir)
	fmt.Printf("✅ Navigation: %d pages, %d routable\n", len(s.catalog.AllPages()), len(s.catalog.Routable()))

	src, err := source.New(s.config.Content, s.dir, s.logger.Named("source"))
	if err != nil {
		return fmt.Errorf("failed to create content source: %w", err)
	}
	defer src.Close()

	err = sitepkg.New(s.catalog).CheckContent(context.Background(), src, flags.concurrency)
	var missing *sitepkg.MissingContentError
	if errors.As(err, &missing) {
		fmt.Printf("❌ Content: %d page(s) failed\n\n", len(missing.Pages))
		for i, p := range missing.Pages {
			fmt.Printf("   %s (%s)\n      %s\n", p.Title, website.ContentPath(p), source.UserFriendlyMessage(missing.Errs[i]))
		}
		fmt.Println()
		return fmt.Errorf("validation failed")
	}
	if err != nil {
		return err
	}

	fmt.Printf("✅ Content: every page loaded from %s\n", src.Name())
	return nil
}
