package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/kiluadev/website/internal/server"
	"github.com/kiluadev/website/internal/source"
)

// BuildCommand implements the build command. It prerenders every page of the
// site into a directory that any static file host can serve.
func BuildCommand(args []string) error {
	var (
		flags  siteFlags
		output = "dist"
		strict bool
	)

	for i := 0; i < len(args); i++ {
		next, ok, err := flags.parse(args, i)
		if err != nil {
			return err
		}
		if ok {
			i = next
			continue
		}
		arg := args[i]
		if arg == "--output" || arg == "-o" {
			if i+1 < len(args) {
				output = args[i+1]
				i++
			}
		} else if val, ok := strings.CutPrefix(arg, "--output="); ok {
			output = val
		} else if arg == "--strict" {
			strict = true
		} else {
			return fmt.Errorf("unknown flag: %s", arg)
		}
	}

	s, err := loadSite(flags)
	if err != nil {
		return err
	}
	defer s.logger.Sync()

	absOutput, err := filepath.Abs(output)
	if err != nil {
		return fmt.Errorf("failed to get absolute output path: %w", err)
	}
	if absOutput == s.dir {
		return fmt.Errorf("output directory must differ from the site directory")
	}

	src, err := source.New(s.config.Content, s.dir, s.logger.Named("source"))
	if err != nil {
		return fmt.Errorf("failed to create content source: %w", err)
	}
	defer src.Close()

	srv, err := server.New(s.config, s.catalog, src, server.WithLogger(s.logger))
	if err != nil {
		return err
	}
	defer srv.Close()

	fmt.Printf("🔨 Building %s...\n", s.config.Title)
	fmt.Printf("   Site:   %s\n", s.dir)
	fmt.Printf("   Output: %s\n", absOutput)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, err := srv.Build(ctx, absOutput, flags.concurrency)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	fmt.Printf("\n✅ Wrote %d pages and %d section redirects\n", result.Pages, result.Redirects)
	if len(result.Unavailable) > 0 {
		fmt.Printf("⚠️  %d page(s) without content:\n", len(result.Unavailable))
		for _, id := range result.Unavailable {
			fmt.Printf("   - %s\n", id)
		}
		if strict {
			return fmt.Errorf("%d page(s) without content", len(result.Unavailable))
		}
	}
	return nil
}
