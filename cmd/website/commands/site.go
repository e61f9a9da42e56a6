// Package commands implements the website CLI commands.
package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kiluadev/website"
	"github.com/kiluadev/website/internal/config"
	"github.com/kiluadev/website/internal/logging"
)

// siteFlags are the arguments shared by every command.
type siteFlags struct {
	dir         string
	configPath  string
	concurrency int
}

// parse consumes args[i] when it is a shared flag and returns the
// index of the last argument used.
func (f *siteFlags) parse(args []string, i int) (int, bool, error) {
	arg := args[i]
	switch {
	case arg == "--config" || arg == "-c":
		if i+1 < len(args) {
			f.configPath = args[i+1]
			return i + 1, true, nil
		}
		return i, true, fmt.Errorf("%s requires a value", arg)
	case strings.HasPrefix(arg, "--config="):
		f.configPath = strings.TrimPrefix(arg, "--config=")
		return i, true, nil
	case arg == "--concurrency" || arg == "-j":
		if i+1 >= len(args) {
			return i, true, fmt.Errorf("%s requires a value", arg)
		}
		n, err := strconv.Atoi(args[i+1])
		if err != nil || n < 1 {
			return i, true, fmt.Errorf("invalid concurrency: %s", args[i+1])
		}
		f.concurrency = n
		return i + 1, true, nil
	case !strings.HasPrefix(arg, "-"):
		f.dir = arg
		return i, true, nil
	}
	return i, false, nil
}

// site is a loaded site directory.
type site struct {
	dir     string
	config  *config.Config
	catalog *website.Catalog
	logger  *zap.Logger
}

// loadSite resolves the site directory, reads its configuration, applies
// environment overrides and builds the page catalog.
func loadSite(f siteFlags) (*site, error) {
	dir := f.dir
	if dir == "" {
		dir = "."
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, fmt.Errorf("directory does not exist: %s", dir)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	var cfg *config.Config
	if f.configPath != "" {
		cfg, err = config.Load(f.configPath)
	} else {
		cfg, err = config.LoadFromDir(absDir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, describeError(err)
	}

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Console: true})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return &site{dir: absDir, config: cfg, catalog: catalog, logger: logger}, nil
}

// describeError expands configuration errors into their long form.
func describeError(err error) error {
	if !website.IsConfigurationError(err) {
		return err
	}
	errs := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	}

	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		var cfgErr *website.ConfigurationError
		if errors.As(e, &cfgErr) {
			parts = append(parts, strings.TrimRight(cfgErr.Format(), "\n"))
		} else {
			parts = append(parts, e.Error())
		}
	}
	return errors.New(strings.Join(parts, "\n\n"))
}
