package commands

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.uber.org/zap"

	"github.com/kiluadev/website/internal/server"
	"github.com/kiluadev/website/internal/source"
)

// ServeCommand implements the serve command.
func ServeCommand(args []string) error {
	var (
		flags siteFlags
		port  string
		host  string
		watch bool
		debug bool
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
		switch arg := args[i]; arg {
		case "--watch", "-w":
			watch = true
		case "--debug":
			debug = true
		case "--port", "-p":
			if i+1 < len(args) {
				port = args[i+1]
				i++
			}
		case "--host":
			if i+1 < len(args) {
				host = args[i+1]
				i++
			}
		default:
			return fmt.Errorf("unknown flag: %s", arg)
		}
	}

	s, err := loadSite(flags)
	if err != nil {
		return err
	}
	defer s.logger.Sync()
	cfg := s.config

	// CLI flags override config
	if port != "" {
		portInt, err := strconv.Atoi(port)
		if err != nil || portInt < 0 || portInt > 65535 {
			return fmt.Errorf("invalid port: %s", port)
		}
		cfg.Server.Port = portInt
	}
	if host != "" {
		cfg.Server.Host = host
	}
	if watch {
		cfg.Features.HotReload = true
	}
	if debug {
		cfg.Server.Debug = true
	}

	src, err := source.New(cfg.Content, s.dir, s.logger.Named("source"))
	if err != nil {
		return fmt.Errorf("failed to create content source: %w", err)
	}
	defer src.Close()

	srv, err := server.New(cfg, s.catalog, src, server.WithLogger(s.logger))
	if err != nil {
		return err
	}
	defer srv.Close()

	fmt.Printf("📚 %s\n\n", cfg.Title)
	fmt.Printf("Serving: %s\n", s.dir)
	fmt.Printf("Content: %s\n", src.Name())
	fmt.Printf("Pages:   %d\n", len(s.catalog.Routable()))

	if cfg.Features.HotReload {
		if err := srv.EnableWatch(); err != nil {
			return fmt.Errorf("failed to enable watch mode: %w", err)
		}
		fmt.Printf("\n👀 Watch mode enabled - pages reload when their Markdown changes\n")
	}

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	fmt.Printf("\n🌐 Server running at http://%s\n", addr)
	fmt.Printf("Press Ctrl+C to stop\n\n")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.ListenAndServe(ctx, addr); err != nil {
		s.logger.Error("server stopped", zap.Error(err))
		return err
	}
	return nil
}
