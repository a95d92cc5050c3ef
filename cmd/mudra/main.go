package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/logging"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/tray"
)

func main() {
	configPath := flag.String("config", config.DefaultPath(), "path to the configuration file (.toml, .yaml or .json)")
	headless := flag.Bool("headless", false, "run without the system tray")
	addr := flag.String("addr", "", "override the HTTP control address")
	mode := flag.String("mode", "", "override the click mode (pinch or fist)")
	flag.Parse()

	if err := run(*configPath, *headless, *addr, *mode); err != nil {
		fmt.Fprintf(os.Stderr, "mudra: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, headless bool, addr, mode string) error {
	// Flags override the file on every load, including reloads.
	flags := func(c *config.Config) error {
		if addr != "" {
			c.Server.Addr = addr
		}
		if mode != "" {
			m, err := gesture.ParseMode(mode)
			if err != nil {
				return fmt.Errorf("-mode: %w", err)
			}
			c.Gesture.ClickMode = string(m)
			c.Pin(config.KeyClickMode)
		}
		return nil
	}

	cfg, err := config.Load(configPath, flags)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, closer, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer closer.Close()
	slog.SetDefault(logger)

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	st, err := store.New(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(app.Options{Config: cfg, Store: st, Logger: logger})
	if err != nil {
		return err
	}

	var srv *server.Server
	if cfg.Server.Enabled {
		srv = server.New(server.Config{
			Controller: a,
			Store:      st,
			Frames:     a.Frames(),
			Logger:     logger,
		})
		a.OnIntent(srv.Intents().Publish)
		go func() {
			if err := srv.Run(ctx, cfg.Server.Addr); err != nil {
				logger.Error("http server failed", "error", err)
			}
		}()
	}

	watcher := config.NewWatcher(configPath, cfg)
	watcher.Adjust(flags)
	watcher.OnChange(func(next *config.Config) {
		if err := a.Reconfigure(next); err != nil {
			logger.Warn("configuration reload rejected", "error", err)
		}
	})
	if err := watcher.Start(); err != nil {
		logger.Warn("config watcher unavailable", "error", err)
	} else {
		defer watcher.Close()
		go func() {
			for err := range watcher.Errors() {
				logger.Warn("configuration reload failed", "error", err)
			}
		}()
	}

	done := make(chan error, 1)
	go func() {
		err := a.Run(ctx)
		cancel()
		done <- err
	}()

	if !headless {
		t := tray.New(a, logger)
		t.OnQuit(cancel)
		t.Run(ctx)
	}
	<-ctx.Done()

	err = <-done
	if errors.Is(err, capture.ErrCaptureUnavailable) {
		return fmt.Errorf("camera unavailable, check the device index and camera permissions: %w", err)
	}
	return err
}
