package inject

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ayusman/mudra/internal/plugin"
)

// Options selects and configures a backend.
type Options struct {
	Backend       string
	Plugin        string
	PluginDir     string
	PluginTimeout time.Duration
}

// New creates the Injector named by opts.Backend.
func New(ctx context.Context, opts Options, logger *slog.Logger) (Injector, error) {
	switch opts.Backend {
	case BackendRobotgo, "":
		return NewRobotInjector(), nil
	case BackendNone:
		return NewLogInjector(logger), nil
	case BackendPlugin:
		mgr := plugin.NewManager(opts.PluginDir, logger)
		if err := mgr.Discover(); err != nil {
			return nil, fmt.Errorf("failed to discover plugins: %w", err)
		}
		timeout := opts.PluginTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		return StartPlugin(ctx, mgr, plugin.NewExecutor(timeout), opts.Plugin)
	default:
		return nil, fmt.Errorf("unknown inject backend %q", opts.Backend)
	}
}
