package inject

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayusman/mudra/internal/plugin"
)

// PluginInjector forwards pointer actions to a running plugin process.
type PluginInjector struct {
	proc *plugin.Process
}

// StartPlugin launches the named plugin and wraps it as an Injector. The
// plugin must implement every pointer action.
func StartPlugin(ctx context.Context, mgr *plugin.Manager, exec *plugin.Executor, name string) (*PluginInjector, error) {
	p, err := mgr.Get(name)
	if err != nil {
		return nil, fmt.Errorf("pointer plugin %q: %w", name, err)
	}
	for _, action := range []string{
		plugin.ActionMove, plugin.ActionClick, plugin.ActionDoubleClick,
		plugin.ActionMouseDown, plugin.ActionMouseUp,
	} {
		if !p.Manifest.Supports(action) {
			return nil, fmt.Errorf("pointer plugin %q does not support %s", name, action)
		}
	}

	proc, err := exec.Start(ctx, p)
	if err != nil {
		return nil, err
	}
	return &PluginInjector{proc: proc}, nil
}

// NewPluginInjector wraps an already running plugin process.
func NewPluginInjector(proc *plugin.Process) *PluginInjector {
	return &PluginInjector{proc: proc}
}

func (p *PluginInjector) call(action string, x, y int) error {
	_, err := p.proc.Call(action, x, y)
	if errors.Is(err, plugin.ErrDenied) {
		return fmt.Errorf("%w: %v", ErrInjectionDenied, err)
	}
	return err
}

func (p *PluginInjector) Move(x, y int) error { return p.call(plugin.ActionMove, x, y) }
func (p *PluginInjector) Click() error        { return p.call(plugin.ActionClick, 0, 0) }
func (p *PluginInjector) DoubleClick() error  { return p.call(plugin.ActionDoubleClick, 0, 0) }
func (p *PluginInjector) MouseDown() error    { return p.call(plugin.ActionMouseDown, 0, 0) }
func (p *PluginInjector) MouseUp() error      { return p.call(plugin.ActionMouseUp, 0, 0) }

// Close stops the plugin process.
func (p *PluginInjector) Close() error {
	return p.proc.Close()
}
