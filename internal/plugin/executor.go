package plugin

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"
)

var (
	// ErrDenied is returned when the plugin reports that the OS refused the
	// action.
	ErrDenied = errors.New("plugin action denied")
	// ErrTimeout is returned when no response arrives in time.
	ErrTimeout = errors.New("plugin response timeout")
	// ErrExited is returned when the plugin process is gone.
	ErrExited = errors.New("plugin process exited")
)

// stderrLimit caps how much plugin stderr is kept for diagnostics.
const stderrLimit = 4096

// Executor starts plugin processes with a per-request timeout.
type Executor struct {
	timeout time.Duration
}

// NewExecutor creates a new Executor with the specified per-request timeout.
func NewExecutor(timeout time.Duration) *Executor {
	return &Executor{
		timeout: timeout,
	}
}

// Process is a running plugin. Requests are serialized; each one waits for
// the matching response line.
type Process struct {
	plugin  *Plugin
	timeout time.Duration

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	lines  chan []byte
	stderr *limitedBuffer
	exited chan struct{}

	mu     sync.Mutex
	nextID uint64
	closed bool
}

// Start launches the plugin executable. The process lives until Close or
// until ctx is cancelled.
func (e *Executor) Start(ctx context.Context, plugin *Plugin) (*Process, error) {
	cmd := exec.CommandContext(ctx, plugin.Executable)
	cmd.Dir = plugin.Path
	cmd.WaitDelay = e.timeout

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("plugin stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("plugin stdout: %w", err)
	}
	stderr := &limitedBuffer{limit: stderrLimit}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start plugin %s: %w", plugin.Manifest.Name, err)
	}

	p := &Process{
		plugin:  plugin,
		timeout: e.timeout,
		cmd:     cmd,
		stdin:   stdin,
		lines:   make(chan []byte, 16),
		stderr:  stderr,
		exited:  make(chan struct{}),
	}
	go p.readLines(stdout)
	go func() {
		cmd.Wait()
		close(p.exited)
	}()
	return p, nil
}

func (p *Process) readLines(r io.Reader) {
	defer close(p.lines)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		select {
		case p.lines <- append([]byte(nil), line...):
		case <-p.exited:
			return
		}
	}
}

// Plugin returns the plugin this process runs.
func (p *Process) Plugin() *Plugin {
	return p.plugin
}

// Call sends one request and waits for its response. A response with
// success=false is returned as an error; denied responses wrap ErrDenied.
func (p *Process) Call(action string, x, y int) (*Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrExited
	}

	p.nextID++
	req := Request{ID: p.nextID, Action: action, X: x, Y: y}
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	if _, err := p.stdin.Write(append(reqJSON, '\n')); err != nil {
		return nil, fmt.Errorf("%w: write request: %v%s", ErrExited, err, p.stderrSuffix())
	}

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	for {
		select {
		case line, ok := <-p.lines:
			if !ok {
				return nil, fmt.Errorf("%w%s", ErrExited, p.stderrSuffix())
			}
			var resp Response
			if err := json.Unmarshal(line, &resp); err != nil {
				return nil, fmt.Errorf("failed to parse plugin response: %w, stdout: %s", err, line)
			}
			if resp.ID != req.ID {
				// Late answer to a request that already timed out.
				continue
			}
			return &resp, resp.err(action)
		case <-timer.C:
			return nil, fmt.Errorf("%w: %s after %v", ErrTimeout, action, p.timeout)
		}
	}
}

func (r *Response) err(action string) error {
	if r.Success {
		return nil
	}
	if r.ErrorKind == ErrorKindDenied {
		return fmt.Errorf("%w: %s: %s", ErrDenied, action, r.Error)
	}
	return fmt.Errorf("plugin %s failed: %s", action, r.Error)
}

func (p *Process) stderrSuffix() string {
	if s := p.stderr.String(); s != "" {
		return ", stderr: " + s
	}
	return ""
}

// Close stops the plugin: stdin is closed so a well-behaved plugin exits on
// its own, and the process is killed if it is still running after the
// timeout.
func (p *Process) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.stdin.Close()
	select {
	case <-p.exited:
		return nil
	case <-time.After(p.timeout):
	}
	if err := p.cmd.Process.Kill(); err != nil {
		return fmt.Errorf("kill plugin %s: %w", p.plugin.Manifest.Name, err)
	}
	<-p.exited
	return nil
}

// Exited is closed when the plugin process terminates.
func (p *Process) Exited() <-chan struct{} {
	return p.exited
}

type limitedBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(bytes.TrimSpace(b.buf.Bytes()))
}
