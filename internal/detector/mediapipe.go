package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"gocv.io/x/gocv"
)

// ScriptName is the file name of the landmark service.
const ScriptName = "mediapipe_service.py"

// MediaPipeDetector runs hand landmark inference in a Python MediaPipe
// service. The service is started on the first Detect, stopped by Suspend
// and restarted by the next Detect, so the app decides when the model may be
// unloaded.
//
// Wire protocol: each request is a 4-byte big-endian length followed by a JPEG
// frame; each response is one JSON line, either {"hands":[...]} or
// {"error":"..."}.
type MediaPipeDetector struct {
	config Config
	python string
	logger *slog.Logger

	mu     sync.Mutex
	proc   *service
	starts int
}

// service is one running instance of the Python process.
type service struct {
	cmd    *exec.Cmd
	stdin  *bufio.Writer
	pipe   io.WriteCloser
	stdout *bufio.Reader
}

// NewMediaPipeDetector locates the service script and interpreter. It
// returns ErrServiceUnavailable when the script cannot be found.
func NewMediaPipeDetector(config Config, logger *slog.Logger) (*MediaPipeDetector, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if config.MaxHands < 1 {
		config.MaxHands = 1
	}

	script := config.ScriptPath
	if script == "" {
		script = firstExisting(searchPaths(filepath.Join("scripts", ScriptName)))
	}
	if script == "" {
		return nil, fmt.Errorf("%w: %s not found", ErrServiceUnavailable, ScriptName)
	}
	if _, err := os.Stat(script); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	config.ScriptPath = script

	python := config.PythonPath
	if python == "" {
		python = firstExisting(searchPaths(filepath.Join("venv", "bin", "python")))
	}
	if python == "" {
		python = "python3"
	}

	return &MediaPipeDetector{
		config: config,
		python: python,
		logger: logger.With("component", "detector"),
	}, nil
}

// Detect sends one frame to the service. Failures are wrapped in
// ErrDetection; when the service died the next call starts a new one.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.proc == nil {
		proc, err := d.start()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDetection, err)
		}
		d.proc = proc
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("%w: encode frame: %w", ErrDetection, err)
	}
	defer buf.Close()

	line, err := d.proc.roundTrip(buf.GetBytes())
	if err != nil {
		d.logger.Warn("landmark service failed, restarting on next frame", "error", err)
		d.stop(true)
		return nil, fmt.Errorf("%w: %w", ErrDetection, err)
	}

	hands, err := decodeResponse(line)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDetection, err)
	}
	return selectHands(hands, d.config), nil
}

// Suspend stops the service to free the model while no hand is expected.
func (d *MediaPipeDetector) Suspend() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.proc == nil {
		return nil
	}
	d.logger.Info("suspending landmark service")
	return d.stop(false)
}

// Starts reports how many times the service process was launched.
func (d *MediaPipeDetector) Starts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.starts
}

// Close stops the service.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stop(false)
}

func (d *MediaPipeDetector) start() (*service, error) {
	cmd := exec.Command(d.python, d.config.ScriptPath,
		"--max-hands", strconv.Itoa(d.config.MaxHands),
		"--min-detection-confidence", strconv.FormatFloat(d.config.MinConfidence, 'f', 2, 64),
		"--min-tracking-confidence", strconv.FormatFloat(d.config.MinTrackingConf, 'f', 2, 64),
	)
	pipe, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stderr = stderrLog{d.logger}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", d.python, err)
	}

	d.starts++
	d.logger.Info("landmark service started", "pid", cmd.Process.Pid, "python", d.python, "max_hands", d.config.MaxHands)
	return &service{
		cmd:    cmd,
		pipe:   pipe,
		stdin:  bufio.NewWriter(pipe),
		stdout: bufio.NewReader(stdout),
	}, nil
}

// stderrLog forwards the service's diagnostics to the logger.
type stderrLog struct {
	logger *slog.Logger
}

func (w stderrLog) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if line != "" {
			w.logger.Debug("landmark service", "stderr", line)
		}
	}
	return len(p), nil
}

// stop closes stdin so the service exits and reaps it. A broken service is
// killed instead. Callers hold mu.
func (d *MediaPipeDetector) stop(kill bool) error {
	if d.proc == nil {
		return nil
	}
	proc := d.proc
	d.proc = nil

	if kill {
		proc.cmd.Process.Kill()
	}
	proc.pipe.Close()
	err := proc.cmd.Wait()
	var exit *exec.ExitError
	if errors.As(err, &exit) {
		// A service killed mid-frame exits non-zero; that was already reported.
		return nil
	}
	return err
}

func (s *service) roundTrip(jpeg []byte) (string, error) {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(jpeg)))
	if _, err := s.stdin.Write(length[:]); err != nil {
		return "", fmt.Errorf("write frame: %w", err)
	}
	if _, err := s.stdin.Write(jpeg); err != nil {
		return "", fmt.Errorf("write frame: %w", err)
	}
	if err := s.stdin.Flush(); err != nil {
		return "", fmt.Errorf("write frame: %w", err)
	}

	line, err := s.stdout.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	return line, nil
}

type response struct {
	Hands []jsonHand `json:"hands"`
	Error string     `json:"error"`
}

type jsonHand struct {
	Points     []Point3D `json:"points"`
	Handedness string    `json:"handedness"`
	Score      float64   `json:"score"`
}

func decodeResponse(line string) ([]jsonHand, error) {
	var resp response
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("service: %s", resp.Error)
	}
	return resp.Hands, nil
}

// selectHands drops incomplete, non-finite and low-confidence hands and
// returns at most MaxHands of the rest, best score first, so Primary always
// sees the strongest candidate.
func selectHands(hands []jsonHand, cfg Config) []HandLandmarks {
	out := make([]HandLandmarks, 0, len(hands))
	for _, h := range hands {
		if len(h.Points) != NumLandmarks || h.Score < cfg.MinConfidence {
			continue
		}
		lm := HandLandmarks{Handedness: h.Handedness, Score: h.Score}
		copy(lm.Points[:], h.Points)
		if lm.Validate() != nil {
			continue
		}
		out = append(out, lm)
	}
	slices.SortStableFunc(out, func(a, b HandLandmarks) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	if cfg.MaxHands > 0 && len(out) > cfg.MaxHands {
		out = out[:cfg.MaxHands]
	}
	return out
}

// searchPaths lists where rel is looked for: the working directory, its
// parent, next to the executable and under the mudra data directory.
func searchPaths(rel string) []string {
	paths := []string{rel, filepath.Join("..", rel)}
	if exe, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(exe), rel))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".mudra", rel))
	}
	return paths
}

func firstExisting(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			return abs
		}
		return p
	}
	return ""
}
