package media

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const defaultCacheTTL = 5 * time.Minute

// ToolInfo is the availability of one executable.
type ToolInfo struct {
	Available bool   `json:"available"`
	Path      string `json:"path,omitempty"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Capabilities reports which media tools are usable.
type Capabilities struct {
	FFmpeg   ToolInfo  `json:"ffmpeg"`
	FFprobe  ToolInfo  `json:"ffprobe"`
	ProbedAt time.Time `json:"probed_at"`
}

// CanExport is true when segments can be cut.
func (c *Capabilities) CanExport() bool { return c.FFmpeg.Available }

// Checker inspects the installed tools.
type Checker interface {
	Check(ctx context.Context) (*Capabilities, error)
}

// ToolChecker runs `<tool> -version` for ffmpeg and ffprobe.
type ToolChecker struct {
	cfg Config
}

func NewToolChecker(cfg Config) *ToolChecker {
	return &ToolChecker{cfg: cfg}
}

func (c *ToolChecker) Check(ctx context.Context) (*Capabilities, error) {
	if c.cfg.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.ProbeTimeout)
		defer cancel()
	}

	caps := &Capabilities{
		FFmpeg:   checkTool(ctx, c.cfg.FFmpegPath, "ffmpeg"),
		FFprobe:  checkTool(ctx, c.cfg.FFprobePath, "ffprobe"),
		ProbedAt: time.Now(),
	}

	c.cfg.logger().Info("media tool check complete",
		"ffmpeg", caps.FFmpeg.Available,
		"ffmpeg_version", caps.FFmpeg.Version,
		"ffprobe", caps.FFprobe.Available,
	)
	return caps, nil
}

func checkTool(ctx context.Context, preferred, name string) ToolInfo {
	path, err := resolveTool(preferred, name)
	if err != nil {
		return ToolInfo{Error: err.Error()}
	}

	var stdout bytes.Buffer
	res := run(ctx, path, []string{"-version"}, &stdout, maxStderrBytes, nil)
	if !res.IsSuccess() {
		return ToolInfo{Path: path, Error: fmt.Sprintf("%s -version exited %d", name, res.ExitCode)}
	}
	return ToolInfo{Available: true, Path: path, Version: parseVersion(stdout.String(), name)}
}

// parseVersion pulls "6.1.1" out of "ffmpeg version 6.1.1 Copyright ...".
func parseVersion(out, name string) string {
	first, _, _ := strings.Cut(out, "\n")
	fields := strings.Fields(first)
	for i := 0; i+2 < len(fields); i++ {
		if fields[i] == name && fields[i+1] == "version" {
			return fields[i+2]
		}
	}
	return strings.TrimSpace(first)
}

// CachedDoctor caches tool checks for a TTL. Concurrent refreshes share one
// subprocess run.
type CachedDoctor struct {
	checker Checker
	ttl     time.Duration
	logger  *slog.Logger
	group   singleflight.Group

	mu     sync.RWMutex
	cached *Capabilities
}

func NewCachedDoctor(checker Checker, logger *slog.Logger) *CachedDoctor {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedDoctor{
		checker: checker,
		ttl:     defaultCacheTTL,
		logger:  logger,
	}
}

// Get returns cached capabilities if fresh, otherwise re-checks.
func (d *CachedDoctor) Get(ctx context.Context) (*Capabilities, error) {
	d.mu.RLock()
	if d.cached != nil && time.Since(d.cached.ProbedAt) < d.ttl {
		caps := d.cached
		d.mu.RUnlock()
		return caps, nil
	}
	d.mu.RUnlock()

	return d.Refresh(ctx)
}

func (d *CachedDoctor) Peek() *Capabilities {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cached
}

// Refresh forces a new check regardless of cache freshness.
func (d *CachedDoctor) Refresh(ctx context.Context) (*Capabilities, error) {
	v, err, _ := d.group.Do("check", func() (interface{}, error) {
		caps, err := d.checker.Check(ctx)
		if err != nil {
			return nil, err
		}
		d.mu.Lock()
		d.cached = caps
		d.mu.Unlock()
		return caps, nil
	})
	if err != nil {
		d.logger.Warn("media tool check failed", "error", err)
		if stale := d.Peek(); stale != nil {
			d.logger.Info("returning stale capabilities cache")
			return stale, nil
		}
		return nil, err
	}
	return v.(*Capabilities), nil
}

// Invalidate clears the cached capabilities.
func (d *CachedDoctor) Invalidate() {
	d.mu.Lock()
	d.cached = nil
	d.mu.Unlock()
}
