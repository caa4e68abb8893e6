// Package config provides configuration for the clipper.
// Values come from HEIMDEX_CLIPPER_* environment variables, optionally
// seeded from a .env file, with defaults for everything.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/heimdex/heimdex-clipper/internal/export"
)

const (
	DefaultPort             = 8788
	DefaultLogLevel         = "info"
	DefaultDataDir          = ".heimdex-clipper"
	DefaultProbeTimeout     = 30 * time.Second
	DefaultTranscodeTimeout = 2 * time.Hour
	DefaultExportFormat     = export.FormatMP4
	DefaultExportQuality    = export.QualityHigh

	EnvPort             = "HEIMDEX_CLIPPER_PORT"
	EnvLogLevel         = "HEIMDEX_CLIPPER_LOG_LEVEL"
	EnvDataDir          = "HEIMDEX_CLIPPER_DATA_DIR"
	EnvFFmpeg           = "HEIMDEX_CLIPPER_FFMPEG"
	EnvFFprobe          = "HEIMDEX_CLIPPER_FFPROBE"
	EnvProbeTimeout     = "HEIMDEX_CLIPPER_PROBE_TIMEOUT"
	EnvTranscodeTimeout = "HEIMDEX_CLIPPER_TRANSCODE_TIMEOUT"
	EnvHeadless         = "HEIMDEX_CLIPPER_HEADLESS"
	EnvPicker           = "HEIMDEX_CLIPPER_PICKER"
	EnvExportFormat     = "HEIMDEX_CLIPPER_EXPORT_FORMAT"
	EnvExportQuality    = "HEIMDEX_CLIPPER_EXPORT_QUALITY"

	DBFilename = "clipper.db"
)

// EnvFiles are the dotenv files LoadEnv looks for in the working directory.
var EnvFiles = []string{".env", ".env.local"}

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	FFmpegPath() string
	FFprobePath() string
	ProbeTimeout() time.Duration
	TranscodeTimeout() time.Duration
	Headless() bool
	PickerCommand() string
	DefaultSettings(outputDir string) export.Settings
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port             int
	logLevel         string
	dataDir          string
	ffmpeg           string
	ffprobe          string
	probeTimeout     time.Duration
	transcodeTimeout time.Duration
	headless         bool
	picker           string
	format           export.Format
	quality          export.Quality
}

// LoadEnv loads dotenv files from dir into the process environment.
// Variables already set in the environment are not overridden. Missing
// files are skipped.
func LoadEnv(logger *slog.Logger, dir string) []string {
	if logger == nil {
		logger = slog.Default()
	}
	var loaded []string
	for _, name := range EnvFiles {
		file := filepath.Join(dir, name)
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			logger.Warn("failed to load env file", "file", file, "error", err)
			continue
		}
		loaded = append(loaded, file)
	}
	if len(loaded) == 0 {
		logger.Debug("no env files loaded, using process environment")
	} else {
		logger.Debug("loaded env files", "files", strings.Join(loaded, ", "))
	}
	return loaded
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:             DefaultPort,
		logLevel:         DefaultLogLevel,
		dataDir:          defaultDataDir(),
		probeTimeout:     DefaultProbeTimeout,
		transcodeTimeout: DefaultTranscodeTimeout,
		format:           DefaultExportFormat,
		quality:          DefaultExportQuality,
	}

	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}
	cfg.ffmpeg = os.Getenv(EnvFFmpeg)
	cfg.ffprobe = os.Getenv(EnvFFprobe)
	cfg.picker = os.Getenv(EnvPicker)

	var err error
	if cfg.probeTimeout, err = envDuration(EnvProbeTimeout, cfg.probeTimeout); err != nil {
		return nil, err
	}
	if cfg.transcodeTimeout, err = envDuration(EnvTranscodeTimeout, cfg.transcodeTimeout); err != nil {
		return nil, err
	}

	if h := os.Getenv(EnvHeadless); h != "" {
		headless, err := strconv.ParseBool(h)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		cfg.headless = headless
	}

	if f := os.Getenv(EnvExportFormat); f != "" {
		if cfg.format, err = export.ParseFormat(f); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvExportFormat, err)
		}
	}
	if q := os.Getenv(EnvExportQuality); q != "" {
		if cfg.quality, err = export.ParseQuality(q); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvExportQuality, err)
		}
	}

	return cfg, nil
}

// envDuration accepts a Go duration ("90s") or a plain number of seconds.
func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("invalid %s: must be positive", key)
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// FFmpegPath is empty when ffmpeg should be looked up on PATH.
func (c *EnvConfig) FFmpegPath() string {
	return c.ffmpeg
}

func (c *EnvConfig) FFprobePath() string {
	return c.ffprobe
}

func (c *EnvConfig) ProbeTimeout() time.Duration {
	return c.probeTimeout
}

func (c *EnvConfig) TranscodeTimeout() time.Duration {
	return c.transcodeTimeout
}

// Headless disables the system tray.
func (c *EnvConfig) Headless() bool {
	return c.headless
}

// PickerCommand overrides the native file dialog helper.
func (c *EnvConfig) PickerCommand() string {
	return c.picker
}

// DefaultSettings are the export settings used when a request omits them.
func (c *EnvConfig) DefaultSettings(outputDir string) export.Settings {
	return export.Settings{OutputDir: outputDir, Format: c.format, Quality: c.quality}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
