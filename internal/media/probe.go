package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/heimdex/heimdex-clipper/internal/logging"
)

// Prober reads metadata from a media file.
type Prober interface {
	Probe(ctx context.Context, path string) (VideoInfo, error)
}

// FFProber probes with ffprobe's JSON output and falls back to parsing the
// `ffmpeg -i` banner when ffprobe is absent or fails.
type FFProber struct {
	cfg     Config
	ffmpeg  string
	ffprobe string
	logger  *slog.Logger
}

// NewProber resolves the executables. ffmpeg is required; ffprobe is used
// when it can be found.
func NewProber(cfg Config) (*FFProber, error) {
	ffmpeg, err := resolveTool(cfg.FFmpegPath, "ffmpeg")
	if err != nil {
		return nil, err
	}

	logger := logging.WithComponent(cfg.logger(), "prober")

	ffprobe, err := resolveTool(cfg.FFprobePath, "ffprobe")
	if err != nil {
		logger.Warn("ffprobe unavailable, probing from ffmpeg banner", "error", err)
		ffprobe = ""
	}

	return &FFProber{cfg: cfg, ffmpeg: ffmpeg, ffprobe: ffprobe, logger: logger}, nil
}

func (p *FFProber) Probe(ctx context.Context, path string) (VideoInfo, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return VideoInfo{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return VideoInfo{}, &ProbeError{Path: path, Reason: "cannot stat file", Err: err}
	}

	if p.cfg.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.ProbeTimeout)
		defer cancel()
	}

	if p.ffprobe != "" {
		info, err := p.probeJSON(ctx, path)
		if err == nil {
			return info, nil
		}
		p.logger.Warn("ffprobe failed, falling back to ffmpeg banner",
			"path", logging.SanitizePath(path),
			"error", err,
		)
	}

	return p.probeText(ctx, path)
}

func (p *FFProber) probeJSON(ctx context.Context, path string) (VideoInfo, error) {
	var stdout bytes.Buffer
	res := run(ctx, p.ffprobe, []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}, &stdout, maxStderrBytes, nil)
	if !res.IsSuccess() {
		return VideoInfo{}, &ProbeError{Path: path, Reason: fmt.Sprintf("ffprobe exited %d", res.ExitCode), Err: res.Err}
	}

	var out ffprobeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return VideoInfo{}, &ProbeError{Path: path, Reason: "cannot parse ffprobe JSON", Err: err}
	}

	info, ok := out.videoInfo()
	if !ok {
		return VideoInfo{}, &ProbeError{Path: path, Reason: "no duration in ffprobe output"}
	}
	return info, nil
}

func (p *FFProber) probeText(ctx context.Context, path string) (VideoInfo, error) {
	// ffmpeg exits 1 when no output file is given; the banner is still on stderr.
	// Chapters and metadata can run long, so the banner lines are picked out
	// of the whole stream rather than read from the stderr tail.
	banner := &bannerWriter{limit: maxProbeBytes}
	res := run(ctx, p.ffmpeg, []string{"-hide_banner", "-i", path}, nil, maxStderrBytes, banner)
	if ctx.Err() != nil {
		return VideoInfo{}, &ProbeError{Path: path, Reason: "probe timed out", Err: ctx.Err()}
	}
	if strings.TrimSpace(res.StderrTail) == "" {
		return VideoInfo{}, &ProbeError{Path: path, Reason: "ffmpeg produced no output", Err: res.Err}
	}

	info, ok := ParseProbeText(banner.String())
	if !ok {
		return VideoInfo{}, &ProbeError{Path: path, Reason: "could not determine duration: " + truncate(lastLine(res.StderrTail), 200)}
	}
	return info, nil
}

// ffprobeOutput matches the parts of ffprobe's JSON we read.
type ffprobeOutput struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		BitRate    string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Duration  string `json:"duration"`
	} `json:"streams"`
}

func (o ffprobeOutput) videoInfo() (VideoInfo, bool) {
	info := VideoInfo{Format: o.Format.FormatName}
	if info.Format == "" {
		info.Format = "unknown"
	}

	info.Duration, _ = strconv.ParseFloat(o.Format.Duration, 64)
	info.Bitrate, _ = strconv.ParseInt(o.Format.BitRate, 10, 64)

	for _, s := range o.Streams {
		if s.CodecType != "video" {
			continue
		}
		info.Width = s.Width
		info.Height = s.Height
		if info.Duration <= 0 {
			info.Duration, _ = strconv.ParseFloat(s.Duration, 64)
		}
		break
	}

	return info, info.Duration > 0
}
