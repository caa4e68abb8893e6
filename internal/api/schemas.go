package api

import (
	"errors"
	"time"

	"github.com/heimdex/heimdex-clipper/internal/clips"
	"github.com/heimdex/heimdex-clipper/internal/export"
	"github.com/heimdex/heimdex-clipper/internal/media"
	"github.com/heimdex/heimdex-clipper/internal/registry"
	"github.com/heimdex/heimdex-clipper/internal/session"
	"github.com/heimdex/heimdex-clipper/internal/timefmt"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeBadRequest        = "BAD_REQUEST"
	CodeNotFound          = "NOT_FOUND"
	CodePrecondition      = "PRECONDITION_FAILED"
	CodeProbeFailed       = "PROBE_FAILED"
	CodeExportInProgress  = "EXPORT_IN_PROGRESS"
	CodeInternal          = "INTERNAL_ERROR"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodePickerUnavailable = "PICKER_UNAVAILABLE"
	CodeUnavailable       = "UNAVAILABLE"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int64  `json:"uptime_s"`
	DeviceID string `json:"device_id"`
}

type StatusResponse struct {
	State           string         `json:"state"`
	Video           *VideoResponse `json:"video,omitempty"`
	SegmentsCount   int            `json:"segments_count"`
	ProgressClients int            `json:"progress_clients"`
	Tools           *ToolsResponse `json:"tools,omitempty"`
}

type ToolsResponse struct {
	FFmpeg      media.ToolInfo `json:"ffmpeg"`
	FFprobe     media.ToolInfo `json:"ffprobe"`
	CanExport   bool           `json:"can_export"`
	LastProbeAt string         `json:"last_probe_at,omitempty"`
}

func toolsToResponse(c *media.Capabilities) *ToolsResponse {
	resp := &ToolsResponse{FFmpeg: c.FFmpeg, FFprobe: c.FFprobe, CanExport: c.CanExport()}
	if !c.ProbedAt.IsZero() {
		resp.LastProbeAt = c.ProbedAt.Format(time.RFC3339)
	}
	return resp
}

// LoadVideoRequest selects a video. With neither field set the native file
// picker is shown.
type LoadVideoRequest struct {
	Path string `json:"path,omitempty"`
	URL  string `json:"url,omitempty"`
}

// LoadVideoResponse carries the chosen file as a file:// URL, or Cancelled.
type LoadVideoResponse struct {
	URL       string `json:"url,omitempty"`
	Path      string `json:"path,omitempty"`
	Cancelled bool   `json:"cancelled,omitempty"`
}

type VideoInfoRequest struct {
	URL string `json:"url"`
}

// VideoResponse is the session state plus display strings.
type VideoResponse struct {
	URL          string           `json:"url,omitempty"`
	Path         string           `json:"path,omitempty"`
	Loaded       bool             `json:"loaded"`
	Info         *media.VideoInfo `json:"info,omitempty"`
	DurationText string           `json:"duration_text,omitempty"`
	BitrateText  string           `json:"bitrate_text,omitempty"`
	Error        string           `json:"error,omitempty"`
}

func stateToResponse(st session.State, toURL func(string) (string, error)) VideoResponse {
	resp := VideoResponse{Path: st.Path, Loaded: st.Loaded, Info: st.Info, Error: st.Error}
	if st.Path != "" {
		if u, err := toURL(st.Path); err == nil {
			resp.URL = u
		}
	}
	if st.Info != nil {
		resp.DurationText = timefmt.FormatTime(st.Info.Duration, false)
		resp.BitrateText = timefmt.FormatBitrate(st.Info.Bitrate)
	}
	return resp
}

// SegmentRequest accepts times as seconds or as clock text ("1:05.5").
// Text wins when both are given.
type SegmentRequest struct {
	Name      string   `json:"name"`
	StartTime *float64 `json:"start_time,omitempty"`
	EndTime   *float64 `json:"end_time,omitempty"`
	Start     string   `json:"start,omitempty"`
	End       string   `json:"end,omitempty"`
}

var errTimeRequired = errors.New("start and end times are required")

func (r SegmentRequest) candidate() (clips.Candidate, error) {
	start, err := pickTime(r.Start, r.StartTime)
	if err != nil {
		return clips.Candidate{}, err
	}
	end, err := pickTime(r.End, r.EndTime)
	if err != nil {
		return clips.Candidate{}, err
	}
	return clips.Candidate{Name: r.Name, StartTime: start, EndTime: end}, nil
}

func pickTime(text string, secs *float64) (float64, error) {
	if text != "" {
		return timefmt.ParseTime(text)
	}
	if secs == nil {
		return 0, errTimeRequired
	}
	return *secs, nil
}

type SegmentResponse struct {
	clips.Segment
	Duration  float64 `json:"duration"`
	StartText string  `json:"start_text"`
	EndText   string  `json:"end_text"`
}

func segmentToResponse(s clips.Segment) SegmentResponse {
	return SegmentResponse{
		Segment:   s,
		Duration:  s.Duration(),
		StartText: timefmt.FormatTime(s.StartTime, true),
		EndText:   timefmt.FormatTime(s.EndTime, true),
	}
}

type SegmentsResponse struct {
	Segments []SegmentResponse `json:"segments"`
}

// SegmentMutationResponse is the validation outcome of an add or update,
// with the stored segment on success.
type SegmentMutationResponse struct {
	clips.ValidationResult
	Segment *SegmentResponse `json:"segment,omitempty"`
}

type SelectDirResponse struct {
	Path      string `json:"path,omitempty"`
	Cancelled bool   `json:"cancelled,omitempty"`
}

// ExportRequest exports Segments, or the stored segments when omitted, of
// the video at URL. Missing settings fields fall back to the defaults.
type ExportRequest struct {
	URL      string           `json:"url"`
	Segments []clips.Segment  `json:"segments,omitempty"`
	Settings *export.Settings `json:"settings,omitempty"`
}

type EDLRequest struct {
	OutputDir string  `json:"output_dir"`
	Title     string  `json:"title,omitempty"`
	FrameRate float64 `json:"frame_rate,omitempty"`
}

type EDLResponse struct {
	OutputPath string `json:"output_path"`
	EventCount int    `json:"event_count"`
}

type LogRequest struct {
	Level     string `json:"level"`
	Message   string `json:"message"`
	Component string `json:"component,omitempty"`
}

type LogErrorRequest struct {
	Message        string `json:"message"`
	Stack          string `json:"stack,omitempty"`
	ComponentStack string `json:"component_stack,omitempty"`
}

type DiagnosticsResponse struct {
	Diagnostics []*registry.Diagnostic `json:"diagnostics"`
}
