// Package clips holds the named time ranges the user cuts out of the active
// video, and the rules a range must satisfy.
package clips

import (
	"fmt"
	"strings"

	"github.com/heimdex/heimdex-clipper/internal/media"
)

// Segment is a named [StartTime, EndTime) range of the active video, in
// seconds.
type Segment struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

// Duration is EndTime - StartTime.
func (s Segment) Duration() float64 { return s.EndTime - s.StartTime }

// Candidate is a segment that has not been accepted yet.
type Candidate struct {
	Name      string  `json:"name"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

// Field names reported in ValidationResult.Field.
const (
	FieldName      = "name"
	FieldStartTime = "start_time"
	FieldEndTime   = "end_time"
	FieldID        = "id"
)

// ValidationResult is the outcome of a checked operation. Business-rule
// failures are reported here rather than as errors.
type ValidationResult struct {
	Valid    bool   `json:"valid"`
	Error    string `json:"error,omitempty"`
	Field    string `json:"field,omitempty"`
	NotFound bool   `json:"not_found,omitempty"`
	ID       string `json:"id,omitempty"` // set by Store.Add on success
}

func ok() ValidationResult { return ValidationResult{Valid: true} }

func invalid(field, msg string) ValidationResult {
	return ValidationResult{Error: msg, Field: field}
}

// Validate checks c in order and reports the first rule it breaks. info may
// be nil when no video is loaded, in which case duration is not checked.
func Validate(c Candidate, info *media.VideoInfo) ValidationResult {
	if strings.TrimSpace(c.Name) == "" {
		return invalid(FieldName, "segment name must not be empty")
	}
	if !(c.StartTime >= 0) {
		return invalid(FieldStartTime, "start time must not be negative")
	}
	if !(c.EndTime > c.StartTime) {
		return invalid(FieldEndTime, "end time must be after start time")
	}
	if info != nil {
		if c.StartTime >= info.Duration {
			return invalid(FieldStartTime, fmt.Sprintf("start time must be before the end of the video (%.2f seconds)", info.Duration))
		}
		if c.EndTime > info.Duration {
			return invalid(FieldEndTime, fmt.Sprintf("end time must not exceed the video length (%.2f seconds)", info.Duration))
		}
	}
	return ok()
}
