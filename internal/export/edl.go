package export

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/heimdex/heimdex-clipper/internal/clips"
)

const defaultEDLTitle = "clipper_export"

// EDLEvent is one cut in an edit decision list.
type EDLEvent struct {
	Name      string
	MediaPath string
	Start     float64 // seconds
	End       float64
}

// EventsFromSegments maps segments of videoPath to EDL events, in order.
func EventsFromSegments(videoPath string, segs []clips.Segment) []EDLEvent {
	events := make([]EDLEvent, 0, len(segs))
	for i, s := range segs {
		events = append(events, EDLEvent{
			Name:      baseName(s.Name, i),
			MediaPath: videoPath,
			Start:     s.StartTime,
			End:       s.EndTime,
		})
	}
	return events
}

// GenerateEDL renders a CMX3600 edit list placing events back to back on the
// record timeline.
func GenerateEDL(events []EDLEvent, title string, frameRate float64) string {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		fps = 30
	}
	dropFrame := math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01

	var b strings.Builder
	fmt.Fprintf(&b, "TITLE: %s\n", title)
	if dropFrame {
		b.WriteString("FCM: DROP FRAME\n")
	} else {
		b.WriteString("FCM: NON-DROP FRAME\n")
	}
	b.WriteString("\n")

	var record float64
	for i, ev := range events {
		length := ev.End - ev.Start
		fmt.Fprintf(&b, "%03d  %-8s %-5s C        %s %s %s %s\n",
			i+1, reelName(ev.MediaPath), "AA/V",
			timecode(ev.Start, fps), timecode(ev.End, fps),
			timecode(record, fps), timecode(record+length, fps),
		)
		fmt.Fprintf(&b, "* FROM CLIP NAME:  %s\n", ev.Name)
		fmt.Fprintf(&b, "* SOURCE FILE:  %s\n", ev.MediaPath)
		record += length
	}
	return b.String()
}

// WriteEDL writes an edit list for segs into dir and returns its path. An
// existing file of the same name is never overwritten.
func WriteEDL(dir, title, videoPath string, segs []clips.Segment, frameRate float64) (string, error) {
	if err := ValidateOutputDir(dir); err != nil {
		return "", err
	}
	if len(segs) == 0 {
		return "", &PreconditionError{Field: "segments", Reason: "must not be empty"}
	}

	name := SanitizeName(title, 120)
	if name == "" {
		name = defaultEDLTitle
	}

	path, err := resolveOutputPath(dir, name, "edl")
	if err != nil {
		return "", err
	}

	edl := GenerateEDL(EventsFromSegments(videoPath, segs), name, frameRate)
	if err := os.WriteFile(path, []byte(edl), 0o644); err != nil {
		return "", fmt.Errorf("write edl: %w", err)
	}
	return path, nil
}

// reelName is up to 8 upper-case alphanumerics of the media file name.
func reelName(mediaPath string) string {
	base := strings.TrimSuffix(filepath.Base(mediaPath), filepath.Ext(mediaPath))
	var b strings.Builder
	for _, r := range strings.ToUpper(base) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			if b.Len() == 8 {
				break
			}
		}
	}
	if b.Len() == 0 {
		return "AX"
	}
	return b.String()
}

func timecode(seconds float64, fps int) string {
	totalFrames := int(math.Round(seconds * float64(fps)))
	if totalFrames < 0 {
		totalFrames = 0
	}
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	return fmt.Sprintf("%02d:%02d:%02d:%02d", totalSeconds/3600, (totalSeconds/60)%60, totalSeconds%60, frames)
}
