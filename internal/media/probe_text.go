package media

import (
	"bytes"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	durationRe   = regexp.MustCompile(`Duration: (\d{2}):(\d{2}):(\d{2})\.(\d{2})`)
	resolutionRe = regexp.MustCompile(`Video:.*? (\d{2,5})x(\d{2,5})`)
	formatRe     = regexp.MustCompile(`Input #0, ([^,]+),`)
	bitrateRe    = regexp.MustCompile(`bitrate: (\d+) kb/s`)
)

// supportedExts are the readable containers. flv can be loaded but not
// exported.
var supportedExts = map[string]bool{
	"mp4":  true,
	"avi":  true,
	"mov":  true,
	"mkv":  true,
	"webm": true,
	"flv":  true,
}

// ParseProbeText extracts metadata from the banner that `ffmpeg -i` prints
// on stderr. ok is false when no positive duration could be found.
func ParseProbeText(text string) (info VideoInfo, ok bool) {
	info.Format = "unknown"

	if m := durationRe.FindStringSubmatch(text); m != nil {
		h, _ := strconv.Atoi(m[1])
		mi, _ := strconv.Atoi(m[2])
		s, _ := strconv.Atoi(m[3])
		cs, _ := strconv.Atoi(m[4])
		info.Duration = float64(h*3600+mi*60+s) + float64(cs)/100
	}

	if m := resolutionRe.FindStringSubmatch(text); m != nil {
		info.Width, _ = strconv.Atoi(m[1])
		info.Height, _ = strconv.Atoi(m[2])
	}

	if m := formatRe.FindStringSubmatch(text); m != nil {
		info.Format = strings.TrimSpace(m[1])
	}

	if m := bitrateRe.FindStringSubmatch(text); m != nil {
		kbps, _ := strconv.ParseInt(m[1], 10, 64)
		info.Bitrate = kbps * 1000
	}

	return info, info.Duration > 0
}

// bannerPrefixes mark the `ffmpeg -i` lines ParseProbeText reads.
var bannerPrefixes = []string{"Input #", "Duration:", "Stream #"}

// bannerWriter keeps only the banner lines of a stderr stream, up to limit
// bytes, however much else the stream carries.
type bannerWriter struct {
	limit   int
	kept    bytes.Buffer
	pending []byte
}

func (bw *bannerWriter) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		i := bytes.IndexAny(p, "\r\n")
		if i < 0 {
			if len(bw.pending)+len(p) <= bw.limit {
				bw.pending = append(bw.pending, p...)
			}
			break
		}
		bw.pending = append(bw.pending, p[:i]...)
		bw.keep()
		p = p[i+1:]
	}
	return n, nil
}

func (bw *bannerWriter) keep() {
	line := bytes.TrimSpace(bw.pending)
	bw.pending = bw.pending[:0]
	if len(line) == 0 || bw.kept.Len()+len(line)+1 > bw.limit {
		return
	}
	for _, prefix := range bannerPrefixes {
		if bytes.HasPrefix(line, []byte(prefix)) {
			bw.kept.Write(line)
			bw.kept.WriteByte('\n')
			return
		}
	}
}

// String returns the kept lines, including an unterminated last line.
func (bw *bannerWriter) String() string {
	if len(bw.pending) > 0 {
		bw.keep()
	}
	return bw.kept.String()
}

// IsSupportedFormat reports whether path has a loadable container extension.
func IsSupportedFormat(path string) bool {
	return supportedExts[extOf(path)]
}

// IsExportFormat reports whether path has an extension segments can be cut
// into. flv is readable but not offered as a target.
func IsExportFormat(path string) bool {
	ext := extOf(path)
	return ext != "flv" && supportedExts[ext]
}

// SupportedExtensions lists the loadable extensions, without dots, sorted.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(supportedExts))
	for ext := range supportedExts {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func extOf(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}
