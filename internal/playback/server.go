// Package playback streams the active video to the UI's preview player with
// byte range support.
package playback

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/heimdex/heimdex-clipper/internal/logging"
)

// ErrNotFound is returned when the file to serve is missing or a directory.
var ErrNotFound = errors.New("playback file not found")

type PlaybackService interface {
	ServeFile(w http.ResponseWriter, r *http.Request, filePath string) error
}

var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
	".flv":  "video/x-flv",
}

// ContentType returns the MIME type for a media file name.
func ContentType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := videoTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

type Server struct {
	logger *slog.Logger
}

func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{logger: logging.WithComponent(logger, "playback")}
}

// ServeFile writes filePath honoring Range, If-Range and HEAD. ErrNotFound
// is returned before anything is written so the caller can pick the error
// body.
func (s *Server) ServeFile(w http.ResponseWriter, r *http.Request, filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	if stat.IsDir() {
		return ErrNotFound
	}

	w.Header().Set("Content-Type", ContentType(filePath))
	w.Header().Set("Cache-Control", "no-store")

	s.logger.Debug("serving preview",
		"path", logging.SanitizePath(filePath),
		"range", r.Header.Get("Range"),
		"size", stat.Size(),
	)

	http.ServeContent(w, r, filepath.Base(filePath), stat.ModTime(), file)
	return nil
}
