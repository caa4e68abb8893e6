// Package fileurl converts between file:// URLs, which the UI exchanges, and
// native filesystem paths.
package fileurl

import (
	"errors"
	"fmt"
	"net/url"
	"runtime"
	"strings"
)

var (
	// ErrNotFileURL is returned for URLs with a scheme other than file.
	ErrNotFileURL = errors.New("not a file URL")

	// ErrNotAbsolute is returned by FromPath for relative paths.
	ErrNotAbsolute = errors.New("path is not absolute")
)

// Style selects the path syntax on the native side.
type Style int

const (
	POSIX Style = iota
	Windows
)

// Native is the style of the running platform.
func Native() Style {
	if runtime.GOOS == "windows" {
		return Windows
	}
	return POSIX
}

func (s Style) String() string {
	if s == Windows {
		return "windows"
	}
	return "posix"
}

// ToPath converts a file URL into a native path for the running platform.
func ToPath(raw string) (string, error) {
	return Native().ToPath(raw)
}

// FromPath converts a native path of the running platform into a file URL.
func FromPath(path string) (string, error) {
	return Native().FromPath(path)
}

// ToPath decodes raw into a path. Windows paths keep forward slashes:
// file:///C:/a%20b becomes C:/a b.
func (s Style) ToPath(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse file url: %w", err)
	}
	if !strings.EqualFold(u.Scheme, "file") {
		return "", fmt.Errorf("%w: %q", ErrNotFileURL, raw)
	}
	if u.Opaque != "" {
		return "", fmt.Errorf("%w: %q has no path", ErrNotFileURL, raw)
	}

	host := u.Host
	if strings.EqualFold(host, "localhost") {
		host = ""
	}
	path := u.Path

	if s == POSIX {
		if host != "" {
			return "", fmt.Errorf("%w: remote host %q", ErrNotFileURL, host)
		}
		if path == "" {
			return "", fmt.Errorf("%w: %q has no path", ErrNotFileURL, raw)
		}
		return path, nil
	}

	switch {
	case isDrive(host):
		// file://C:/x
		return host + path, nil
	case host != "":
		return "//" + host + path, nil
	case len(path) >= 3 && path[0] == '/' && isDrive(path[1:3]):
		return path[1:], nil
	case path == "":
		return "", fmt.Errorf("%w: %q has no path", ErrNotFileURL, raw)
	}
	return path, nil
}

// FromPath encodes an absolute path as a file URL. Spaces, '#', '?', '%' and
// non-ASCII runes are percent-encoded.
func (s Style) FromPath(path string) (string, error) {
	if s == POSIX {
		if !strings.HasPrefix(path, "/") {
			return "", fmt.Errorf("%w: %q", ErrNotAbsolute, path)
		}
		return (&url.URL{Scheme: "file", Path: path}).String(), nil
	}

	p := strings.ReplaceAll(path, `\`, "/")
	switch {
	case len(p) >= 3 && isDrive(p[:2]) && p[2] == '/':
		return (&url.URL{Scheme: "file", Path: "/" + p}).String(), nil
	case strings.HasPrefix(p, "//"):
		rest := p[2:]
		host, tail, _ := strings.Cut(rest, "/")
		if host == "" {
			return "", fmt.Errorf("%w: %q", ErrNotAbsolute, path)
		}
		return (&url.URL{Scheme: "file", Host: host, Path: "/" + tail}).String(), nil
	}
	return "", fmt.Errorf("%w: %q", ErrNotAbsolute, path)
}

func isDrive(s string) bool {
	if len(s) != 2 || s[1] != ':' {
		return false
	}
	c := s[0]
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
