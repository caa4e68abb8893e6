package ui

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/heimdex/heimdex-clipper/internal/media"
)

// ErrNoPicker is returned when no dialog helper could be found.
var ErrNoPicker = errors.New("no file dialog helper available")

// CommandPicker shows native dialogs by running a helper program: osascript
// on macOS, otherwise a zenity-compatible command. The helper prints the
// chosen path on stdout and exits 1 when the user cancels.
type CommandPicker struct {
	command string
	goos    string
	logger  *slog.Logger
}

// NewCommandPicker uses command when set, else the platform default.
func NewCommandPicker(command string, logger *slog.Logger) *CommandPicker {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandPicker{command: command, goos: runtime.GOOS, logger: logger}
}

// PickVideo returns "" with a nil error when the dialog was dismissed.
func (p *CommandPicker) PickVideo(ctx context.Context) (string, error) {
	name, args, err := p.videoCommand()
	if err != nil {
		return "", err
	}
	return p.run(ctx, name, args)
}

// PickDirectory opens the dialog in start when it is set.
func (p *CommandPicker) PickDirectory(ctx context.Context, start string) (string, error) {
	name, args, err := p.dirCommand(start)
	if err != nil {
		return "", err
	}
	return p.run(ctx, name, args)
}

func (p *CommandPicker) videoCommand() (string, []string, error) {
	exts := media.SupportedExtensions()

	if p.command == "" && p.goos == "darwin" {
		quoted := make([]string, len(exts))
		for i, e := range exts {
			quoted[i] = `"` + e + `"`
		}
		script := fmt.Sprintf(`POSIX path of (choose file with prompt "Open Video" of type {%s})`, strings.Join(quoted, ", "))
		return "osascript", []string{"-e", script}, nil
	}

	bin, err := p.zenity()
	if err != nil {
		return "", nil, err
	}
	patterns := make([]string, len(exts))
	for i, e := range exts {
		patterns[i] = "*." + e
	}
	return bin, []string{
		"--file-selection",
		"--title=Open Video",
		"--file-filter=Videos | " + strings.Join(patterns, " "),
	}, nil
}

func (p *CommandPicker) dirCommand(start string) (string, []string, error) {
	if p.command == "" && p.goos == "darwin" {
		script := `POSIX path of (choose folder with prompt "Export To")`
		if start != "" {
			script = fmt.Sprintf(`POSIX path of (choose folder with prompt "Export To" default location (POSIX file %q))`, start)
		}
		return "osascript", []string{"-e", script}, nil
	}

	bin, err := p.zenity()
	if err != nil {
		return "", nil, err
	}
	args := []string{"--file-selection", "--directory", "--title=Export To"}
	if start != "" {
		args = append(args, "--filename="+strings.TrimSuffix(start, string(filepath.Separator))+string(filepath.Separator))
	}
	return bin, args, nil
}

func (p *CommandPicker) zenity() (string, error) {
	if p.command != "" {
		return p.command, nil
	}
	for _, name := range []string{"zenity", "qarma", "yad"} {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", ErrNoPicker
}

func (p *CommandPicker) run(ctx context.Context, name string, args []string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		p.logger.Debug("dialog cancelled", "command", name)
		return "", nil
	}
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrNoPicker, name)
		}
		return "", fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}

	path := strings.TrimRight(stdout.String(), "\r\n")
	if path == "" {
		return "", nil
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	return path, nil
}
