package ui

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/getlantern/systray"

	"github.com/heimdex/heimdex-clipper/internal/export"
	"github.com/heimdex/heimdex-clipper/internal/session"
)

const maxTitleName = 32

// Tray shows the loaded video and export progress in the system tray. It is
// an export.ProgressSink.
type Tray struct {
	session *session.Session
	logger  *slog.Logger

	mu         sync.Mutex
	ready      bool
	status     string
	video      string
	statusItem *systray.MenuItem
	videoItem  *systray.MenuItem
	unloadItem *systray.MenuItem

	unsubscribe   func()
	onOpenExports func() error
	onQuit        func()
}

type TrayConfig struct {
	Session       *session.Session
	Logger        *slog.Logger
	OnOpenExports func() error
	OnQuit        func()
}

func NewTray(cfg TrayConfig) *Tray {
	t := &Tray{
		session:       cfg.Session,
		logger:        cfg.Logger,
		status:        "Idle",
		video:         videoTitle(session.State{}),
		onOpenExports: cfg.OnOpenExports,
		onQuit:        cfg.OnQuit,
	}
	if t.session != nil {
		t.video = videoTitle(t.session.Current())
		t.unsubscribe = t.session.Subscribe(func(_, next session.State) {
			t.setVideo(videoTitle(next), next.Loaded)
		})
	}
	return t
}

// Run blocks until the tray exits.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("")
	systray.SetTooltip("Heimdex Clipper")

	t.mu.Lock()
	t.statusItem = systray.AddMenuItem("Status: "+t.status, "Export status")
	t.statusItem.Disable()
	t.videoItem = systray.AddMenuItem(t.video, "Loaded video")
	t.videoItem.Disable()

	systray.AddSeparator()

	openItem := systray.AddMenuItem("Open Export Folder", "Show the last export folder")
	t.unloadItem = systray.AddMenuItem("Unload Video", "Close the loaded video and drop its segments")
	if t.session == nil || !t.session.Current().Loaded {
		t.unloadItem.Disable()
	}
	unloadItem := t.unloadItem
	t.ready = true
	t.mu.Unlock()

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Heimdex Clipper")

	go func() {
		for {
			select {
			case <-openItem.ClickedCh:
				t.handleOpenExports()
			case <-unloadItem.ClickedCh:
				if t.session != nil {
					t.session.Clear()
				}
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	if t.unsubscribe != nil {
		t.unsubscribe()
	}
	t.logger.Info("system tray exiting")
}

func (t *Tray) handleOpenExports() {
	if t.onOpenExports != nil {
		if err := t.onOpenExports(); err != nil {
			t.logger.Error("failed to open export folder", "error", err)
		}
	}
}

// OnProgress implements export.ProgressSink.
func (t *Tray) OnProgress(p export.Progress) {
	t.setStatus(progressTitle(p))
}

func (t *Tray) setStatus(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = status
	if t.ready {
		t.statusItem.SetTitle("Status: " + status)
	}
}

func (t *Tray) setVideo(title string, loaded bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.video = title
	if !t.ready {
		return
	}
	t.videoItem.SetTitle(title)
	if loaded {
		t.unloadItem.Enable()
	} else {
		t.unloadItem.Disable()
	}
}

// Status is the current status line, without the "Status: " prefix.
func (t *Tray) Status() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *Tray) Quit() {
	systray.Quit()
}

func progressTitle(p export.Progress) string {
	switch p.Phase {
	case export.PhaseBatchDone:
		return "Idle"
	case export.PhaseSegmentProgress:
		return fmt.Sprintf("Exporting %d/%d: %s (%.0f%%)", p.CurrentIndex, p.Total, shorten(p.CurrentSegmentName), p.SegmentPercent)
	default:
		return fmt.Sprintf("Exporting %d/%d: %s", p.CurrentIndex, p.Total, shorten(p.CurrentSegmentName))
	}
}

func videoTitle(st session.State) string {
	switch {
	case st.Loaded:
		return "Video: " + shorten(filepath.Base(st.Path))
	case st.Error != "":
		return "Video: failed to load"
	default:
		return "Video: none"
	}
}

func shorten(s string) string {
	r := []rune(s)
	if len(r) <= maxTitleName {
		return s
	}
	return string(r[:maxTitleName-1]) + "…"
}
