package ui

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

// OpenFolder shows dir in the platform file manager.
func OpenFolder(dir string) error {
	if dir == "" {
		return fmt.Errorf("no folder to open")
	}
	if st, err := os.Stat(dir); err != nil {
		return err
	} else if !st.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	cmd := exec.Command(openerFor(runtime.GOOS), dir)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open %s: %w", dir, err)
	}
	go cmd.Wait()
	return nil
}

func openerFor(goos string) string {
	switch goos {
	case "darwin":
		return "open"
	case "windows":
		return "explorer"
	default:
		return "xdg-open"
	}
}
