package httpserver

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// openBrowser launches command (or the platform opener) with url and does
// not wait for it to exit.
func openBrowser(command string, url string) error {
	name, args := browserCommand(command, runtime.GOOS)
	cmd := exec.Command(name, append(args, url)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open browser: %w", err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

func browserCommand(command string, goos string) (string, []string) {
	if fields := strings.Fields(command); len(fields) > 0 {
		return fields[0], fields[1:]
	}
	switch goos {
	case "darwin":
		return "open", nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler"}
	default:
		return "xdg-open", nil
	}
}
