package tui

import (
	"os/exec"
	"runtime"

	tea "github.com/charmbracelet/bubbletea"
)

// browserMsg reports the outcome of handing url to the system browser.
type browserMsg struct {
	url string
	err error
}

// browserCommand is the launcher for url on goos.
func browserCommand(goos, url string) *exec.Cmd {
	switch goos {
	case "darwin":
		return exec.Command("open", url)
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return exec.Command("xdg-open", url)
	}
}

func openURLCmd(url string) tea.Cmd {
	return func() tea.Msg {
		return browserMsg{url: url, err: browserCommand(runtime.GOOS, url).Run()}
	}
}
