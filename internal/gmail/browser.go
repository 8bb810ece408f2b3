package gmail

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
	"strings"
)

// OpenBrowser starts the platform URL handler for rawURL and returns without
// waiting for it. Only http and https URLs are accepted.
func OpenBrowser(rawURL string) error {
	name, args, err := browserCommand(runtime.GOOS, rawURL)
	if err != nil {
		return err
	}
	if err := exec.Command(name, args...).Start(); err != nil {
		return fmt.Errorf("launch %s: %w", name, err)
	}
	return nil
}

// browserCommand picks the launcher for goos. The URL is passed as a single
// argument, never through a shell.
func browserCommand(goos, rawURL string) (string, []string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", nil, fmt.Errorf("parse browser URL: %w", err)
	}
	if s := strings.ToLower(u.Scheme); (s != "http" && s != "https") || u.Host == "" {
		return "", nil, fmt.Errorf("refusing to open non-HTTP URL: %s", rawURL)
	}

	switch goos {
	case "darwin":
		return "open", []string{rawURL}, nil
	case "linux", "freebsd", "openbsd", "netbsd":
		return "xdg-open", []string{rawURL}, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", rawURL}, nil
	}
	return "", nil, fmt.Errorf("unsupported platform %s", goos)
}
