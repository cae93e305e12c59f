package checkout

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"
)

// Capture records the navigation target instead of following it. The HTTP
// API returns the captured URL to the browser, which performs the redirect.
type Capture struct {
	mu    sync.Mutex
	last  string
	count int
}

func (c *Capture) Navigate(_ context.Context, url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = url
	c.count++
	return nil
}

// URL returns the last captured target, or "" if none.
func (c *Capture) URL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Count returns how many navigations were captured.
func (c *Capture) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// BrowserNavigator opens the URL in the system browser.
type BrowserNavigator struct{}

// browserCommand returns the launcher for the current OS.
var browserCommand = func(url string) (string, []string) {
	switch runtime.GOOS {
	case "darwin":
		return "open", []string{url}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}
	default:
		return "xdg-open", []string{url}
	}
}

// Navigate runs the launcher and waits for it to exit. The launcher hands
// the URL to the browser and returns, so it is not tied to ctx once started.
func (BrowserNavigator) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, args := browserCommand(url)
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("opening browser with %s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("opening browser with %s: %w", name, err)
	}
	return nil
}
