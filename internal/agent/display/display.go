// Package display abstracts the surface the agent renders onto. The hub
// never talks to a display directly; the executor and the websocket client
// drive it through the Driver interface.
package display

import "log"

// Driver is the capability the executor needs from a display.
type Driver interface {
	// Navigate points the display at a URL (remote or file://).
	Navigate(url string) error
	// ShowHTML renders a literal HTML document, used for message broadcasts.
	ShowHTML(html string) error
	// Refresh reloads whatever is currently shown.
	Refresh() error
	// Capture returns the current frame as a base64 data URL.
	Capture() (string, error)
	// Click, TypeText, PressKey, and Scroll forward remote-control input.
	Click(x, y int) error
	TypeText(text string) error
	PressKey(key string) error
	Scroll(deltaX, deltaY int) error
}

// LogDriver is a Driver for headless runs and tests: every command is logged,
// captures return an empty frame.
type LogDriver struct {
	Logger *log.Logger
}

// NewLogDriver creates a LogDriver.
func NewLogDriver(logger *log.Logger) *LogDriver {
	if logger == nil {
		logger = log.Default()
	}
	return &LogDriver{Logger: logger}
}

func (d *LogDriver) Navigate(url string) error {
	d.Logger.Printf("display: navigate %s", url)
	return nil
}

func (d *LogDriver) ShowHTML(html string) error {
	d.Logger.Printf("display: show html (%d bytes)", len(html))
	return nil
}

func (d *LogDriver) Refresh() error {
	d.Logger.Printf("display: refresh")
	return nil
}

func (d *LogDriver) Capture() (string, error) {
	return "", nil
}

func (d *LogDriver) Click(x, y int) error {
	d.Logger.Printf("display: click %d,%d", x, y)
	return nil
}

func (d *LogDriver) TypeText(text string) error {
	d.Logger.Printf("display: type %q", text)
	return nil
}

func (d *LogDriver) PressKey(key string) error {
	d.Logger.Printf("display: key %s", key)
	return nil
}

func (d *LogDriver) Scroll(deltaX, deltaY int) error {
	d.Logger.Printf("display: scroll %d,%d", deltaX, deltaY)
	return nil
}
