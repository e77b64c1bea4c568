// Package executor provides a simulated desktop and exposes it as MCP
// tools. It stands in for a real operating-system automation backend:
// windows, the cursor and keyboard input are modeled in memory, and
// screen captures are rendered as real PNG images so the vision path can
// exercise end to end.
package executor

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"time"
)

// ActionKind tags each recorded desktop action.
type ActionKind string

const (
	ActionMoveMouse    ActionKind = "move_mouse"
	ActionMouseDown    ActionKind = "mouse_down"
	ActionMouseUp      ActionKind = "mouse_up"
	ActionClick        ActionKind = "click"
	ActionScroll       ActionKind = "scroll"
	ActionKeyboard     ActionKind = "keyboard"
	ActionShellCommand ActionKind = "shell_command"
	ActionWait         ActionKind = "wait"
	ActionCapture      ActionKind = "capture_screen"
)

// Action is one journal entry. Detail holds the action parameters in a
// human-readable form.
type Action struct {
	Kind   ActionKind
	Detail string
	At     time.Time
}

// Window is one simulated desktop window.
type Window struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Focused bool   `json:"focused"`
	Content string `json:"-"`
}

// Desktop is the simulated desktop state. All methods are safe for
// concurrent use; tool calls may arrive in parallel.
type Desktop struct {
	mu sync.Mutex

	screenW, screenH int
	cursorX, cursorY int

	windows []*Window
	nextID  int

	// drag state set by a left press on a title bar
	dragging    *Window
	dragOffsetX int
	dragOffsetY int

	journal []Action
}

// NewDesktop creates an empty desktop with the given screen size.
func NewDesktop(width, height int) *Desktop {
	return &Desktop{
		screenW: width,
		screenH: height,
		nextID:  1,
	}
}

const titleBarHeight = 24

func (d *Desktop) record(kind ActionKind, detail string) {
	d.journal = append(d.journal, Action{Kind: kind, Detail: detail, At: time.Now()})
}

// Journal returns a copy of the recorded actions.
func (d *Desktop) Journal() []Action {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Action, len(d.journal))
	copy(out, d.journal)
	return out
}

// Cursor returns the current cursor position.
func (d *Desktop) Cursor() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cursorX, d.cursorY
}

// OpenWindow creates a window and focuses it. Used by run_shell_command
// and by tests to seed desktop state.
func (d *Desktop) OpenWindow(title string, x, y, width, height int) *Window {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.openWindowLocked(title, x, y, width, height)
}

func (d *Desktop) openWindowLocked(title string, x, y, width, height int) *Window {
	for _, w := range d.windows {
		w.Focused = false
	}
	win := &Window{
		ID:      d.nextID,
		Title:   title,
		X:       x,
		Y:       y,
		Width:   width,
		Height:  height,
		Focused: true,
	}
	d.nextID++
	d.windows = append(d.windows, win)
	return win
}

// FindWindow locates a window whose title contains the query,
// case-insensitively.
func (d *Desktop) FindWindow(title string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	query := strings.ToLower(title)
	for _, w := range d.windows {
		if strings.Contains(strings.ToLower(w.Title), query) {
			payload, _ := json.Marshal(struct {
				Found bool `json:"found"`
				*Window
			}{Found: true, Window: w})
			return string(payload), nil
		}
	}
	return fmt.Sprintf(`{"found":false,"title":%q}`, title), nil
}

// MoveMouse moves the cursor to absolute coordinates, clamped to the
// screen. While a left press holds a title bar, the grabbed window
// follows the cursor.
func (d *Desktop) MoveMouse(x, y int) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cursorX = clamp(x, 0, d.screenW-1)
	d.cursorY = clamp(y, 0, d.screenH-1)
	d.record(ActionMoveMouse, fmt.Sprintf("x=%d y=%d", d.cursorX, d.cursorY))

	if d.dragging != nil {
		d.dragging.X = d.cursorX - d.dragOffsetX
		d.dragging.Y = d.cursorY - d.dragOffsetY
	}
	return fmt.Sprintf(`{"cursor_x":%d,"cursor_y":%d}`, d.cursorX, d.cursorY), nil
}

// MouseAction performs a click, press or release at the current cursor
// position. A left press on a window title bar starts a drag; the
// matching release drops the window.
func (d *Desktop) MouseAction(button, clickType string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	button = strings.ToLower(button)
	switch strings.ToLower(clickType) {
	case "", "click":
		d.record(ActionClick, fmt.Sprintf("button=%s x=%d y=%d", button, d.cursorX, d.cursorY))
		d.focusWindowAtLocked(d.cursorX, d.cursorY)
		return fmt.Sprintf(`{"action":"click","button":%q}`, button), nil

	case "press":
		d.record(ActionMouseDown, fmt.Sprintf("button=%s x=%d y=%d", button, d.cursorX, d.cursorY))
		if button == "left" {
			if win := d.windowAtTitleBarLocked(d.cursorX, d.cursorY); win != nil {
				d.dragging = win
				d.dragOffsetX = d.cursorX - win.X
				d.dragOffsetY = d.cursorY - win.Y
			}
		}
		return fmt.Sprintf(`{"action":"press","button":%q}`, button), nil

	case "release":
		d.record(ActionMouseUp, fmt.Sprintf("button=%s x=%d y=%d", button, d.cursorX, d.cursorY))
		d.dragging = nil
		return fmt.Sprintf(`{"action":"release","button":%q}`, button), nil

	default:
		return "", fmt.Errorf("unknown click_type %q (want click, press or release)", clickType)
	}
}

// Scroll records a scroll at the current cursor position.
func (d *Desktop) Scroll(deltaX, deltaY int) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(ActionScroll, fmt.Sprintf("dx=%d dy=%d", deltaX, deltaY))
	return fmt.Sprintf(`{"scrolled_x":%d,"scrolled_y":%d}`, deltaX, deltaY), nil
}

// KeyboardAction types text or simulates a key chord into the focused
// window. Exactly one of text and key should be set.
func (d *Desktop) KeyboardAction(text, key string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	focused := d.focusedWindowLocked()
	if focused == nil {
		return "", fmt.Errorf("no focused window to receive input")
	}

	switch {
	case text != "":
		focused.Content += text
		d.record(ActionKeyboard, fmt.Sprintf("typed %d chars into %q", len(text), focused.Title))
		return fmt.Sprintf(`{"typed":%d,"window":%q}`, len(text), focused.Title), nil
	case key != "":
		if strings.EqualFold(key, "enter") || strings.EqualFold(key, "return") {
			focused.Content += "\n"
		}
		d.record(ActionKeyboard, fmt.Sprintf("key %s in %q", key, focused.Title))
		return fmt.Sprintf(`{"key":%q,"window":%q}`, key, focused.Title), nil
	default:
		return "", fmt.Errorf("keyboard_action needs text or key")
	}
}

// RunShellCommand simulates launching an application. Known commands open
// a window titled after the application; everything else is journaled and
// acknowledged.
func (d *Desktop) RunShellCommand(command string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if strings.TrimSpace(command) == "" {
		return "", fmt.Errorf("empty command")
	}
	d.record(ActionShellCommand, command)

	app := strings.Fields(command)[0]
	title := appWindowTitle(app)
	if title == "" {
		return fmt.Sprintf(`{"command":%q,"status":"executed"}`, command), nil
	}

	offset := len(d.windows) * 30
	win := d.openWindowLocked(title, 100+offset, 80+offset, 640, 480)
	payload, _ := json.Marshal(struct {
		Command string  `json:"command"`
		Status  string  `json:"status"`
		Window  *Window `json:"window"`
	}{Command: command, Status: "launched", Window: win})
	return string(payload), nil
}

// Wait journals a pause. The simulation does not actually sleep; tests
// and the drag recipe only need the ordering.
func (d *Desktop) Wait(durationMS int) (string, error) {
	if durationMS < 0 {
		return "", fmt.Errorf("negative duration")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(ActionWait, fmt.Sprintf("%dms", durationMS))
	return fmt.Sprintf(`{"waited_ms":%d}`, durationMS), nil
}

// CaptureScreen renders the desktop to a PNG and returns it base64
// encoded inside a JSON payload. The base64_data field is what the
// vision augmentation path looks for.
func (d *Desktop) CaptureScreen() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(ActionCapture, fmt.Sprintf("%dx%d", d.screenW, d.screenH))

	img := d.renderLocked()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode screen capture: %w", err)
	}

	payload, err := json.Marshal(struct {
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		Base64Data string `json:"base64_data"`
	}{
		Width:      d.screenW,
		Height:     d.screenH,
		Base64Data: base64.StdEncoding.EncodeToString(buf.Bytes()),
	})
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

// renderLocked draws the desktop at 1/4 scale: a flat background with one
// filled rectangle per window and a darker title bar strip.
func (d *Desktop) renderLocked() image.Image {
	scale := 4
	w, h := d.screenW/scale, d.screenH/scale
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	bg := color.RGBA{R: 0x2e, G: 0x34, B: 0x40, A: 0xff}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, bg)
		}
	}

	body := color.RGBA{R: 0xec, G: 0xef, B: 0xf4, A: 0xff}
	bar := color.RGBA{R: 0x4c, G: 0x56, B: 0x6a, A: 0xff}
	for _, win := range d.windows {
		x0, y0 := win.X/scale, win.Y/scale
		x1, y1 := (win.X+win.Width)/scale, (win.Y+win.Height)/scale
		for y := y0; y < y1; y++ {
			for x := x0; x < x1; x++ {
				if x < 0 || y < 0 || x >= w || y >= h {
					continue
				}
				if y < y0+titleBarHeight/scale {
					img.Set(x, y, bar)
				} else {
					img.Set(x, y, body)
				}
			}
		}
	}
	return img
}

func (d *Desktop) focusedWindowLocked() *Window {
	for _, w := range d.windows {
		if w.Focused {
			return w
		}
	}
	return nil
}

func (d *Desktop) focusWindowAtLocked(x, y int) {
	// Last opened window wins on overlap.
	var hit *Window
	for _, w := range d.windows {
		if x >= w.X && x < w.X+w.Width && y >= w.Y && y < w.Y+w.Height {
			hit = w
		}
	}
	if hit == nil {
		return
	}
	for _, w := range d.windows {
		w.Focused = w == hit
	}
}

func (d *Desktop) windowAtTitleBarLocked(x, y int) *Window {
	var hit *Window
	for _, w := range d.windows {
		if x >= w.X && x < w.X+w.Width && y >= w.Y && y < w.Y+titleBarHeight {
			hit = w
		}
	}
	return hit
}

func appWindowTitle(app string) string {
	switch strings.ToLower(app) {
	case "notepad", "notepad.exe":
		return "Untitled - Notepad"
	case "calc", "calc.exe", "calculator":
		return "Calculator"
	case "explorer", "explorer.exe":
		return "File Explorer"
	default:
		return ""
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
