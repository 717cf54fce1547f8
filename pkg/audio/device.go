package audio

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"
)

// ErrNoDevices is returned by [Pick] when the context exposes no capture
// devices at all.
var ErrNoDevices = errors.New("audio: no capture devices found")

// Selector chooses one device from candidates. It is consulted at most once,
// before the capture loop starts. Tests substitute a func returning a fixed
// choice; the interactive terminal picker is [TerminalSelector].
type Selector func(candidates []DeviceInfo) (*DeviceInfo, error)

// Pick resolves which capture device to open.
//
// Resolution order: an explicit preferred name wins; otherwise the platform
// default is used when one exists (nil device means "system default" to
// [Context.NewCapture]); only when neither applies is the selector consulted.
func Pick(ctx Context, preferred string, sel Selector) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, ErrNoDevices
	}

	if preferred != "" {
		for i := range devices {
			if devices[i].Name == preferred {
				return &devices[i], nil
			}
		}
		return nil, fmt.Errorf("audio: device %q not found", preferred)
	}

	for i := range devices {
		if devices[i].Default {
			return nil, nil // system default is available
		}
	}

	if sel == nil {
		// Non-interactive context with no system default: the first
		// enumerated device is the only sensible choice left.
		return &devices[0], nil
	}
	return sel(devices)
}

// Prompt consults sel unconditionally, even when a system default exists.
// Used when the operator explicitly asked to choose a device.
func Prompt(ctx Context, sel Selector) (*DeviceInfo, error) {
	if sel == nil {
		return nil, errors.New("audio: device prompt requires a selector")
	}
	devices, err := ctx.Devices()
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, ErrNoDevices
	}
	return sel(devices)
}

// TerminalSelector presents an arrow-key device picker on the controlling
// terminal. If only one device is available it is returned without prompting.
func TerminalSelector(devices []DeviceInfo) (*DeviceInfo, error) {
	if len(devices) == 1 {
		return &devices[0], nil
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("audio: setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	cursor := 0
	renderList := func() {
		fmt.Print("\r\x1b[J")
		fmt.Print("Select input device (↑/↓, Enter to confirm):\r\n\r\n")
		for i, d := range devices {
			if i == cursor {
				fmt.Printf("  \x1b[1;36m▶ %s\x1b[0m\r\n", d.Name)
			} else {
				fmt.Printf("    %s\r\n", d.Name)
			}
		}
	}

	renderList()

	buf := make([]byte, 3)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("audio: reading input: %w", err)
		}

		switch {
		case n == 1 && (buf[0] == '\r' || buf[0] == '\n'):
			fmt.Print("\r\n")
			return &devices[cursor], nil
		case n == 1 && (buf[0] == 3 || buf[0] == 27): // Ctrl-C / lone Esc
			return nil, errors.New("audio: device selection cancelled")
		case n == 3 && buf[0] == 27 && buf[1] == '[':
			switch buf[2] {
			case 'A':
				if cursor > 0 {
					cursor--
				}
			case 'B':
				if cursor < len(devices)-1 {
					cursor++
				}
			}
			// Move cursor back up and re-render in place.
			fmt.Printf("\x1b[%dA", len(devices)+2)
			renderList()
		}
	}
}
