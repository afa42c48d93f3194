package audio

import (
	"fmt"
	"os"

	"golang.org/x/term"

	"murmur/errs"
)

// SelectDevice asks the user to pick a capture device for the settings file.
// A single available device is returned without prompting. Cancelling (q or
// Ctrl+C) returns nil with no error so the caller keeps the system default.
func SelectDevice(ctx Context) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, errs.AudioDevice(err)
	}
	if len(devices) == 0 {
		return nil, errs.AudioDevice(fmt.Errorf("no capture devices found"))
	}
	if len(devices) == 1 {
		return &devices[0], nil
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, errs.AudioDevice(fmt.Errorf("raw mode: %w", err))
	}
	defer term.Restore(fd, oldState)

	label := func(d DeviceInfo) string {
		if IsBluetooth(d.Name) {
			return d.Name + " \x1b[33m(bluetooth, reduced capture quality)\x1b[0m"
		}
		return d.Name
	}
	cursor := 0
	render := func() {
		fmt.Print("\r\x1b[J")
		fmt.Print("Pick a microphone (arrows or j/k, Enter confirms, q keeps the default):\r\n\r\n")
		for i, d := range devices {
			if i == cursor {
				fmt.Printf("  \x1b[1;36m> %s\x1b[0m\r\n", label(d))
			} else {
				fmt.Printf("    %s\r\n", label(d))
			}
		}
	}
	render()

	buf := make([]byte, 3)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return nil, errs.AudioDevice(fmt.Errorf("reading selection: %w", err))
		}
		switch {
		case n == 1 && buf[0] == '\r':
			fmt.Print("\r\n")
			return &devices[cursor], nil
		case n == 1 && (buf[0] == 'q' || buf[0] == 3): // q or Ctrl+C
			fmt.Print("\r\n")
			return nil, nil
		case n == 1 && buf[0] == 'j':
			cursor = min(cursor+1, len(devices)-1)
		case n == 1 && buf[0] == 'k':
			cursor = max(cursor-1, 0)
		case n == 3 && buf[0] == 0x1b && buf[1] == '[' && buf[2] == 'A':
			cursor = max(cursor-1, 0)
		case n == 3 && buf[0] == 0x1b && buf[1] == '[' && buf[2] == 'B':
			cursor = min(cursor+1, len(devices)-1)
		}
		fmt.Printf("\x1b[%dA", len(devices)+2)
		render()
	}
}
