// Package hotkey registers the global record chord and exposes keydown/keyup
// as channels.
package hotkey

import (
	"fmt"
	"strings"
	"sync"

	"golang.design/x/hotkey"

	"murmur/errs"
)

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

var keys = map[string]hotkey.Key{
	"space": hotkey.KeySpace,
	"a":     hotkey.KeyA,
	"b":     hotkey.KeyB,
	"c":     hotkey.KeyC,
	"d":     hotkey.KeyD,
	"e":     hotkey.KeyE,
	"f":     hotkey.KeyF,
	"g":     hotkey.KeyG,
	"h":     hotkey.KeyH,
	"i":     hotkey.KeyI,
	"j":     hotkey.KeyJ,
	"k":     hotkey.KeyK,
	"l":     hotkey.KeyL,
	"m":     hotkey.KeyM,
	"n":     hotkey.KeyN,
	"o":     hotkey.KeyO,
	"p":     hotkey.KeyP,
	"q":     hotkey.KeyQ,
	"r":     hotkey.KeyR,
	"s":     hotkey.KeyS,
	"t":     hotkey.KeyT,
	"u":     hotkey.KeyU,
	"v":     hotkey.KeyV,
	"w":     hotkey.KeyW,
	"x":     hotkey.KeyX,
	"y":     hotkey.KeyY,
	"z":     hotkey.KeyZ,
}

// parseChord splits a settings chord like "Alt+Space" into modifiers and key.
func parseChord(chord string) ([]hotkey.Modifier, hotkey.Key, error) {
	parts := strings.Split(chord, "+")
	if len(parts) < 2 {
		return nil, 0, errs.Newf(errs.CodeHotkey, "hotkey %q needs at least one modifier", chord)
	}
	var mods []hotkey.Modifier
	for _, p := range parts[:len(parts)-1] {
		mod, ok := modifierFor(strings.ToLower(strings.TrimSpace(p)))
		if !ok {
			return nil, 0, errs.Newf(errs.CodeHotkey, "unknown modifier %q in hotkey %q", p, chord)
		}
		mods = append(mods, mod)
	}
	keyName := strings.ToLower(strings.TrimSpace(parts[len(parts)-1]))
	key, ok := keys[keyName]
	if !ok {
		return nil, 0, errs.Newf(errs.CodeHotkey, "unknown key %q in hotkey %q", keyName, chord)
	}
	return mods, key, nil
}

type xHotkey struct {
	hk      *hotkey.Hotkey
	keydown chan struct{}
	keyup   chan struct{}
	quit    chan struct{}
	once    sync.Once
}

func New(chord string) (Hotkey, error) {
	if chord == "" {
		chord = "Alt+Space"
	}
	mods, key, err := parseChord(chord)
	if err != nil {
		return nil, err
	}
	return &xHotkey{
		hk:      hotkey.New(mods, key),
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
		quit:    make(chan struct{}),
	}, nil
}

// forwardEvents relays src into dst until quit closes.
func forwardEvents(src <-chan hotkey.Event, dst chan<- struct{}, quit <-chan struct{}) {
	for {
		select {
		case <-src:
			select {
			case dst <- struct{}{}:
			case <-quit:
				return
			}
		case <-quit:
			return
		}
	}
}

func (h *xHotkey) Register() error {
	if err := h.hk.Register(); err != nil {
		return errs.Wrap(errs.CodeHotkey, fmt.Sprintf("hotkey error: %v", err), err)
	}
	go forwardEvents(h.hk.Keydown(), h.keydown, h.quit)
	go forwardEvents(h.hk.Keyup(), h.keyup, h.quit)
	return nil
}

func (h *xHotkey) Unregister() {
	h.once.Do(func() { close(h.quit) })
	h.hk.Unregister()
}

func (h *xHotkey) Keydown() <-chan struct{} {
	return h.keydown
}

func (h *xHotkey) Keyup() <-chan struct{} {
	return h.keyup
}
