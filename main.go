package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"murmur/audio"
	"murmur/clipboard"
	"murmur/hotkey"
	"murmur/log"
	"murmur/recorder"
	"murmur/settings"
)

var version = "dev"

func run() {
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	rateFlag := flag.Uint("rate", 0, "Requested capture sample rate in Hz")
	modelFlag := flag.String("model", "", "Realtime model to transcribe with")
	hotkeyFlag := flag.String("hotkey", "", "Push-to-talk chord, e.g. Alt+Space")
	autoPasteFlag := flag.Bool("autopaste", true, "Auto-paste to focused window after transcription")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("murmur %s\n", version)
		os.Exit(0)
	}

	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n",
			time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: file logging disabled: %v\n", err)
	}
	defer log.Close()

	apiKey := settings.APIKey()
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "Error: OPENAI_API_KEY is not set (export it or put it in .env)")
		os.Exit(1)
	}

	store, err := settings.Open("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	audioCtx, err := audio.NewContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing audio: %v\n", err)
		os.Exit(1)
	}
	defer audioCtx.Close()

	// Flag overrides are persisted the same way a settings edit would be.
	st := store.Get()
	changed := false
	if *modelFlag != "" && *modelFlag != st.Model {
		st.Model = *modelFlag
		changed = true
	}
	if *deviceFlag != "" && *deviceFlag != st.InputDevice {
		st.InputDevice = *deviceFlag
		changed = true
	}
	if *rateFlag != 0 && uint32(*rateFlag) != st.SampleRate {
		st.SampleRate = uint32(*rateFlag)
		changed = true
	}
	if *hotkeyFlag != "" && *hotkeyFlag != st.Hotkey {
		st.Hotkey = *hotkeyFlag
		changed = true
	}
	if st.AutoPaste != *autoPasteFlag {
		st.AutoPaste = *autoPasteFlag
		changed = true
	}
	if *setupFlag {
		dev, err := audio.SelectDevice(audioCtx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: device selection failed, using system default: %v\n", err)
		} else if dev != nil {
			st.InputDevice = dev.Name
			changed = true
			if audio.IsBluetooth(dev.Name) {
				fmt.Println("Note: bluetooth microphones often capture at reduced quality.")
			}
		}
	}
	if changed {
		if err := store.Update(st); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not save settings: %v\n", err)
		}
	}
	st = store.Get()

	if st.AutoPaste {
		if err := clipboard.Init(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: paste unavailable, falling back to copy: %v\n", err)
		}
	}

	hk, err := hotkey.New(st.Hotkey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := hk.Register(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: could not register hotkey %q: %v\n", st.Hotkey, err)
		os.Exit(1)
	}
	defer hk.Unregister()

	rec := recorder.New(audioCtx)
	a := newApp(rec, store, apiKey)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	device := st.InputDevice
	if device == "" {
		device = "system default"
	}
	fmt.Printf("murmur %s — hold %s to dictate (model %s, mic %s)\n",
		version, st.Hotkey, st.Model, device)
	log.Info(fmt.Sprintf("murmur %s started, hotkey %s", version, st.Hotkey))

	sessions := eventLoop(a, rec, hk, sigCh)
	log.SessionEnd(sessions)
}

// eventLoop runs push-to-talk until a shutdown signal arrives and returns
// the number of completed sessions.
func eventLoop(a *app, rec *recorder.Service, hk hotkey.Hotkey, sig <-chan os.Signal) int {
	sessions := 0
	for {
		select {
		case <-hk.Keydown():
			if err := a.startSession(); err != nil {
				log.Errorf("start error: %v", err)
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
		case <-hk.Keyup():
			if !rec.IsRecording() {
				continue
			}
			summary, err := a.stopSession(context.Background())
			if err != nil {
				log.Errorf("session error: %v", err)
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				continue
			}
			sessions++
			fmt.Printf("(%.1fs) %s\n", summary.Duration.Seconds(), summary.Text)
		case <-sig:
			if rec.IsRecording() {
				rec.Stop()
				if t := rec.TakeSession(); t != nil {
					ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
					t.Join(ctx)
					cancel()
				}
			}
			return sessions
		}
	}
}
