// Package settings persists user configuration as JSON under the OS config
// directory. The API key is deliberately not part of it: credentials come
// from the environment only.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"

	"murmur/errs"
)

const DefaultModel = "gpt-realtime-mini"

const DefaultSampleRate = 16000

type Settings struct {
	Model       string `json:"model"`
	Hotkey      string `json:"hotkey"`
	AutoPaste   bool   `json:"auto_paste"`
	SaveHistory bool   `json:"save_history"`
	SampleRate  uint32 `json:"sample_rate"`
	InputDevice string `json:"input_device,omitempty"`
}

func Default() Settings {
	return Settings{
		Model:       DefaultModel,
		Hotkey:      "Alt+Space",
		AutoPaste:   true,
		SaveHistory: true,
		SampleRate:  DefaultSampleRate,
	}
}

// normalized repairs values a hand-edited file may have broken.
func (s Settings) normalized() Settings {
	if strings.TrimSpace(s.Model) == "" {
		s.Model = DefaultModel
	}
	if s.SampleRate == 0 {
		s.SampleRate = DefaultSampleRate
	}
	if s.Hotkey == "" {
		s.Hotkey = "Alt+Space"
	}
	return s
}

type Store struct {
	path string

	mu  sync.RWMutex
	cur Settings
}

// DefaultPath is <user config dir>/murmur/settings.json.
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "murmur", "settings.json"), nil
}

// Open loads the settings file at path, writing defaults on first run.
// An empty path means DefaultPath.
func Open(path string) (*Store, error) {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, errs.Wrap(errs.CodeSettings,
				fmt.Sprintf("settings error: %v", err), err)
		}
	}

	st := &Store{path: path}
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		// Decode over the defaults so fields missing from a hand-edited
		// file keep their documented values.
		s := Default()
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, errs.Wrap(errs.CodeSettings,
				fmt.Sprintf("settings error: %v", err), err)
		}
		st.cur = s.normalized()
	case os.IsNotExist(err):
		st.cur = Default()
		if err := st.write(st.cur); err != nil {
			return nil, err
		}
	default:
		return nil, errs.Wrap(errs.CodeSettings,
			fmt.Sprintf("settings error: %v", err), err)
	}
	return st, nil
}

func (st *Store) Path() string { return st.path }

func (st *Store) Get() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.cur
}

func (st *Store) Update(s Settings) error {
	next := s.normalized()
	st.mu.Lock()
	st.cur = next
	st.mu.Unlock()
	return st.write(next)
}

func (st *Store) write(s Settings) error {
	if dir := filepath.Dir(st.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errs.Wrap(errs.CodeSettings,
				fmt.Sprintf("settings error: %v", err), err)
		}
	}
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errs.Wrap(errs.CodeSettings,
			fmt.Sprintf("settings error: %v", err), err)
	}
	if err := os.WriteFile(st.path, raw, 0644); err != nil {
		return errs.Wrap(errs.CodeSettings,
			fmt.Sprintf("settings error: %v", err), err)
	}
	return nil
}

var envOnce sync.Once

// APIKey reads the OpenAI key from the environment, loading a .env file from
// the working directory once if present.
func APIKey() string {
	envOnce.Do(func() { godotenv.Load() })
	return os.Getenv("OPENAI_API_KEY")
}
