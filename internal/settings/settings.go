// Package settings persists the user-editable client settings in a flat JSON
// file next to the working directory.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultPath is the settings file used when none is given.
const DefaultPath = "settings.json"

// Settings holds the four client settings. All keys are always populated.
type Settings struct {
	VoiceRate          int    `json:"voice_rate"`
	AutoCheckInterval  int    `json:"auto_check_interval"`
	SaveMessages       bool   `json:"save_messages"`
	MessageHistoryFile string `json:"message_history_file"`
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	return Settings{
		VoiceRate:          200,
		AutoCheckInterval:  5,
		SaveMessages:       true,
		MessageHistoryFile: "message_history.txt",
	}
}

// Interval returns AutoCheckInterval as a duration.
func (s Settings) Interval() time.Duration {
	return time.Duration(s.AutoCheckInterval) * time.Second
}

// Store owns the in-memory settings and their file. It is safe for concurrent
// use: the poll loop reads while the menu edits.
type Store struct {
	path   string
	logger *zap.Logger

	mu  sync.RWMutex
	cur Settings
}

// Load reads settings from path. Any failure, including a missing file,
// yields the defaults and is logged rather than returned. Keys that are
// missing or carry an invalid value keep their default.
func Load(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{path: path, logger: logger, cur: Defaults()}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("settings file not found, using defaults", zap.String("path", path))
		} else {
			logger.Warn("error loading settings, using defaults", zap.String("path", path), zap.Error(err))
		}
		return s
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		logger.Warn("error parsing settings, using defaults", zap.String("path", path), zap.Error(err))
		return s
	}

	for _, f := range Fields {
		msg, ok := raw[f.Name]
		if !ok {
			continue
		}
		v, err := decodeField(f, msg)
		if err != nil {
			logger.Warn("ignoring invalid setting", zap.String("key", f.Name), zap.Error(err))
			continue
		}
		f.set(&s.cur, v)
	}
	return s
}

func decodeField(f Field, msg json.RawMessage) (any, error) {
	var v any
	var err error
	switch f.Kind {
	case KindInt:
		var n int
		err = json.Unmarshal(msg, &n)
		v = n
	case KindBool:
		var b bool
		err = json.Unmarshal(msg, &b)
		v = b
	default:
		var str string
		err = json.Unmarshal(msg, &str)
		v = str
	}
	if err != nil {
		return nil, &InvalidValueError{Key: f.Name, Kind: f.Kind, Value: string(msg)}
	}
	if reason := f.check(v); reason != "" {
		return nil, &InvalidValueError{Key: f.Name, Kind: f.Kind, Value: string(msg), Reason: reason}
	}
	return v, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Get returns a snapshot of the current settings.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Set parses raw for key, applies it and persists the file. The in-memory
// value is updated even when the write fails; the write error is returned.
func (s *Store) Set(key, raw string) error {
	f, ok := Lookup(key)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSetting, key)
	}
	v, err := f.Parse(raw)
	if err != nil {
		return err
	}

	s.mu.Lock()
	f.set(&s.cur, v)
	snapshot := s.cur
	s.mu.Unlock()

	s.logger.Info("setting changed", zap.String("key", f.Name), zap.Any("value", v))
	return s.write(snapshot)
}

// Save overwrites the settings file with the current values.
func (s *Store) Save() error {
	return s.write(s.Get())
}

func (s *Store) write(cur Settings) error {
	data, err := json.MarshalIndent(cur, "", "    ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.WriteFile(s.path, append(data, '\n'), 0644); err != nil {
		s.logger.Error("error saving settings", zap.String("path", s.path), zap.Error(err))
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
