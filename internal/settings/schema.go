package settings

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind is the value type of a setting.
type Kind int

const (
	KindInt Kind = iota
	KindBool
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "integer"
	case KindBool:
		return "boolean"
	case KindString:
		return "string"
	}
	return "unknown"
}

// ErrUnknownSetting is returned by Store.Set for keys outside the schema.
var ErrUnknownSetting = errors.New("setting not found")

// InvalidValueError reports a value that does not fit its field.
type InvalidValueError struct {
	Key    string
	Kind   Kind
	Value  string
	Reason string
}

func (e *InvalidValueError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid value %q for %s: %s", e.Value, e.Key, e.Reason)
	}
	return fmt.Sprintf("invalid value %q for %s: want %s", e.Value, e.Key, e.Kind)
}

// Field describes one setting key. The schema is fixed; values are parsed by
// Kind and checked by the field's validator rather than inferred from the
// current value.
type Field struct {
	Name string
	Kind Kind

	get      func(*Settings) any
	set      func(*Settings, any)
	validate func(any) string
}

// Value returns the field's current value rendered for display.
func (f Field) Value(s Settings) string {
	return fmt.Sprint(f.get(&s))
}

// Parse converts raw user input into a typed, validated value.
func (f Field) Parse(raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	var v any
	switch f.Kind {
	case KindInt:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, &InvalidValueError{Key: f.Name, Kind: f.Kind, Value: raw}
		}
		v = n
	case KindBool:
		b, err := strconv.ParseBool(strings.ToLower(raw))
		if err != nil {
			return nil, &InvalidValueError{Key: f.Name, Kind: f.Kind, Value: raw}
		}
		v = b
	default:
		v = raw
	}
	if reason := f.check(v); reason != "" {
		return nil, &InvalidValueError{Key: f.Name, Kind: f.Kind, Value: raw, Reason: reason}
	}
	return v, nil
}

func (f Field) check(v any) string {
	if f.validate == nil {
		return ""
	}
	return f.validate(v)
}

func positive(v any) string {
	if n, _ := v.(int); n <= 0 {
		return "must be a positive integer"
	}
	return ""
}

func nonEmpty(v any) string {
	if s, _ := v.(string); s == "" {
		return "must not be empty"
	}
	return ""
}

// Fields is the settings schema, in display order.
var Fields = []Field{
	{
		Name:     "voice_rate",
		Kind:     KindInt,
		get:      func(s *Settings) any { return s.VoiceRate },
		set:      func(s *Settings, v any) { s.VoiceRate = v.(int) },
		validate: positive,
	},
	{
		Name:     "auto_check_interval",
		Kind:     KindInt,
		get:      func(s *Settings) any { return s.AutoCheckInterval },
		set:      func(s *Settings, v any) { s.AutoCheckInterval = v.(int) },
		validate: positive,
	},
	{
		Name: "save_messages",
		Kind: KindBool,
		get:  func(s *Settings) any { return s.SaveMessages },
		set:  func(s *Settings, v any) { s.SaveMessages = v.(bool) },
	},
	{
		Name:     "message_history_file",
		Kind:     KindString,
		get:      func(s *Settings) any { return s.MessageHistoryFile },
		set:      func(s *Settings, v any) { s.MessageHistoryFile = v.(string) },
		validate: nonEmpty,
	},
}

// Lookup returns the schema field for key, case-insensitively.
func Lookup(key string) (Field, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, f := range Fields {
		if f.Name == key {
			return f, true
		}
	}
	return Field{}, false
}
