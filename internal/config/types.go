package config

import (
	"encoding/json"
	"fmt"
	"time"
)

const redacted = "[REDACTED]"

// Duration parses from "30s"-style strings so timeouts can be written
// naturally in YAML and environment variables. Negative values are rejected.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	if v < 0 {
		return fmt.Errorf("duration cannot be negative: %s", text)
	}
	*d = Duration(v)
	return nil
}

// Secret is a string that never leaks through logging or JSON output.
// Value is the only way to read it back.
type Secret string

func (s Secret) Value() string { return string(s) }

func (s Secret) IsSet() bool { return s != "" }

func (s Secret) String() string {
	if !s.IsSet() {
		return ""
	}
	return redacted
}

func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}
