package types

import "log/slog"

// redactedPlaceholder replaces secret values wherever they are printed.
const redactedPlaceholder = "***REDACTED***"

var redactedJSON = []byte(`"` + redactedPlaceholder + `"`)

// SecretString holds a credential such as DATABASE_URL, REDIS_URL or
// JWT_SECRET. Every printing path (fmt verbs including %#v, JSON, slog)
// yields a placeholder. Unmask returns the raw value and should only be
// called where a driver or signer needs it.
type SecretString string

// String implements fmt.Stringer.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// GoString implements fmt.GoStringer so %#v does not fall back to the raw
// string.
func (s SecretString) GoString() string {
	return `"` + redactedPlaceholder + `"`
}

// MarshalJSON implements json.Marshaler.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// LogValue implements slog.LogValuer.
func (s SecretString) LogValue() slog.Value {
	return slog.StringValue(redactedPlaceholder)
}

// IsSet reports whether a value was configured.
func (s SecretString) IsSet() bool {
	return s != ""
}

// Unmask returns the raw value.
func (s SecretString) Unmask() string {
	return string(s)
}
