package domain

import "fmt"

// Temperature is the liveness classification of a state.
type Temperature int

const (
	// Warm states are neither exempt nor flagged. Zero value.
	Warm Temperature = iota
	// Cold states are exempt from liveness checking.
	Cold
	// Hot states are violations if control stays in them without outside progress.
	Hot
)

func (t Temperature) String() string {
	switch t {
	case Cold:
		return "cold"
	case Hot:
		return "hot"
	default:
		return "warm"
	}
}

// ParseTemperature converts "cold", "warm" or "hot" to a Temperature.
func ParseTemperature(s string) (Temperature, error) {
	switch s {
	case "cold":
		return Cold, nil
	case "warm", "":
		return Warm, nil
	case "hot":
		return Hot, nil
	default:
		return Warm, fmt.Errorf("unknown temperature: %s", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t Temperature) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Temperature) UnmarshalText(b []byte) error {
	v, err := ParseTemperature(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
