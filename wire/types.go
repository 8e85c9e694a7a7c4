package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var null = []byte("null")

// ID is an identifier the server may send as a string or a number.
// The empty ID stands for null.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, null) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("wire: id: %w", err)
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("wire: id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return null, nil
	}
	return json.Marshal(string(id))
}

func (id ID) String() string { return string(id) }

// Amount is a money value sent as a number or a numeric string.
type Amount float64

func (a *Amount) UnmarshalJSON(b []byte) error {
	f, err := parseNumber(b)
	if err != nil {
		return fmt.Errorf("wire: amount: %w", err)
	}
	*a = Amount(f)
	return nil
}

func (a Amount) Float() float64 { return float64(a) }

// Count is an item counter. Fractions are truncated; sign is kept so the
// store can enforce its own invariant.
type Count int

func (c *Count) UnmarshalJSON(b []byte) error {
	f, err := parseNumber(b)
	if err != nil {
		return fmt.Errorf("wire: count: %w", err)
	}
	*c = Count(math.Trunc(f))
	return nil
}

func parseNumber(b []byte) (float64, error) {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, null) {
		return 0, nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return 0, err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, err
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("non-finite number %q", s)
		}
		return f, nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return 0, err
	}
	return f, nil
}
