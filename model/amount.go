package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Amount is a money value as the marketplace API sends it: a JSON number, a
// numeric string, or a Mongo decimal wrapper {"$numberDecimal": "12.50"}.
// Anything unparseable decodes to zero.
type Amount float64

func (a Amount) Float() float64 { return float64(a) }

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}

	switch data[0] {
	case '{':
		var wrapped struct {
			NumberDecimal json.RawMessage `json:"$numberDecimal"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return err
		}
		if wrapped.NumberDecimal == nil {
			*a = 0
			return nil
		}
		return a.UnmarshalJSON(wrapped.NumberDecimal)
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(parseLenient(s))
		return nil
	default:
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			*a = 0
			return nil
		}
		*a = Amount(f)
		return nil
	}
}

func parseLenient(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
