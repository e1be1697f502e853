package score

import (
	"strconv"
	"strings"
)

// Input is the decoded JSON form of a calculator. Values may be numbers,
// numeric strings (comma or dot decimal) or booleans.
type Input map[string]any

// Number returns the numeric value of key, or 0 when it is missing or not
// numeric.
func (in Input) Number(key string) float64 {
	switch v := in[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(v), ",", "."), 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}

// Bool returns the truthiness of key. Non-zero numbers and the strings
// "true", "sim", "yes" and "1" are true.
func (in Input) Bool(key string) bool {
	switch v := in[key].(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "sim", "yes", "1", "on":
			return true
		}
		return false
	case nil:
		return false
	}
	return in.Number(key) != 0
}

// Female reports the patient sex from either a "sex" string or a
// "female" flag.
func (in Input) Female() bool {
	if s, ok := in["sex"].(string); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "f", "female", "feminino", "mulher":
			return true
		}
		return false
	}
	return in.Bool("female")
}

func (in Input) count(keys []string) float64 {
	var n float64
	for _, k := range keys {
		if in.Bool(k) {
			n++
		}
	}
	return n
}
