package classify

import (
	"bytes"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Path is the fixed endpoint path, relative to the classifier base URL.
const Path = "/classify"

// FieldName is the multipart field carrying the file.
const FieldName = "image"

// Response is the body returned by POST /classify.
type Response struct {
	Success     bool         `json:"success"`
	Error       string       `json:"error,omitempty"`
	DemoMode    bool         `json:"demo_mode,omitempty"`
	ImageURL    string       `json:"image_url,omitempty"`
	Predictions []Prediction `json:"predictions,omitempty"`
}

// Prediction is one model's verdict.
type Prediction struct {
	Model          string `json:"model"`
	Icon           string `json:"icon"`
	Label          string `json:"prediction"`
	Confidence     Number `json:"confidence"`
	ProcessingTime string `json:"processing_time"`
	Accuracy       Number `json:"accuracy"`
}

// DefaultIcon is used when a prediction carries no usable icon class.
const DefaultIcon = "fa-microscope"

var iconPattern = regexp.MustCompile(`^fa-[a-z0-9-]+$`)

// IconClass returns the Font Awesome class for the prediction, falling back
// to DefaultIcon for anything that is not a plain fa-* name.
func (p Prediction) IconClass() string {
	if iconPattern.MatchString(p.Icon) {
		return p.Icon
	}
	return DefaultIcon
}

// Number is a percentage that decodes from a JSON number or string.
type Number struct {
	// Value is NaN when the input was not numeric.
	Value float64
	// Raw is the text as received, without quotes.
	Raw string

	quoted bool
}

// Percent returns a Number that encodes as a two-decimal string, the format
// the backend uses for confidence.
func Percent(v float64) Number {
	return Number{Value: v, Raw: strconv.FormatFloat(v, 'f', 2, 64), quoted: true}
}

// Float returns a Number that encodes as a plain JSON number.
func Float(v float64) Number {
	return Number{Value: v, Raw: strconv.FormatFloat(v, 'f', -1, 64)}
}

// String returns the raw text, or the formatted value when there is none.
func (n Number) String() string {
	if n.Raw != "" {
		return n.Raw
	}
	if math.IsNaN(n.Value) {
		return ""
	}
	return strconv.FormatFloat(n.Value, 'f', -1, 64)
}

// Valid reports whether the value parsed as a number.
func (n Number) Valid() bool {
	return !math.IsNaN(n.Value) && !math.IsInf(n.Value, 0)
}

// UnmarshalJSON never fails on a well-formed JSON value; non-numeric input
// yields NaN.
func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*n = Number{Value: math.NaN()}

	if len(b) == 0 || string(b) == "null" {
		return nil
	}

	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		n.Raw = s
		n.quoted = true
		n.Value = parseNumber(s)
		return nil
	}

	n.Raw = string(b)
	n.Value = parseNumber(n.Raw)
	return nil
}

// MarshalJSON writes quoted numbers back as strings.
func (n Number) MarshalJSON() ([]byte, error) {
	if n.quoted {
		return json.Marshal(n.Raw)
	}
	if !n.Valid() {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(n.Value, 'f', -1, 64)), nil
}

func parseNumber(s string) float64 {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// Tier is the badge color class for a confidence value.
type Tier string

const (
	TierSuccess Tier = "success"
	TierWarning Tier = "warning"
	TierDanger  Tier = "danger"
)

// TierFor maps confidence to a tier: >= 70 success, [50, 70) warning,
// anything else (including NaN) danger.
func TierFor(confidence float64) Tier {
	switch {
	case confidence >= 70:
		return TierSuccess
	case confidence >= 50:
		return TierWarning
	default:
		return TierDanger
	}
}

// Tier returns the badge tier of the prediction's confidence.
func (p Prediction) Tier() Tier {
	return TierFor(p.Confidence.Value)
}
