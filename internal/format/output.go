package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const (
	JSON = "json"
	EDN  = "edn"
	Text = "text"
)

// Texter is implemented by command results that have a human-readable rendering.
type Texter interface {
	Text() string
}

// Parse normalizes a --format value.
func Parse(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", JSON:
		return JSON, nil
	case EDN:
		return EDN, nil
	case Text, "txt", "human":
		return Text, nil
	default:
		return "", fmt.Errorf("unknown format: %s (want json|edn|text)", s)
	}
}

// Write renders v as json (default), edn or text. Values without a text rendering fall back to
// indented JSON in text mode.
func Write(w io.Writer, v any, format string, pretty bool) error {
	f, err := Parse(format)
	if err != nil {
		return err
	}
	switch f {
	case EDN:
		return WriteEDN(w, v, pretty)
	case Text:
		if t, ok := v.(Texter); ok {
			s := t.Text()
			if !strings.HasSuffix(s, "\n") {
				s += "\n"
			}
			_, err := io.WriteString(w, s)
			return err
		}
		return WriteJSON(w, v, true)
	default:
		return WriteJSON(w, v, pretty)
	}
}

// WriteJSON writes one JSON document followed by a newline.
func WriteJSON(w io.Writer, v any, pretty bool) error {
	var (
		b   []byte
		err error
	)
	if pretty {
		b, err = json.MarshalIndent(v, "", "  ")
	} else {
		b, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
