package nats

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/itchyny/gojq"
)

// ErrNoText is returned when a JSON payload does not yield post text.
var ErrNoText = errors.New("payload has no post text")

// TextDecoder pulls the post text out of a message payload.
// JSON objects and arrays are run through a jq expression that must produce a string;
// any other payload is taken as the text itself.
type TextDecoder struct {
	expr string
	code *gojq.Code
}

// NewTextDecoder compiles expr, e.g. ".text" or ".post.body".
func NewTextDecoder(expr string) (*TextDecoder, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jq expression %q: %w", expr, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq expression %q: %w", expr, err)
	}
	return &TextDecoder{expr: expr, code: code}, nil
}

// Decode returns the post text carried by data.
func (d *TextDecoder) Decode(data []byte) (string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
		return string(data), nil
	}

	var payload any
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		// Looks like JSON but isn't; treat it as plain text.
		return string(data), nil
	}

	iter := d.code.Run(payload)
	v, ok := iter.Next()
	if !ok {
		return "", fmt.Errorf("%w: %s produced no value", ErrNoText, d.expr)
	}
	if err, isErr := v.(error); isErr {
		return "", fmt.Errorf("%w: %s: %v", ErrNoText, d.expr, err)
	}
	text, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s produced %T, want string", ErrNoText, d.expr, v)
	}
	return text, nil
}
