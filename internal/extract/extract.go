// Package extract recovers a JSON object from free-form provider output.
// All provider text passes through Extract before it is trusted.
package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/pavelanni/assessor/internal/apperr"
)

var fenceRegex = regexp.MustCompile("```(?:json|JSON)?[ \t]*\\r?\\n?|\\r?\\n?```")

// Payload is a parsed provider response.
type Payload struct {
	// Object is the payload callers decode. When the response wrapped it in a
	// "questions" member this is that member.
	Object json.RawMessage
	// Envelope is the full parsed object, e.g. for reading metadata.
	Envelope json.RawMessage
}

// Decode unmarshals the payload object into v.
func (p Payload) Decode(v any) error {
	return decodeStrict(p.Object, v)
}

// DecodeEnvelope unmarshals the full parsed object into v.
func (p Payload) DecodeEnvelope(v any) error {
	return decodeStrict(p.Envelope, v)
}

// Extract parses raw as a JSON object. It first strips markdown code fences
// and parses the remainder; failing that it parses the span from the first
// '{' to the last '}' of raw. Failure yields an extraction error.
func Extract(raw string) (Payload, error) {
	obj, err := parseObject(strings.TrimSpace(fenceRegex.ReplaceAllString(raw, "")))
	if err != nil {
		start := strings.Index(raw, "{")
		end := strings.LastIndex(raw, "}")
		if start < 0 || end <= start {
			return Payload{}, apperr.Extraction("no JSON object found in response", err)
		}
		obj, err = parseObject(raw[start : end+1])
		if err != nil {
			return Payload{}, apperr.Extraction("invalid JSON in response", err)
		}
	}

	p := Payload{Object: obj, Envelope: obj}
	var members map[string]json.RawMessage
	if err := json.Unmarshal(obj, &members); err == nil {
		if q, ok := members["questions"]; ok && isObject(q) {
			p.Object = q
		}
	}
	return p, nil
}

func parseObject(s string) (json.RawMessage, error) {
	if s == "" {
		return nil, errors.New("empty input")
	}
	var v json.RawMessage
	if err := decodeStrict([]byte(s), &v); err != nil {
		return nil, err
	}
	if !isObject(v) {
		return nil, fmt.Errorf("expected a JSON object, got %s", kindOf(v))
	}
	return v, nil
}

func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("unexpected data after JSON value")
	}
	return nil
}

func isObject(v json.RawMessage) bool {
	b := bytes.TrimSpace(v)
	return len(b) > 0 && b[0] == '{'
}

func kindOf(v json.RawMessage) string {
	b := bytes.TrimSpace(v)
	if len(b) == 0 {
		return "nothing"
	}
	switch b[0] {
	case '[':
		return "an array"
	case '"':
		return "a string"
	case 'n':
		return "null"
	case 't', 'f':
		return "a boolean"
	}
	return "a number"
}
