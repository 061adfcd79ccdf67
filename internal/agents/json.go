package agents

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// decodeStrict decodes a model response into v, rejecting unknown fields.
// Models occasionally wrap JSON in markdown fences despite instructions, so
// the payload is clipped to its outermost object before decoding. Any
// failure is an ErrInvalidOutput.
func decodeStrict(raw string, v any) error {
	payload := clipJSON(raw)
	if payload == "" {
		return eris.Wrap(ErrInvalidOutput, "agents: response contains no JSON object")
	}

	dec := json.NewDecoder(strings.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return eris.Wrapf(ErrInvalidOutput, "agents: decode response: %v", err)
	}
	return nil
}

// clipJSON returns the substring from the first '{' through the last '}',
// or "" when no object is present.
func clipJSON(raw string) string {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < start {
		return ""
	}
	return raw[start : end+1]
}
