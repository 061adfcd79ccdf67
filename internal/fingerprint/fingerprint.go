// Package fingerprint computes deterministic content hashes for raw listings.
// Two listings with the same text, HTML, and metadata always hash identically,
// regardless of map iteration order or when they were scraped, so the version
// store can detect unchanged content and skip creating a new version.
package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/acquire-cli/internal/model"
)

// Digest returns the hex-encoded SHA-256 of the canonical JSON encoding of
// the listing's fingerprint payload: raw_text, raw_html, and metadata.
func Digest(l *model.RawListing) (string, error) {
	payload := map[string]any{
		"raw_text": l.RawText,
		"raw_html": l.RawHTML,
		"metadata": l.Metadata(),
	}
	canonical, err := Canonical(payload)
	if err != nil {
		return "", eris.Wrap(err, "fingerprint: encode payload")
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Canonical encodes a value as JSON with all object keys sorted recursively
// and no insignificant whitespace. Equal values produce byte-identical output.
func Canonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case nil, bool, string, float64, int, int64, json.Number:
		b, err := json.Marshal(val)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	default:
		// Structs and other composites round-trip through encoding/json so
		// nested maps get their keys sorted too.
		raw, err := json.Marshal(val)
		if err != nil {
			return err
		}
		var generic any
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&generic); err != nil {
			return fmt.Errorf("reparse %T: %w", val, err)
		}
		return writeCanonical(buf, generic)
	}
}
