package extractor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// decodeText decodes plain text or Markdown. UTF-8 is attempted first; a
// Latin-1 fallback keeps any byte sequence decodable, so this never fails.
func decodeText(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode latin-1 text: %w", err)
	}
	return string(decoded), nil
}

// decodeJSON re-serializes the document so the model sees a consistently
// indented rendering rather than arbitrary whitespace.
func decodeJSON(data []byte) (string, error) {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return "", fmt.Errorf("decode json: %w", err)
	}
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(value); err != nil {
		return "", fmt.Errorf("render json: %w", err)
	}
	return buf.String(), nil
}
