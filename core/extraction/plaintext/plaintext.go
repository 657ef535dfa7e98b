// Package plaintext extracts text from uploads that already are text.
package plaintext

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"unicode/utf8"
)

var ErrNotUTF8 = errors.New("text is not valid UTF-8")

var bom = []byte{0xEF, 0xBB, 0xBF}

type Extractor struct{}

func New() Extractor {
	return Extractor{}
}

// ExtractText returns data without a byte order mark and with normalized
// line endings.
func (Extractor) ExtractText(_ context.Context, _, _ string, data []byte) (string, error) {
	data = bytes.TrimPrefix(data, bom)
	if !utf8.Valid(data) {
		return "", ErrNotUTF8
	}

	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	return strings.TrimSpace(text), nil
}
