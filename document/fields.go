package document

import (
	"strings"
	"unicode"

	xunicode "golang.org/x/text/encoding/unicode"
)

// Field delimiters used in the decrypted barcode text sections.
const (
	FIELD_DELIMITER    = 0xE0
	EMPTY_FIELD_MARKER = 0xE1
)

// DecodeText decodes bytes as UTF-8, replacing invalid sequences with U+FFFD.
func DecodeText(b []byte) string {
	// the UTF-8 decoder substitutes invalid sequences and never fails
	decoded, _ := xunicode.UTF8.NewDecoder().Bytes(b)
	return string(decoded)
}

// SplitFields tokenizes a length-framed text section. 0xE0 ends a non-empty field,
// 0xE1 ends any pending field and then stands for one empty field. Trailing bytes
// form the last field.
func SplitFields(data []byte) []string {
	var fields []string
	start := -1

	flush := func(end int) {
		if start >= 0 && end > start {
			fields = append(fields, DecodeText(data[start:end]))
		}
		start = -1
	}

	for i, b := range data {
		switch b {
		case FIELD_DELIMITER:
			flush(i)
		case EMPTY_FIELD_MARKER:
			flush(i)
			fields = append(fields, "")
		default:
			if start < 0 {
				start = i
			}
		}
	}
	flush(len(data))

	return fields
}

// SplitTokens tokenizes free-form barcode text. Text containing '%' is split on '%';
// otherwise 0xE0 and 0xE1 are both plain separators. Tokens are trimmed of whitespace
// and NUL padding, and empty tokens dropped.
func SplitTokens(data []byte) []string {
	text := DecodeText(data)

	var raw []string
	if strings.Contains(text, "%") {
		raw = strings.Split(text, "%")
	} else {
		var current []byte
		for _, b := range data {
			if b == FIELD_DELIMITER || b == EMPTY_FIELD_MARKER {
				raw = append(raw, DecodeText(current))
				current = current[:0]
				continue
			}
			current = append(current, b)
		}
		raw = append(raw, DecodeText(current))
	}

	tokens := make([]string, 0, len(raw))
	for _, token := range raw {
		token = strings.TrimFunc(token, isPadding)
		if token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

func isPadding(r rune) bool {
	return r == 0 || unicode.IsSpace(r)
}
