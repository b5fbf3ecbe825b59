package document

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ABSENT_NIBBLE in place of a date means the date is not present.
const ABSENT_NIBBLE = 0xA

// DATE_NIBBLES is the width of a YYYYMMDD date.
const DATE_NIBBLES = 8

var (
	ErrNibblesExhausted = errors.New("nibble stream exhausted")
	ErrInvalidBCD       = errors.New("invalid BCD data")
)

// Nibbles splits every byte into its high and low nibble, in that order.
func Nibbles(data []byte) []byte {
	out := make([]byte, 0, len(data)*2)
	for _, b := range data {
		out = append(out, (b>>4)&0x0F, b&0x0F)
	}
	return out
}

// NibbleReader reads BCD encoded values from a nibble stream with a moving cursor.
type NibbleReader struct {
	nibbles []byte
	pos     int
}

func NewNibbleReader(data []byte) *NibbleReader {
	return &NibbleReader{nibbles: Nibbles(data)}
}

// Remaining returns the number of unread nibbles.
func (r *NibbleReader) Remaining() int {
	return len(r.nibbles) - r.pos
}

// Digits reads n nibbles as decimal digits.
func (r *NibbleReader) Digits(n int) (string, error) {
	if r.Remaining() < n {
		return "", fmt.Errorf("need %d nibbles at offset %d, %d left: %w", n, r.pos, r.Remaining(), ErrNibblesExhausted)
	}
	digits := nibblesToDigits(r.nibbles[r.pos : r.pos+n])
	r.pos += n
	return digits, nil
}

// Date reads a mandatory YYYYMMDD date and returns it as YYYY-MM-DD.
func (r *NibbleReader) Date() (string, error) {
	if r.Remaining() < DATE_NIBBLES {
		return "", fmt.Errorf("need a date at offset %d, %d nibbles left: %w", r.pos, r.Remaining(), ErrNibblesExhausted)
	}
	window := r.nibbles[r.pos : r.pos+DATE_NIBBLES]
	if !allDecimal(window) {
		return "", fmt.Errorf("date at offset %d contains a non-decimal nibble in %x: %w", r.pos, window, ErrInvalidBCD)
	}
	r.pos += DATE_NIBBLES
	return formatDigitsDate(nibblesToDigits(window)), nil
}

// OptionalDate reads a date, or consumes a single ABSENT_NIBBLE and returns nil.
func (r *NibbleReader) OptionalDate() (*string, error) {
	if r.Remaining() < 1 {
		return nil, fmt.Errorf("need a date at offset %d: %w", r.pos, ErrNibblesExhausted)
	}
	if r.nibbles[r.pos] == ABSENT_NIBBLE {
		r.pos++
		return nil, nil
	}
	date, err := r.Date()
	if err != nil {
		return nil, err
	}
	return &date, nil
}

// FindDate scans every nibble offset for the first plausible YYYYMMDD date with a year
// in [2000, 2100].
func FindDate(data []byte) (string, bool) {
	nibbles := Nibbles(data)
	for i := 0; i+DATE_NIBBLES <= len(nibbles); i++ {
		window := nibbles[i : i+DATE_NIBBLES]
		if !allDecimal(window) {
			continue
		}
		digits := nibblesToDigits(window)
		year, _ := strconv.Atoi(digits[0:4])
		month, _ := strconv.Atoi(digits[4:6])
		day, _ := strconv.Atoi(digits[6:8])
		if year >= 2000 && year <= 2100 && month >= 1 && month <= 12 && day >= 1 && day <= 31 {
			return formatDigitsDate(digits), true
		}
	}
	return "", false
}

func allDecimal(nibbles []byte) bool {
	for _, n := range nibbles {
		if n > 9 {
			return false
		}
	}
	return true
}

func nibblesToDigits(nibbles []byte) string {
	var sb strings.Builder
	for _, n := range nibbles {
		sb.WriteString(strconv.Itoa(int(n)))
	}
	return sb.String()
}

func formatDigitsDate(digits string) string {
	return digits[0:4] + "-" + digits[4:6] + "-" + digits[6:]
}
