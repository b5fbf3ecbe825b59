package document

import (
	"fmt"
	"strconv"
	"time"
)

const DATE_LAYOUT = "2006-01-02"

// SHORT_YEAR_PIVOT splits two-digit years: below it is 20xx, from it 19xx.
const SHORT_YEAR_PIVOT = 50

func BoolToYesNo(value bool) string {
	if value {
		return "Yes"
	}
	return "No"
}

// ExpandShortYear turns a two-digit year into a four-digit one around SHORT_YEAR_PIVOT.
func ExpandShortYear(yy int) int {
	if yy < SHORT_YEAR_PIVOT {
		return 2000 + yy
	}
	return 1900 + yy
}

// NormalizeShortDate converts two-digit year, month and day strings into YYYY-MM-DD.
func NormalizeShortDate(yy, mm, dd string) (string, error) {
	if len(yy) != 2 || len(mm) != 2 || len(dd) != 2 {
		return "", fmt.Errorf("invalid date format: %s-%s-%s", yy, mm, dd)
	}
	year, err := strconv.Atoi(yy)
	if err != nil {
		return "", fmt.Errorf("invalid date format: %w", err)
	}
	return fmt.Sprintf("%04d-%s-%s", ExpandShortYear(year), mm, dd), nil
}

// ParseDate parses a YYYY-MM-DD date as produced by the decoders.
func ParseDate(dateStr string) (time.Time, error) {
	parsedDate, err := time.Parse(DATE_LAYOUT, dateStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("error parsing date: %w", err)
	}
	return parsedDate, nil
}
