package vehicle

import (
	"regexp"
	"strings"

	"go-sa-licence-decoder/document"
)

const MODEL_SEARCH_WINDOW = 3

var (
	registrationPattern = regexp.MustCompile(`^[A-Z]{2,4}\d{3,6}[A-Z]{0,2}$`)
	vinPattern          = regexp.MustCompile(`^[A-HJ-NPR-Z0-9]{17}$`)
	makeFallbackPattern = regexp.MustCompile(`^[A-Za-z ]{4,14}$`)
	longDatePattern     = regexp.MustCompile(`\b(\d{4})[-/.](\d{2})[-/.](\d{2})\b`)
	shortDatePattern    = regexp.MustCompile(`\b(\d{2})-(\d{2})-(\d{2})\b`)
	dateShapePattern    = regexp.MustCompile(`^\d{2,4}[-/.]\d{2}[-/.]\d{2}$`)
	modelPattern        = regexp.MustCompile(`^[A-Za-z0-9 \-]{2,20}$`)
	engineNumberPattern = regexp.MustCompile(`^[A-Z0-9]{8,20}$`)
	ownerIDPattern      = regexp.MustCompile(`^\d{13}$`)
	digitsPattern       = regexp.MustCompile(`^\d+$`)
)

var manufacturers = []string{
	"TOYOTA", "VOLKSWAGEN", "VW", "FORD", "NISSAN", "HYUNDAI", "KIA", "BMW",
	"MERCEDES-BENZ", "MERCEDES", "AUDI", "HONDA", "MAZDA", "SUZUKI", "RENAULT",
	"CHEVROLET", "ISUZU", "MITSUBISHI", "OPEL", "PEUGEOT", "MAHINDRA", "HAVAL",
}

// English and Afrikaans colour names.
var colours = []string{
	"WHITE", "WIT", "BLACK", "SWART", "SILVER", "SILWER", "GREY", "GRAY", "GRYS",
	"RED", "ROOI", "BLUE", "BLOU", "GREEN", "GROEN", "YELLOW", "GEEL",
	"BROWN", "BRUIN", "ORANGE", "ORANJE", "BEIGE", "GOLD", "GOUD", "MAROON",
}

// Body style keywords, English and Afrikaans.
var bodyStyles = []string{
	"HATCH", "SEDAN", "BUS", "BAKKIE", "TRUCK", "LUIKRUG", "VRAGMOTOR", "VRAGWA",
}

// classification is the accumulating context threaded through the classifier pipeline.
// Later steps read what earlier steps extracted.
type classification struct {
	tokens    []string
	plaintext []byte
	makeIndex int
	vinIndex  int
	licence   *VehicleLicence
}

// Order matters: model and engine number exclude values found before them.
var pipeline = []func(c *classification){
	classifyRegistration,
	classifyVIN,
	classifyMake,
	classifyColour,
	classifyVehicleClass,
	classifyExpiryDate,
	classifyModel,
	classifyEngineNumber,
	classifyOwnerName,
	classifyOwnerIDNumber,
}

// Classify runs the classifier pipeline over tokens. plaintext is only used to scan for
// BCD encoded expiry dates when no token holds a date.
func Classify(tokens []string, plaintext []byte) *VehicleLicence {
	c := &classification{
		tokens:    tokens,
		plaintext: plaintext,
		makeIndex: -1,
		vinIndex:  -1,
		licence:   newVehicleLicence(),
	}
	for _, classify := range pipeline {
		classify(c)
	}
	return c.licence
}

// extracted reports whether token equals a value some earlier step already extracted.
func (c *classification) extracted(token string) bool {
	l := c.licence
	if l.RegistrationNumber != UNKNOWN_REGISTRATION && token == l.RegistrationNumber {
		return true
	}
	for _, v := range []*string{l.VIN, l.EngineNumber, l.Make, l.Model, l.Colour, l.VehicleClass, l.OwnerName, l.OwnerIDNumber, l.ExpiryDate} {
		if v != nil && *v == token {
			return true
		}
	}
	return false
}

func (c *classification) firstToken(match func(string) bool) (string, int) {
	for i, token := range c.tokens {
		if match(token) {
			return token, i
		}
	}
	return "", -1
}

func classifyRegistration(c *classification) {
	if token, i := c.firstToken(registrationPattern.MatchString); i >= 0 {
		c.licence.RegistrationNumber = token
	}
}

func classifyVIN(c *classification) {
	if token, i := c.firstToken(vinPattern.MatchString); i >= 0 {
		c.licence.VIN = &token
		c.vinIndex = i
	}
}

func classifyMake(c *classification) {
	token, i := c.firstToken(isManufacturer)
	if i < 0 {
		token, i = c.firstToken(makeFallbackPattern.MatchString)
	}
	if i >= 0 {
		c.licence.Make = &token
		c.makeIndex = i
	}
}

func isManufacturer(token string) bool {
	upper := strings.ToUpper(token)
	for _, m := range manufacturers {
		if upper == m || strings.HasPrefix(upper, m+" ") {
			return true
		}
	}
	return false
}

func classifyColour(c *classification) {
	token, i := c.firstToken(func(t string) bool {
		return containsAny(strings.ToUpper(t), colours)
	})
	if i >= 0 {
		c.licence.Colour = &token
	}
}

func classifyVehicleClass(c *classification) {
	token, i := c.firstToken(func(t string) bool {
		return containsAny(strings.ToUpper(t), bodyStyles)
	})
	if i >= 0 {
		c.licence.VehicleClass = &token
	}
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func classifyExpiryDate(c *classification) {
	for _, token := range c.tokens {
		if m := longDatePattern.FindStringSubmatch(token); m != nil {
			date := m[1] + "-" + m[2] + "-" + m[3]
			c.licence.ExpiryDate = &date
			return
		}
	}
	for _, token := range c.tokens {
		if m := shortDatePattern.FindStringSubmatch(token); m != nil {
			if date, err := document.NormalizeShortDate(m[1], m[2], m[3]); err == nil {
				c.licence.ExpiryDate = &date
				return
			}
		}
	}
	if date, ok := document.FindDate(c.plaintext); ok {
		c.licence.ExpiryDate = &date
	}
}

func classifyModel(c *classification) {
	if c.makeIndex >= 0 {
		end := min(c.makeIndex+1+MODEL_SEARCH_WINDOW, len(c.tokens))
		for _, token := range c.tokens[c.makeIndex+1 : end] {
			if c.isModelCandidate(token) {
				c.licence.Model = &token
				return
			}
		}
	}
	if token, i := c.firstToken(c.isModelCandidate); i >= 0 {
		c.licence.Model = &token
	}
}

func (c *classification) isModelCandidate(token string) bool {
	if !modelPattern.MatchString(token) {
		return false
	}
	if c.extracted(token) || isStructured(token) || digitsPattern.MatchString(token) {
		return false
	}
	if len(token) >= 8 && !strings.Contains(token, " ") && hasLetterAndDigit(token) {
		return false
	}
	return true
}

func classifyEngineNumber(c *classification) {
	if c.vinIndex >= 0 {
		for _, token := range c.tokens[c.vinIndex+1:] {
			if c.isEngineNumberCandidate(token) {
				c.licence.EngineNumber = &token
				return
			}
		}
	}
	for i := len(c.tokens) - 1; i >= 0; i-- {
		token := c.tokens[i]
		if c.isEngineNumberCandidate(token) {
			c.licence.EngineNumber = &token
			return
		}
	}
}

func (c *classification) isEngineNumberCandidate(token string) bool {
	return engineNumberPattern.MatchString(token) &&
		hasLetterAndDigit(token) &&
		!c.extracted(token) &&
		!isStructured(token)
}

func classifyOwnerName(c *classification) {
	token, i := c.firstToken(func(t string) bool {
		return strings.Contains(t, " ") && len(t) > 5
	})
	if i >= 0 {
		c.licence.OwnerName = &token
	}
}

func classifyOwnerIDNumber(c *classification) {
	if token, i := c.firstToken(ownerIDPattern.MatchString); i >= 0 {
		c.licence.OwnerIDNumber = &token
	}
}

// isStructured reports whether token looks like a VIN, registration number or date.
func isStructured(token string) bool {
	return vinPattern.MatchString(token) ||
		registrationPattern.MatchString(token) ||
		dateShapePattern.MatchString(token)
}

func hasLetterAndDigit(s string) bool {
	var letter, digit bool
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digit = true
		case (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z'):
			letter = true
		}
	}
	return letter && digit
}
