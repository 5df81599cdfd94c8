package sms

import (
	"regexp"
	"strings"
)

var (
	locationPattern  = regexp.MustCompile(`(?i)^[A-Z]{2,5}-[A-Za-z]+$`)
	productSeparator = regexp.MustCompile(`[,;\n]+`)
)

// IsLocation reports whether text looks like CityCode-Area, e.g. NAI-Kileleshwa.
func IsLocation(text string) bool {
	return locationPattern.MatchString(strings.TrimSpace(text))
}

// ParseProducts splits a product list on commas, semicolons and newlines.
// Order is kept; blanks are dropped and duplicates are not removed.
func ParseProducts(text string) []string {
	parts := productSeparator.Split(text, -1)

	products := make([]string, 0, len(parts))
	for _, part := range parts {
		if product := strings.TrimSpace(part); product != "" {
			products = append(products, product)
		}
	}

	return products
}
