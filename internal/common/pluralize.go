// Package common: pluralize.go has English plural forms for counters shown to users.
package common

import "fmt"

// Pluralize returns "1 offer" or "3 offers".
//
// Examples:
//
//	Pluralize(1, "offer", "offers") → "1 offer"
//	Pluralize(0, "offer", "offers") → "0 offers"
func Pluralize(n int, singular, plural string) string {
	if n == 1 || n == -1 {
		return fmt.Sprintf("%d %s", n, singular)
	}
	return fmt.Sprintf("%d %s", n, plural)
}

// PluralizeDays returns "1 day" or "n days".
func PluralizeDays(n int) string {
	return Pluralize(n, "day", "days")
}

// FormatNumber groups thousands with commas: 12345 → "12,345".
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%s,%03d", FormatNumber(n/1000), n%1000)
}
