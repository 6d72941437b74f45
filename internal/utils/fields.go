package utils

import (
	"regexp"
	"strings"
)

var (
	pincodeRe       = regexp.MustCompile(`^\d{5}$`)
	addressMobileRe = regexp.MustCompile(`^\d{10}$`)
	profileMobileRe = regexp.MustCompile(`^\+?[0-9\s\-\(\)]{7,}$`)
)

// ValidPincode reports whether s is a five digit postal code.
func ValidPincode(s string) bool { return pincodeRe.MatchString(strings.TrimSpace(s)) }

// ValidAddressMobile reports whether s is a ten digit delivery phone number.
func ValidAddressMobile(s string) bool { return addressMobileRe.MatchString(strings.TrimSpace(s)) }

// ValidProfileMobile accepts the looser profile phone format: optional
// leading +, then at least seven digits, spaces, dashes or parentheses.
func ValidProfileMobile(s string) bool { return profileMobileRe.MatchString(strings.TrimSpace(s)) }
