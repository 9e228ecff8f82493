package domain

import "strings"

// ValidIBAN checks structure and the ISO 13616 mod-97 checksum. It accepts
// upper/lower case and embedded spaces, like the paper form of an IBAN.
func ValidIBAN(iban string) bool {
	s := strings.ToUpper(strings.ReplaceAll(iban, " ", ""))
	if len(s) < 15 || len(s) > 34 {
		return false
	}
	if s[0] < 'A' || s[0] > 'Z' || s[1] < 'A' || s[1] > 'Z' {
		return false
	}
	// Move the country code and check digits to the end, then compute the
	// remainder of the resulting number mod 97, digit by digit.
	rearranged := s[4:] + s[:4]
	rem := 0
	for i := 0; i < len(rearranged); i++ {
		c := rearranged[i]
		switch {
		case c >= '0' && c <= '9':
			rem = (rem*10 + int(c-'0')) % 97
		case c >= 'A' && c <= 'Z':
			v := int(c-'A') + 10
			rem = (rem*100 + v) % 97
		default:
			return false
		}
	}
	return rem == 1
}

// IBANCountry returns the two-letter country code of an IBAN, or "" if the
// value is too short to carry one.
func IBANCountry(iban string) string {
	s := strings.ToUpper(strings.ReplaceAll(iban, " ", ""))
	if len(s) < 2 {
		return ""
	}
	return s[:2]
}

// ValidBIC checks the ISO 9362 shape: 4 letter bank code, 2 letter country
// code, 2 alphanumeric location characters, optional 3 alphanumeric branch
// characters.
func ValidBIC(bic string) bool {
	s := strings.ToUpper(strings.TrimSpace(bic))
	if len(s) != 8 && len(s) != 11 {
		return false
	}
	for i := 0; i < 6; i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	for i := 6; i < len(s); i++ {
		c := s[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
