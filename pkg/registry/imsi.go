package registry

import "strings"

// IMSILength is the number of digits in an IMSI.
const IMSILength = 15

// CountryCode is the mobile country code every IMSI must start with.
const CountryCode = "262"

// ValidateIMSI checks that imsi has exactly 15 digits, starts with the country
// code 262 and carries a network code from 01 to 09.
func ValidateIMSI(imsi string) error {
	if len(imsi) != IMSILength {
		return &InvalidIMSIError{IMSI: imsi, Reason: "must have exactly 15 digits"}
	}
	for _, r := range imsi {
		if r < '0' || r > '9' {
			return &InvalidIMSIError{IMSI: imsi, Reason: "must contain digits only"}
		}
	}
	if !strings.HasPrefix(imsi, CountryCode) {
		return &InvalidIMSIError{IMSI: imsi, Reason: "must start with country code " + CountryCode}
	}
	if imsi[3] != '0' || imsi[4] < '1' || imsi[4] > '9' {
		return &InvalidIMSIError{IMSI: imsi, Reason: "network code must be between 01 and 09"}
	}
	return nil
}
