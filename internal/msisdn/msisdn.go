/**
 * @description
 * Phone-number helpers for the Cameroon numbering plan: E.164 validation and
 * mobile-money correspondent (operator) resolution from operator prefixes.
 *
 * @notes
 * - Resolution inspects the leading two digits of the national significant
 *   number. The 65x range is genuinely shared between Orange and MTN in the
 *   national plan; the table keeps it on Orange and callers may override the
 *   derived correspondent when the payer knows better.
 */

package msisdn

import (
	"regexp"
	"strings"

	"github.com/dulu/payments-service/internal/domain"
)

// CountryCode is the Cameroon dialing code without the leading plus.
const CountryCode = "237"

// cameroonE164 matches +237 followed by a 9-digit mobile NSN starting with 6.
var cameroonE164 = regexp.MustCompile(`^\+2376\d{8}$`)

var nonDigits = regexp.MustCompile(`\D`)

// operator prefix table over the first two NSN digits.
var correspondentByPrefix = map[string]string{
	"69": domain.CorrespondentOrange,
	"65": domain.CorrespondentOrange, // shared range, see package notes
	"66": domain.CorrespondentOrange,
	"67": domain.CorrespondentMTN,
	"68": domain.CorrespondentMTN,
}

// DefaultCorrespondent is used when no prefix matches. MTN holds the larger
// share of unallocated ranges, so it is the documented fallback.
const DefaultCorrespondent = domain.CorrespondentMTN

// IsValidCameroonPhone reports whether phone is a well-formed Cameroon mobile
// number in E.164 form (+2376XXXXXXXX).
func IsValidCameroonPhone(phone string) bool {
	return cameroonE164.MatchString(strings.TrimSpace(phone))
}

// NationalNumber strips the country code and all non-digit characters,
// returning the 9-digit national significant number, or "" when the input
// cannot be reduced to one.
func NationalNumber(phone string) string {
	digits := nonDigits.ReplaceAllString(phone, "")
	digits = strings.TrimPrefix(digits, CountryCode)
	if len(digits) != 9 || !strings.HasPrefix(digits, "6") {
		return ""
	}
	return digits
}

// ResolveCorrespondent derives the mobile-money operator from the phone
// number's operator prefix. The result is advisory: an explicit correspondent
// supplied by the caller always wins.
func ResolveCorrespondent(phone string) string {
	nsn := NationalNumber(phone)
	if nsn == "" {
		return DefaultCorrespondent
	}
	if c, ok := correspondentByPrefix[nsn[:2]]; ok {
		return c
	}
	return DefaultCorrespondent
}

// InternationalNumber returns the number in the processor's payer address
// form: country code plus NSN, no leading plus. Empty when invalid.
func InternationalNumber(phone string) string {
	nsn := NationalNumber(phone)
	if nsn == "" {
		return ""
	}
	return CountryCode + nsn
}
