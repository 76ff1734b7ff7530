package pawapay

import "strings"

// statementDescriptionMaxLen is the processor-side limit for the text shown on
// the payer's mobile-money statement.
const statementDescriptionMaxLen = 22

// SanitizeStatementDescription reduces free-form text to the character set the
// processor accepts: letters, digits and single spaces, at most 22 characters.
// Anything else is dropped rather than risking processor-side rejection.
func SanitizeStatementDescription(description string) string {
	var b strings.Builder
	lastWasSpace := true // also trims leading spaces
	for _, r := range description {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastWasSpace = false
		case r == ' ' && !lastWasSpace:
			b.WriteByte(' ')
			lastWasSpace = true
		}
	}
	clean := strings.TrimRight(b.String(), " ")
	if len(clean) > statementDescriptionMaxLen {
		clean = strings.TrimRight(clean[:statementDescriptionMaxLen], " ")
	}
	return clean
}
