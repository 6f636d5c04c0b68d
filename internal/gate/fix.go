package gate

import "strings"

// FixToken is the prefix a commit message uses to claim it fixes a broken
// build, followed directly by the failing commit's display identifier.
const FixToken = "fixes "

// ClaimsFix reports whether message declares a fix for the commit with the
// given display identifier. The match is a case-sensitive substring match.
func ClaimsFix(message, failingDisplayID string) bool {
	return strings.Contains(message, FixToken+failingDisplayID)
}
