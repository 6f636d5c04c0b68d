package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClaimsFix(t *testing.T) {
	tests := []struct {
		name    string
		message string
		id      string
		want    bool
	}{
		{"exact token", "fixes abc1234", "abc1234", true},
		{"token inside message", "Repair flaky test, fixes abc1234 for real", "abc1234", true},
		{"token on later line", "Repair flaky test\n\nfixes abc1234", "abc1234", true},
		{"no word boundary required", "prefixes abc1234567", "abc1234", true},
		{"wrong id", "fixes abc9999", "abc1234", false},
		{"missing space", "fixesabc1234", "abc1234", false},
		{"case sensitive", "Fixes abc1234", "abc1234", false},
		{"different verb", "fixed abc1234", "abc1234", false},
		{"id without token", "abc1234 was broken", "abc1234", false},
		{"empty message", "", "abc1234", false},
		{"punctuation between", "fixes: abc1234", "abc1234", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClaimsFix(tt.message, tt.id))
		})
	}
}
