package service

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateReason(t *testing.T) {
	assert.Equal(t, "short", truncateReason("short", maxFailureReason))

	// the 255-byte cut lands inside the first euro sign
	long := strings.Repeat("a", 254) + "€€"
	got := truncateReason(long, maxFailureReason)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("a", 254), got)

	exact := strings.Repeat("a", 252) + "€"
	assert.Equal(t, exact, truncateReason(exact, maxFailureReason))

	assert.Equal(t, "bad?byte", truncateReason("bad\xffbyte", maxFailureReason))
}
