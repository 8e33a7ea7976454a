package cloudinary

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildImageURL(t *testing.T) {
	assert.Equal(t,
		"https://res.cloudinary.com/demo/image/upload/q_auto,f_auto,w_800,c_limit/det_abc",
		BuildImageURL("demo", "det_abc", 0))
	assert.Contains(t, BuildImageURL("demo", "x", 200), "w_200")
}

func TestNewPublicID(t *testing.T) {
	a, b := NewPublicID("det"), NewPublicID("det")
	assert.True(t, strings.HasPrefix(a, "det_"))
	assert.Len(t, a, len("det_")+16)
	assert.NotEqual(t, a, b)
}
