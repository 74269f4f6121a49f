package steadfast

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetVersion(t *testing.T) {
	info := GetVersion()

	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.Platform, "/")
	assert.True(t, strings.HasPrefix(info.String(), "steadfast "+info.Version))
}
