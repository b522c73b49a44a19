package version

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString_IncludesBuildInfo(t *testing.T) {
	s := String()
	assert.True(t, strings.HasPrefix(s, "dirkv "))
	assert.Contains(t, s, Version)
	assert.Contains(t, s, GoVersion)
}

func TestGetInfo(t *testing.T) {
	info := GetInfo()
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, runtime.GOOS, info.OS)
	assert.Equal(t, runtime.GOARCH, info.Arch)
}

func TestShort(t *testing.T) {
	assert.Equal(t, Version, Short())
}
