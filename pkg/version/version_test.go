package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo_IsRelease(t *testing.T) {
	tests := []struct {
		version string
		release bool
	}{
		{"1.2.3", true},
		{"v0.4.0", true},
		{"1.2.3-rc.1", false},
		{"dev", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			assert.Equal(t, tt.release, Info{Version: tt.version}.IsRelease())
		})
	}
}

func TestInfo_ShortString(t *testing.T) {
	assert.Equal(t, "tokenest version 1.0.0", Info{Version: "1.0.0"}.ShortString())
	assert.Equal(t, "tokenest version dev (development build)", Info{Version: "dev"}.ShortString())
}

func TestGetInfo(t *testing.T) {
	info := GetInfo()
	assert.Equal(t, Version, info.Version)
	assert.NotEmpty(t, info.Platform)
	assert.Contains(t, info.String(), "commit: ")
}
