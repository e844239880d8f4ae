package addons_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vrsandeep/vmfa-addons/internal/addons"
)

func TestNormalizeVersion(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"v1.2.3", "1.2.3"},
		{"V1.2.3", "1.2.3"},
		{"vvv1.0", "1.0"},
		{"vV2.0", "2.0"},
		{"3.1.0", "3.1.0"},
		{" v1.0 ", "1.0"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, addons.NormalizeVersion(tt.in))
		})
	}
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		name     string
		v1       string
		v2       string
		expected int
		wantErr  bool
	}{
		{"Equal versions", "1.0.0", "1.0.0", 0, false},
		{"v1 less than v2", "1.0.0", "1.0.1", -1, false},
		{"v1 greater than v2", "1.0.1", "1.0.0", 1, false},
		{"Two segments", "1.9", "1.10", -1, false},
		{"Extra segment is newer", "6.9.1", "6.9", 1, false},
		{"Trailing zero is newer", "6.9.0", "6.9", 1, false},
		{"Four segments", "1.2.3.4", "1.2.3.5", -1, false},
		{"Pre-release vs release", "1.0.0-alpha", "1.0.0", -1, false},
		{"Build metadata", "1.0.0", "1.0.0+build", 0, false},
		{"Leading v", "v1.0.0", "1.0.0", 0, false},
		{"Invalid version v1", "invalid", "1.0.0", 0, true},
		{"Invalid version v2", "1.0.0", "invalid", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := addons.CompareVersions(tt.v1, tt.v2)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestIsNewerVersion(t *testing.T) {
	newer, err := addons.IsNewerVersion("1.0.0", "1.0.1")
	assert.NoError(t, err)
	assert.True(t, newer)

	newer, err = addons.IsNewerVersion("1.0.1", "1.0.0")
	assert.NoError(t, err)
	assert.False(t, newer)

	_, err = addons.IsNewerVersion("invalid", "1.0.0")
	assert.Error(t, err)
}

func TestNormalizeTested(t *testing.T) {
	tests := []struct {
		name   string
		tested string
		host   string
		want   string
	}{
		{"Host patch release", "6.9", "6.9.1", "6.9.1"},
		{"Different minor", "6.8", "6.9.1", "6.8"},
		{"Host older", "6.9", "6.8", "6.9"},
		{"Same version", "6.9.1", "6.9.1", "6.9.1"},
		{"Empty stays empty", "", "6.9.1", ""},
		{"Unknown host", "6.9", "", "6.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, addons.NormalizeTested(tt.tested, tt.host))
		})
	}
}
