package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFTPURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url      string
		wantHost string
		wantPath string
		wantErr  bool
	}{
		{"ftp://reports.example.com/esg/fy2023.csv", "reports.example.com:21", "/esg/fy2023.csv", false},
		{"ftp://reports.example.com:2121/fy2023.csv", "reports.example.com:2121", "/fy2023.csv", false},
		{"https://example.com/file.csv", "", "", true},
		{"ftp://example.com", "", "", true},
	}
	for _, tt := range tests {
		host, path, err := parseFTPURL(tt.url)
		if tt.wantErr {
			assert.Error(t, err, tt.url)
			continue
		}
		require.NoError(t, err, tt.url)
		assert.Equal(t, tt.wantHost, host, tt.url)
		assert.Equal(t, tt.wantPath, path, tt.url)
	}
}
