// internal/utils/phone_test.go
package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		cc      string
		want    string
		wantErr bool
	}{
		{"ten digits gets default country code", "5551234567", "1", "+15551234567", false},
		{"formatted national number", "(555) 123-4567", "1", "+15551234567", false},
		{"already international", "+15551234567", "1", "+15551234567", false},
		{"international with formatting", "+1 (555) 123-4567", "1", "+15551234567", false},
		{"eleven digits with country prefix", "15551234567", "1", "+15551234567", false},
		{"empty country code falls back to 1", "5551234567", "", "+15551234567", false},
		{"uk number with uk default", "2071234567", "44", "+442071234567", false},
		{"long foreign number passes through", "4420712345678", "1", "+4420712345678", false},
		{"empty input", "", "1", "", true},
		{"whitespace only", "   ", "1", "", true},
		{"too short", "12345", "1", "", true},
		{"international too short", "+1234", "1", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.raw, tt.cc)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
