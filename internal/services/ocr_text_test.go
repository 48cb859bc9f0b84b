package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitOCRLanguages(t *testing.T) {
	assert.Equal(t, []string{"por", "eng"}, splitOCRLanguages("por+eng"))
	assert.Equal(t, []string{"por"}, splitOCRLanguages(" por + "))
	assert.Equal(t, []string{"eng"}, splitOCRLanguages(""))
}

func TestImageExtension(t *testing.T) {
	tests := []struct {
		contentType string
		filename    string
		want        string
		wantOK      bool
	}{
		{"image/jpeg", "x.bin", ".jpg", true},
		{"IMAGE/PNG", "", ".png", true},
		{"application/octet-stream", "scan.JPEG", ".jpg", true},
		{"", "scan.tif", ".tiff", true},
		{"application/pdf", "doc.pdf", "", false},
	}

	for _, tt := range tests {
		got, ok := ImageExtension(tt.contentType, tt.filename)
		assert.Equal(t, tt.wantOK, ok, tt.contentType+" "+tt.filename)
		assert.Equal(t, tt.want, got)
	}
}
