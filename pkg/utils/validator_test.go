package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateUpload(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		size     int64
		wantErr  bool
	}{
		{"valid pdf", "invoice.pdf", 1024, false},
		{"valid png", "scan.PNG", 1024, false},
		{"valid jpeg", "photo.jpeg", 1024, false},
		{"unsupported type", "notes.txt", 1024, true},
		{"no extension", "invoice", 1024, true},
		{"empty filename", "", 1024, true},
		{"empty body", "invoice.pdf", 0, true},
		{"at size cap", "invoice.pdf", MaxUploadBytes, false},
		{"over size cap", "invoice.pdf", MaxUploadBytes + 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUpload(tt.filename, tt.size)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsPDF(t *testing.T) {
	assert.True(t, IsPDF("invoice.pdf"))
	assert.True(t, IsPDF("INVOICE.PDF"))
	assert.False(t, IsPDF("invoice.png"))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "invoice.pdf", SanitizeFilename("../../etc/invoice.pdf"))
	assert.Equal(t, "acme jan.pdf", SanitizeFilename("acme jan.pdf"))
	assert.Equal(t, "acme.pdf", SanitizeFilename("acme\x00.pdf"))
}
