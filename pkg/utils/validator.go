package utils

import (
	"fmt"
	"path/filepath"
	"strings"
)

// MaxUploadBytes caps uploaded invoice documents at 10 MB.
const MaxUploadBytes = 10 << 20

var allowedExtensions = map[string]bool{
	".pdf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// ValidateUpload checks an uploaded invoice document before any external call
// is made. It rejects empty bodies, oversized files, and unsupported types.
func ValidateUpload(filename string, size int64) error {
	if strings.TrimSpace(filename) == "" {
		return fmt.Errorf("filename is required")
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return fmt.Errorf("unsupported file type %q: only pdf, png, jpg, jpeg are accepted", ext)
	}
	if size <= 0 {
		return fmt.Errorf("uploaded file is empty")
	}
	if size > MaxUploadBytes {
		return fmt.Errorf("file exceeds maximum size of %d bytes", int64(MaxUploadBytes))
	}
	return nil
}

// IsPDF reports whether a filename refers to a PDF document. The local text
// fallback only handles PDFs.
func IsPDF(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".pdf")
}

// SanitizeFilename strips path separators and control characters so a
// caller-supplied document name is safe to use inside the storage tree.
func SanitizeFilename(name string) string {
	name = filepath.Base(name)
	var b strings.Builder
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
