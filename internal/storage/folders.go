package storage

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var unsafeFolderChars = regexp.MustCompile(`[^a-zA-Z0-9\-_]`)

// MonthFolder builds the month-partitioned folder for a document, e.g.
// "Invoices/2025/05_May".
func MonthFolder(root string, t time.Time) string {
	return fmt.Sprintf("%s/%d/%02d_%s", root, t.Year(), int(t.Month()), t.Month().String())
}

// SafeFolderName returns a filesystem-safe version of a caller-supplied
// segment, stripping separators and parent references.
func SafeFolderName(name string) string {
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "")
	name = strings.ReplaceAll(name, "\\", "")
	return unsafeFolderChars.ReplaceAllString(name, "")
}
