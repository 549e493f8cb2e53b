package utils

import (
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil && len(s) == 36
}

const maxFileNameLen = 100

// SafeFileName reduces an uploaded file name to its base name with only
// letters, digits, dot, dash and underscore. It never returns an empty string.
func SafeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))

	var b strings.Builder
	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune('_')
		}
	}

	out := strings.TrimLeft(b.String(), ".")
	if len(out) > maxFileNameLen {
		ext := filepath.Ext(out)
		if len(ext) > 10 {
			ext = ""
		}
		out = out[:maxFileNameLen-len(ext)] + ext
	}
	if out == "" {
		out = "file"
	}

	return out
}

// AttachmentName is the stored name of an uploaded task file.
func AttachmentName(original string) string {
	return uuid.NewString() + "_" + SafeFileName(original)
}
