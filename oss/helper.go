package oss

import (
	"mime"
	"path/filepath"
)

// contentType guesses the MIME type from the key's extension.
func contentType(key string) string {
	if ext := filepath.Ext(key); ext != "" {
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
	}
	return "application/octet-stream"
}
