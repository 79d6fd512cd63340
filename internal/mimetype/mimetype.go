// Package mimetype maps file extensions and type/subtype strings to
// HTTP Content-Type values. It is a pure lookup table with no I/O.
package mimetype

import "strings"

// DefaultHTML is the content type assumed for responses that never set one.
const DefaultHTML = "text/html"

// DefaultPlain is the content type for files with an unknown extension.
const DefaultPlain = "text/plain"

var byExtension = map[string]string{
	"css":  "text/css",
	"csv":  "text/csv",
	"gif":  "image/gif",
	"htm":  "text/html",
	"html": "text/html",
	"ico":  "image/x-icon",
	"jpeg": "image/jpeg",
	"jpg":  "image/jpeg",
	"js":   "application/javascript",
	"json": "application/json",
	"mp3":  "audio/mpeg",
	"mp4":  "video/mp4",
	"pdf":  "application/pdf",
	"png":  "image/png",
	"svg":  "image/svg+xml",
	"ttf":  "font/ttf",
	"txt":  "text/plain",
	"wasm": "application/wasm",
	"webp": "image/webp",
	"woff": "font/woff",
	"xml":  "application/xml",
}

// ByExtension returns the content type registered for a file extension.
// The extension may be given with or without a leading dot. Unknown
// extensions resolve to text/plain.
func ByExtension(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ct, ok := byExtension[ext]; ok {
		return ct
	}
	return DefaultPlain
}

// ByPath returns the content type for a file path based on its extension.
func ByPath(path string) string {
	i := strings.LastIndexByte(path, '.')
	if i < 0 || strings.ContainsAny(path[i+1:], "/\\") {
		return DefaultPlain
	}
	return ByExtension(path[i+1:])
}

// Normalize trims a raw "type/subtype" header value down to its media type,
// dropping any parameters. Empty input normalizes to text/html.
func Normalize(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return DefaultHTML
	}
	if i := strings.IndexByte(value, ';'); i >= 0 {
		value = strings.TrimSpace(value[:i])
	}
	return value
}
