// Package assets holds files compiled into the guestdesk binary and serves
// the front-end directory with appropriate cache headers.
package assets

import (
	_ "embed"
	"mime"
	"net/http"
	"os"
	"path"
	"regexp"
	"strings"
)

// ExampleConfig is the annotated configuration written by `guestdesk init`.
//
//go:embed config.example.yaml
var ExampleConfig []byte

// hashPattern detects bundler content hashes in filenames (e.g. ".CU4W1PlC.").
// Bundlers use base64url hashes, so we accept [a-zA-Z0-9_-]. The 8-char minimum
// matches the common default hash length.
var hashPattern = regexp.MustCompile(`\.[a-zA-Z0-9_-]{8,}\.`)

func init() {
	// Register MIME types that may not be in the default database.
	// Errors are ignored: these only fail if extension format is invalid,
	// and our literals are known-good.
	_ = mime.AddExtensionType(".woff2", "font/woff2")
	_ = mime.AddExtensionType(".map", "application/json")
	_ = mime.AddExtensionType(".mp3", "audio/mpeg")
}

// containsHash reports whether the given path contains a content hash
// (8+ characters between dots, e.g. "app.a1b2c3d4.js").
func containsHash(p string) bool {
	return hashPattern.MatchString(p)
}

// mimeFromExt returns the MIME type for a file extension.
// Falls back to the Go standard library's MIME type database,
// then to "application/octet-stream" if unknown.
func mimeFromExt(ext string) string {
	switch ext {
	case ".js", ".mjs":
		return "application/javascript"
	case ".css":
		return "text/css; charset=utf-8"
	case ".html":
		return "text/html; charset=utf-8"
	case ".woff2":
		return "font/woff2"
	case ".svg":
		return "image/svg+xml"
	case ".map":
		return "application/json"
	case ".mp3":
		return "audio/mpeg"
	default:
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
		return "application/octet-stream"
	}
}

// DirServer returns an http.Handler that serves the front-end files in dir.
// Hashed assets get immutable cache headers; everything else gets no-cache so
// edits to index.html show up on the next load. Dotfiles are never served.
func DirServer(dir string) http.Handler {
	fileServer := http.FileServer(http.FS(os.DirFS(dir)))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hasDotSegment(r.URL.Path) {
			http.NotFound(w, r)
			return
		}

		ext := strings.ToLower(path.Ext(r.URL.Path))
		if ext != "" {
			w.Header().Set("Content-Type", mimeFromExt(ext))
		}

		if containsHash(r.URL.Path) {
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		} else {
			w.Header().Set("Cache-Control", "no-cache")
		}

		fileServer.ServeHTTP(w, r)
	})
}

// hasDotSegment reports whether any path segment starts with a dot.
func hasDotSegment(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}
