// Package validation provides the pure sanitization and validation
// functions that stand between untrusted game content and the generated
// site: path traversal containment, URL scheme allow-listing, HTML
// escaping, and site name validation.
//
// Every function is total over its input: malformed input yields a typed
// *errors.ForgeError rejection, never a panic. Nothing in this package
// touches the filesystem beyond symlink resolution in ValidateSafePath.
package validation

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/arcadeforge/arcadeforge/internal/errors"
)

const maxSiteNameLength = 253 // RFC 1035 total domain length
const maxLabelLength = 63     // RFC 1035 per-label length

// ValidateSiteName validates a site name against domain-label rules and
// returns the lowercase-normalized form. Names double as directory names
// under the sites root, so the rules are strict: labels of 1-63 characters
// from [a-z0-9-], no leading or trailing hyphen, total length at most 253,
// no control or null characters anywhere.
func ValidateSiteName(s string) (string, error) {
	if s == "" {
		return "", errors.ErrInvalidName("(empty)")
	}
	if len(s) > maxSiteNameLength {
		return "", errors.ErrInvalidName(s[:maxSiteNameLength] + "...")
	}
	if hasControlOrNull(s) {
		return "", errors.ErrInvalidName(s)
	}

	name := strings.ToLower(s)

	for _, label := range strings.Split(name, ".") {
		if label == "" || len(label) > maxLabelLength {
			return "", errors.ErrInvalidName(s)
		}
		if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return "", errors.ErrInvalidName(s)
		}
		for _, r := range label {
			if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' {
				return "", errors.ErrInvalidName(s)
			}
		}
	}

	return name, nil
}

// SanitizePathComponent sanitizes a single path segment from untrusted
// content. Null bytes and control characters are stripped; anything that
// still names a parent directory, is absolute, or crosses a separator is
// rejected.
func SanitizePathComponent(s string) (string, error) {
	cleaned := stripControlAndNull(s)

	if cleaned == "" || cleaned == "." || cleaned == ".." {
		return "", errors.ErrUnsafePath(s)
	}
	if strings.ContainsAny(cleaned, `/\`) {
		return "", errors.ErrUnsafePath(s)
	}
	if strings.Contains(cleaned, "..") {
		return "", errors.ErrUnsafePath(s)
	}

	return cleaned, nil
}

// ValidateSafePath resolves candidate relative to base and returns the
// absolute resolved path, rejecting anything that escapes base. Both sides
// are normalized to absolute form and symlinks are resolved before the
// containment check, so neither `..` sequences nor symlink indirection can
// escape.
func ValidateSafePath(base, candidate string) (string, error) {
	if hasControlOrNull(candidate) || strings.ContainsRune(candidate, 0) {
		return "", errors.ErrUnsafePath(candidate)
	}

	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", errors.ErrUnsafePath(base)
	}
	absBase = resolveSymlinks(absBase)

	joined := candidate
	if !filepath.IsAbs(joined) {
		joined = filepath.Join(absBase, joined)
	}
	resolved, err := filepath.Abs(filepath.Clean(joined))
	if err != nil {
		return "", errors.ErrUnsafePath(candidate)
	}
	resolved = resolveSymlinks(resolved)

	if resolved != absBase && !strings.HasPrefix(resolved, absBase+string(filepath.Separator)) {
		return "", errors.ErrPathTraversal(candidate)
	}

	return resolved, nil
}

// resolveSymlinks resolves path through its deepest existing ancestor.
// Paths that do not exist yet (output files) are resolved lexically from
// the nearest existing parent, so a symlinked parent still counts.
func resolveSymlinks(path string) string {
	if real, err := filepath.EvalSymlinks(path); err == nil {
		return real
	}

	dir, rest := path, ""
	for dir != filepath.Dir(dir) {
		parent := filepath.Dir(dir)
		rest = filepath.Join(filepath.Base(dir), rest)
		if real, err := filepath.EvalSymlinks(parent); err == nil {
			return filepath.Join(real, rest)
		}
		dir = parent
	}

	return path
}

// htmlEscaper escapes exactly the five HTML-significant characters.
var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&#34;",
	"'", "&#39;",
)

// SanitizeHTMLContent escapes the five HTML-significant characters
// (& < > " ') for safe inclusion in markup. The function does not detect
// prior escaping; callers must escape raw input exactly once.
func SanitizeHTMLContent(s string) string {
	return htmlEscaper.Replace(s)
}

// allowedSchemes is the URL scheme allow-list. about is admitted solely
// for the about:blank iframe placeholder.
var allowedSchemes = map[string]bool{
	"http":  true,
	"https": true,
}

// ValidateURLStrict validates a URL from untrusted content and returns it
// unchanged. Allowed: http, https, scheme-less relative URLs, and the
// literal about:blank placeholder. Everything else - javascript:, data:,
// vbscript:, file:, and any scheme not on the allow-list - is rejected.
func ValidateURLStrict(s string) (string, error) {
	if s == "" || hasControlOrNull(s) {
		return "", errors.ErrUnsafeURL(s)
	}
	if s == "about:blank" {
		return s, nil
	}

	parsed, err := url.Parse(s)
	if err != nil {
		return "", errors.ErrUnsafeURL(s)
	}

	if parsed.Scheme == "" {
		return s, nil
	}
	if !allowedSchemes[strings.ToLower(parsed.Scheme)] {
		return "", errors.ErrUnsafeURL(s)
	}

	return s, nil
}

// allowedImageExtensions is the extension allow-list for referenced images.
var allowedImageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".gif":  true,
	".svg":  true,
	".ico":  true,
}

// ValidateImagePath validates an image reference from untrusted content:
// the path must stay inside base and carry an allow-listed image
// extension. Returns the resolved absolute path.
func ValidateImagePath(s, base string) (string, error) {
	resolved, err := ValidateSafePath(base, s)
	if err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(resolved))
	if !allowedImageExtensions[ext] {
		return "", errors.ErrInvalidImageType(s)
	}

	return resolved, nil
}

// fallbackFilename is used when sanitization leaves nothing usable.
const fallbackFilename = "unnamed"

// SanitizeFilename produces a safe single filename from an untrusted
// string: path separators, null bytes, and control characters are removed,
// and an empty remainder collapses to a fallback name.
func SanitizeFilename(s string) string {
	cleaned := stripControlAndNull(s)
	cleaned = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':':
			return -1
		}
		return r
	}, cleaned)
	cleaned = strings.Trim(cleaned, ". ")

	if cleaned == "" || cleaned == ".." {
		return fallbackFilename
	}

	return cleaned
}

// ValidateDirExists checks a directory configured for a site actually
// exists. Used by the Init phase.
func ValidateDirExists(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.NewIOError(errors.ErrCodeSiteInitFailure, "directory not found: "+path, err)
	}
	if !info.IsDir() {
		return errors.NewConfigError(errors.ErrCodeSiteInitFailure, "not a directory: "+path)
	}

	return nil
}

func hasControlOrNull(s string) bool {
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return true
		}
	}

	return false
}

func stripControlAndNull(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= 0x20 && r != 0x7f {
			b.WriteRune(r)
		}
	}

	return strings.TrimSpace(b.String())
}
