// Package errors provides structured error types for the build engine.
//
// Every rejection the pipeline produces carries a machine-readable code
// from the taxonomy below plus enough context (site, game, field) for the
// build report to point an operator at the offending source content.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeSecurity   ErrorType = "security"
	ErrorTypeContent    ErrorType = "content"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeBuild      ErrorType = "build"
	ErrorTypeCache      ErrorType = "cache"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// Taxonomy codes. The build report and exit-code logic key off these, so
// they are part of the public contract.
const (
	ErrCodeInvalidName        = "ERR_INVALID_NAME"
	ErrCodeUnsafePath         = "ERR_UNSAFE_PATH"
	ErrCodePathTraversal      = "ERR_PATH_TRAVERSAL"
	ErrCodeUnsafeURL          = "ERR_UNSAFE_URL"
	ErrCodeInvalidImageType   = "ERR_INVALID_IMAGE_TYPE"
	ErrCodeInvalidGameContent = "ERR_INVALID_GAME_CONTENT"
	ErrCodeRenderFailure      = "ERR_RENDER_FAILURE"
	ErrCodeOptimizeFailure    = "ERR_OPTIMIZE_FAILURE"
	ErrCodeCacheCorruption    = "ERR_CACHE_CORRUPTION"
	ErrCodeSiteInitFailure    = "ERR_SITE_INIT_FAILURE"
	ErrCodeQueueClosed        = "ERR_QUEUE_CLOSED"
	ErrCodeInternal           = "ERR_INTERNAL"
)

// ForgeError is a structured error with build context.
type ForgeError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Site        string
	Game        string
	Field       string
	Recoverable bool
}

// Error implements the error interface.
func (e *ForgeError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	if e.Site != "" {
		parts = append(parts, "site:"+e.Site)
	}
	if e.Game != "" {
		parts = append(parts, "game:"+e.Game)
	}
	if e.Field != "" {
		parts = append(parts, "field:"+e.Field)
	}

	parts = append(parts, e.Message)
	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *ForgeError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison on type and code.
func (e *ForgeError) Is(target error) bool {
	var t *ForgeError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithSite adds site context.
func (e *ForgeError) WithSite(site string) *ForgeError {
	e.Site = site

	return e
}

// WithGame adds game context.
func (e *ForgeError) WithGame(game string) *ForgeError {
	e.Game = game

	return e
}

// WithField adds the offending content field.
func (e *ForgeError) WithField(field string) *ForgeError {
	e.Field = field

	return e
}

// Error creation functions

// NewValidationError creates a validation error. Validation errors are
// recoverable: the offending record is dropped, the build continues.
func NewValidationError(code, message string) *ForgeError {
	return &ForgeError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewSecurityError creates a security error (traversal, unsafe URL).
func NewSecurityError(code, message string) *ForgeError {
	return &ForgeError{
		Type:        ErrorTypeSecurity,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewContentError creates a per-game content error.
func NewContentError(code, message string, cause error) *ForgeError {
	return &ForgeError{
		Type:        ErrorTypeContent,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewBuildError creates a build unit failure.
func NewBuildError(code, message string, cause error) *ForgeError {
	return &ForgeError{
		Type:        ErrorTypeBuild,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewCacheError creates a cache error. Cache corruption is recoverable by
// treating the affected fingerprint as a miss.
func NewCacheError(code, message string, cause error) *ForgeError {
	return &ForgeError{
		Type:        ErrorTypeCache,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewConfigError creates a site configuration error. Fatal for the site.
func NewConfigError(code, message string) *ForgeError {
	return &ForgeError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *ForgeError {
	return &ForgeError{
		Type:        ErrorTypeIO,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(message string, cause error) *ForgeError {
	return &ForgeError{
		Type:        ErrorTypeInternal,
		Code:        ErrCodeInternal,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// IsRecoverable reports whether the build may continue past err.
func IsRecoverable(err error) bool {
	var fe *ForgeError
	if errors.As(err, &fe) {
		return fe.Recoverable
	}

	return false
}

// CodeOf extracts the taxonomy code from err, or ERR_INTERNAL for plain
// errors wrapped by layers that do not annotate.
func CodeOf(err error) string {
	var fe *ForgeError
	if errors.As(err, &fe) {
		return fe.Code
	}

	return ErrCodeInternal
}

// Helper constructors for the common rejections.

// ErrInvalidName creates a site name validation error.
func ErrInvalidName(name string) *ForgeError {
	return NewValidationError(ErrCodeInvalidName, "invalid site name: "+name)
}

// ErrUnsafePath creates an unsafe path component error.
func ErrUnsafePath(path string) *ForgeError {
	return NewSecurityError(ErrCodeUnsafePath, "unsafe path: "+path)
}

// ErrPathTraversal creates a path traversal security error.
func ErrPathTraversal(path string) *ForgeError {
	return NewSecurityError(ErrCodePathTraversal, "path traversal attempt: "+path)
}

// ErrUnsafeURL creates an unsafe URL scheme error.
func ErrUnsafeURL(url string) *ForgeError {
	return NewSecurityError(ErrCodeUnsafeURL, "unsafe URL: "+url)
}

// ErrInvalidImageType creates an image extension allowlist error.
func ErrInvalidImageType(path string) *ForgeError {
	return NewValidationError(ErrCodeInvalidImageType, "invalid image type: "+path)
}

// ErrInvalidGameContent creates a required-field content error for a game.
func ErrInvalidGameContent(game, field string, cause error) *ForgeError {
	return NewContentError(
		ErrCodeInvalidGameContent,
		"invalid game content",
		cause,
	).WithGame(game).WithField(field)
}

// ErrSiteInit creates a fatal site initialization error.
func ErrSiteInit(site, message string) *ForgeError {
	return NewConfigError(ErrCodeSiteInitFailure, message).WithSite(site)
}
