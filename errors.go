package website

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRouteNotFound is returned when a path does not match any catalog entry.
	ErrRouteNotFound = errors.New("route not found")

	// ErrMachineClosed is returned for inputs sent to, or pending in, a closed Machine.
	ErrMachineClosed = errors.New("state machine closed")

	// ErrUnknownPage is returned when an input references a page that is not
	// part of the machine's catalog.
	ErrUnknownPage = errors.New("page is not in the catalog")
)

// ConfigurationError describes a defect in the page catalog, such as a
// section without children or two pages sharing a path.
type ConfigurationError struct {
	Page    PageID // Offending page, if any
	Message string // Error message
	Hint    string // Helpful suggestion
	Related string // Related information (e.g., "Page 'Forms' already uses /forms")
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return e.Format()
}

// Format returns a formatted, multi-line description of the error.
func (e *ConfigurationError) Format() string {
	var b strings.Builder

	if e.Page != "" {
		b.WriteString(fmt.Sprintf("❌ Configuration error in page %q\n\n", e.Page))
	} else {
		b.WriteString("❌ Configuration error\n\n")
	}

	b.WriteString(e.Message)
	b.WriteString("\n")

	if e.Hint != "" {
		b.WriteString(fmt.Sprintf("\n💡 Tip: %s\n", e.Hint))
	}

	if e.Related != "" {
		b.WriteString(fmt.Sprintf("\n🔗 %s\n", e.Related))
	}

	return b.String()
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(page PageID, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{
		Page:    page,
		Message: fmt.Sprintf(format, args...),
	}
}

// WithHint adds a helpful hint to the error.
func (e *ConfigurationError) WithHint(hint string) *ConfigurationError {
	e.Hint = hint
	return e
}

// WithRelated adds related information to the error.
func (e *ConfigurationError) WithRelated(related string) *ConfigurationError {
	e.Related = related
	return e
}

// ContentFetchError reports that the content of a page could not be loaded or
// rendered. The page is still shown, without content.
type ContentFetchError struct {
	Page PageID
	Path string // content path, e.g. "assets/md/getting-started/setting-up.md"
	Op   string // "fetch" or "render"
	Err  error
}

func (e *ContentFetchError) Error() string {
	return fmt.Sprintf("content for page %q (%s) %s failed: %v", e.Page, e.Path, e.Op, e.Err)
}

func (e *ContentFetchError) Unwrap() error {
	return e.Err
}

// SerializationError reports a state payload that could not be encoded or decoded.
type SerializationError struct {
	Reason string
	Err    error
}

func (e *SerializationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("state serialization: %s: %v", e.Reason, e.Err)
	}
	return "state serialization: " + e.Reason
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err contains a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}
