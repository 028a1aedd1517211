// Completion: 100% - Collector complete
package diag

import (
	"fmt"
	"io"
	"strings"
)

// ErrorCollector accumulates diagnostics for one kernel variant
type ErrorCollector struct {
	errors    []CompilerError
	warnings  []CompilerError
	maxErrors int
}

// NewErrorCollector creates a new error collector
func NewErrorCollector(maxErrors int) *ErrorCollector {
	if maxErrors <= 0 {
		maxErrors = 10
	}
	return &ErrorCollector{maxErrors: maxErrors}
}

// AddError records a diagnostic by level
func (ec *ErrorCollector) AddError(err CompilerError) {
	if err.Level == LevelWarning {
		ec.warnings = append(ec.warnings, err)
		return
	}
	if len(ec.errors) < ec.maxErrors {
		ec.errors = append(ec.errors, err)
	}
}

// Warnf records a warning
func (ec *ErrorCollector) Warnf(loc Location, format string, args ...any) {
	ec.AddError(CompilerError{
		Level:    LevelWarning,
		Category: CategoryConfig,
		Message:  fmt.Sprintf(format, args...),
		Location: loc,
	})
}

// HasErrors reports whether any non-warning diagnostic was recorded
func (ec *ErrorCollector) HasErrors() bool {
	return len(ec.errors) > 0
}

// Errors returns the recorded errors
func (ec *ErrorCollector) Errors() []CompilerError {
	return ec.errors
}

// Warnings returns the recorded warnings
func (ec *ErrorCollector) Warnings() []CompilerError {
	return ec.warnings
}

// Err returns the first error, or nil
func (ec *ErrorCollector) Err() error {
	if len(ec.errors) == 0 {
		return nil
	}
	return ec.errors[0]
}

// Report writes every diagnostic to w
func (ec *ErrorCollector) Report(w io.Writer, useColor bool) {
	for _, e := range ec.warnings {
		fmt.Fprint(w, e.Format(useColor))
	}
	for _, e := range ec.errors {
		fmt.Fprint(w, e.Format(useColor))
	}
	if n := len(ec.errors); n > 0 {
		fmt.Fprintf(w, "%s\n", summary(n, len(ec.warnings)))
	}
}

func summary(errs, warns int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "compilation failed: %d error", errs)
	if errs != 1 {
		sb.WriteString("s")
	}
	if warns > 0 {
		fmt.Fprintf(&sb, ", %d warning", warns)
		if warns != 1 {
			sb.WriteString("s")
		}
	}
	return sb.String()
}

// Clear drops all recorded diagnostics
func (ec *ErrorCollector) Clear() {
	ec.errors = ec.errors[:0]
	ec.warnings = ec.warnings[:0]
}
