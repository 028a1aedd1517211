// Completion: 100% - Error handling complete, clear and helpful messages
package diag

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors, one per category, for errors.Is
var (
	ErrUnsupportedFeature = errors.New("unsupported feature")
	ErrAllocation         = errors.New("register allocation failed")
	ErrEncoding           = errors.New("encoding precondition violated")
	ErrUnimplemented      = errors.New("unimplemented generation path")
	ErrConfig             = errors.New("invalid configuration")
)

// ErrorLevel indicates the severity of an error
type ErrorLevel int

const (
	LevelWarning ErrorLevel = iota
	LevelError
	LevelFatal
)

func (l ErrorLevel) String() string {
	switch l {
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal error"
	default:
		return "unknown"
	}
}

// ErrorCategory classifies the type of error
type ErrorCategory int

const (
	CategoryUnsupported ErrorCategory = iota
	CategoryAllocation
	CategoryEncoding
	CategoryUnimplemented
	CategoryConfig
)

func (c ErrorCategory) String() string {
	switch c {
	case CategoryUnsupported:
		return "unsupported"
	case CategoryAllocation:
		return "allocation"
	case CategoryEncoding:
		return "encoding"
	case CategoryUnimplemented:
		return "unimplemented"
	case CategoryConfig:
		return "config"
	default:
		return "unknown"
	}
}

func (c ErrorCategory) sentinel() error {
	switch c {
	case CategoryUnsupported:
		return ErrUnsupportedFeature
	case CategoryAllocation:
		return ErrAllocation
	case CategoryEncoding:
		return ErrEncoding
	case CategoryUnimplemented:
		return ErrUnimplemented
	case CategoryConfig:
		return ErrConfig
	default:
		return nil
	}
}

// NoIndex marks an unset instruction index or register in a Location
const NoIndex = -1

// Location identifies where in a kernel variant an error arose
type Location struct {
	Kernel      string
	Variant     string // short form of the generation context id
	Generation  string
	Instruction int   // index in the instruction stream, or NoIndex
	Register    int64 // virtual register, or NoIndex
}

// Nowhere is a Location with no instruction and no register
func Nowhere() Location {
	return Location{Instruction: NoIndex, Register: NoIndex}
}

func (loc Location) String() string {
	var parts []string
	if loc.Kernel != "" {
		parts = append(parts, "kernel "+loc.Kernel)
	}
	if loc.Generation != "" {
		parts = append(parts, loc.Generation)
	}
	if loc.Variant != "" {
		parts = append(parts, "variant "+loc.Variant)
	}
	if loc.Instruction >= 0 {
		parts = append(parts, fmt.Sprintf("instruction %d", loc.Instruction))
	}
	if loc.Register >= 0 {
		parts = append(parts, fmt.Sprintf("register %%%d", loc.Register))
	}
	if len(parts) == 0 {
		return "<backend>"
	}
	return strings.Join(parts, ", ")
}

// ErrorContext provides additional context for an error
type ErrorContext struct {
	Suggestion string
	HelpText   string
}

// CompilerError represents a single fatal backend diagnostic
type CompilerError struct {
	Level    ErrorLevel
	Category ErrorCategory
	Message  string
	Location Location
	Context  ErrorContext
}

// Error implements the error interface
func (e CompilerError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Location, e.Category, e.Message)
}

// Unwrap exposes the category sentinel
func (e CompilerError) Unwrap() error {
	return e.Category.sentinel()
}

// Format returns a multi-line message with location and hints
func (e CompilerError) Format(useColor bool) string {
	var sb strings.Builder

	if useColor {
		sb.WriteString("\033[1;31m")
	}
	sb.WriteString(e.Level.String())
	sb.WriteString(": ")
	if useColor {
		sb.WriteString("\033[0m")
	}
	sb.WriteString(e.Message)
	sb.WriteString("\n")

	if useColor {
		sb.WriteString("\033[1;34m")
	}
	sb.WriteString("  --> ")
	sb.WriteString(e.Location.String())
	if useColor {
		sb.WriteString("\033[0m")
	}
	sb.WriteString("\n")

	if e.Context.Suggestion != "" {
		if useColor {
			sb.WriteString("\033[1;32m")
		}
		sb.WriteString("   help: ")
		if useColor {
			sb.WriteString("\033[0m")
		}
		sb.WriteString(e.Context.Suggestion)
		sb.WriteString("\n")
	}

	if e.Context.HelpText != "" {
		if useColor {
			sb.WriteString("\033[1;36m")
		}
		sb.WriteString("   note: ")
		if useColor {
			sb.WriteString("\033[0m")
		}
		sb.WriteString(e.Context.HelpText)
		sb.WriteString("\n")
	}

	return sb.String()
}

// WithLocation returns a copy of err with unset location fields filled from loc.
// Errors that are not CompilerErrors are wrapped as internal encoding errors.
func WithLocation(err error, loc Location) error {
	if err == nil {
		return nil
	}
	var ce CompilerError
	if !errors.As(err, &ce) {
		ce = CompilerError{
			Level:    LevelFatal,
			Category: CategoryEncoding,
			Message:  err.Error(),
			Location: Nowhere(),
		}
	}
	if ce.Location.Kernel == "" {
		ce.Location.Kernel = loc.Kernel
	}
	if ce.Location.Variant == "" {
		ce.Location.Variant = loc.Variant
	}
	if ce.Location.Generation == "" {
		ce.Location.Generation = loc.Generation
	}
	if ce.Location.Instruction < 0 {
		ce.Location.Instruction = loc.Instruction
	}
	if ce.Location.Register < 0 {
		ce.Location.Register = loc.Register
	}
	return ce
}

func newError(cat ErrorCategory, format string, args ...any) CompilerError {
	return CompilerError{
		Level:    LevelFatal,
		Category: cat,
		Message:  fmt.Sprintf(format, args...),
		Location: Nowhere(),
	}
}

// Unsupported reports a feature the target generation lacks
func Unsupported(feature, gen string) CompilerError {
	e := newError(CategoryUnsupported, "%s is not supported on %s", feature, gen)
	e.Location.Generation = gen
	return e
}

// Allocation reports an allocation failure for a virtual register
func Allocation(reg int64, format string, args ...any) CompilerError {
	e := newError(CategoryAllocation, format, args...)
	e.Location.Register = reg
	return e
}

// Encoding reports an operand that breaks an encoder precondition
func Encoding(format string, args ...any) CompilerError {
	return newError(CategoryEncoding, format, args...)
}

// Unimplemented reports a width or opcode combination with no code path
func Unimplemented(format string, args ...any) CompilerError {
	return newError(CategoryUnimplemented, format, args...)
}

// Config reports invalid options
func Config(format string, args ...any) CompilerError {
	return newError(CategoryConfig, format, args...)
}

// WithHelp attaches a note to the error
func (e CompilerError) WithHelp(help string) CompilerError {
	e.Context.HelpText = help
	return e
}

// WithSuggestion attaches a suggestion to the error
func (e CompilerError) WithSuggestion(s string) CompilerError {
	e.Context.Suggestion = s
	return e
}

// AtInstruction sets the instruction index
func (e CompilerError) AtInstruction(idx int) CompilerError {
	e.Location.Instruction = idx
	return e
}
