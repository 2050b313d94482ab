package cfb

import "fmt"

// ErrorKind identifies the failure class of a CFBError.
type ErrorKind int

const (
	// ErrTooSmall indicates input shorter than one header block.
	ErrTooSmall ErrorKind = iota
	// ErrUnsupportedFormat indicates ZIP input or an unsupported version pair.
	ErrUnsupportedFormat
	// ErrHeaderMismatch indicates a fixed header field failed validation.
	ErrHeaderMismatch
	// ErrInconsistentModel indicates FullPaths and FileIndex diverged.
	ErrInconsistentModel
	// ErrChainMalformed indicates a broken FAT, DIFAT or MiniFAT chain.
	ErrChainMalformed
)

// CFBError represents an error that occurred while reading or writing a
// compound file.
type CFBError struct {
	Kind    ErrorKind
	Message string
}

func (e *CFBError) Error() string {
	return e.Message
}

// NewCFBError creates a new CFBError with the given kind and message.
func NewCFBError(kind ErrorKind, format string, args ...interface{}) *CFBError {
	return &CFBError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
