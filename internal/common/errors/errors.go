package errors

import (
	"errors"
	"fmt"
)

var (
	// General Errors
	ErrInvalidArgument = errors.New("invalid argument")
	ErrConfigInvalid   = errors.New("invalid configuration")

	// Buffer Errors
	ErrOutOfRange = errors.New("access out of range")

	// UF2 Errors
	ErrEncode        = errors.New("uf2 encode error")
	ErrInvalidMagic  = errors.New("invalid magic number")
	ErrInvalidBlock  = errors.New("invalid uf2 block")
	ErrUnknownFamily = errors.New("unknown board family")
	ErrFlashOverflow = errors.New("image exceeds device flash")

	// Deduplication Errors
	ErrMappingOverflow = errors.New("chunk mapping exceeds header capacity")
	ErrChunkRemainder  = errors.New("rom size is not a multiple of the chunk size")
	ErrInvalidHeader   = errors.New("invalid picocart header")
	ErrByteOrder       = errors.New("rom is not in big-endian z64 byte order")
	ErrBytesDropped    = errors.New("trailing rom bytes dropped")

	// Checksum Errors
	ErrDigestUnavailable = errors.New("digest unavailable")
	ErrInvalidHasher     = errors.New("invalid hasher")
	ErrChecksumMismatch  = errors.New("checksum mismatch")

	// Compression Errors
	ErrUnsupportedCompression = errors.New("unsupported compression format")
	ErrCompressionFailed      = errors.New("compression failed")
	ErrDecompressionFailed    = errors.New("decompression failed")

	// File Errors
	ErrFileNotFound   = errors.New("file not found")
	ErrFileReadError  = errors.New("error reading file")
	ErrFileWriteError = errors.New("error writing to file")

	// Workflow Errors
	ErrStepFailed = errors.New("workflow step failed")
)

// OpError carries the operation and object an error occurred on
type OpError struct {
	Err       error  // The underlying error
	Operation string // The operation that caused the error
	Object    string // The buffer, block or file the operation was performed on
	Detail    string // Additional details about the error
}

// Error implements the error interface
func (e *OpError) Error() string {
	if e.Object != "" && e.Detail != "" {
		return fmt.Sprintf("%s: %s [%s]: %v", e.Operation, e.Object, e.Detail, e.Err)
	} else if e.Object != "" {
		return fmt.Sprintf("%s: %s: %v", e.Operation, e.Object, e.Err)
	} else if e.Detail != "" {
		return fmt.Sprintf("%s: %v [%s]", e.Operation, e.Err, e.Detail)
	}
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error
func (e *OpError) Unwrap() error {
	return e.Err
}

// NewOpError creates a new OpError with the given details
func NewOpError(err error, operation string, object string, detail string) error {
	return &OpError{
		Err:       err,
		Operation: operation,
		Object:    object,
		Detail:    detail,
	}
}

// IsOutOfRange returns true if the error is a buffer bounds violation
func IsOutOfRange(err error) bool {
	return errors.Is(err, ErrOutOfRange)
}

// IsEncodeError returns true if the error came from UF2 block encoding
func IsEncodeError(err error) bool {
	return errors.Is(err, ErrEncode)
}

// IsAdvisory returns true for conditions that are reported but need not stop output generation
func IsAdvisory(err error) bool {
	return errors.Is(err, ErrFlashOverflow) ||
		errors.Is(err, ErrDigestUnavailable) ||
		errors.Is(err, ErrByteOrder) ||
		errors.Is(err, ErrBytesDropped)
}
