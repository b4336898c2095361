package tractio

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrUnsupportedFormat is returned for unknown file extensions and for recognised
	// but unimplemented variants (e.g. an .npz entry holding a stack of arrays)
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrTruncatedInput is returned when the data ends before a declared/derived record boundary
	ErrTruncatedInput = errors.New("truncated input")
	// ErrMalformedHeader is returned for missing or unparseable header keys/sections
	ErrMalformedHeader = errors.New("malformed header")
	// ErrUnsupportedDatatype is returned for .tck datatypes other than Float32LE/Float32BE
	ErrUnsupportedDatatype = errors.New("unsupported datatype")
	// ErrMalformedRecord is returned for a malformed record or token inside the data body
	ErrMalformedRecord = errors.New("malformed record")
)

// DecodeError is the error returned by all decoders
//
// use errors.Is with the Err... sentinels to determine the kind of failure
type DecodeError struct {
	// File is the path/url of the file being decoded (empty when decoding raw bytes)
	File string
	// Format is the format being decoded
	Format Format
	// Construct identifies the offending construct (e.g. "record 3", "header key 'file'")
	Construct string
	// Err is the underlying error (wraps one of the Err... sentinels)
	Err error
}

func (e *DecodeError) Error() string {
	msg := ""
	if e.File != "" {
		msg = e.File + ": "
	}
	if e.Format != "" {
		msg += string(e.Format) + " "
	}
	if e.Construct != "" {
		msg += e.Construct + ": "
	}
	return msg + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func decodeError(format Format, kind error, construct string, msg string, args ...any) error {
	return &DecodeError{
		Format:    format,
		Construct: construct,
		Err:       fmt.Errorf("%w: "+msg, append([]any{kind}, args...)...),
	}
}

func withFile(err error, file string) error {
	var de *DecodeError
	if errors.As(err, &de) {
		if de.File == "" {
			de.File = file
		}
		return de
	}
	return &DecodeError{File: file, Err: err}
}

func recordConstruct(record int, offset int) string {
	return fmt.Sprintf("record %d at value offset %d", record, offset)
}

func lineConstruct(line int) string {
	return fmt.Sprintf("line %d", line)
}

var kinds = []error{ErrUnsupportedFormat, ErrTruncatedInput, ErrMalformedHeader, ErrUnsupportedDatatype, ErrMalformedRecord}

// wrapDecodeError wraps an error from a collaborator (e.g. the npy reader) as a DecodeError,
// keeping its kind if it already has one
func wrapDecodeError(format Format, construct string, err error) error {
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return &DecodeError{Format: format, Construct: construct, Err: err}
		}
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return decodeError(format, ErrTruncatedInput, construct, "%s", err.Error())
	}
	return decodeError(format, ErrMalformedRecord, construct, "%s", err.Error())
}
