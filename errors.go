package iris

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrFilesystem         = errors.New("could not save data to filesystem")
	ErrRecordSizeExceeded = errors.New("record size exceeded")
	ErrPageSizeExceeded   = errors.New("page size exceeded")
	ErrCorruptedHeader    = errors.New("corrupted page header")
	ErrMalformedHeader    = errors.New("malformed page header")
	ErrCorruptedRecord    = errors.New("corrupted record")
	ErrCyclicReference    = errors.New("cyclic reference")
	ErrDuplicateReference = errors.New("duplicate reference name")
	ErrClosed             = errors.New("database closed")
)

// PageError describes a failure tied to a particular page file. Data, when
// set, is the offending byte range and is shown abbreviated.
type PageError struct {
	Graph string
	Pos   int
	Off   int
	Data  []byte
	Kind  error
	Err   error
	Msg   string
}

func pageErrf(graph string, pos int, kind, err error, format string, args ...any) *PageError {
	return &PageError{Graph: graph, Pos: pos, Off: -1, Kind: kind, Err: err, Msg: fmt.Sprintf(format, args...)}
}

func dataErrf(data []byte, off int, kind, err error, format string, args ...any) *PageError {
	return &PageError{Pos: -1, Off: off, Data: data, Kind: kind, Err: err, Msg: fmt.Sprintf(format, args...)}
}

func (e *PageError) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func (e *PageError) Error() string {
	var buf strings.Builder
	if e.Graph != "" {
		buf.WriteString(e.Graph)
		if e.Pos >= 0 {
			fmt.Fprintf(&buf, ".%d", e.Pos)
		}
		buf.WriteString(": ")
	}
	if e.Kind != nil {
		buf.WriteString(e.Kind.Error())
	}
	if e.Msg != "" {
		if e.Kind != nil {
			buf.WriteString(": ")
		}
		buf.WriteString(e.Msg)
	}
	if e.Off >= 0 {
		fmt.Fprintf(&buf, " at offset %d", e.Off)
	}
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	if e.Data != nil {
		const prefixLen = 64
		const suffixLen = 32
		n := len(e.Data)
		if n <= prefixLen+suffixLen {
			fmt.Fprintf(&buf, ": (%d) %x", n, e.Data)
		} else {
			fmt.Fprintf(&buf, ": (%d) %x...%x", n, e.Data[:prefixLen], e.Data[n-suffixLen:])
		}
	}
	return buf.String()
}

// withPage fills in the page location of errors raised by lower layers.
func withPage(err error, graph string, pos int) error {
	var pe *PageError
	if errors.As(err, &pe) && pe.Graph == "" {
		pe.Graph = graph
		pe.Pos = pos
	}
	return err
}

type DirectiveErrorKind int

const (
	MissingKey DirectiveErrorKind = iota
	ExpectedArray
	ExpectedObject
	InvalidValue
	UnknownDirective
	UnresolvedRef
	StorageFailure
	InternalFailure
)

func (k DirectiveErrorKind) String() string {
	switch k {
	case MissingKey:
		return "missing_key"
	case ExpectedArray:
		return "expected_array"
	case ExpectedObject:
		return "expected_object"
	case InvalidValue:
		return "invalid_value"
	case UnknownDirective:
		return "unknown_directive"
	case UnresolvedRef:
		return "unresolved_ref"
	case StorageFailure:
		return "storage"
	case InternalFailure:
		return "internal"
	default:
		return fmt.Sprintf("invalid kind %d", int(k))
	}
}

// DirectiveError is a per-statement failure. It is reported in the response's
// errors list and never aborts the rest of the request.
type DirectiveError struct {
	Kind DirectiveErrorKind
	Key  string
	Err  error
}

func missingKey(key string) *DirectiveError {
	return &DirectiveError{Kind: MissingKey, Key: key}
}

func invalidValue(key string, format string, args ...any) *DirectiveError {
	return &DirectiveError{Kind: InvalidValue, Key: key, Err: fmt.Errorf(format, args...)}
}

func storageFailure(err error) *DirectiveError {
	return &DirectiveError{Kind: StorageFailure, Err: err}
}

func (e *DirectiveError) Unwrap() error {
	return e.Err
}

func (e *DirectiveError) Error() string {
	if e.Err != nil {
		return e.Message() + ": " + e.Err.Error()
	}
	return e.Message()
}

func (e *DirectiveError) Message() string {
	switch e.Kind {
	case MissingKey:
		return "Missing required key: " + e.Key
	case ExpectedArray:
		return "Expected directive data to be an array"
	case ExpectedObject:
		return "Expected directive data to be an object"
	case InvalidValue:
		return "Invalid value for key: " + e.Key
	case UnknownDirective:
		return "Unknown directive"
	case UnresolvedRef:
		return "Unresolved reference: " + e.Key
	case StorageFailure:
		return "Could not save data to filesystem"
	default:
		return "Internal error"
	}
}

func (e *DirectiveError) Data() map[string]any {
	data := map[string]any{}
	switch e.Kind {
	case MissingKey, UnresolvedRef:
		data["key"] = e.Key
	case InvalidValue:
		data["key"] = e.Key
		if e.Err != nil {
			data["reason"] = e.Err.Error()
		}
	case StorageFailure:
		data["kind"] = storageKind(e.Err)
		if e.Err != nil {
			data["reason"] = e.Err.Error()
		}
	case InternalFailure:
		if e.Err != nil {
			data["reason"] = e.Err.Error()
		}
	}
	return data
}

func storageKind(err error) string {
	switch {
	case errors.Is(err, ErrRecordSizeExceeded):
		return "record_size_exceeded"
	case errors.Is(err, ErrPageSizeExceeded):
		return "page_size_exceeded"
	case errors.Is(err, ErrCorruptedHeader):
		return "corrupted_header"
	case errors.Is(err, ErrMalformedHeader):
		return "malformed_header"
	case errors.Is(err, ErrCorruptedRecord):
		return "corrupted_record"
	case errors.Is(err, ErrClosed):
		return "closed"
	default:
		return "filesystem"
	}
}

func asDirectiveError(err error) *DirectiveError {
	var de *DirectiveError
	if errors.As(err, &de) {
		return de
	}
	return &DirectiveError{Kind: InternalFailure, Err: err}
}
