package services

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnsatisfiableRange maps to 416 with "Content-Range: bytes */<size>".
var ErrUnsatisfiableRange = errors.New("range not satisfiable")

// UnsatisfiableRangeError carries the total size so the response can include
// "Content-Range: bytes */<size>".
type UnsatisfiableRangeError struct {
	Size int64
}

func (e *UnsatisfiableRangeError) Error() string { return ErrUnsatisfiableRange.Error() }

func (e *UnsatisfiableRangeError) Unwrap() error { return ErrUnsatisfiableRange }

// ByteRange is a resolved, inclusive byte window within an object.
type ByteRange struct {
	Start int64
	End   int64
}

func (r ByteRange) Length() int64 {
	return r.End - r.Start + 1
}

// Header renders the window as a Range request header value.
func (r ByteRange) Header() string {
	return fmt.Sprintf("bytes=%d-%d", r.Start, r.End)
}

// ContentRange renders the window as a Content-Range response header value.
func (r ByteRange) ContentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, size)
}

// ResolveRange parses a Range header against a known total size. A nil range
// with nil error means full content was requested. Multipart ranges are not
// supported and resolve as unsatisfiable.
func ResolveRange(header string, size int64) (*ByteRange, error) {
	if header == "" {
		return nil, nil
	}

	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok || strings.Contains(spec, ",") {
		return nil, ErrUnsatisfiableRange
	}

	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok {
		return nil, ErrUnsatisfiableRange
	}

	// Suffix form "-N": the final N bytes.
	if startStr == "" {
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || n <= 0 {
			return nil, ErrUnsatisfiableRange
		}
		if n > size {
			n = size
		}
		return &ByteRange{Start: size - n, End: size - 1}, nil
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 || start >= size {
		return nil, ErrUnsatisfiableRange
	}

	end := size - 1
	if endStr != "" {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil || end < start {
			return nil, ErrUnsatisfiableRange
		}
		if end > size-1 {
			end = size - 1
		}
	}

	return &ByteRange{Start: start, End: end}, nil
}
