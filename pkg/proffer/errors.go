package proffer

import (
	"errors"
	"fmt"
)

// ErrNotUploaded is returned when a payload points at a file that wasn't produced
// by an HTTP upload. It's the client's fault.
var ErrNotUploaded = errors.New("file must be uploaded using HTTP post")

// MoveError is returned when an uploaded file can't be moved into place.
// Unlike ErrNotUploaded this is never the client's fault.
type MoveError struct {
	Src string
	Dst string
	Err error
}

func (e *MoveError) Error() string {
	return fmt.Sprintf("cannot move file %s to %s, %v", e.Src, e.Dst, e.Err)
}

func (e *MoveError) Unwrap() error {
	return e.Err
}

// IsClientError reports if err was caused by bad input
func IsClientError(err error) bool {
	return errors.Is(err, ErrNotUploaded)
}
