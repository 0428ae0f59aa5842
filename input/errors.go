// errors.go defines the error kinds surfaced by the input pump.

package input

import (
	"errors"
	"fmt"
)

// ErrNoUsableStream is returned by the constructor when neither a video
// nor an audio decoder could be initialized.
var ErrNoUsableStream = errors.New("no video or audio stream could be opened")

// OpenError means the container could not be opened at all.
type OpenError struct {
	Filename string
	APIName  string
	Err      error
}

func (e OpenError) Error() string {
	return fmt.Sprintf("unable to open input '%s' (%s): %v", e.Filename, e.APIName, e.Err)
}

func (e OpenError) Unwrap() error {
	return e.Err
}

// StreamInfoError means no stream metadata is recoverable from the
// container.
type StreamInfoError struct {
	Filename string
	APIName  string
	Err      error
}

func (e StreamInfoError) Error() string {
	return fmt.Sprintf("unable to get stream info of '%s' (%s): %v", e.Filename, e.APIName, e.Err)
}

func (e StreamInfoError) Unwrap() error {
	return e.Err
}

// SeekError is a non-fatal seek failure; it terminates the pump only
// when it prevents a loop wrap.
type SeekError struct {
	StreamIndex int
	Timestamp   int64
	Err         error
}

func (e SeekError) Error() string {
	return fmt.Sprintf("unable to seek stream #%d to %d: %v", e.StreamIndex, e.Timestamp, e.Err)
}

func (e SeekError) Unwrap() error {
	return e.Err
}
