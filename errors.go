package loopclosure

import (
	"errors"
	"fmt"

	"github.com/roboswarm/loopclosure/vlc"
)

var (
	// ErrClosed is returned by operations on a closed Service.
	ErrClosed = errors.New("service closed")

	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("service already started")

	// ErrNilTransport is returned when New is given a nil transport.
	ErrNilTransport = errors.New("transport must not be nil")

	// ErrNilFrameService is returned when New is given a nil local frame
	// service.
	ErrNilFrameService = errors.New("local frame service must not be nil")
)

// ErrInvalidConfig indicates a missing or out-of-range configuration key.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrInvalidConfig struct {
	Key    string
	Reason string
	cause  error
}

func (e *ErrInvalidConfig) Error() string {
	return fmt.Sprintf("invalid config %q: %s", e.Key, e.Reason)
}

func (e *ErrInvalidConfig) Unwrap() error { return e.cause }

// ErrBowIngest indicates a BoW message rejected at ingest: a robot id
// outside the ids this instance is responsible for, a vector with a word
// outside the vocabulary, or an out-of-sequence pose for our own
// trajectory. Rejected messages are logged and dropped.
type ErrBowIngest struct {
	Robot  uint16
	Pose   uint32
	Reason string
}

func (e *ErrBowIngest) Error() string {
	return fmt.Sprintf("bow ingest rejected for (%d,%d): %s", e.Robot, e.Pose, e.Reason)
}

// ErrLocalFrameUnavailable indicates the VIO front end could not serve a
// frame this tick. The fetch is retried on the next tick.
type ErrLocalFrameUnavailable struct {
	Vertex vlc.VertexID
	cause  error
}

func (e *ErrLocalFrameUnavailable) Error() string {
	return fmt.Sprintf("local frame %s unavailable", e.Vertex)
}

func (e *ErrLocalFrameUnavailable) Unwrap() error { return e.cause }
