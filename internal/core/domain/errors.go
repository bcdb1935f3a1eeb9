package domain

import (
	"errors"
	"fmt"
)

// ErrTerminating is returned by clients whose component is shutting down.
var ErrTerminating = errors.New("terminating")

// InvalidDestinationError reports a lookup miss in a destination table.
type InvalidDestinationError struct {
	Lambda      string
	Destination string
}

func (e *InvalidDestinationError) Error() string {
	return fmt.Sprintf("invalid destination %s for lambda %s", e.Destination, e.Lambda)
}

// NoDestinationsError reports that no candidate destination exists for a
// lambda.
type NoDestinationsError struct {
	Lambda string
}

func (e *NoDestinationsError) Error() string {
	return fmt.Sprintf("no destinations for lambda %s", e.Lambda)
}

// LoopDetectedError reports that the hop counter exceeded the forwarding
// ceiling.
type LoopDetectedError struct {
	Hops uint32
}

func (e *LoopDetectedError) Error() string {
	return fmt.Sprintf("loop detected after %d hops", e.Hops)
}

// RemoteError reports a non-OK return code from a remote server.
type RemoteError struct {
	RetCode string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote failure: %s", e.RetCode)
}

// TransportError wraps an error surfaced by the pluggable transport.
type TransportError struct {
	Destination string
	Err         error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure towards %s: %v", e.Destination, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StateMissingError reports a chain/DAG pre-condition violation: a required
// state was not supplied and could not be fetched.
type StateMissingError struct {
	Name string
}

func (e *StateMissingError) Error() string {
	return fmt.Sprintf("missing state: %s", e.Name)
}
