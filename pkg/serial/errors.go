package serial

import "errors"

var (
	// ErrBusy indicates a receive is already outstanding on the channel.
	ErrBusy = errors.New("busy")
	// ErrTimeout indicates the transfer didn't complete within max wait.
	ErrTimeout = errors.New("timeout")
	// ErrClosed indicates the channel stopped running.
	ErrClosed = errors.New("closed")
	// ErrEmptyBuffer indicates a receive was requested with no room.
	ErrEmptyBuffer = errors.New("empty buffer")
)
