package redpacket

import "errors"

// Red packet errors.
var (
	// ErrInvalidParameters is returned when a packet cannot be partitioned as requested.
	ErrInvalidParameters = errors.New("invalid red packet parameters")

	// ErrNotFound is returned when no packet has the requested id.
	ErrNotFound = errors.New("red packet not found")

	// ErrNotActive is returned when the packet has expired.
	ErrNotActive = errors.New("red packet is no longer active")

	// ErrAlreadyClaimed is returned when the claimant already holds a share.
	ErrAlreadyClaimed = errors.New("already claimed")

	// ErrExhausted is returned when every share has been handed out.
	ErrExhausted = errors.New("all packets claimed")

	// ErrDuplicateID is returned when registering a packet whose id is taken.
	ErrDuplicateID = errors.New("red packet id already registered")

	// ErrBusy is returned when a claim cannot take the packet's lock in time.
	ErrBusy = errors.New("red packet is busy")
)
