package session

import "errors"

var (
	// ErrAuthRequired indicates no identity is bound to the operation.
	ErrAuthRequired = errors.New("session: authentication required")

	// ErrRoomNotFound indicates the requested room does not exist.
	ErrRoomNotFound = errors.New("session: room not found")

	// ErrRoomFull indicates the room already holds the maximum number of
	// participants.
	ErrRoomFull = errors.New("session: room is full")

	// ErrNoRoom indicates the session is not joined to any room.
	ErrNoRoom = errors.New("session: not joined to a room")

	// ErrNotHost indicates a host-only operation was attempted by a
	// non-host participant.
	ErrNotHost = errors.New("session: operation restricted to the host")

	// ErrNoActiveRoll indicates ResolveRoll was called while no dice check
	// is pending.
	ErrNoActiveRoll = errors.New("session: no active roll to resolve")
)
