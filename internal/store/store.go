// Package store defines the realtime store contract consumed by the session
// engine: per room one room document, one participant collection keyed by
// participant id, one append-only chat collection ordered by timestamp, and
// an atomic multi-document batch write.
package store

import (
	"context"
	"errors"

	"github.com/djamnbo/dnd-master-club/internal/models"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("store: document not found")

// deleteField is an unexported marker type so DeleteField cannot collide with
// a real field value.
type deleteField struct{}

// DeleteField is the sentinel value for removing a field in an update map.
// Implementations translate it to their native delete primitive.
var DeleteField = deleteField{}

// Room document field names used in update maps.
const (
	FieldStatus       = "status"
	FieldActiveRoll   = "activeRoll"
	FieldCurrentScene = "currentScene"
)

// Participant document field names used in update maps.
const (
	FieldReady   = "ready"
	FieldChoices = "choices"
)

// Batch accumulates writes across the room document, participant documents
// and the chat log, and commits them atomically: either every accumulated
// write becomes visible or none does.
type Batch interface {
	UpdateRoom(fields map[string]interface{})
	UpdateParticipant(participantID string, fields map[string]interface{})
	AppendChat(msg models.ChatMessage)
	Commit(ctx context.Context) error
}

// RealtimeStore is the external push/storage collaborator. Individual writes
// are field-level last-write-wins with no version tokens; concurrent writers
// touching the same field race and the backend's last observed write wins.
//
// Watch channels deliver authoritative snapshots, never deltas. The chat
// watch is ordered by ascending timestamp; the room and participant watches
// carry no ordering guarantee relative to each other or to the chat watch.
// Every watch emits the current state as its first event and is closed when
// the supplied context is cancelled.
type RealtimeStore interface {
	CreateRoom(ctx context.Context, room models.Room) error
	GetRoom(ctx context.Context, roomID string) (*models.Room, error)
	UpdateRoom(ctx context.Context, roomID string, fields map[string]interface{}) error

	SetParticipant(ctx context.Context, roomID string, p models.Participant) error
	UpdateParticipant(ctx context.Context, roomID, participantID string, fields map[string]interface{}) error
	DeleteParticipant(ctx context.Context, roomID, participantID string) error
	ListParticipants(ctx context.Context, roomID string) ([]models.Participant, error)

	AppendChat(ctx context.Context, roomID string, msg models.ChatMessage) error

	NewBatch(roomID string) Batch

	WatchRoom(ctx context.Context, roomID string) (<-chan models.Room, error)
	WatchParticipants(ctx context.Context, roomID string) (<-chan []models.Participant, error)
	WatchChat(ctx context.Context, roomID string) (<-chan []models.ChatMessage, error)

	Close() error
}
