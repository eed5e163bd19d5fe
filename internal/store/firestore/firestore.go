// Package firestore implements the realtime store contract on Cloud
// Firestore: document snapshot listeners for the push streams, field deletes
// via the firestore.Delete sentinel, and WriteBatch for the reconciler's
// atomic multi-document commit.
package firestore

import (
	"context"
	"fmt"

	cfirestore "cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/djamnbo/dnd-master-club/internal/models"
	"github.com/djamnbo/dnd-master-club/internal/store"
)

const (
	roomsCollection        = "rooms"
	participantsCollection = "participants"
	messagesCollection     = "messages"
	timestampField         = "timestamp"
)

// Compile-time check that Store implements the RealtimeStore contract.
var _ store.RealtimeStore = (*Store)(nil)

// Store is a Cloud Firestore backed realtime store.
type Store struct {
	client *cfirestore.Client
	logger *zap.Logger
}

// New connects to Firestore through the Firebase SDK. credentialsFile may be
// empty, in which case application default credentials are used.
func New(ctx context.Context, projectID, credentialsFile string, logger *zap.Logger) (*Store, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return &Store{client: client, logger: logger.Named("FirestoreStore")}, nil
}

func (s *Store) roomDoc(roomID string) *cfirestore.DocumentRef {
	return s.client.Collection(roomsCollection).Doc(roomID)
}

func (s *Store) participantDoc(roomID, participantID string) *cfirestore.DocumentRef {
	return s.roomDoc(roomID).Collection(participantsCollection).Doc(participantID)
}

func (s *Store) messageDoc(roomID, messageID string) *cfirestore.DocumentRef {
	return s.roomDoc(roomID).Collection(messagesCollection).Doc(messageID)
}

// CreateRoom writes the room document. Fails if the document already exists.
func (s *Store) CreateRoom(ctx context.Context, room models.Room) error {
	if _, err := s.roomDoc(room.ID).Create(ctx, room); err != nil {
		return fmt.Errorf("failed to create room %s: %w", room.ID, err)
	}
	return nil
}

// GetRoom performs a point read of the room document.
func (s *Store) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	snap, err := s.roomDoc(roomID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read room %s: %w", roomID, err)
	}
	var room models.Room
	if err := snap.DataTo(&room); err != nil {
		return nil, fmt.Errorf("failed to decode room %s: %w", roomID, err)
	}
	return &room, nil
}

// UpdateRoom applies a field-level update to the room document.
func (s *Store) UpdateRoom(ctx context.Context, roomID string, fields map[string]interface{}) error {
	if _, err := s.roomDoc(roomID).Update(ctx, toUpdates(fields)); err != nil {
		if status.Code(err) == codes.NotFound {
			return store.ErrNotFound
		}
		return fmt.Errorf("failed to update room %s: %w", roomID, err)
	}
	return nil
}

// SetParticipant writes a whole participant document (point write).
func (s *Store) SetParticipant(ctx context.Context, roomID string, p models.Participant) error {
	if _, err := s.participantDoc(roomID, p.ID).Set(ctx, p); err != nil {
		return fmt.Errorf("failed to write participant %s: %w", p.ID, err)
	}
	return nil
}

// UpdateParticipant applies a field-level update to one participant document.
func (s *Store) UpdateParticipant(ctx context.Context, roomID, participantID string, fields map[string]interface{}) error {
	if _, err := s.participantDoc(roomID, participantID).Update(ctx, toUpdates(fields)); err != nil {
		if status.Code(err) == codes.NotFound {
			return store.ErrNotFound
		}
		return fmt.Errorf("failed to update participant %s: %w", participantID, err)
	}
	return nil
}

// DeleteParticipant removes a participant document.
func (s *Store) DeleteParticipant(ctx context.Context, roomID, participantID string) error {
	if _, err := s.participantDoc(roomID, participantID).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete participant %s: %w", participantID, err)
	}
	return nil
}

// ListParticipants reads the current participant collection.
func (s *Store) ListParticipants(ctx context.Context, roomID string) ([]models.Participant, error) {
	iter := s.roomDoc(roomID).Collection(participantsCollection).Documents(ctx)
	defer iter.Stop()
	return decodeParticipants(iter)
}

// AppendChat appends one message document to the room chat log.
func (s *Store) AppendChat(ctx context.Context, roomID string, msg models.ChatMessage) error {
	if _, err := s.messageDoc(roomID, msg.ID).Create(ctx, msg); err != nil {
		return fmt.Errorf("failed to append chat message %s: %w", msg.ID, err)
	}
	return nil
}

// WatchRoom streams room document snapshots.
func (s *Store) WatchRoom(ctx context.Context, roomID string) (<-chan models.Room, error) {
	out := make(chan models.Room, 16)
	snaps := s.roomDoc(roomID).Snapshots(ctx)
	go func() {
		defer close(out)
		defer snaps.Stop()
		for {
			snap, err := snaps.Next()
			if err != nil {
				if status.Code(err) != codes.Canceled {
					s.logger.Warn("room snapshot stream ended", zap.String("roomID", roomID), zap.Error(err))
				}
				return
			}
			if !snap.Exists() {
				continue
			}
			var room models.Room
			if err := snap.DataTo(&room); err != nil {
				s.logger.Error("failed to decode room snapshot", zap.String("roomID", roomID), zap.Error(err))
				continue
			}
			out <- room
		}
	}()
	return out, nil
}

// WatchParticipants streams whole-collection participant snapshots.
func (s *Store) WatchParticipants(ctx context.Context, roomID string) (<-chan []models.Participant, error) {
	out := make(chan []models.Participant, 16)
	snaps := s.roomDoc(roomID).Collection(participantsCollection).Snapshots(ctx)
	go func() {
		defer close(out)
		defer snaps.Stop()
		for {
			snap, err := snaps.Next()
			if err != nil {
				if status.Code(err) != codes.Canceled {
					s.logger.Warn("participant snapshot stream ended", zap.String("roomID", roomID), zap.Error(err))
				}
				return
			}
			participants, err := decodeParticipants(snap.Documents)
			if err != nil {
				s.logger.Error("failed to decode participant snapshot", zap.String("roomID", roomID), zap.Error(err))
				continue
			}
			out <- participants
		}
	}()
	return out, nil
}

// WatchChat streams chat log snapshots ordered by ascending timestamp.
func (s *Store) WatchChat(ctx context.Context, roomID string) (<-chan []models.ChatMessage, error) {
	out := make(chan []models.ChatMessage, 16)
	query := s.roomDoc(roomID).Collection(messagesCollection).OrderBy(timestampField, cfirestore.Asc)
	snaps := query.Snapshots(ctx)
	go func() {
		defer close(out)
		defer snaps.Stop()
		for {
			snap, err := snaps.Next()
			if err != nil {
				if status.Code(err) != codes.Canceled {
					s.logger.Warn("chat snapshot stream ended", zap.String("roomID", roomID), zap.Error(err))
				}
				return
			}
			messages, err := decodeMessages(snap.Documents)
			if err != nil {
				s.logger.Error("failed to decode chat snapshot", zap.String("roomID", roomID), zap.Error(err))
				continue
			}
			out <- messages
		}
	}()
	return out, nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// --- batch ---

type fsBatch struct {
	store  *Store
	roomID string
	ops    []func(b *cfirestore.WriteBatch)
}

// NewBatch starts an atomic write batch for one room.
func (s *Store) NewBatch(roomID string) store.Batch {
	return &fsBatch{store: s, roomID: roomID}
}

func (b *fsBatch) UpdateRoom(fields map[string]interface{}) {
	doc := b.store.roomDoc(b.roomID)
	updates := toUpdates(fields)
	b.ops = append(b.ops, func(wb *cfirestore.WriteBatch) {
		wb.Update(doc, updates)
	})
}

func (b *fsBatch) UpdateParticipant(participantID string, fields map[string]interface{}) {
	doc := b.store.participantDoc(b.roomID, participantID)
	updates := toUpdates(fields)
	b.ops = append(b.ops, func(wb *cfirestore.WriteBatch) {
		wb.Update(doc, updates)
	})
}

func (b *fsBatch) AppendChat(msg models.ChatMessage) {
	doc := b.store.messageDoc(b.roomID, msg.ID)
	b.ops = append(b.ops, func(wb *cfirestore.WriteBatch) {
		wb.Create(doc, msg)
	})
}

func (b *fsBatch) Commit(ctx context.Context) error {
	wb := b.store.client.Batch()
	for _, op := range b.ops {
		op(wb)
	}
	if _, err := wb.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit batch for room %s: %w", b.roomID, err)
	}
	return nil
}

// --- helpers ---

// toUpdates converts a field map to firestore updates, translating the
// store-level delete sentinel to firestore.Delete.
func toUpdates(fields map[string]interface{}) []cfirestore.Update {
	updates := make([]cfirestore.Update, 0, len(fields))
	for path, value := range fields {
		if value == store.DeleteField {
			value = cfirestore.Delete
		}
		updates = append(updates, cfirestore.Update{Path: path, Value: value})
	}
	return updates
}

type documentIterator interface {
	Next() (*cfirestore.DocumentSnapshot, error)
}

func decodeParticipants(iter documentIterator) ([]models.Participant, error) {
	var out []models.Participant
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		var p models.Participant
		if err := doc.DataTo(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
}

func decodeMessages(iter documentIterator) ([]models.ChatMessage, error) {
	var out []models.ChatMessage
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		var msg models.ChatMessage
		if err := doc.DataTo(&msg); err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
}
