// Package memory provides an in-process RealtimeStore. It backs local
// development and the engine's unit tests; semantics mirror the firestore
// implementation (authoritative snapshots, ordered chat, atomic batches).
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/djamnbo/dnd-master-club/internal/models"
	"github.com/djamnbo/dnd-master-club/internal/store"
)

// Compile-time check that Store implements the RealtimeStore contract.
var _ store.RealtimeStore = (*Store)(nil)

type roomState struct {
	room         models.Room
	participants map[string]models.Participant
	chat         []models.ChatMessage

	roomWatchers        map[chan models.Room]struct{}
	participantWatchers map[chan []models.Participant]struct{}
	chatWatchers        map[chan []models.ChatMessage]struct{}
}

// Store is an in-memory realtime store.
type Store struct {
	mu    sync.Mutex
	rooms map[string]*roomState
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{rooms: make(map[string]*roomState)}
}

// CreateRoom registers a new room document.
func (s *Store) CreateRoom(ctx context.Context, room models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room.ID]; ok {
		return fmt.Errorf("room %s already exists", room.ID)
	}
	s.rooms[room.ID] = &roomState{
		room:                room,
		participants:        make(map[string]models.Participant),
		roomWatchers:        make(map[chan models.Room]struct{}),
		participantWatchers: make(map[chan []models.Participant]struct{}),
		chatWatchers:        make(map[chan []models.ChatMessage]struct{}),
	}
	return nil
}

// GetRoom returns a copy of the room document.
func (s *Store) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, ok := s.rooms[roomID]
	if !ok {
		return nil, store.ErrNotFound
	}
	room := rs.room
	return &room, nil
}

// UpdateRoom applies a field-level update to the room document.
func (s *Store) UpdateRoom(ctx context.Context, roomID string, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, ok := s.rooms[roomID]
	if !ok {
		return store.ErrNotFound
	}
	if err := applyRoomFields(&rs.room, fields); err != nil {
		return err
	}
	rs.notifyRoom()
	return nil
}

// SetParticipant writes a whole participant document.
func (s *Store) SetParticipant(ctx context.Context, roomID string, p models.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, ok := s.rooms[roomID]
	if !ok {
		return store.ErrNotFound
	}
	rs.participants[p.ID] = p
	rs.notifyParticipants()
	return nil
}

// UpdateParticipant applies a field-level update to one participant document.
func (s *Store) UpdateParticipant(ctx context.Context, roomID, participantID string, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, ok := s.rooms[roomID]
	if !ok {
		return store.ErrNotFound
	}
	p, ok := rs.participants[participantID]
	if !ok {
		return store.ErrNotFound
	}
	if err := applyParticipantFields(&p, fields); err != nil {
		return err
	}
	rs.participants[participantID] = p
	rs.notifyParticipants()
	return nil
}

// DeleteParticipant removes a participant document.
func (s *Store) DeleteParticipant(ctx context.Context, roomID, participantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, ok := s.rooms[roomID]
	if !ok {
		return store.ErrNotFound
	}
	delete(rs.participants, participantID)
	rs.notifyParticipants()
	return nil
}

// ListParticipants returns a copy of the current participant set.
func (s *Store) ListParticipants(ctx context.Context, roomID string) ([]models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, ok := s.rooms[roomID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return rs.participantList(), nil
}

// AppendChat appends one message to the room chat log.
func (s *Store) AppendChat(ctx context.Context, roomID string, msg models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, ok := s.rooms[roomID]
	if !ok {
		return store.ErrNotFound
	}
	rs.appendChat(msg)
	rs.notifyChat()
	return nil
}

// WatchRoom subscribes to room document snapshots.
func (s *Store) WatchRoom(ctx context.Context, roomID string) (<-chan models.Room, error) {
	s.mu.Lock()
	rs, ok := s.rooms[roomID]
	if !ok {
		s.mu.Unlock()
		return nil, store.ErrNotFound
	}
	ch := make(chan models.Room, 16)
	rs.roomWatchers[ch] = struct{}{}
	ch <- rs.room
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		if rs, ok := s.rooms[roomID]; ok {
			delete(rs.roomWatchers, ch)
		}
		close(ch)
		s.mu.Unlock()
	}()
	return ch, nil
}

// WatchParticipants subscribes to whole-collection participant snapshots.
func (s *Store) WatchParticipants(ctx context.Context, roomID string) (<-chan []models.Participant, error) {
	s.mu.Lock()
	rs, ok := s.rooms[roomID]
	if !ok {
		s.mu.Unlock()
		return nil, store.ErrNotFound
	}
	ch := make(chan []models.Participant, 16)
	rs.participantWatchers[ch] = struct{}{}
	ch <- rs.participantList()
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		if rs, ok := s.rooms[roomID]; ok {
			delete(rs.participantWatchers, ch)
		}
		close(ch)
		s.mu.Unlock()
	}()
	return ch, nil
}

// WatchChat subscribes to chat log snapshots, ordered by ascending timestamp.
func (s *Store) WatchChat(ctx context.Context, roomID string) (<-chan []models.ChatMessage, error) {
	s.mu.Lock()
	rs, ok := s.rooms[roomID]
	if !ok {
		s.mu.Unlock()
		return nil, store.ErrNotFound
	}
	ch := make(chan []models.ChatMessage, 16)
	rs.chatWatchers[ch] = struct{}{}
	ch <- rs.chatCopy()
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		if rs, ok := s.rooms[roomID]; ok {
			delete(rs.chatWatchers, ch)
		}
		close(ch)
		s.mu.Unlock()
	}()
	return ch, nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }

// --- batch ---

type batchOp struct {
	roomFields        map[string]interface{}
	participantID     string
	participantFields map[string]interface{}
	chatMsg           *models.ChatMessage
}

type memBatch struct {
	store  *Store
	roomID string
	ops    []batchOp
}

// NewBatch starts an atomic batch for one room.
func (s *Store) NewBatch(roomID string) store.Batch {
	return &memBatch{store: s, roomID: roomID}
}

func (b *memBatch) UpdateRoom(fields map[string]interface{}) {
	b.ops = append(b.ops, batchOp{roomFields: fields})
}

func (b *memBatch) UpdateParticipant(participantID string, fields map[string]interface{}) {
	b.ops = append(b.ops, batchOp{participantID: participantID, participantFields: fields})
}

func (b *memBatch) AppendChat(msg models.ChatMessage) {
	m := msg
	b.ops = append(b.ops, batchOp{chatMsg: &m})
}

// Commit applies every accumulated write under one lock acquisition. The ops
// are validated against scratch copies first so a failure leaves the room
// untouched.
func (b *memBatch) Commit(ctx context.Context) error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	rs, ok := b.store.rooms[b.roomID]
	if !ok {
		return store.ErrNotFound
	}

	room := rs.room
	participants := make(map[string]models.Participant, len(rs.participants))
	for id, p := range rs.participants {
		participants[id] = p
	}
	var appended []models.ChatMessage

	for _, op := range b.ops {
		switch {
		case op.roomFields != nil:
			if err := applyRoomFields(&room, op.roomFields); err != nil {
				return err
			}
		case op.participantFields != nil:
			p, ok := participants[op.participantID]
			if !ok {
				return store.ErrNotFound
			}
			if err := applyParticipantFields(&p, op.participantFields); err != nil {
				return err
			}
			participants[op.participantID] = p
		case op.chatMsg != nil:
			appended = append(appended, *op.chatMsg)
		}
	}

	rs.room = room
	rs.participants = participants
	for _, msg := range appended {
		rs.appendChat(msg)
	}

	rs.notifyRoom()
	rs.notifyParticipants()
	if len(appended) > 0 {
		rs.notifyChat()
	}
	return nil
}

// --- helpers (called with s.mu held) ---

func (rs *roomState) participantList() []models.Participant {
	out := make([]models.Participant, 0, len(rs.participants))
	for _, p := range rs.participants {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (rs *roomState) chatCopy() []models.ChatMessage {
	out := make([]models.ChatMessage, len(rs.chat))
	copy(out, rs.chat)
	return out
}

func (rs *roomState) appendChat(msg models.ChatMessage) {
	rs.chat = append(rs.chat, msg)
	// Keep ascending timestamp order even if a writer supplies an older
	// timestamp than the current tail.
	sort.SliceStable(rs.chat, func(i, j int) bool {
		return rs.chat[i].Timestamp.Before(rs.chat[j].Timestamp)
	})
}

func (rs *roomState) notifyRoom() {
	for ch := range rs.roomWatchers {
		sendLatest(ch, rs.room)
	}
}

func (rs *roomState) notifyParticipants() {
	snapshot := rs.participantList()
	for ch := range rs.participantWatchers {
		sendLatest(ch, snapshot)
	}
}

func (rs *roomState) notifyChat() {
	snapshot := rs.chatCopy()
	for ch := range rs.chatWatchers {
		sendLatest(ch, snapshot)
	}
}

// sendLatest pushes a snapshot without blocking. When the subscriber lags,
// the oldest queued snapshot is discarded: snapshots are authoritative, so
// only the newest one matters.
func sendLatest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

func applyRoomFields(room *models.Room, fields map[string]interface{}) error {
	for key, value := range fields {
		switch key {
		case store.FieldStatus:
			switch v := value.(type) {
			case models.RoomStatus:
				room.Status = v
			case string:
				room.Status = models.RoomStatus(v)
			default:
				return fmt.Errorf("invalid value type %T for field %q", value, key)
			}
		case store.FieldActiveRoll:
			if value == store.DeleteField {
				room.ActiveRoll = nil
				continue
			}
			roll, ok := value.(*models.RollRequest)
			if !ok {
				return fmt.Errorf("invalid value type %T for field %q", value, key)
			}
			room.ActiveRoll = roll
		case store.FieldCurrentScene:
			if value == store.DeleteField {
				room.CurrentScene = ""
				continue
			}
			scene, ok := value.(string)
			if !ok {
				return fmt.Errorf("invalid value type %T for field %q", value, key)
			}
			room.CurrentScene = scene
		default:
			return fmt.Errorf("unknown room field %q", key)
		}
	}
	return nil
}

func applyParticipantFields(p *models.Participant, fields map[string]interface{}) error {
	for key, value := range fields {
		switch key {
		case store.FieldReady:
			ready, ok := value.(bool)
			if !ok {
				return fmt.Errorf("invalid value type %T for field %q", value, key)
			}
			p.Ready = ready
		case store.FieldChoices:
			if value == store.DeleteField {
				p.Choices = nil
				continue
			}
			choices, ok := value.([]string)
			if !ok {
				return fmt.Errorf("invalid value type %T for field %q", value, key)
			}
			p.Choices = choices
		default:
			return fmt.Errorf("unknown participant field %q", key)
		}
	}
	return nil
}
