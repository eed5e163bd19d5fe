// Package session implements the per-connection session context: the latest
// known snapshots of room, participants and chat log, the externally
// triggered operations, the turn trigger guard and the state reconciler.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/djamnbo/dnd-master-club/internal/dice"
	"github.com/djamnbo/dnd-master-club/internal/gm"
	"github.com/djamnbo/dnd-master-club/internal/models"
	"github.com/djamnbo/dnd-master-club/internal/store"
)

// Identity is the authenticated caller bound to a session. Authentication
// itself is an external collaborator; the engine only requires the result.
type Identity struct {
	UserID string
	Name   string
}

// Deps groups the collaborators a Session needs.
type Deps struct {
	Store        store.RealtimeStore
	Orchestrator *gm.Orchestrator
	Lease        Lease
	Roller       *dice.Roller
	Logger       *zap.Logger
}

// Session is one participant's connection-scoped view of a room. All
// operations validate their preconditions against the local snapshots before
// issuing writes; write failures are returned to the caller.
type Session struct {
	identity Identity
	store    store.RealtimeStore
	orch     *gm.Orchestrator
	lease    Lease
	roller   *dice.Roller
	logger   *zap.Logger

	clock func() time.Time
	newID func() string

	mu          stateMu
	watchCancel context.CancelFunc
	watchDone   chan struct{}
	guard       triggerGuard
}

// stateMu bundles the mutable snapshot state under one mutex.
type stateMu struct {
	sync.Mutex
	roomID       string
	room         *models.Room
	participants []models.Participant
	chat         []models.ChatMessage
}

// New creates a Session for an authenticated identity.
func New(identity Identity, deps Deps) *Session {
	return &Session{
		identity: identity,
		store:    deps.Store,
		orch:     deps.Orchestrator,
		lease:    deps.Lease,
		roller:   deps.Roller,
		logger:   deps.Logger.Named("Session").With(zap.String("userID", identity.UserID)),
		clock:    time.Now,
		newID:    uuid.NewString,
	}
}

// CreateRoom mints a new lobby room with the caller as host and joins it.
func (s *Session) CreateRoom(ctx context.Context) (*models.Room, error) {
	if err := s.requireIdentity(); err != nil {
		return nil, err
	}
	room := models.Room{
		ID:     s.newID(),
		HostID: s.identity.UserID,
		Status: models.RoomStatusLobby,
	}
	if err := s.store.CreateRoom(ctx, room); err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}
	if err := s.Join(ctx, room.ID); err != nil {
		return nil, err
	}
	return &room, nil
}

// Join subscribes the session to a room's three push streams and installs
// the initial snapshots.
func (s *Session) Join(ctx context.Context, roomID string) error {
	if err := s.requireIdentity(); err != nil {
		return err
	}

	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrRoomNotFound
		}
		return fmt.Errorf("failed to read room %s: %w", roomID, err)
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	roomCh, err := s.store.WatchRoom(watchCtx, roomID)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to room %s: %w", roomID, err)
	}
	participantCh, err := s.store.WatchParticipants(watchCtx, roomID)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to participants of room %s: %w", roomID, err)
	}
	chatCh, err := s.store.WatchChat(watchCtx, roomID)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to chat of room %s: %w", roomID, err)
	}

	// Stop a previous room's loop completely before installing the new
	// snapshots, so a dying loop cannot overwrite them with stale state.
	s.detach()

	s.mu.Lock()
	s.mu.roomID = roomID
	s.mu.room = room
	s.mu.participants = nil
	s.mu.chat = nil
	s.watchCancel = cancel
	s.watchDone = make(chan struct{})
	done := s.watchDone
	s.mu.Unlock()

	go s.runLoop(watchCtx, done, roomCh, participantCh, chatCh)
	s.logger.Info("joined room", zap.String("roomID", roomID))
	return nil
}

// CreateCharacter writes the caller's participant document. Fails with
// ErrRoomFull when the room already holds the maximum number of
// participants and the caller is not among them.
func (s *Session) CreateCharacter(ctx context.Context, sheet models.CharacterSheet) error {
	if err := s.requireIdentity(); err != nil {
		return err
	}
	roomID, err := s.requireRoom()
	if err != nil {
		return err
	}

	participants, err := s.store.ListParticipants(ctx, roomID)
	if err != nil {
		return fmt.Errorf("failed to list participants of room %s: %w", roomID, err)
	}
	present := false
	for _, p := range participants {
		if p.ID == s.identity.UserID {
			present = true
			break
		}
	}
	if !present && len(participants) >= models.MaxParticipants {
		return ErrRoomFull
	}

	participant := models.Participant{
		ID:     s.identity.UserID,
		Name:   sheet.Name,
		Avatar: sheet.Avatar,
		Class:  sheet.Class,
		Stats:  sheet.Stats,
	}
	if err := s.store.SetParticipant(ctx, roomID, participant); err != nil {
		return fmt.Errorf("failed to write participant: %w", err)
	}
	return nil
}

// SetReady toggles the caller's readiness flag.
func (s *Session) SetReady(ctx context.Context, ready bool) error {
	if err := s.requireIdentity(); err != nil {
		return err
	}
	roomID, err := s.requireRoom()
	if err != nil {
		return err
	}
	if err := s.store.UpdateParticipant(ctx, roomID, s.identity.UserID, map[string]interface{}{
		store.FieldReady: ready,
	}); err != nil {
		return fmt.Errorf("failed to update readiness: %w", err)
	}
	return nil
}

// Start transitions the room from lobby to playing. Host only; the
// transition is one-way and idempotent.
func (s *Session) Start(ctx context.Context) error {
	if err := s.requireIdentity(); err != nil {
		return err
	}
	roomID, err := s.requireRoom()
	if err != nil {
		return err
	}

	s.mu.Lock()
	room := s.mu.room
	s.mu.Unlock()
	if room == nil || room.HostID != s.identity.UserID {
		return ErrNotHost
	}
	if room.Status == models.RoomStatusPlaying {
		return nil
	}

	if err := s.store.UpdateRoom(ctx, roomID, map[string]interface{}{
		store.FieldStatus: models.RoomStatusPlaying,
	}); err != nil {
		return fmt.Errorf("failed to start room %s: %w", roomID, err)
	}
	return nil
}

// SendAction appends a chat message authored by the caller. Action messages
// (isAction true) are the only kind that may trigger an orchestration turn.
func (s *Session) SendAction(ctx context.Context, text string, isAction bool) error {
	if err := s.requireIdentity(); err != nil {
		return err
	}
	roomID, err := s.requireRoom()
	if err != nil {
		return err
	}

	msg := models.ChatMessage{
		ID:        s.newID(),
		Role:      models.ChatRoleUser,
		Content:   text,
		Sender:    s.identity.Name,
		IsAction:  isAction,
		Timestamp: s.clock(),
	}
	if err := s.store.AppendChat(ctx, roomID, msg); err != nil {
		return fmt.Errorf("failed to append chat message: %w", err)
	}
	return nil
}

// ResolveRoll resolves the room's pending dice check: it draws the result,
// reports it as an action-tagged chat message (the designed trigger for the
// next orchestration turn), and clears the active roll as a separate write.
func (s *Session) ResolveRoll(ctx context.Context) (int, error) {
	if err := s.requireIdentity(); err != nil {
		return 0, err
	}
	roomID, err := s.requireRoom()
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	room := s.mu.room
	s.mu.Unlock()
	if room == nil || room.ActiveRoll == nil {
		return 0, ErrNoActiveRoll
	}
	roll := *room.ActiveRoll

	result := s.roller.Roll(roll.DieType)
	msg := models.ChatMessage{
		ID:   s.newID(),
		Role: models.ChatRoleUser,
		Content: fmt.Sprintf("%s %s rolls %s for %s: %d",
			gm.RollOutcomePrefix, roll.PlayerName, roll.DieType, roll.Reason, result),
		Sender:    roll.PlayerName,
		IsAction:  true,
		Timestamp: s.clock(),
	}
	if err := s.store.AppendChat(ctx, roomID, msg); err != nil {
		return 0, fmt.Errorf("failed to report roll result: %w", err)
	}
	if err := s.store.UpdateRoom(ctx, roomID, map[string]interface{}{
		store.FieldActiveRoll: store.DeleteField,
	}); err != nil {
		return 0, fmt.Errorf("failed to clear active roll: %w", err)
	}
	return result, nil
}

// Leave unsubscribes from the room's push streams and discards the local
// snapshots. The participant document is left in place; participants are
// removed only by room teardown.
func (s *Session) Leave() {
	s.detach()

	s.mu.Lock()
	s.mu.roomID = ""
	s.mu.room = nil
	s.mu.participants = nil
	s.mu.chat = nil
	s.mu.Unlock()
	s.logger.Info("left room")
}

// detach cancels the current watch subscriptions, if any, and waits for the
// loop goroutine to exit.
func (s *Session) detach() {
	s.mu.Lock()
	cancel := s.watchCancel
	done := s.watchDone
	s.watchCancel = nil
	s.watchDone = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Snapshot returns copies of the latest known room state for callers/UI.
func (s *Session) Snapshot() (*models.Room, []models.Participant, []models.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var room *models.Room
	if s.mu.room != nil {
		r := *s.mu.room
		room = &r
	}
	participants := make([]models.Participant, len(s.mu.participants))
	copy(participants, s.mu.participants)
	chat := make([]models.ChatMessage, len(s.mu.chat))
	copy(chat, s.mu.chat)
	return room, participants, chat
}

func (s *Session) requireIdentity() error {
	if s.identity.UserID == "" {
		return ErrAuthRequired
	}
	return nil
}

func (s *Session) requireRoom() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mu.roomID == "" {
		return "", ErrNoRoom
	}
	return s.mu.roomID, nil
}
