package session

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/djamnbo/dnd-master-club/internal/gm"
	"github.com/djamnbo/dnd-master-club/internal/models"
)

// runLoop consumes the room's three push streams, keeps the local snapshots
// fresh and evaluates the turn trigger after every chat refresh. It exits
// when the watch context is cancelled and the store closes the channels.
func (s *Session) runLoop(ctx context.Context, done chan struct{},
	roomCh <-chan models.Room, participantCh <-chan []models.Participant, chatCh <-chan []models.ChatMessage) {
	defer close(done)

	for roomCh != nil || participantCh != nil || chatCh != nil {
		select {
		case room, ok := <-roomCh:
			if !ok {
				roomCh = nil
				continue
			}
			s.mu.Lock()
			r := room
			s.mu.room = &r
			s.mu.Unlock()
			// A room refresh can unblock the trigger (an active roll was
			// cleared), so it is re-evaluated here as well.
			s.maybeOrchestrate(ctx)

		case participants, ok := <-participantCh:
			if !ok {
				participantCh = nil
				continue
			}
			s.mu.Lock()
			s.mu.participants = participants
			s.mu.Unlock()

		case chat, ok := <-chatCh:
			if !ok {
				chatCh = nil
				continue
			}
			s.mu.Lock()
			s.mu.chat = chat
			s.mu.Unlock()
			s.maybeOrchestrate(ctx)
		}
	}
}

// maybeOrchestrate evaluates the turn trigger against the freshest snapshot
// set and, when it fires, runs one orchestration turn in the background.
func (s *Session) maybeOrchestrate(ctx context.Context) {
	s.mu.Lock()
	roomID := s.mu.roomID
	room := s.mu.room
	isHost := room != nil && room.Status == models.RoomStatusPlaying && room.HostID == s.identity.UserID
	chat := make([]models.ChatMessage, len(s.mu.chat))
	copy(chat, s.mu.chat)
	participants := make([]models.Participant, len(s.mu.participants))
	copy(participants, s.mu.participants)
	s.mu.Unlock()

	msgID, ok := s.guard.tryBegin(room, chat, isHost)
	if !ok {
		return
	}

	go s.orchestrate(ctx, roomID, msgID, chat, participants)
}

// orchestrate runs one GM turn under the cross-process lease: prompt
// assembly and the blocking generation call, repair, and the atomic
// reconciliation commit. Failures are surfaced to the room as a visible
// system chat message instead of being applied partially.
func (s *Session) orchestrate(ctx context.Context, roomID, msgID string, chat []models.ChatMessage, participants []models.Participant) {
	defer s.guard.finish()

	logger := s.logger.With(zap.String("roomID", roomID), zap.String("triggerID", msgID))

	acquired, err := s.lease.Acquire(ctx, roomID)
	if err != nil {
		logger.Error("failed to acquire orchestration lease", zap.Error(err))
		return
	}
	if !acquired {
		// Another process is already running this turn; it will publish
		// the outcome through the store.
		logger.Debug("orchestration lease held elsewhere, skipping turn")
		return
	}
	defer func() {
		if err := s.lease.Release(context.Background(), roomID); err != nil {
			logger.Warn("failed to release orchestration lease", zap.Error(err))
		}
	}()

	resp, err := s.orch.Run(ctx, chat, participants)
	if err != nil {
		logger.Error("orchestration turn failed", zap.Error(err))
		s.reportFailure(ctx, roomID, err)
		return
	}

	if err := s.reconcile(ctx, roomID, resp, participants); err != nil {
		logger.Error("failed to reconcile orchestration result", zap.Error(err))
		return
	}
	logger.Info("orchestration turn applied")
}

// reportFailure posts a visible system message so every participant learns
// the turn failed; a retry requires a fresh action message.
func (s *Session) reportFailure(ctx context.Context, roomID string, cause error) {
	var text string
	switch {
	case errors.Is(cause, gm.ErrResponseParse):
		text = "The GM's answer could not be understood. Please try your action again."
	case errors.Is(cause, gm.ErrOrchestrationNetwork):
		text = "The GM is unreachable right now. Please try your action again."
	default:
		text = "The GM could not complete this turn. Please try your action again."
	}
	msg := models.ChatMessage{
		ID:        s.newID(),
		Role:      models.ChatRoleSystem,
		Content:   text,
		Sender:    "System",
		Timestamp: s.clock(),
	}
	if err := s.store.AppendChat(ctx, roomID, msg); err != nil {
		s.logger.Error("failed to report turn failure",
			zap.String("roomID", roomID), zap.NamedError("cause", cause), zap.Error(err))
	}
}
