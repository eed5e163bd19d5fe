package session

import (
	"sync"

	"github.com/djamnbo/dnd-master-club/internal/models"
)

// triggerGuard decides whether an orchestration turn may start and enforces
// at-most-one-in-flight plus per-message idempotency for this process.
type triggerGuard struct {
	mu            sync.Mutex
	inFlight      bool
	lastHandledID string
}

// tryBegin evaluates the trigger conditions against the freshest snapshot
// set. It fires iff the most recent chat message is an action message, no
// roll is pending, the evaluating session believes itself to be the host, no
// turn is in flight, and the message id has not been handled before.
//
// On success the in-flight flag is set and the message id recorded before
// returning, so a concurrent re-evaluation of the same snapshots cannot fire
// twice. The recorded id is kept even if the turn later fails: a retry
// requires a fresh action message.
func (g *triggerGuard) tryBegin(room *models.Room, chat []models.ChatMessage, isHost bool) (string, bool) {
	if room == nil || len(chat) == 0 {
		return "", false
	}
	last := chat[len(chat)-1]
	if !last.IsAction {
		return "", false
	}
	if room.ActiveRoll != nil {
		return "", false
	}
	if !isHost {
		return "", false
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inFlight || last.ID == g.lastHandledID {
		return "", false
	}
	g.inFlight = true
	g.lastHandledID = last.ID
	return last.ID, true
}

// finish clears the in-flight flag. Must be called on every exit path of a
// turn, including failures.
func (g *triggerGuard) finish() {
	g.mu.Lock()
	g.inFlight = false
	g.mu.Unlock()
}
