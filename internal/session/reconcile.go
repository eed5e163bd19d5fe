package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/djamnbo/dnd-master-club/internal/models"
	"github.com/djamnbo/dnd-master-club/internal/store"
)

// defaultChoices is the minimal pair used when the response carries no
// choices entry matching a participant's class.
var defaultChoices = []string{"Observe surroundings", "Ready weapon"}

// resolveRollTarget matches a requested roll to a participant by class
// label, case-insensitively. Returns nil when no participant matches.
func resolveRollTarget(roll *models.GMRoll, participants []models.Participant) *models.Participant {
	if roll == nil {
		return nil
	}
	for i := range participants {
		if strings.EqualFold(participants[i].Class, roll.Who) {
			return &participants[i]
		}
	}
	return nil
}

// choicesForClass picks the response's choices entry for a class label,
// case-insensitively, falling back to the minimal default pair.
func choicesForClass(choices map[string][]string, class string) []string {
	for key, list := range choices {
		if strings.EqualFold(key, class) && len(list) > 0 {
			return list
		}
	}
	return defaultChoices
}

// stageReconciliation stages one validated GM response onto a write batch as
// a single atomic multi-write:
//
//  1. narrative text, when present, becomes an assistant chat message;
//  2. a scene prompt, when present, updates the room's current scene;
//  3. a roll request that resolves to a participant takes precedence: it
//     becomes the room's active roll and every participant's choices are
//     cleared, keeping the roll/choices exclusion invariant;
//  4. otherwise any stale active roll is cleared and every class-bearing
//     participant receives its choices list.
//
// The caller commits the batch; partial application is impossible.
func stageReconciliation(batch store.Batch, resp *models.GMResponse, participants []models.Participant, msgID string, now time.Time) {
	if resp.Narrative != "" {
		batch.AppendChat(models.ChatMessage{
			ID:        msgID,
			Role:      models.ChatRoleAssistant,
			Content:   resp.Narrative,
			Sender:    "GM",
			Timestamp: now,
		})
	}

	roomFields := make(map[string]interface{})
	if resp.ScenePrompt != "" {
		roomFields[store.FieldCurrentScene] = resp.ScenePrompt
	}

	if target := resolveRollTarget(resp.Roll, participants); target != nil {
		roomFields[store.FieldActiveRoll] = &models.RollRequest{
			PlayerID:   target.ID,
			PlayerName: target.Name,
			DieType:    resp.Roll.DieType,
			Reason:     resp.Roll.Reason,
		}
		batch.UpdateRoom(roomFields)
		for _, p := range participants {
			batch.UpdateParticipant(p.ID, map[string]interface{}{
				store.FieldChoices: store.DeleteField,
			})
		}
		return
	}

	// Clearing a roll that is not set is a harmless idempotent delete.
	roomFields[store.FieldActiveRoll] = store.DeleteField
	batch.UpdateRoom(roomFields)
	for _, p := range participants {
		if p.Class == "" {
			continue
		}
		batch.UpdateParticipant(p.ID, map[string]interface{}{
			store.FieldChoices: choicesForClass(resp.Choices, p.Class),
		})
	}
}

// reconcile commits one GM response atomically against the realtime store.
func (s *Session) reconcile(ctx context.Context, roomID string, resp *models.GMResponse, participants []models.Participant) error {
	batch := s.store.NewBatch(roomID)
	stageReconciliation(batch, resp, participants, s.newID(), s.clock())
	if err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit reconciliation for room %s: %w", roomID, err)
	}
	return nil
}
