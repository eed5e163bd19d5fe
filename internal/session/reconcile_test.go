package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/djamnbo/dnd-master-club/internal/models"
	"github.com/djamnbo/dnd-master-club/internal/store"
	"github.com/djamnbo/dnd-master-club/internal/store/memory"
)

func seedRoom(t *testing.T, st *memory.Store, participants ...models.Participant) string {
	t.Helper()
	ctx := context.Background()
	const roomID = "room-1"
	require.NoError(t, st.CreateRoom(ctx, models.Room{
		ID: roomID, HostID: "host", Status: models.RoomStatusPlaying,
	}))
	for _, p := range participants {
		require.NoError(t, st.SetParticipant(ctx, roomID, p))
	}
	return roomID
}

func commitResponse(t *testing.T, st *memory.Store, roomID string, resp *models.GMResponse, participants []models.Participant) {
	t.Helper()
	batch := st.NewBatch(roomID)
	stageReconciliation(batch, resp, participants, "gm-msg-1", time.Now())
	require.NoError(t, batch.Commit(context.Background()))
}

func TestReconcile_ChoicesBranch(t *testing.T) {
	st := memory.New()
	participants := []models.Participant{
		{ID: "u1", Name: "Anna", Class: "Fighter"},
		{ID: "u2", Name: "Boris", Class: "Wizard"},
	}
	roomID := seedRoom(t, st, participants...)

	resp := &models.GMResponse{
		Narrative:   "The gate swings open.",
		ScenePrompt: "an ancient gate at dusk",
		Choices: map[string][]string{
			"Fighter": {"Charge", "Hold"},
			"Wizard":  {"Cast light", "Study runes"},
		},
	}
	commitResponse(t, st, roomID, resp, participants)

	room, err := st.GetRoom(context.Background(), roomID)
	require.NoError(t, err)
	assert.Equal(t, "an ancient gate at dusk", room.CurrentScene)
	assert.Nil(t, room.ActiveRoll)

	got, err := st.ListParticipants(context.Background(), roomID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Charge", "Hold"}, got[0].Choices)
	assert.Equal(t, []string{"Cast light", "Study runes"}, got[1].Choices)
}

func TestReconcile_NarrativeAppendedAsGMMessage(t *testing.T) {
	st := memory.New()
	participants := []models.Participant{{ID: "u1", Class: "Fighter"}}
	roomID := seedRoom(t, st, participants...)

	commitResponse(t, st, roomID, &models.GMResponse{Narrative: "A wolf howls."}, participants)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	chatCh, err := st.WatchChat(ctx, roomID)
	require.NoError(t, err)
	chat := <-chatCh
	require.Len(t, chat, 1)
	assert.Equal(t, models.ChatRoleAssistant, chat[0].Role)
	assert.Equal(t, "GM", chat[0].Sender)
	assert.Equal(t, "A wolf howls.", chat[0].Content)
}

func TestReconcile_RollBranchTakesPrecedence(t *testing.T) {
	st := memory.New()
	participants := []models.Participant{
		{ID: "u1", Name: "Anna", Class: "Fighter", Choices: []string{"stale"}},
		{ID: "u2", Name: "Boris", Class: "Wizard", Choices: []string{"stale"}},
	}
	roomID := seedRoom(t, st, participants...)

	// A malformed response carrying both a roll and choices: the roll wins
	// and every choices list is cleared.
	resp := &models.GMResponse{
		Narrative: "The chasm yawns.",
		Roll:      &models.GMRoll{Who: "fighter", DieType: "d20", Reason: "jump across"},
		Choices:   map[string][]string{"Wizard": {"Levitate", "Wait"}},
	}
	commitResponse(t, st, roomID, resp, participants)

	room, err := st.GetRoom(context.Background(), roomID)
	require.NoError(t, err)
	require.NotNil(t, room.ActiveRoll)
	assert.Equal(t, "u1", room.ActiveRoll.PlayerID)
	assert.Equal(t, "Anna", room.ActiveRoll.PlayerName)
	assert.Equal(t, "d20", room.ActiveRoll.DieType)
	assert.Equal(t, "jump across", room.ActiveRoll.Reason)

	got, err := st.ListParticipants(context.Background(), roomID)
	require.NoError(t, err)
	for _, p := range got {
		assert.Nil(t, p.Choices)
	}
}

func TestReconcile_UnresolvedRollTargetFallsBackToChoices(t *testing.T) {
	st := memory.New()
	participants := []models.Participant{{ID: "u1", Name: "Anna", Class: "Fighter"}}
	roomID := seedRoom(t, st, participants...)

	resp := &models.GMResponse{
		Narrative: "A voice echoes.",
		Roll:      &models.GMRoll{Who: "Bard", DieType: "d20", Reason: "perform"},
		Choices:   map[string][]string{"Fighter": {"Listen", "Shout back"}},
	}
	commitResponse(t, st, roomID, resp, participants)

	room, err := st.GetRoom(context.Background(), roomID)
	require.NoError(t, err)
	assert.Nil(t, room.ActiveRoll)

	got, err := st.ListParticipants(context.Background(), roomID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Listen", "Shout back"}, got[0].Choices)
}

func TestReconcile_MissingClassEntryGetsDefaults(t *testing.T) {
	st := memory.New()
	participants := []models.Participant{
		{ID: "u1", Class: "Fighter"},
		{ID: "u2", Class: "Rogue"},
	}
	roomID := seedRoom(t, st, participants...)

	resp := &models.GMResponse{
		Narrative: "x",
		Choices:   map[string][]string{"FIGHTER": {"Swing", "Parry"}},
	}
	commitResponse(t, st, roomID, resp, participants)

	got, err := st.ListParticipants(context.Background(), roomID)
	require.NoError(t, err)
	// Case-insensitive match for the fighter, default pair for the rogue.
	assert.Equal(t, []string{"Swing", "Parry"}, got[0].Choices)
	assert.Equal(t, defaultChoices, got[1].Choices)
}

func TestReconcile_ClearsStaleRoll(t *testing.T) {
	st := memory.New()
	participants := []models.Participant{{ID: "u1", Class: "Fighter"}}
	roomID := seedRoom(t, st, participants...)
	require.NoError(t, st.UpdateRoom(context.Background(), roomID, map[string]interface{}{
		store.FieldActiveRoll: &models.RollRequest{PlayerID: "u1", DieType: "d20"},
	}))

	commitResponse(t, st, roomID, &models.GMResponse{
		Narrative: "x",
		Choices:   map[string][]string{"Fighter": {"A", "B"}},
	}, participants)

	room, err := st.GetRoom(context.Background(), roomID)
	require.NoError(t, err)
	assert.Nil(t, room.ActiveRoll)
}

func TestReconcile_CommitAgainstMissingRoomFails(t *testing.T) {
	st := memory.New()
	batch := st.NewBatch("no-such-room")
	stageReconciliation(batch, &models.GMResponse{Narrative: "x"}, nil, "id", time.Now())
	assert.ErrorIs(t, batch.Commit(context.Background()), store.ErrNotFound)
}
