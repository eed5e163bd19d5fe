package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/djamnbo/dnd-master-club/internal/models"
	"github.com/djamnbo/dnd-master-club/internal/store"
)

func newRoom(t *testing.T, s *Store) string {
	t.Helper()
	const roomID = "room-1"
	require.NoError(t, s.CreateRoom(context.Background(), models.Room{
		ID: roomID, HostID: "host", Status: models.RoomStatusLobby,
	}))
	return roomID
}

func TestStore_RoomLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()
	roomID := newRoom(t, s)

	room, err := s.GetRoom(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusLobby, room.Status)

	require.NoError(t, s.UpdateRoom(ctx, roomID, map[string]interface{}{
		store.FieldStatus:       models.RoomStatusPlaying,
		store.FieldCurrentScene: "a tavern",
	}))
	room, err = s.GetRoom(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusPlaying, room.Status)
	assert.Equal(t, "a tavern", room.CurrentScene)

	assert.Error(t, s.CreateRoom(ctx, models.Room{ID: roomID}))
	_, err = s.GetRoom(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_FieldDelete(t *testing.T) {
	s := New()
	ctx := context.Background()
	roomID := newRoom(t, s)

	require.NoError(t, s.UpdateRoom(ctx, roomID, map[string]interface{}{
		store.FieldActiveRoll: &models.RollRequest{PlayerID: "u1", DieType: "d20"},
	}))
	room, err := s.GetRoom(ctx, roomID)
	require.NoError(t, err)
	require.NotNil(t, room.ActiveRoll)

	require.NoError(t, s.UpdateRoom(ctx, roomID, map[string]interface{}{
		store.FieldActiveRoll: store.DeleteField,
	}))
	room, err = s.GetRoom(ctx, roomID)
	require.NoError(t, err)
	assert.Nil(t, room.ActiveRoll)
}

func TestStore_Participants(t *testing.T) {
	s := New()
	ctx := context.Background()
	roomID := newRoom(t, s)

	require.NoError(t, s.SetParticipant(ctx, roomID, models.Participant{ID: "b", Name: "Boris"}))
	require.NoError(t, s.SetParticipant(ctx, roomID, models.Participant{ID: "a", Name: "Anna"}))

	participants, err := s.ListParticipants(ctx, roomID)
	require.NoError(t, err)
	require.Len(t, participants, 2)
	// Stable id order.
	assert.Equal(t, "a", participants[0].ID)
	assert.Equal(t, "b", participants[1].ID)

	require.NoError(t, s.UpdateParticipant(ctx, roomID, "a", map[string]interface{}{
		store.FieldReady:   true,
		store.FieldChoices: []string{"x", "y"},
	}))
	participants, err = s.ListParticipants(ctx, roomID)
	require.NoError(t, err)
	assert.True(t, participants[0].Ready)
	assert.Equal(t, []string{"x", "y"}, participants[0].Choices)

	assert.ErrorIs(t, s.UpdateParticipant(ctx, roomID, "missing", map[string]interface{}{
		store.FieldReady: true,
	}), store.ErrNotFound)

	require.NoError(t, s.DeleteParticipant(ctx, roomID, "b"))
	participants, err = s.ListParticipants(ctx, roomID)
	require.NoError(t, err)
	assert.Len(t, participants, 1)
}

func TestStore_ChatOrdering(t *testing.T) {
	s := New()
	ctx := context.Background()
	roomID := newRoom(t, s)
	base := time.Now()

	require.NoError(t, s.AppendChat(ctx, roomID, models.ChatMessage{ID: "m2", Content: "second", Timestamp: base.Add(time.Second)}))
	require.NoError(t, s.AppendChat(ctx, roomID, models.ChatMessage{ID: "m1", Content: "first", Timestamp: base}))

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	ch, err := s.WatchChat(watchCtx, roomID)
	require.NoError(t, err)
	chat := <-ch
	require.Len(t, chat, 2)
	assert.Equal(t, "m1", chat[0].ID)
	assert.Equal(t, "m2", chat[1].ID)
}

func TestStore_WatchDeliversCurrentThenUpdates(t *testing.T) {
	s := New()
	ctx := context.Background()
	roomID := newRoom(t, s)

	watchCtx, cancel := context.WithCancel(ctx)
	roomCh, err := s.WatchRoom(watchCtx, roomID)
	require.NoError(t, err)

	first := <-roomCh
	assert.Equal(t, models.RoomStatusLobby, first.Status)

	require.NoError(t, s.UpdateRoom(ctx, roomID, map[string]interface{}{
		store.FieldStatus: models.RoomStatusPlaying,
	}))
	second := <-roomCh
	assert.Equal(t, models.RoomStatusPlaying, second.Status)

	cancel()
	assert.Eventually(t, func() bool {
		_, open := <-roomCh
		return !open
	}, time.Second, 10*time.Millisecond)
}

func TestStore_WatchUnknownRoom(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.WatchRoom(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.WatchParticipants(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.WatchChat(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestBatch_AtomicCommit(t *testing.T) {
	s := New()
	ctx := context.Background()
	roomID := newRoom(t, s)
	require.NoError(t, s.SetParticipant(ctx, roomID, models.Participant{ID: "u1", Class: "Fighter"}))

	batch := s.NewBatch(roomID)
	batch.UpdateRoom(map[string]interface{}{store.FieldCurrentScene: "a crypt"})
	batch.UpdateParticipant("u1", map[string]interface{}{store.FieldChoices: []string{"a", "b"}})
	batch.AppendChat(models.ChatMessage{ID: "m1", Content: "hello", Timestamp: time.Now()})
	require.NoError(t, batch.Commit(ctx))

	room, err := s.GetRoom(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, "a crypt", room.CurrentScene)
	participants, err := s.ListParticipants(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, participants[0].Choices)
}

func TestBatch_FailureLeavesStateUntouched(t *testing.T) {
	s := New()
	ctx := context.Background()
	roomID := newRoom(t, s)

	batch := s.NewBatch(roomID)
	batch.UpdateRoom(map[string]interface{}{store.FieldCurrentScene: "a crypt"})
	batch.UpdateParticipant("missing", map[string]interface{}{store.FieldReady: true})
	assert.ErrorIs(t, batch.Commit(ctx), store.ErrNotFound)

	room, err := s.GetRoom(ctx, roomID)
	require.NoError(t, err)
	assert.Empty(t, room.CurrentScene)
}
