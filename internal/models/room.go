package models

// RoomStatus describes the lifecycle phase of a Room.
type RoomStatus string

const (
	// RoomStatusLobby is the pre-game phase: participants join, create
	// characters and toggle readiness.
	RoomStatusLobby RoomStatus = "lobby"
	// RoomStatusPlaying is the in-game phase. The transition from lobby is
	// one-way; a room never returns to the lobby.
	RoomStatusPlaying RoomStatus = "playing"
)

// Room is the shared per-session document. It is persisted by the realtime
// store and replicated to every connected session as whole-document snapshots.
type Room struct {
	ID           string       `firestore:"id" json:"id"`
	HostID       string       `firestore:"hostId" json:"hostId"`
	Status       RoomStatus   `firestore:"status" json:"status"`
	ActiveRoll   *RollRequest `firestore:"activeRoll,omitempty" json:"activeRoll,omitempty"`
	CurrentScene string       `firestore:"currentScene,omitempty" json:"currentScene,omitempty"`
}

// RollRequest is a pending dice check. At most one exists per room at any
// time, held as Room.ActiveRoll; while it is set, normal choice-based play is
// blocked for every participant.
type RollRequest struct {
	PlayerID   string `firestore:"playerId" json:"playerId"`
	PlayerName string `firestore:"playerName" json:"playerName"`
	DieType    string `firestore:"dieType" json:"dieType"` // e.g. "d20"
	Reason     string `firestore:"reason" json:"reason"`
}

// MaxParticipants is the room capacity. Character creation beyond this limit
// fails with ErrRoomFull.
const MaxParticipants = 4
