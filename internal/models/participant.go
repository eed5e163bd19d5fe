package models

// AbilityScores holds the six named ability scores of a character.
type AbilityScores struct {
	Strength     int `firestore:"strength" json:"strength"`
	Dexterity    int `firestore:"dexterity" json:"dexterity"`
	Constitution int `firestore:"constitution" json:"constitution"`
	Intelligence int `firestore:"intelligence" json:"intelligence"`
	Wisdom       int `firestore:"wisdom" json:"wisdom"`
	Charisma     int `firestore:"charisma" json:"charisma"`
}

// Participant is one player's character inside a room. The document is keyed
// by the identity-bound participant id and mutated by readiness toggles and
// by the state reconciler (choices). Removed only on room teardown.
type Participant struct {
	ID      string        `firestore:"id" json:"id"`
	Name    string        `firestore:"name" json:"name"`
	Avatar  string        `firestore:"avatar,omitempty" json:"avatar,omitempty"`
	Class   string        `firestore:"class" json:"class"`
	Stats   AbilityScores `firestore:"stats" json:"stats"`
	Ready   bool          `firestore:"ready" json:"ready"`
	Choices []string      `firestore:"choices,omitempty" json:"choices,omitempty"`
}

// CharacterSheet is the caller-supplied input for CreateCharacter.
type CharacterSheet struct {
	Name   string
	Avatar string
	Class  string
	Stats  AbilityScores
}
