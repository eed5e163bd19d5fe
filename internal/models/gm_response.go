package models

// GMRoll is a dice check requested by the game master. Who names a class
// label; the reconciler resolves it to a participant.
type GMRoll struct {
	Who     string `json:"who"`
	DieType string `json:"dieType"`
	Reason  string `json:"reason"`
}

// GMResponse is the structured response of one orchestration turn, produced
// by repairing the raw narration-service output. It is ephemeral: the
// reconciler folds it into shared state and discards it.
type GMResponse struct {
	Narrative   string              `json:"narrative"`
	ScenePrompt string              `json:"scenePrompt,omitempty"`
	Roll        *GMRoll             `json:"rollRequest,omitempty"`
	Choices     map[string][]string `json:"choices,omitempty"`
}
