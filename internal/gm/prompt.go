package gm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/djamnbo/dnd-master-club/internal/models"
	"github.com/djamnbo/dnd-master-club/internal/narrator"
)

// RollOutcomePrefix marks a chat message that reports a dice-roll outcome.
// The dice resolver writes it and the prompt builder branches on it.
const RollOutcomePrefix = "🎲"

// personaPrompt is the fixed system prompt establishing the game master
// persona, style and the JSON output contract.
const personaPrompt = `You are the Game Master of a collaborative tabletop fantasy adventure for a party of up to four heroes. Narrate vividly but concisely, in second person plural, reacting to every party member's action. Keep the world consistent, let consequences matter, and never speak for the players.

Always answer with a single JSON object, and nothing else, of this shape:
{
  "narrative": "what happens next",
  "scenePrompt": "a short visual description of the current scene (optional)",
  "rollRequest": {"who": "<class of the hero who must roll>", "dieType": "d20", "reason": "why"},
  "choices": {"<class>": ["option 1", "option 2", "option 3"]}
}
Include either "rollRequest" or "choices", never both. When you include "choices", provide at least two options for every class in the party.`

// openingTurn is substituted as the sole user turn when the chat history is
// empty.
const openingTurn = "Begin the adventure. Introduce the scene and the party."

const (
	resolveRollInstruction = "The last message is the outcome of the requested dice roll. Resolve exactly that result in the narrative before anything else happens, then continue the story. Do not request another roll for the same action."

	genericInstructionFmt = "Advance the story in reaction to the party's latest action. Then either request a dice roll from one hero via \"rollRequest\", or provide at least two \"choices\" for every class in the party: %s."
)

// PromptBuilder assembles the outgoing transcript for one orchestration turn
// and keeps it within the configured token budget.
type PromptBuilder struct {
	tokenBudget int
	encoder     *tiktoken.Tiktoken // nil when tokenizer init failed
	logger      *zap.Logger
}

// NewPromptBuilder creates a builder for the given model. When no tokenizer
// is known for the model, token counts fall back to a bytes/4 estimate.
func NewPromptBuilder(model string, tokenBudget int, logger *zap.Logger) *PromptBuilder {
	encoder, err := tiktoken.EncodingForModel(model)
	if err != nil {
		logger.Warn("no tokenizer for model, falling back to byte estimate",
			zap.String("model", model), zap.Error(err))
		encoder = nil
	}
	return &PromptBuilder{
		tokenBudget: tokenBudget,
		encoder:     encoder,
		logger:      logger.Named("PromptBuilder"),
	}
}

// Build assembles the transcript: persona prompt, the filtered chat history
// (user/assistant turns only, oldest first), and a trailing instruction. The
// instruction branches on whether the most recent user turn reports a
// dice-roll outcome.
func (b *PromptBuilder) Build(history []models.ChatMessage, participants []models.Participant) []narrator.Message {
	messages := []narrator.Message{{Role: narrator.RoleSystem, Content: personaPrompt}}

	var lastUserContent string
	transcript := make([]narrator.Message, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case models.ChatRoleUser:
			content := msg.Content
			if msg.Sender != "" {
				content = fmt.Sprintf("%s: %s", msg.Sender, msg.Content)
			}
			transcript = append(transcript, narrator.Message{Role: narrator.RoleUser, Content: content})
			lastUserContent = msg.Content
		case models.ChatRoleAssistant:
			transcript = append(transcript, narrator.Message{Role: narrator.RoleAssistant, Content: msg.Content})
		}
		// System and structural messages are never replayed to the service.
	}

	if len(transcript) == 0 {
		transcript = append(transcript, narrator.Message{Role: narrator.RoleUser, Content: openingTurn})
	}
	messages = append(messages, transcript...)

	if strings.HasPrefix(strings.TrimSpace(lastUserContent), RollOutcomePrefix) {
		messages = append(messages, narrator.Message{Role: narrator.RoleSystem, Content: resolveRollInstruction})
	} else {
		messages = append(messages, narrator.Message{
			Role:    narrator.RoleSystem,
			Content: fmt.Sprintf(genericInstructionFmt, strings.Join(classLabels(participants), ", ")),
		})
	}

	return b.trimToBudget(messages)
}

// trimToBudget drops the oldest history turns (never the persona prompt,
// never the trailing instruction) until the transcript fits the token budget.
func (b *PromptBuilder) trimToBudget(messages []narrator.Message) []narrator.Message {
	if b.tokenBudget <= 0 {
		return messages
	}
	for len(messages) > 3 && b.countTokens(messages) > b.tokenBudget {
		dropped := messages[1]
		messages = append(messages[:1], messages[2:]...)
		b.logger.Debug("dropped transcript turn to fit token budget",
			zap.String("role", dropped.Role),
			zap.Int("contentLength", len(dropped.Content)))
	}
	return messages
}

func (b *PromptBuilder) countTokens(messages []narrator.Message) int {
	total := 0
	for _, m := range messages {
		if b.encoder != nil {
			total += len(b.encoder.Encode(m.Content, nil, nil))
		} else {
			total += len(m.Content) / 4
		}
		total += 4 // per-turn envelope overhead
	}
	return total
}

// classLabels returns the distinct class labels present in the party, sorted
// for stable prompts.
func classLabels(participants []models.Participant) []string {
	seen := make(map[string]struct{})
	var labels []string
	for _, p := range participants {
		if p.Class == "" {
			continue
		}
		if _, ok := seen[p.Class]; ok {
			continue
		}
		seen[p.Class] = struct{}{}
		labels = append(labels, p.Class)
	}
	sort.Strings(labels)
	return labels
}
