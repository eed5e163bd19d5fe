package gm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/djamnbo/dnd-master-club/internal/models"
)

// fallbackChoices is the ordered pool used to pad short choice lists.
var fallbackChoices = []string{
	"Observe surroundings",
	"Ready weapon",
	"Discuss with party",
	"Search area",
	"Wait",
}

// minChoices is the minimum number of choices every class-bearing participant
// receives whenever no roll is requested.
const minChoices = 2

// Repair normalizes possibly-malformed narration output into a validated
// GMResponse. Strategy: strict parse first; on failure, extract the first
// syntactically balanced brace span and parse that; on a second failure the
// turn is unrecoverable and ErrResponseParse is returned.
func Repair(raw string) (*models.GMResponse, error) {
	var resp models.GMResponse
	if err := json.Unmarshal([]byte(raw), &resp); err == nil {
		return &resp, nil
	}

	extracted, ok := extractJSONObject(raw)
	if !ok {
		return nil, fmt.Errorf("%w: no JSON object found in %d bytes of output", ErrResponseParse, len(raw))
	}
	if err := json.Unmarshal([]byte(extracted), &resp); err != nil {
		return nil, fmt.Errorf("%w: extracted span is not valid JSON: %v", ErrResponseParse, err)
	}
	return &resp, nil
}

// extractJSONObject finds the first balanced top-level brace span in text.
// The scan is aware of JSON strings and escape sequences so braces inside
// string values do not affect the balance.
func extractJSONObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1], true
				}
			}
		}
	}
	return "", false
}

// NormalizeChoices guarantees that, when no roll is requested, every
// participant with a class label has at least minChoices distinct choices.
// Missing class keys are matched case-insensitively, created when absent, and
// short lists are padded from the fallback pool while skipping entries
// already present.
func NormalizeChoices(resp *models.GMResponse, participants []models.Participant) {
	if resp.Roll != nil {
		return
	}
	if resp.Choices == nil {
		resp.Choices = make(map[string][]string)
	}

	for _, p := range participants {
		if p.Class == "" {
			continue
		}
		key, list := findChoices(resp.Choices, p.Class)
		if key == "" {
			key = p.Class
		}
		resp.Choices[key] = padChoices(list)
	}
}

// findChoices locates the choices entry for a class label,
// case-insensitively. Returns the matched key ("" when absent) and its list.
func findChoices(choices map[string][]string, class string) (string, []string) {
	for key, list := range choices {
		if strings.EqualFold(key, class) {
			return key, list
		}
	}
	return "", nil
}

// padChoices extends a list to minChoices entries from the fallback pool,
// skipping entries the list already contains.
func padChoices(list []string) []string {
	for _, fallback := range fallbackChoices {
		if len(list) >= minChoices {
			break
		}
		if containsFold(list, fallback) {
			continue
		}
		list = append(list, fallback)
	}
	return list
}

func containsFold(list []string, candidate string) bool {
	for _, entry := range list {
		if strings.EqualFold(entry, candidate) {
			return true
		}
	}
	return false
}
