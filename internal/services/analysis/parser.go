package analysis

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"

	"article-analyzer/internal/metrics"
)

const fence = "```"

// StripCodeFence removes a markdown code fence wrapped around a model reply.
// Only text that starts with a fence is touched: the opening line (fence plus
// optional language tag) is dropped, and the last line is dropped when it is
// a bare closing fence.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, fence) {
		return s
	}

	lines := strings.Split(s, "\n")
	if strings.HasPrefix(strings.TrimSpace(lines[0]), fence) {
		lines = lines[1:]
	}
	if n := len(lines); n > 0 && strings.TrimSpace(lines[n-1]) == fence {
		lines = lines[:n-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// ParseEntities turns the entity reply into a list of strings. It never
// fails: empty, non-array or malformed replies produce an empty list.
func ParseEntities(raw string) []string {
	text := StripCodeFence(raw)
	if text == "" {
		return []string{}
	}

	var value interface{}
	if err := json.Unmarshal([]byte(text), &value); err != nil {
		entityParseFailed(raw, err.Error())
		return []string{}
	}

	items, ok := value.([]interface{})
	if !ok {
		log.Debug().Str("raw", raw).Msg("Entity reply is valid JSON but not an array")
		return []string{}
	}

	entities := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			entityParseFailed(raw, "array contains a non-string element")
			return []string{}
		}
		entities = append(entities, s)
	}
	return entities
}

func entityParseFailed(raw, reason string) {
	metrics.IncEntityParseFailure()
	log.Warn().Str("raw", raw).Str("reason", reason).Msg("Failed to parse entities JSON")
}
