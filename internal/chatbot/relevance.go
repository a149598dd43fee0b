package chatbot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/llm"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/model"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/logger"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/prometheus"
	"go.uber.org/zap"
)

// Selection modes, also used as metric labels
const (
	SelectionNone     = "none"
	SelectionAll      = "all"
	SelectionSelected = "selected"
	SelectionFallback = "fallback"
)

const excerptChars = 200

var idArrayPattern = regexp.MustCompile(`\[[\s\d,]*\]`)

var errNoIDs = errors.New("no id array in selection output")

// Selector asks the model which knowledge entries matter for a question
type Selector struct {
	completer   llm.Completer
	threshold   int
	maxSnippets int
}

// NewSelector creates a selector. Knowledge bases with at most threshold entries
// are passed through whole without a model call.
func NewSelector(completer llm.Completer, threshold, maxSnippets int) *Selector {
	if maxSnippets <= 0 {
		maxSnippets = 5
	}
	return &Selector{completer: completer, threshold: threshold, maxSnippets: maxSnippets}
}

// Select returns the entries to include and how they were chosen.
// Any failure of the model call or of parsing its output falls back to all entries.
func (s *Selector) Select(ctx context.Context, businessName, question string, entries []model.KnowledgeBase) ([]model.KnowledgeBase, string) {
	if len(entries) == 0 {
		return nil, SelectionNone
	}
	if len(entries) <= s.threshold {
		return entries, SelectionAll
	}

	log := logger.Ctx(ctx)
	temperature := 0.0
	done := prometheus.TrackLLMCall("relevance")
	output, err := s.completer.Complete(ctx, buildSelectionPrompt(businessName, question, entries, s.maxSnippets), llm.Options{
		Temperature: &temperature,
		MaxTokens:   100,
	})
	done(err)
	if err != nil {
		log.Warn("Knowledge selection call failed, using all entries", zap.Error(err))
		return entries, SelectionFallback
	}

	ids, err := parseIDs(output)
	if err != nil {
		log.Warn("Knowledge selection output unparseable, using all entries",
			zap.String("output", truncate(output, 200)), zap.Error(err))
		return entries, SelectionFallback
	}

	selected := pickByID(entries, ids, s.maxSnippets)
	if len(selected) == 0 {
		log.Debug("Knowledge selection returned no known ids, using all entries", zap.Any("ids", ids))
		return entries, SelectionFallback
	}
	return selected, SelectionSelected
}

func buildSelectionPrompt(businessName, question string, entries []model.KnowledgeBase, max int) []llm.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Customer question: %s\n\nKnowledge base entries:\n", question)
	for _, e := range entries {
		fmt.Fprintf(&b, "[%d] %s: %s\n", e.ID, e.Title, truncate(oneLine(e.Content), excerptChars))
	}

	system := fmt.Sprintf("You select knowledge base entries that help answer a customer question for %s. "+
		"Reply with a JSON array of entry ids only, most relevant first, at most %d ids, for example [3, 7]. "+
		"Reply [] if no entry applies.", businessName, max)

	return []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: b.String()},
	}
}

// parseIDs extracts the first JSON array of integers from model output
func parseIDs(output string) ([]uint, error) {
	match := idArrayPattern.FindString(output)
	if match == "" {
		return nil, errNoIDs
	}
	var ids []uint
	if err := json.Unmarshal([]byte(match), &ids); err != nil {
		return nil, fmt.Errorf("invalid id array %q: %w", match, err)
	}
	return ids, nil
}

// pickByID keeps the model's order, drops unknown and repeated ids, and caps the result
func pickByID(entries []model.KnowledgeBase, ids []uint, max int) []model.KnowledgeBase {
	byID := make(map[uint]model.KnowledgeBase, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}

	seen := make(map[uint]bool, len(ids))
	var out []model.KnowledgeBase
	for _, id := range ids {
		e, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, e)
		if len(out) == max {
			break
		}
	}
	return out
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
