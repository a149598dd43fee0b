package knowledge

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/model"
	"gorm.io/gorm"
)

// Default window used for imports, in words
const (
	DefaultChunkWords   = 300
	DefaultChunkOverlap = 40
)

var wordRegex = regexp.MustCompile(`\S+`)

// Chunk splits text into overlapping windows of at most maxWords words.
// Each chunk is a slice of the original text so line breaks survive.
func Chunk(text string, maxWords, overlap int) []string {
	if maxWords <= 0 {
		maxWords = DefaultChunkWords
	}
	if overlap < 0 || overlap >= maxWords {
		overlap = maxWords / 10
	}

	words := wordRegex.FindAllStringIndex(text, -1)
	if len(words) == 0 {
		return []string{}
	}

	var chunks []string
	step := maxWords - overlap
	for i := 0; i < len(words); i += step {
		end := i + maxWords
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, text[words[i][0]:words[end-1][1]])
		if end == len(words) {
			break
		}
	}
	return chunks
}

// BuildEntries turns the chunks of one file into knowledge rows
func BuildEntries(businessID uint, filename, category, source string, chunks []string) []model.KnowledgeBase {
	base := filepath.Base(filename)
	entries := make([]model.KnowledgeBase, 0, len(chunks))
	for i, c := range chunks {
		entries = append(entries, model.KnowledgeBase{
			BusinessID: businessID,
			Title:      fmt.Sprintf("%s (part %d)", base, i+1),
			Content:    c,
			Category:   category,
			Source:     source,
			Active:     true,
		})
	}
	return entries
}

// Import extracts, chunks and stores a document in one transaction
func Import(ctx context.Context, db *gorm.DB, businessID uint, filename, category string, data []byte) ([]model.KnowledgeBase, error) {
	text, source, err := Extract(filename, data)
	if err != nil {
		return nil, err
	}

	entries := BuildEntries(businessID, filename, strings.TrimSpace(category), source,
		Chunk(text, DefaultChunkWords, DefaultChunkOverlap))

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&entries).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save knowledge entries: %w", err)
	}
	return entries, nil
}
