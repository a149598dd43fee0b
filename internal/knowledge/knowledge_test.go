package knowledge

import (
	"context"
	"strings"
	"testing"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/model"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "w"
	}
	return strings.Join(parts, " ")
}

func TestChunkWindows(t *testing.T) {
	chunks := Chunk(words(25), 10, 2)
	// windows start at 0, 8, 16 and the last one reaches the end
	require.Len(t, chunks, 3)
	assert.Len(t, strings.Fields(chunks[0]), 10)
	assert.Len(t, strings.Fields(chunks[2]), 9)
}

func TestChunkShortTextIsOneChunk(t *testing.T) {
	chunks := Chunk("Opening hours:\n9am to 5pm", 300, 40)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Opening hours:\n9am to 5pm", chunks[0])
}

func TestChunkEmpty(t *testing.T) {
	assert.Empty(t, Chunk("   \n ", 10, 2))
}

func TestChunkBadOverlap(t *testing.T) {
	// overlap falls back to a tenth of the window
	chunks := Chunk(words(30), 10, 10)
	assert.Len(t, chunks, 4)
}

func TestExtract(t *testing.T) {
	text, source, err := Extract("faq.md", []byte("# FAQ\r\n\r\n\r\n  Parking is free.  \n"))
	require.NoError(t, err)
	assert.Equal(t, model.KnowledgeText, source)
	assert.Equal(t, "# FAQ\n\nParking is free.", text)

	_, _, err = Extract("photo.png", []byte("x"))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, _, err = Extract("empty.txt", []byte("  \n "))
	assert.ErrorIs(t, err, ErrNoText)

	_, _, err = Extract("big.txt", make([]byte, MaxUploadSize+1))
	assert.ErrorIs(t, err, ErrTooLarge)

	_, _, err = Extract("broken.pdf", []byte("not a pdf"))
	assert.ErrorIs(t, err, ErrUnreadable)

	_, _, err = Extract("latin1.txt", []byte{0xff, 0xfe, 'a'})
	assert.ErrorIs(t, err, ErrUnreadable)
}

func TestImport(t *testing.T) {
	db := testutil.NewTestDB(t)
	_, biz := testutil.SeedBusiness(t, db, "reef")

	body := words(700)
	entries, err := Import(context.Background(), db, biz.ID, "/tmp/uploads/policies.txt", "policies", []byte(body))
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "policies.txt (part 1)", entries[0].Title)
	assert.Equal(t, "policies.txt (part 3)", entries[2].Title)

	var stored []model.KnowledgeBase
	require.NoError(t, db.Where("business_id = ?", biz.ID).Order("id").Find(&stored).Error)
	require.Len(t, stored, 3)
	assert.Equal(t, model.KnowledgeText, stored[0].Source)
	assert.Equal(t, "policies", stored[0].Category)
	assert.True(t, stored[0].Active)
}
