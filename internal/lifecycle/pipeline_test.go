package lifecycle

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loreseek/loreseek/internal/embed"
	"github.com/loreseek/loreseek/internal/errors"
	"github.com/loreseek/loreseek/internal/ingest"
	"github.com/loreseek/loreseek/internal/structure"
)

func bodySpan(text string) structure.FontSpan {
	return structure.FontSpan{Font: "Bookman", Size: 10, Text: text}
}

func headingSpan(text string) structure.FontSpan {
	return structure.FontSpan{Font: "Mentor", Size: 24, Bold: true, Text: text}
}

func annotatedDoc() *ingest.Document {
	body := strings.Repeat("When a creature attacks, it rolls a d20 and adds modifiers. ", 5)
	return &ingest.Document{
		ID:         "phb",
		Source:     "phb.pdf",
		TotalPages: 2,
		Metadata:   map[string]string{"edition": "5e"},
		Pages: []ingest.PageData{
			{
				PageNumber: 1,
				Text:       "Combat\n" + body,
				Spans:      []structure.FontSpan{headingSpan("Combat"), bodySpan(body)},
			},
			{
				PageNumber: 2,
				Text:       "Spellcasting\n" + body,
				Spans:      []structure.FontSpan{headingSpan("Spellcasting"), bodySpan(body)},
			},
		},
	}
}

func TestPipelineProducesAnnotatedPayloads(t *testing.T) {
	p := NewPipeline(embed.NewStaticEmbedder())

	payloads, vectors, err := p.ProcessDocument(context.Background(), annotatedDoc())
	require.NoError(t, err)
	require.NotEmpty(t, payloads)
	require.Len(t, vectors, len(payloads))

	for _, vec := range vectors {
		assert.Len(t, vec, embed.StaticDimensions)
	}

	first := payloads[0]
	assert.Equal(t, "phb", first.DocumentID)
	assert.Equal(t, 1, first.Page)
	assert.Equal(t, "Combat", first.Metadata["h1"])
	assert.Equal(t, "Combat", first.Metadata[structure.MetaSection])
	assert.Equal(t, "phb.pdf", first.Metadata["source"])
	assert.Equal(t, "5e", first.Metadata["edition"])

	last := payloads[len(payloads)-1]
	assert.Equal(t, "Spellcasting", last.Metadata["h1"])
}

func TestPipelineRejectsDocumentWithoutText(t *testing.T) {
	p := NewPipeline(embed.NewStaticEmbedder())

	doc := &ingest.Document{
		ID:         "blank",
		Source:     "blank.pdf",
		TotalPages: 2,
		Pages: []ingest.PageData{
			{PageNumber: 1, Text: "   "},
			{PageNumber: 2, Text: ""},
		},
	}

	_, _, err := p.ProcessDocument(context.Background(), doc)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeMalformedDocument))
}
