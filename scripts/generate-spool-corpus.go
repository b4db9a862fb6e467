//go:build ignore

// Generates a synthetic spool of extracted rulebook documents for
// benchmarking rebuilds and retrieval quality.
// Usage: go run scripts/generate-spool-corpus.go -docs 50 -pages 30 -output spool/bench
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

var (
	numDocs   = flag.Int("docs", 50, "Number of documents to generate")
	numPages  = flag.Int("pages", 30, "Pages per document")
	outputDir = flag.String("output", "spool/bench", "Output directory")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var chapters = []string{
	"Combat", "Spellcasting", "Equipment", "Adventuring", "Monsters",
	"Conditions", "Downtime", "Exploration", "Treasure", "Factions",
}

var sections = []string{
	"Attack Rolls", "Saving Throws", "Damage and Healing", "Cover",
	"Grappling", "Mounted Combat", "Underwater Combat", "Opportunity Attacks",
	"Spell Slots", "Concentration", "Ritual Casting", "Components",
}

var sentences = []string{
	"When a creature makes an attack roll, it rolls a d20 and adds the relevant modifiers.",
	"A spell slot of 3rd level or higher increases the damage by 1d6 per slot level.",
	"On a failed save, the target takes 8d6 fire damage, or half as much on a success.",
	"The condition lasts until the end of the creature's next turn.",
	"A creature within 5 feet of you provokes an opportunity attack when it leaves your reach.",
	"While grappled, a creature's speed becomes 0 and it cannot benefit from bonuses to speed.",
	"Concentration ends early if you cast another concentration spell or take damage and fail the save.",
	"Heavy armor imposes disadvantage on Dexterity (Stealth) checks.",
	"The DC equals 8 plus your proficiency bonus plus your spellcasting ability modifier.",
	"A ritual version of the spell takes 10 minutes longer to cast and consumes no spell slot.",
}

type fontSpan struct {
	Font string  `json:"font"`
	Size float64 `json:"size"`
	Bold bool    `json:"bold,omitempty"`
	Text string  `json:"text"`
}

type pageData struct {
	PageNumber int        `json:"page_number"`
	Text       string     `json:"text"`
	Spans      []fontSpan `json:"spans"`
}

type document struct {
	ID         string            `json:"id"`
	Source     string            `json:"source"`
	TotalPages int               `json:"total_pages"`
	Metadata   map[string]string `json:"metadata"`
	Pages      []pageData        `json:"pages"`
}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	for i := 0; i < *numDocs; i++ {
		id := fmt.Sprintf("book-%03d", i)
		if err := writeDoc(rng, id); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	fmt.Printf("Generated %d documents (%d pages each) in %s\n", *numDocs, *numPages, *outputDir)
}

func writeDoc(rng *rand.Rand, id string) error {
	doc := document{
		ID:         id,
		Source:     id + ".pdf",
		TotalPages: *numPages,
		Metadata:   map[string]string{"edition": "5e", "synthetic": "true"},
	}

	for p := 1; p <= *numPages; p++ {
		var spans []fontSpan
		var text strings.Builder

		// Chapter heading every 10 pages, section heading on the rest.
		if p%10 == 1 {
			h := chapters[rng.Intn(len(chapters))]
			spans = append(spans, fontSpan{Font: "Mentor", Size: 24, Bold: true, Text: h})
			text.WriteString(h + "\n")
		} else if p%3 == 1 {
			h := sections[rng.Intn(len(sections))]
			spans = append(spans, fontSpan{Font: "Mentor", Size: 16, Bold: true, Text: h})
			text.WriteString(h + "\n")
		}

		var body strings.Builder
		for s := 0; s < 15; s++ {
			body.WriteString(sentences[rng.Intn(len(sentences))])
			body.WriteString(" ")
		}
		spans = append(spans, fontSpan{Font: "Bookman", Size: 10, Text: body.String()})
		text.WriteString(body.String())

		doc.Pages = append(doc.Pages, pageData{PageNumber: p, Text: text.String(), Spans: spans})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(*outputDir, id+".json"), data, 0o644)
}
