package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/loreseek/loreseek/internal/errors"
)

// DirSource reads extracted documents from a spool directory, one
// .json file per document in the Document shape. The extraction
// collaborator drops files here; the rebuild pipeline picks them up.
type DirSource struct {
	dir string
}

// NewDirSource creates a source over the given directory.
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

var _ DocumentSource = (*DirSource)(nil)

// List returns document IDs, derived from file names without extension.
func (s *DirSource) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read spool directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if id, ok := strings.CutSuffix(entry.Name(), ".json"); ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Load parses one document file. Pages are sorted by page number and a
// missing total page count is inferred. Unparseable files surface as
// malformed-document errors so the pipeline can skip them.
func (s *DirSource) Load(ctx context.Context, id string) (*Document, error) {
	path := filepath.Join(s.dir, id+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeBlobNotFound,
				fmt.Sprintf("document %s not found", id), err)
		}
		return nil, fmt.Errorf("read document %s: %w", id, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.New(errors.ErrCodeMalformedDocument,
			fmt.Sprintf("document %s is not valid JSON", id), err)
	}
	if doc.ID == "" {
		doc.ID = id
	}
	if doc.Source == "" {
		doc.Source = id + ".pdf"
	}

	sort.Slice(doc.Pages, func(i, j int) bool {
		return doc.Pages[i].PageNumber < doc.Pages[j].PageNumber
	})
	if doc.TotalPages == 0 && len(doc.Pages) > 0 {
		doc.TotalPages = doc.Pages[len(doc.Pages)-1].PageNumber
	}
	return &doc, nil
}
