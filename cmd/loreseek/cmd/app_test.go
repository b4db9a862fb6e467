package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loreseek/loreseek/internal/ingest"
	"github.com/loreseek/loreseek/internal/structure"
)

// workspace sets up a project directory with a config, a spooled
// document, and isolated user config, then chdirs into it.
func workspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("NO_COLOR", "1")

	cfg := fmt.Sprintf(`version: 1
storage:
  data_dir: %s
  blob_path: %s
sources:
  spool_dir: %s
  collections: [phb]
embeddings:
  provider: static
`,
		filepath.Join(dir, "data"),
		filepath.Join(dir, "state.db"),
		filepath.Join(dir, "spool"),
	)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".loreseek.yaml"), []byte(cfg), 0o644))

	spoolDir := filepath.Join(dir, "spool", "phb")
	require.NoError(t, os.MkdirAll(spoolDir, 0o755))
	writeSpoolDoc(t, spoolDir, "phb")

	t.Chdir(dir)
	return dir
}

func writeSpoolDoc(t *testing.T, dir, id string) {
	t.Helper()
	body := strings.Repeat("A fireball deals 8d6 fire damage in a twenty foot radius. ", 5)
	doc := ingest.Document{
		ID:         id,
		Source:     id + ".pdf",
		TotalPages: 2,
		Pages: []ingest.PageData{
			{
				PageNumber: 1,
				Text:       "Spellcasting\n" + body,
				Spans: []structure.FontSpan{
					{Font: "Mentor", Size: 24, Bold: true, Text: "Spellcasting"},
					{Font: "Bookman", Size: 10, Text: body},
				},
			},
			{
				PageNumber: 2,
				Text:       "Combat\n" + body,
				Spans: []structure.FontSpan{
					{Font: "Mentor", Size: 24, Bold: true, Text: "Combat"},
					{Font: "Bookman", Size: 10, Text: body},
				},
			},
		},
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, id+".json"), data, 0o644))
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRebuildThenSearch(t *testing.T) {
	workspace(t)

	out, err := runCLI(t, "rebuild", "--offline")
	require.NoError(t, err, out)
	assert.Contains(t, out, "chunks indexed")

	out, err = runCLI(t, "search", "fireball damage", "--offline", "--format", "json")
	require.NoError(t, err, out)
	assert.Contains(t, out, "fireball")
	assert.Contains(t, out, "phb.pdf")
}

func TestSearchWithoutIndexFails(t *testing.T) {
	workspace(t)

	out, err := runCLI(t, "search", "fireball", "--offline")
	require.Error(t, err, out)
	assert.Contains(t, err.Error(), "rebuild")
}

func TestPageCommand(t *testing.T) {
	workspace(t)

	_, err := runCLI(t, "rebuild", "--offline")
	require.NoError(t, err)

	out, err := runCLI(t, "page", "phb.pdf", "1", "--offline")
	require.NoError(t, err, out)
	assert.Contains(t, out, "phb.pdf p.1")
	assert.Contains(t, out, "fireball")

	_, err = runCLI(t, "page", "phb.pdf", "999", "--offline")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no indexed content")
}

func TestPageRejectsBadNumber(t *testing.T) {
	workspace(t)

	_, err := runCLI(t, "page", "phb.pdf", "zero")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "positive number")
}

func TestStatusReportsCollectionsAndRuns(t *testing.T) {
	workspace(t)

	_, err := runCLI(t, "rebuild", "--offline")
	require.NoError(t, err)

	out, err := runCLI(t, "status", "--json")
	require.NoError(t, err, out)

	var info struct {
		Collections []struct {
			Name   string `json:"name"`
			Points int    `json:"points"`
		} `json:"collections"`
		Aliases  map[string]string `json:"aliases"`
		LastRuns []struct {
			Base   string `json:"base"`
			Status string `json:"status"`
		} `json:"last_runs"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	require.Len(t, info.Collections, 1)
	assert.Positive(t, info.Collections[0].Points)
	assert.Contains(t, info.Aliases, "phb_live")
	require.Len(t, info.LastRuns, 1)
	assert.Equal(t, "committed", info.LastRuns[0].Status)
}

func TestReconcileListEmpty(t *testing.T) {
	workspace(t)

	out, err := runCLI(t, "reconcile", "--list")
	require.NoError(t, err, out)
	assert.Contains(t, out, "No bases awaiting reconciliation")
}

func TestInitWritesTemplateAndBacksUp(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	out, err := runCLI(t, "init")
	require.NoError(t, err, out)
	data, err := os.ReadFile(".loreseek.yaml")
	require.NoError(t, err)
	assert.Contains(t, string(data), "collections:")

	out, err = runCLI(t, "init")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Backed up")
}

func TestRebuildUnknownBaseFails(t *testing.T) {
	workspace(t)

	_, err := runCLI(t, "rebuild", "mm", "--offline")
	require.Error(t, err)
}
