// Package ui provides terminal output for rebuild progress, index
// status, and search results.
package ui

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage represents a rebuild stage.
type Stage int

const (
	// StageStaging is collection staging.
	StageStaging Stage = iota
	// StageEmbedding is embedding generation.
	StageEmbedding
	// StageIndexing is index building.
	StageIndexing
	// StageSwapping is the alias swap.
	StageSwapping
	// StageComplete indicates the run is done.
	StageComplete
)

// String returns the human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageStaging:
		return "Staging"
	case StageEmbedding:
		return "Embedding"
	case StageIndexing:
		return "Indexing"
	case StageSwapping:
		return "Swapping"
	case StageComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Icon returns the short stage tag for plain text output.
func (s Stage) Icon() string {
	switch s {
	case StageStaging:
		return "STAGE"
	case StageEmbedding:
		return "EMBED"
	case StageIndexing:
		return "INDEX"
	case StageSwapping:
		return "SWAP"
	case StageComplete:
		return "DONE"
	default:
		return "???"
	}
}

// ProgressEvent is one progress update.
type ProgressEvent struct {
	Stage    Stage
	Current  int
	Total    int
	Document string
	Message  string
}

// ErrorEvent is an error during a run.
type ErrorEvent struct {
	Document string
	Err      error
	IsWarn   bool
}

// CompletionStats summarizes a finished rebuild.
type CompletionStats struct {
	Documents int
	Chunks    int
	Duration  time.Duration
	Errors    int
	Warnings  int

	EmbedderBackend string
	EmbedderModel   string
	Dimensions      int
}

// Renderer displays rebuild progress.
type Renderer interface {
	UpdateProgress(event ProgressEvent)
	AddError(event ErrorEvent)
	Complete(stats CompletionStats)
}

// Config configures output rendering.
type Config struct {
	Output  io.Writer
	NoColor bool
}

// NewConfig builds a rendering config, honoring NO_COLOR and non-TTY
// outputs.
func NewConfig(output io.Writer) Config {
	return Config{
		Output:  output,
		NoColor: DetectNoColor() || !IsTTY(output),
	}
}

// IsTTY reports whether the writer is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor reports whether NO_COLOR is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI reports whether we appear to run under CI.
func DetectCI() bool {
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}
	for _, v := range ciVars {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
