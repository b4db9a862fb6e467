package structure

import (
	"fmt"
	"strings"
)

// Metadata keys emitted by Context.Metadata.
const (
	MetaSection     = "section"
	MetaSubsection  = "subsection"
	MetaHeadingPath = "heading_path"

	headingPathSeparator = " > "
)

// Context is the heading hierarchy in effect at a point in a document.
type Context struct {
	// HeadingPath is the ordered chain of headings from the outermost
	// section down to the current one.
	HeadingPath []string

	// Section is the outermost heading (level closest to 1) on the path.
	Section string

	// Subsection is the second heading on the path, if any.
	Subsection string

	// Levels maps heading level (1..6) to the most recent heading text at
	// that level on the current path.
	Levels map[int]string
}

// CurrentContext snapshots the analyzer's heading path.
func (a *Analyzer) CurrentContext() Context {
	ctx := Context{Levels: make(map[int]string, len(a.path))}
	for _, entry := range a.path {
		ctx.HeadingPath = append(ctx.HeadingPath, entry.text)
		ctx.Levels[entry.level] = entry.text
	}
	if len(ctx.HeadingPath) > 0 {
		ctx.Section = ctx.HeadingPath[0]
	}
	if len(ctx.HeadingPath) > 1 {
		ctx.Subsection = ctx.HeadingPath[1]
	}
	return ctx
}

// Metadata flattens the context into string metadata carried by chunks:
// h1..h6 keys, section, subsection, and the joined heading path.
func (c Context) Metadata() map[string]string {
	m := make(map[string]string, len(c.Levels)+3)
	for level, text := range c.Levels {
		m[fmt.Sprintf("h%d", level)] = text
	}
	if c.Section != "" {
		m[MetaSection] = c.Section
	}
	if c.Subsection != "" {
		m[MetaSubsection] = c.Subsection
	}
	if len(c.HeadingPath) > 0 {
		m[MetaHeadingPath] = strings.Join(c.HeadingPath, headingPathSeparator)
	}
	return m
}
