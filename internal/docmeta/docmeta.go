// Package docmeta extracts metadata from markdown documents: YAML
// frontmatter fields, the document title, and outbound links. The
// sourcing routine uses it to enrich file nodes for document files;
// other file types carry no metadata.
package docmeta

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Meta is the metadata extracted from one markdown document.
type Meta struct {
	// Title is the frontmatter title when present, otherwise the text
	// of the first level-1 heading. Empty when the document has neither.
	Title string
	// FrontMatter holds the parsed YAML frontmatter fields. Nil when
	// the document has no frontmatter block.
	FrontMatter map[string]any
	// Links lists outbound link destinations in document order,
	// deduplicated. Fragments and special protocols are excluded.
	Links []string
}

// IsDocument reports whether path names a markdown document.
func IsDocument(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return true
	}
	return false
}

// Extract parses a markdown document and returns its metadata.
func Extract(content []byte) (*Meta, error) {
	fm, body, had, err := Split(content)
	if err != nil {
		return nil, err
	}

	meta := &Meta{}
	if had {
		fields, err := ParseYAML(fm)
		if err != nil {
			return nil, fmt.Errorf("parse frontmatter: %w", err)
		}
		meta.FrontMatter = fields
	}

	if title, ok := meta.FrontMatter["title"].(string); ok && strings.TrimSpace(title) != "" {
		meta.Title = strings.TrimSpace(title)
	} else {
		meta.Title = firstHeading(body)
	}

	links, err := extractLinks(body)
	if err != nil {
		return nil, err
	}
	meta.Links = links

	return meta, nil
}
