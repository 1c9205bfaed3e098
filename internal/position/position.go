// Package position tracks locations inside tree documents so decode errors
// can point at the offending node.
package position

import (
	"fmt"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Position represents a single point in a document
type Position struct {
	Filename string // Document file name, empty for anonymous input
	Line     int    // 1-based line number
	Column   int    // 1-based column number
}

// FromNode returns the position of a YAML node in filename.
func FromNode(filename string, node *yaml.Node) Position {
	return Position{Filename: filename, Line: node.Line, Column: node.Column}
}

// IsValid returns true if the position is valid
func (p Position) IsValid() bool {
	return p.Line > 0 && p.Column > 0
}

// String returns a string representation of the position
func (p Position) String() string {
	switch {
	case !p.IsValid() && p.Filename != "":
		return filepath.Base(p.Filename)
	case !p.IsValid():
		return "-"
	case p.Filename != "":
		return fmt.Sprintf("%s:%d:%d", filepath.Base(p.Filename), p.Line, p.Column)
	default:
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
}
