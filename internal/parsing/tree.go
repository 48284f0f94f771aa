// Package parsing turns source file content into chunks, call edges,
// and type edges in a single tree-sitter pass per file (SPEC_FULL.md
// §4.2). Grounded on the teacher's internal/chunk package: the same
// tree-sitter wrapper and Node/Walk traversal idiom, extended with
// call-edge and type-edge extraction the teacher never performed.
package parsing

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jamie8johnson/cqs-sub000/internal/cqserrors"
	"github.com/jamie8johnson/cqs-sub000/internal/model"
)

// Point is a 0-indexed (row, column) source position.
type Point struct {
	Row    uint32
	Column uint32
}

// Node is a language-agnostic AST node, converted once from the
// tree-sitter tree so the rest of the package never touches cgo-free
// but still awkward sitter.Node values directly.
type Node struct {
	Type       string
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
	Children   []*Node
}

// GetContent returns the node's source slice.
func (n *Node) GetContent(source []byte) string {
	if n.StartByte >= n.EndByte || int(n.EndByte) > len(source) {
		return ""
	}
	return string(source[n.StartByte:n.EndByte])
}

// FindChildByType returns the first direct child of the given type.
func (n *Node) FindChildByType(nodeType string) *Node {
	for _, c := range n.Children {
		if c.Type == nodeType {
			return c
		}
	}
	return nil
}

// FindChildrenByType returns all direct children of the given type.
func (n *Node) FindChildrenByType(nodeType string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Type == nodeType {
			out = append(out, c)
		}
	}
	return out
}

// FindAllByType recursively collects all nodes of the given type.
func (n *Node) FindAllByType(nodeType string) []*Node {
	var out []*Node
	if n.Type == nodeType {
		out = append(out, n)
	}
	for _, c := range n.Children {
		out = append(out, c.FindAllByType(nodeType)...)
	}
	return out
}

// Walk traverses the tree depth-first, calling fn for every node. fn
// returns false to stop descending into that node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Tree is a parsed source file.
type Tree struct {
	Root     *Node
	Source   []byte
	Language model.Language
}

// Parser wraps a tree-sitter parser and a language registry.
type Parser struct {
	ts       *sitter.Parser
	registry *LanguageRegistry
}

// NewParser creates a Parser using the default language registry.
func NewParser() *Parser {
	return &Parser{ts: sitter.NewParser(), registry: DefaultRegistry()}
}

// NewParserWithRegistry creates a Parser using a custom registry.
func NewParserWithRegistry(r *LanguageRegistry) *Parser {
	return &Parser{ts: sitter.NewParser(), registry: r}
}

// Close releases the underlying tree-sitter parser.
func (p *Parser) Close() { p.ts.Close() }

// Parse produces a Tree for source in the given language. It returns
// a ParseFailure-kind error when tree-sitter fails to produce a root
// node, per SPEC_FULL.md §4.2.
func (p *Parser) Parse(ctx context.Context, source []byte, lang model.Language) (*Tree, error) {
	tsLang, ok := p.registry.GetTreeSitterLanguage(lang)
	if !ok {
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}
	p.ts.SetLanguage(tsLang)

	tsTree, err := p.ts.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, cqserrors.ParseFailure("parse_file_relationships", "", err)
	}
	if tsTree == nil || tsTree.RootNode() == nil {
		return nil, cqserrors.ParseFailure("parse_file_relationships", "", fmt.Errorf("tree-sitter produced no root node"))
	}

	return &Tree{
		Root:     convertNode(tsTree.RootNode()),
		Source:   source,
		Language: lang,
	}, nil
}

func convertNode(tsNode *sitter.Node) *Node {
	if tsNode == nil {
		return nil
	}
	n := &Node{
		Type:       tsNode.Type(),
		StartByte:  tsNode.StartByte(),
		EndByte:    tsNode.EndByte(),
		StartPoint: Point{Row: tsNode.StartPoint().Row, Column: tsNode.StartPoint().Column},
		EndPoint:   Point{Row: tsNode.EndPoint().Row, Column: tsNode.EndPoint().Column},
		Children:   make([]*Node, 0, int(tsNode.ChildCount())),
	}
	for i := uint32(0); i < tsNode.ChildCount(); i++ {
		if child := tsNode.Child(int(i)); child != nil {
			n.Children = append(n.Children, convertNode(child))
		}
	}
	return n
}
