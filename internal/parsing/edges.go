package parsing

import (
	"regexp"
	"strings"

	"github.com/jamie8johnson/cqs-sub000/internal/model"
)

// extractCallEdges walks the tree for call-site nodes and resolves
// each to its enclosing chunk by line range. The callee is recorded
// by name, not id: SPEC_FULL.md §3 requires this because cross-file
// call resolution is heuristic, not a compile-time fact.
func extractCallEdges(tree *Tree, cfg *LanguageConfig, chunks []*model.Chunk) []model.CallEdge {
	var edges []model.CallEdge
	if tree == nil || tree.Root == nil || len(cfg.CallTypes) == 0 {
		return edges
	}

	callables := callableChunks(chunks)

	for _, callType := range cfg.CallTypes {
		for _, callNode := range tree.Root.FindAllByType(callType) {
			calleeName := resolveCalleeName(callNode, tree.Source)
			if calleeName == "" {
				continue
			}
			line := int(callNode.StartPoint.Row) + 1
			enclosing := enclosingChunk(callables, line)
			if enclosing == nil {
				continue
			}
			edges = append(edges, model.CallEdge{
				CallerChunkID: enclosing.ID,
				CalleeName:    calleeName,
				CallLine:      line,
			})
		}
	}
	return edges
}

func callableChunks(chunks []*model.Chunk) []*model.Chunk {
	var out []*model.Chunk
	for _, c := range chunks {
		if c.ChunkType.IsCallable() {
			out = append(out, c)
		}
	}
	return out
}

// enclosingChunk returns the most deeply nested callable chunk whose
// line range contains line (the chunk with the largest LineStart that
// still covers the call site).
func enclosingChunk(callables []*model.Chunk, line int) *model.Chunk {
	var best *model.Chunk
	for _, c := range callables {
		if line < c.LineStart || line > c.LineEnd {
			continue
		}
		if best == nil || c.LineStart > best.LineStart {
			best = c
		}
	}
	return best
}

// resolveCalleeName extracts the invoked name from a call node. The
// function being called is typically the first non-argument-list
// child; for member access (selector/member/attribute) the callee is
// the rightmost identifier.
func resolveCalleeName(callNode *Node, source []byte) string {
	if len(callNode.Children) == 0 {
		return ""
	}
	target := callNode.Children[0]
	return rightmostIdentifier(target, source)
}

func rightmostIdentifier(n *Node, source []byte) string {
	switch n.Type {
	case "identifier", "field_identifier", "property_identifier", "type_identifier":
		return n.GetContent(source)
	case "selector_expression", "member_expression", "attribute":
		if len(n.Children) > 0 {
			return rightmostIdentifier(n.Children[len(n.Children)-1], source)
		}
	}
	// Fall back: deepest identifier-like leaf.
	for i := len(n.Children) - 1; i >= 0; i-- {
		if name := rightmostIdentifier(n.Children[i], source); name != "" {
			return name
		}
	}
	return ""
}

var typeNamePattern = regexp.MustCompile(`\b[A-Z][A-Za-z0-9_]*\b`)

// extractTypeEdges derives type references from each chunk's signature
// (parameter/return types) and from class/interface headers
// (extends/implements), plus import declarations at the file level.
// This is a heuristic text scan over already-extracted signatures
// rather than a further grammar-specific AST walk, since the parser's
// per-language declaration grammars diverge the most at the type level.
func extractTypeEdges(tree *Tree, cfg *LanguageConfig, chunks []*model.Chunk) []model.TypeEdge {
	var edges []model.TypeEdge
	if tree == nil {
		return edges
	}

	for _, c := range chunks {
		if c.Signature == "" {
			continue
		}
		switch c.ChunkType {
		case model.ChunkTypeFunction, model.ChunkTypeMethod:
			edges = append(edges, signatureTypeEdges(c)...)
		case model.ChunkTypeClass, model.ChunkTypeStruct, model.ChunkTypeInterface:
			edges = append(edges, headerTypeEdges(c)...)
		}
	}

	for _, importType := range cfg.ImportTypes {
		for _, node := range tree.Root.FindAllByType(importType) {
			name := rightmostIdentifier(node, tree.Source)
			if name == "" {
				continue
			}
			edges = append(edges, model.TypeEdge{
				SourceChunkID:  model.BuildChunkID(string(tree.Language), int(node.StartPoint.Row)+1, "import", nil),
				TargetTypeName: name,
				Kind:           model.EdgeKindImport,
				Line:           int(node.StartPoint.Row) + 1,
			})
		}
	}

	return edges
}

func signatureTypeEdges(c *model.Chunk) []model.TypeEdge {
	parenIdx := strings.Index(c.Signature, "(")
	closeIdx := strings.LastIndex(c.Signature, ")")
	var edges []model.TypeEdge

	if parenIdx >= 0 && closeIdx > parenIdx {
		params := c.Signature[parenIdx+1 : closeIdx]
		for _, name := range typeNamePattern.FindAllString(params, -1) {
			edges = append(edges, model.TypeEdge{
				SourceChunkID:  c.ID,
				TargetTypeName: name,
				Kind:           model.EdgeKindParam,
				Line:           c.LineStart,
			})
		}
		ret := c.Signature[closeIdx+1:]
		for _, name := range typeNamePattern.FindAllString(ret, -1) {
			edges = append(edges, model.TypeEdge{
				SourceChunkID:  c.ID,
				TargetTypeName: name,
				Kind:           model.EdgeKindReturn,
				Line:           c.LineStart,
			})
		}
	}
	return edges
}

func headerTypeEdges(c *model.Chunk) []model.TypeEdge {
	var edges []model.TypeEdge
	lower := strings.ToLower(c.Signature)
	kind := model.EdgeKindImpl
	if strings.Contains(lower, "extends") {
		kind = model.EdgeKindExtends
	}
	idx := strings.IndexAny(c.Signature, "(")
	rest := c.Signature
	if strings.Contains(lower, "extends") {
		if i := strings.Index(lower, "extends"); i >= 0 {
			rest = c.Signature[i+len("extends"):]
		}
	} else if strings.Contains(lower, "implements") {
		if i := strings.Index(lower, "implements"); i >= 0 {
			rest = c.Signature[i+len("implements"):]
		}
	} else if idx >= 0 {
		rest = c.Signature[idx:]
	}
	for _, name := range typeNamePattern.FindAllString(rest, -1) {
		if name == c.Name {
			continue
		}
		edges = append(edges, model.TypeEdge{
			SourceChunkID:  c.ID,
			TargetTypeName: name,
			Kind:           kind,
			Line:           c.LineStart,
		})
	}
	return edges
}
