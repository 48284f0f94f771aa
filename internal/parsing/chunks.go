package parsing

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/jamie8johnson/cqs-sub000/internal/model"
)

const contentHashPrefixLen = 16

// contentHash hashes content after normalizing line endings to LF, per
// SPEC_FULL.md §4.2.
func contentHash(content string) string {
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

func hashPrefix(full string) string {
	if len(full) < contentHashPrefixLen {
		return full
	}
	return full[:contentHashPrefixLen]
}

// extractChunks walks the tree and produces one Chunk per structural
// unit matched by the language's node-type configuration. Grounded on
// the teacher's SymbolExtractor.Extract (internal/chunk/extractor.go),
// generalized to emit model.Chunk directly (signature/doc/content) plus
// the chunk-type/edge-kind vocabulary the teacher never tracked.
func extractChunks(tree *Tree, origin string, cfg *LanguageConfig) []*model.Chunk {
	if tree == nil || tree.Root == nil {
		return []*model.Chunk{}
	}

	var chunks []*model.Chunk
	tree.Root.Walk(func(n *Node) bool {
		if c := chunkFromNode(n, tree.Source, origin, cfg, tree.Language); c != nil {
			chunks = append(chunks, c)
		}
		return true
	})

	if len(chunks) == 0 {
		if c := sectionChunk(tree, origin); c != nil {
			chunks = append(chunks, c)
		}
	}

	return chunks
}

func classify(n *Node, cfg *LanguageConfig) (model.ChunkType, bool) {
	for _, t := range cfg.FunctionTypes {
		if n.Type == t {
			return model.ChunkTypeFunction, true
		}
	}
	for _, t := range cfg.MethodTypes {
		if n.Type == t {
			return model.ChunkTypeMethod, true
		}
	}
	for _, t := range cfg.ClassTypes {
		if n.Type == t {
			return model.ChunkTypeClass, true
		}
	}
	for _, t := range cfg.InterfaceTypes {
		if n.Type == t {
			return model.ChunkTypeInterface, true
		}
	}
	for _, t := range cfg.TypeDefTypes {
		if n.Type == t {
			return model.ChunkTypeStruct, true
		}
	}
	for _, t := range cfg.ConstantTypes {
		if n.Type == t {
			return model.ChunkTypeConstant, true
		}
	}
	return "", false
}

func chunkFromNode(n *Node, source []byte, origin string, cfg *LanguageConfig, lang model.Language) *model.Chunk {
	chunkType, ok := classify(n, cfg)
	if !ok {
		return nil
	}

	name := extractName(n, source, lang)
	if name == "" {
		return nil
	}

	content := n.GetContent(source)
	if content == "" {
		return nil
	}

	lineStart := int(n.StartPoint.Row) + 1
	lineEnd := int(n.EndPoint.Row) + 1
	hash := contentHash(content)
	id := model.BuildChunkID(origin, lineStart, hashPrefix(hash), nil)

	return &model.Chunk{
		ID:          id,
		Origin:      origin,
		Name:        name,
		ChunkType:   chunkType,
		Language:    lang,
		LineStart:   lineStart,
		LineEnd:     lineEnd,
		Signature:   extractSignature(content, chunkType, lang),
		Doc:         extractDocComment(n, source, lang),
		Content:     content,
		ContentHash: hash,
	}
}

// sectionChunk builds the fallback whole-file chunk used when no
// structural unit matched (SPEC_FULL.md §4.2 edge-case policy).
func sectionChunk(tree *Tree, origin string) *model.Chunk {
	content := strings.TrimSpace(string(tree.Source))
	if content == "" {
		return nil
	}
	lineStart := 1
	lineEnd := strings.Count(string(tree.Source), "\n") + 1
	hash := contentHash(content)
	id := model.BuildChunkID(origin, lineStart, hashPrefix(hash), nil)
	return &model.Chunk{
		ID:          id,
		Origin:      origin,
		Name:        "",
		ChunkType:   model.ChunkTypeSection,
		Language:    tree.Language,
		LineStart:   lineStart,
		LineEnd:     lineEnd,
		Content:     content,
		ContentHash: hash,
	}
}

func extractName(n *Node, source []byte, lang model.Language) string {
	switch lang {
	case model.LanguageGo:
		return extractGoName(n, source)
	case model.LanguageTypeScript, model.LanguageTSX, model.LanguageJavaScript, model.LanguageJSX:
		return extractJSName(n, source)
	case model.LanguagePython:
		return firstChildOfType(n, source, "identifier")
	default:
		return firstChildOfType(n, source, "identifier")
	}
}

func firstChildOfType(n *Node, source []byte, t string) string {
	for _, c := range n.Children {
		if c.Type == t {
			return c.GetContent(source)
		}
	}
	return ""
}

func extractGoName(n *Node, source []byte) string {
	switch n.Type {
	case "function_declaration":
		return firstChildOfType(n, source, "identifier")
	case "method_declaration":
		return firstChildOfType(n, source, "field_identifier")
	case "type_declaration":
		for _, c := range n.Children {
			if c.Type == "type_spec" {
				return firstChildOfType(c, source, "type_identifier")
			}
		}
	case "const_declaration":
		for _, c := range n.Children {
			if c.Type == "const_spec" {
				return firstChildOfType(c, source, "identifier")
			}
		}
	}
	return ""
}

func extractJSName(n *Node, source []byte) string {
	if n.Type == "lexical_declaration" || n.Type == "variable_declaration" {
		for _, c := range n.Children {
			if c.Type == "variable_declarator" {
				return firstChildOfType(c, source, "identifier")
			}
		}
	}
	if name := firstChildOfType(n, source, "identifier"); name != "" {
		return name
	}
	return firstChildOfType(n, source, "type_identifier")
}

// extractDocComment scans the raw byte buffer for a comment line
// immediately preceding the node, per language convention. Ported
// from the teacher's SymbolExtractor.extractDocComment.
func extractDocComment(n *Node, source []byte, lang model.Language) string {
	if lang == model.LanguagePython {
		return "" // docstrings live inside the body, not before it
	}
	if n.StartPoint.Row == 0 {
		return ""
	}

	lineStart := int(n.StartByte)
	for lineStart > 0 && source[lineStart-1] != '\n' {
		lineStart--
	}
	if lineStart <= 1 {
		return ""
	}
	prevLineEnd := lineStart - 1
	prevLineStart := prevLineEnd - 1
	for prevLineStart > 0 && source[prevLineStart-1] != '\n' {
		prevLineStart--
	}
	prevLine := strings.TrimSpace(string(source[prevLineStart:prevLineEnd]))
	if strings.HasPrefix(prevLine, "//") {
		return strings.TrimSpace(strings.TrimPrefix(prevLine, "//"))
	}
	if strings.HasPrefix(prevLine, "#") {
		return strings.TrimSpace(strings.TrimPrefix(prevLine, "#"))
	}
	return ""
}

// extractSignature slices the declaration text down to (not including)
// its body, per language punctuation convention.
func extractSignature(content string, chunkType model.ChunkType, lang model.Language) string {
	firstLine := strings.TrimSpace(strings.SplitN(content, "\n", 2)[0])

	if lang == model.LanguagePython {
		return firstLine
	}
	if idx := strings.Index(firstLine, "{"); idx != -1 {
		return strings.TrimSpace(firstLine[:idx])
	}
	if chunkType == model.ChunkTypeFunction && strings.Contains(firstLine, "=>") {
		return firstLine
	}
	return firstLine
}
