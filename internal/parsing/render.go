package parsing

import (
	"strings"

	"github.com/jamie8johnson/cqs-sub000/internal/model"
)

// RenderNL produces a short natural-language description of a chunk
// for embedding, per SPEC_FULL.md §4.2:
// "A <chunk_type> named <name> that takes <params> and returns
// <return>; doc: <first-line>; body keywords: …"
func RenderNL(c *model.Chunk) string {
	var b strings.Builder

	if c.ChunkType == model.ChunkTypeSection {
		b.WriteString(stripMarkdown(firstLine(c.Content)))
		return b.String()
	}

	b.WriteString("A ")
	b.WriteString(string(c.ChunkType))
	if c.Name != "" {
		b.WriteString(" named ")
		b.WriteString(c.Name)
	}

	if hasStaticTypes(c.Language) && c.Signature != "" {
		params, ret := splitParamsReturn(c.Signature)
		if params != "" {
			b.WriteString(" that takes ")
			b.WriteString(params)
		}
		if ret != "" {
			b.WriteString(" and returns ")
			b.WriteString(ret)
		}
	}

	if c.Doc != "" {
		b.WriteString("; doc: ")
		b.WriteString(firstLine(c.Doc))
	}

	if kw := bodyKeywords(c.Content); kw != "" {
		b.WriteString("; body keywords: ")
		b.WriteString(kw)
	}

	return b.String()
}

func hasStaticTypes(lang model.Language) bool {
	switch lang {
	case model.LanguageGo, model.LanguageTypeScript, model.LanguageTSX:
		return true
	default:
		return false
	}
}

func splitParamsReturn(signature string) (params, ret string) {
	open := strings.Index(signature, "(")
	close := strings.LastIndex(signature, ")")
	if open < 0 || close <= open {
		return "", ""
	}
	params = strings.TrimSpace(signature[open+1 : close])
	ret = strings.TrimSpace(signature[close+1:])
	return params, ret
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}

func stripMarkdown(s string) string {
	s = strings.TrimLeft(s, "#* -")
	return strings.TrimSpace(s)
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "of": true,
	"to": true, "in": true, "if": true, "for": true, "is": true, "it": true,
	"return": true, "func": true, "def": true, "var": true, "let": true, "const": true,
}

// bodyKeywords extracts up to 8 distinct lowercase identifier-like
// tokens from the body, skipping common keywords, as a lightweight
// signal for embedding quality.
func bodyKeywords(content string) string {
	fields := strings.FieldsFunc(content, func(r rune) bool {
		return !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'))
	})
	seen := make(map[string]bool, 8)
	var out []string
	for _, f := range fields {
		lf := strings.ToLower(f)
		if len(lf) < 3 || stopWords[lf] || seen[lf] {
			continue
		}
		seen[lf] = true
		out = append(out, lf)
		if len(out) >= 8 {
			break
		}
	}
	return strings.Join(out, ", ")
}
