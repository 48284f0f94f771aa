package parsing

import (
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/jamie8johnson/cqs-sub000/internal/model"
)

// LanguageConfig describes the tree-sitter node vocabulary for one
// language: which node types declare which chunk types, which node
// types are call sites, and which identifier node types carry names.
// Extends the teacher's LanguageConfig (internal/chunk/languages.go)
// with CallTypes/ImportTypes/TestNamePrefix for structural-query
// support the teacher never needed.
type LanguageConfig struct {
	Name       model.Language
	Extensions []string

	FunctionTypes  []string
	MethodTypes    []string
	ClassTypes     []string
	InterfaceTypes []string
	TypeDefTypes   []string
	ConstantTypes  []string

	// NameIdentifierTypes are node types that carry a declaration's name.
	NameIdentifierTypes []string

	// CallTypes are node types representing a function/method call.
	CallTypes []string
	// ImportTypes are node types representing an import/use declaration.
	ImportTypes []string

	// TestFilePattern matches file paths that are tests (substring).
	TestFilePattern string
	// TestNamePrefix matches symbol names that are tests (prefix).
	TestNamePrefix string
	// EntryPoints are names that are never "dead code" in this language.
	EntryPoints []string
}

// LanguageRegistry holds all supported LanguageConfigs and their
// tree-sitter grammars.
type LanguageRegistry struct {
	mu          sync.RWMutex
	configs     map[model.Language]*LanguageConfig
	extToLang   map[string]model.Language
	tsLanguages map[model.Language]*sitter.Language
}

// NewLanguageRegistry builds a registry with the default language set.
func NewLanguageRegistry() *LanguageRegistry {
	r := &LanguageRegistry{
		configs:     make(map[model.Language]*LanguageConfig),
		extToLang:   make(map[string]model.Language),
		tsLanguages: make(map[model.Language]*sitter.Language),
	}
	r.registerGo()
	r.registerTypeScriptFamily()
	r.registerJavaScriptFamily()
	r.registerPython()
	return r
}

func (r *LanguageRegistry) register(cfg *LanguageConfig, tsLang *sitter.Language) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.Name] = cfg
	r.tsLanguages[cfg.Name] = tsLang
	for _, ext := range cfg.Extensions {
		r.extToLang[ext] = cfg.Name
	}
}

func (r *LanguageRegistry) GetByExtension(ext string) (*LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	lang, ok := r.extToLang[ext]
	if !ok {
		return nil, false
	}
	cfg, ok := r.configs[lang]
	return cfg, ok
}

func (r *LanguageRegistry) GetByName(lang model.Language) (*LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[lang]
	return cfg, ok
}

func (r *LanguageRegistry) GetTreeSitterLanguage(lang model.Language) (*sitter.Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.tsLanguages[lang]
	return l, ok
}

func (r *LanguageRegistry) registerGo() {
	cfg := &LanguageConfig{
		Name:                model.LanguageGo,
		Extensions:          []string{".go"},
		FunctionTypes:       []string{"function_declaration"},
		MethodTypes:         []string{"method_declaration"},
		TypeDefTypes:        []string{"type_declaration"},
		ConstantTypes:       []string{"const_declaration"},
		NameIdentifierTypes: []string{"identifier", "field_identifier", "type_identifier"},
		CallTypes:           []string{"call_expression"},
		ImportTypes:         []string{"import_spec"},
		TestFilePattern:     "_test.go",
		TestNamePrefix:      "Test",
		EntryPoints:         []string{"main", "init"},
	}
	r.register(cfg, golang.GetLanguage())
}

func (r *LanguageRegistry) registerTypeScriptFamily() {
	ts := &LanguageConfig{
		Name:                model.LanguageTypeScript,
		Extensions:          []string{".ts"},
		FunctionTypes:       []string{"function_declaration"},
		MethodTypes:         []string{"method_definition"},
		ClassTypes:          []string{"class_declaration"},
		InterfaceTypes:      []string{"interface_declaration"},
		TypeDefTypes:        []string{"type_alias_declaration"},
		ConstantTypes:       []string{"lexical_declaration"},
		NameIdentifierTypes: []string{"identifier", "type_identifier", "property_identifier"},
		CallTypes:           []string{"call_expression"},
		ImportTypes:         []string{"import_specifier"},
		TestFilePattern:     ".test.",
		TestNamePrefix:      "test",
		EntryPoints:         []string{"main"},
	}
	r.register(ts, typescript.GetLanguage())

	tsxCfg := *ts
	tsxCfg.Name = model.LanguageTSX
	tsxCfg.Extensions = []string{".tsx"}
	r.register(&tsxCfg, tsx.GetLanguage())
}

func (r *LanguageRegistry) registerJavaScriptFamily() {
	js := &LanguageConfig{
		Name:                model.LanguageJavaScript,
		Extensions:          []string{".js", ".mjs", ".cjs"},
		FunctionTypes:       []string{"function_declaration", "function"},
		MethodTypes:         []string{"method_definition"},
		ClassTypes:          []string{"class_declaration"},
		ConstantTypes:       []string{"lexical_declaration"},
		NameIdentifierTypes: []string{"identifier", "property_identifier"},
		CallTypes:           []string{"call_expression"},
		ImportTypes:         []string{"import_specifier"},
		TestFilePattern:     ".test.",
		TestNamePrefix:      "test",
		EntryPoints:         []string{"main"},
	}
	r.register(js, javascript.GetLanguage())

	jsx := *js
	jsx.Name = model.LanguageJSX
	jsx.Extensions = []string{".jsx"}
	r.register(&jsx, javascript.GetLanguage())
}

func (r *LanguageRegistry) registerPython() {
	cfg := &LanguageConfig{
		Name:                model.LanguagePython,
		Extensions:          []string{".py"},
		FunctionTypes:       []string{"function_definition"},
		ClassTypes:          []string{"class_definition"},
		NameIdentifierTypes: []string{"identifier"},
		CallTypes:           []string{"call"},
		ImportTypes:         []string{"import_from_statement", "import_statement"},
		TestFilePattern:     "test_",
		TestNamePrefix:      "test_",
		EntryPoints:         []string{"main"},
	}
	r.register(cfg, python.GetLanguage())
}

var defaultRegistry = NewLanguageRegistry()

// DefaultRegistry returns the package-wide language registry.
func DefaultRegistry() *LanguageRegistry { return defaultRegistry }
