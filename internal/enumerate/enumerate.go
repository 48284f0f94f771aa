// Package enumerate discovers indexable source files under a project
// root, honoring .gitignore rules and configured include/exclude globs.
// Grounded on the teacher's internal/scanner package: a worker-pool-free
// filepath.WalkDir traversal streaming results on a buffered channel,
// with an LRU-cached gitignore matcher per directory.
package enumerate

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gobwas/glob"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	// DefaultMaxFileSize skips files larger than this (bytes).
	DefaultMaxFileSize = 2 << 20 // 2 MiB
	gitignoreCacheSize = 1000
)

// FileInfo describes a single discovered file.
type FileInfo struct {
	Path     string // project-relative, forward-slash
	AbsPath  string
	Size     int64
	ModTime  int64 // unix seconds
	Language string
}

// Result is one item streamed from Enumerate: either a file or a
// terminal error for the walk.
type Result struct {
	File  *FileInfo
	Error error
}

// Options configures a single enumeration pass.
type Options struct {
	RootDir          string
	Include          []string // glob patterns; empty means "all"
	Exclude          []string // glob patterns, in addition to gitignore
	RespectGitignore bool
	MaxFileSize      int64
	FollowSymlinks   bool
}

// Enumerator discovers files, caching compiled gitignore rule sets.
type Enumerator struct {
	gitignoreCache *lru.Cache[string, ignoreRuleSet]
	cacheMu        sync.RWMutex
}

// New creates an Enumerator.
func New() (*Enumerator, error) {
	cache, err := lru.New[string, ignoreRuleSet](gitignoreCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create gitignore cache: %w", err)
	}
	return &Enumerator{gitignoreCache: cache}, nil
}

// Enumerate streams discovered files on a channel, closed when the walk
// finishes or ctx is canceled.
func (e *Enumerator) Enumerate(ctx context.Context, opts Options) (<-chan Result, error) {
	rootDir := opts.RootDir
	if rootDir == "" {
		rootDir = "."
	}
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", absRoot)
	}

	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	includeGlobs, err := compileGlobs(opts.Include)
	if err != nil {
		return nil, err
	}
	excludeGlobs, err := compileGlobs(opts.Exclude)
	if err != nil {
		return nil, err
	}

	results := make(chan Result, 256)
	go func() {
		defer close(results)
		e.walk(ctx, absRoot, opts, maxSize, includeGlobs, excludeGlobs, results)
	}()
	return results, nil
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("compile glob %q: %w", p, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

func (e *Enumerator) walk(ctx context.Context, absRoot string, opts Options, maxSize int64, include, exclude []glob.Glob, results chan<- Result) {
	err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if walkErr != nil {
			return nil
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)
		if relPath == "." {
			return nil
		}

		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			if matchAny(exclude, relPath) {
				return filepath.SkipDir
			}
			if opts.RespectGitignore && e.isGitignored(absRoot, relPath, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 && !opts.FollowSymlinks {
			return nil
		}
		if matchAny(exclude, relPath) {
			return nil
		}
		if len(include) > 0 && !matchAny(include, relPath) {
			return nil
		}
		if opts.RespectGitignore && e.isGitignored(absRoot, relPath, false) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.Size() > maxSize {
			return nil
		}
		if isBinary(path) {
			return nil
		}

		fi := &FileInfo{
			Path:     relPath,
			AbsPath:  path,
			Size:     info.Size(),
			ModTime:  info.ModTime().Unix(),
			Language: DetectLanguage(relPath),
		}
		select {
		case results <- Result{File: fi}:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})

	if err != nil && err != context.Canceled {
		select {
		case results <- Result{Error: err}:
		case <-ctx.Done():
		}
	}
}

func matchAny(globs []glob.Glob, path string) bool {
	for _, g := range globs {
		if g.Match(path) {
			return true
		}
	}
	return false
}

func isBinary(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()
	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return false
	}
	return bytes.Contains(buf[:n], []byte{0})
}

// isGitignored checks relPath against every ancestor directory's
// .gitignore, from absRoot down to relPath's immediate parent, so a
// nested .gitignore's rules are scoped to (and only override within)
// the subtree they live in.
func (e *Enumerator) isGitignored(absRoot, relPath string, isDir bool) bool {
	if e.rulesFor(absRoot, "").matches(relPath, isDir) {
		return true
	}

	dir := filepath.Dir(relPath)
	if dir == "." {
		return false
	}
	parts := strings.Split(dir, "/")
	currentDir := absRoot
	currentBase := ""
	for _, part := range parts {
		currentDir = filepath.Join(currentDir, part)
		if currentBase == "" {
			currentBase = part
		} else {
			currentBase = currentBase + "/" + part
		}
		if e.rulesFor(currentDir, currentBase).matches(relPath, isDir) {
			return true
		}
	}
	return false
}

// rulesFor returns dir's .gitignore rule set, parsing and caching it on
// first use. A directory with no .gitignore caches as a nil, empty set
// so repeated lookups still short-circuit through the LRU.
func (e *Enumerator) rulesFor(dir, base string) ignoreRuleSet {
	e.cacheMu.RLock()
	rules, ok := e.gitignoreCache.Get(dir)
	e.cacheMu.RUnlock()
	if ok {
		return rules
	}

	path := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(path); err == nil {
		if parsed, err := parseIgnoreFile(path, base); err == nil {
			rules = parsed
		}
	}

	e.cacheMu.Lock()
	e.gitignoreCache.Add(dir, rules)
	e.cacheMu.Unlock()
	return rules
}

// InvalidateCache drops all cached gitignore matchers, forcing re-parse
// on next lookup. Call after a .gitignore file changes.
func (e *Enumerator) InvalidateCache() {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	e.gitignoreCache.Purge()
}

// DetectLanguage infers a Language string from a file extension.
func DetectLanguage(path string) string {
	switch filepath.Ext(path) {
	case ".go":
		return "go"
	case ".ts":
		return "typescript"
	case ".tsx":
		return "tsx"
	case ".js", ".mjs", ".cjs":
		return "javascript"
	case ".jsx":
		return "jsx"
	case ".py":
		return "python"
	case ".md", ".markdown":
		return "markdown"
	default:
		return "text"
	}
}
