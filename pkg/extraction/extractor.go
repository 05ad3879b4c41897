package extraction

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/jensneuse/abstractlogger"
)

// Strategy turns one source file into zero or more raw documents. The
// extractor owns file iteration, identity and metadata.
type Strategy interface {
	Name() string
	ExtractFile(file string, src []byte) ([]Document, error)
}

// DefaultInclude covers the file types embedded documents usually live in.
var DefaultInclude = []string{
	"**/*.js", "**/*.jsx", "**/*.mjs", "**/*.cjs",
	"**/*.ts", "**/*.tsx",
	"**/*.graphql", "**/*.gql",
}

type Extractor struct {
	strategy Strategy
	log      abstractlogger.Logger
	include  []string
	exclude  []string
}

func NewExtractor(strategy Strategy, include, exclude []string, logger abstractlogger.Logger) *Extractor {
	if logger == nil {
		logger = abstractlogger.NoopLogger
	}
	if len(include) == 0 {
		include = DefaultInclude
	}
	return &Extractor{
		strategy: strategy,
		log:      logger,
		include:  include,
		exclude:  exclude,
	}
}

// ListFiles returns the files under root that the extractor would visit, in
// lexicographic order. The stable order keeps document IDs reproducible
// across runs, which the transform cache relies on.
func (e *Extractor) ListFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			e.log.Warn("extraction: skipping unreadable path",
				abstractlogger.String("path", path),
				abstractlogger.Error(err),
			)
			return nil
		}
		if d.IsDir() {
			if d.Name() == "node_modules" || d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if !matchAny(e.include, rel) || matchAny(e.exclude, rel) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// ExtractDir extracts every document under root. A single unreadable or
// unparsable file is logged and skipped, never fatal.
func (e *Extractor) ExtractDir(root string) ([]Document, error) {
	files, err := e.ListFiles(root)
	if err != nil {
		return nil, err
	}
	var docs []Document
	for _, rel := range files {
		fileDocs, err := e.ExtractFile(root, rel)
		if err != nil {
			e.log.Warn("extraction: skipping file",
				abstractlogger.String("file", rel),
				abstractlogger.String("strategy", e.strategy.Name()),
				abstractlogger.Error(err),
			)
			continue
		}
		docs = append(docs, fileDocs...)
	}
	return docs, nil
}

// ExtractFile extracts the documents of a single file, identified by its
// slash separated path relative to root.
func (e *Extractor) ExtractFile(root, rel string) ([]Document, error) {
	src, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, err
	}

	var docs []Document
	if isGraphQLFile(rel) {
		docs = []Document{wholeFileDocument(rel, string(src))}
	} else {
		docs, err = e.strategy.ExtractFile(rel, src)
		if err != nil {
			return nil, err
		}
	}

	sortDocumentsBySpan(docs)
	for i := range docs {
		docs[i].ID = fmt.Sprintf("%s#%d", rel, i)
		docs[i].Span.File = rel
		docs[i].fillMetadata()
	}
	return docs, nil
}

func isGraphQLFile(rel string) bool {
	switch strings.ToLower(filepath.Ext(rel)) {
	case ".graphql", ".gql":
		return true
	}
	return false
}

// wholeFileDocument treats a standalone GraphQL file as a single document,
// holes impossible by construction.
func wholeFileDocument(rel, src string) Document {
	return Document{
		Raw: src,
		Span: SourceSpan{
			File:   rel,
			Start:  0,
			End:    len(src),
			Line:   1,
			Column: 1,
			Raw:    src,
		},
	}
}

func sortDocumentsBySpan(docs []Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].Span.Start < docs[j].Span.Start
	})
}

func matchAny(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}
