package fragments

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/jensneuse/abstractlogger"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// DefaultGlobs match the standalone GraphQL files a fragment library usually
// lives in. Fragments embedded in application source arrive through the
// extractor instead.
var DefaultGlobs = []string{"**/*.graphql", "**/*.gql"}

type Loader struct {
	log abstractlogger.Logger
}

func NewLoader(logger abstractlogger.Logger) *Loader {
	if logger == nil {
		logger = abstractlogger.NoopLogger
	}
	return &Loader{log: logger}
}

// LoadDir walks root, parses every file matching the include globs (and none
// of the exclude globs) and adds each fragment definition to the store. A
// file that cannot be read or parsed is logged and skipped; loading never
// fails because of a single bad file. Files are visited in lexicographic
// order so conflict resolution is reproducible.
func (l *Loader) LoadDir(store *Store, root string, include, exclude []string) error {
	if len(include) == 0 {
		include = DefaultGlobs
	}
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			l.log.Warn("fragments: skipping unreadable path",
				abstractlogger.String("path", path),
				abstractlogger.Error(err),
			)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if !matchAny(include, rel) || matchAny(exclude, rel) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return err
	}
	sort.Strings(files)

	for _, path := range files {
		rel, _ := filepath.Rel(root, path)
		rel = filepath.ToSlash(rel)
		src, err := os.ReadFile(path)
		if err != nil {
			l.log.Warn("fragments: skipping unreadable file",
				abstractlogger.String("file", rel),
				abstractlogger.Error(err),
			)
			continue
		}
		defs, err := ParseDefinitions(rel, string(src))
		if err != nil {
			l.log.Warn("fragments: skipping unparsable file",
				abstractlogger.String("file", rel),
				abstractlogger.Error(err),
			)
			continue
		}
		for _, def := range defs {
			if err := store.Add(def); err != nil {
				return err
			}
		}
	}
	return nil
}

// ParseDefinitions extracts every fragment definition from a GraphQL
// document, slicing each raw body out of the source text by position so the
// original formatting survives into resolution output.
func ParseDefinitions(file, src string) ([]Definition, error) {
	doc, err := parser.ParseQuery(&ast.Source{Name: file, Input: src})
	if err != nil {
		return nil, err
	}

	// definition start offsets delimit each raw body
	starts := make([]int, 0, len(doc.Operations)+len(doc.Fragments))
	for _, op := range doc.Operations {
		if op.Position != nil {
			starts = append(starts, definitionStart(src, op.Position.Start, string(op.Operation)))
		}
	}
	fragStarts := make(map[string]int, len(doc.Fragments))
	for _, frag := range doc.Fragments {
		if frag.Position != nil {
			start := definitionStart(src, frag.Position.Start, "fragment")
			fragStarts[frag.Name] = start
			starts = append(starts, start)
		}
	}
	sort.Ints(starts)

	bodyEnd := func(start int) int {
		for _, s := range starts {
			if s > start {
				return s
			}
		}
		return len(src)
	}

	defs := make([]Definition, 0, len(doc.Fragments))
	for _, frag := range doc.Fragments {
		if frag.Position == nil {
			continue
		}
		start := fragStarts[frag.Name]
		body := strings.TrimSpace(src[start:bodyEnd(start)])
		defs = append(defs, Definition{
			Name:          frag.Name,
			TypeCondition: frag.TypeCondition,
			Body:          body,
			File:          file,
		})
	}
	return defs, nil
}

// definitionStart normalizes a parser position to the offset of the
// definition keyword. Depending on the parser version the recorded position
// is either the keyword token or the name following it.
func definitionStart(src string, pos int, keyword string) int {
	if pos < 0 || pos > len(src) {
		return 0
	}
	if strings.HasPrefix(src[pos:], keyword) {
		return pos
	}
	i := pos
	for i > 0 && isSpace(src[i-1]) {
		i--
	}
	if i >= len(keyword) && src[i-len(keyword):i] == keyword {
		return i - len(keyword)
	}
	return pos
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func matchAny(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}
