package extraction

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jensneuse/abstractlogger"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/jensneuse/graphql-migrate/pkg/textpatch"
)

// ErrUnsupportedFile marks files the AST strategy has no grammar for. The
// hybrid strategy treats it as a signal to fall back to plucking.
var ErrUnsupportedFile = errors.New("no source grammar for file")

// taggedTemplateQuery matches gql`...` style embeddings, both with a plain
// identifier tag and a member tag such as graphql.experimental.
const taggedTemplateQuery = `(call_expression
  function: [
    (identifier) @tag
    (member_expression property: (property_identifier) @tag)
  ]
  arguments: (template_string) @template)`

// SourceAST is the source language AST strategy. It parses JS/TS files with
// tree-sitter and extracts tagged template literals with exact byte spans and
// structured hole expressions.
type SourceAST struct {
	tags map[string]struct{}
	log  abstractlogger.Logger
}

func NewSourceAST(tags []string, logger abstractlogger.Logger) *SourceAST {
	if len(tags) == 0 {
		tags = DefaultTags
	}
	if logger == nil {
		logger = abstractlogger.NoopLogger
	}
	set := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		set[tag] = struct{}{}
	}
	return &SourceAST{tags: set, log: logger}
}

func (s *SourceAST) Name() string { return "source-ast" }

func languageForFile(file string) *sitter.Language {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".js", ".jsx", ".mjs", ".cjs":
		return javascript.GetLanguage()
	case ".ts", ".mts", ".cts":
		return typescript.GetLanguage()
	case ".tsx":
		return tsx.GetLanguage()
	default:
		return nil
	}
}

func (s *SourceAST) ExtractFile(file string, src []byte) ([]Document, error) {
	lang := languageForFile(file)
	if lang == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, file)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", file, err)
	}

	query, err := sitter.NewQuery([]byte(taggedTemplateQuery), lang)
	if err != nil {
		return nil, fmt.Errorf("tagged template query: %w", err)
	}
	cursor := sitter.NewQueryCursor()
	cursor.Exec(query, tree.RootNode())

	text := string(src)
	var docs []Document
	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}
		var tag string
		var template *sitter.Node
		for _, capture := range match.Captures {
			switch query.CaptureNameForId(capture.Index) {
			case "tag":
				tag = capture.Node.Content(src)
			case "template":
				template = capture.Node
			}
		}
		if template == nil {
			continue
		}
		if _, ok := s.tags[tag]; !ok {
			continue
		}
		docs = append(docs, s.document(file, text, src, template))
	}
	return docs, nil
}

func (s *SourceAST) document(file, text string, src []byte, template *sitter.Node) Document {
	contentStart := int(template.StartByte()) + 1
	contentEnd := int(template.EndByte()) - 1
	if contentEnd < contentStart {
		contentEnd = contentStart
	}
	raw := text[contentStart:contentEnd]

	var holes []Hole
	for i := 0; i < int(template.NamedChildCount()); i++ {
		child := template.NamedChild(i)
		if child.Type() != "template_substitution" {
			continue
		}
		hole := Hole{
			Span: textpatch.Span{
				Start: int(child.StartByte()) - contentStart,
				End:   int(child.EndByte()) - contentStart,
			},
			AfterSpread: spreadBefore(text[contentStart:int(child.StartByte())]),
		}
		if expr := firstNamedChild(child); expr != nil {
			hole.Expr = expr.Content(src)
			fillTernary(&hole, expr, src)
		}
		holes = append(holes, hole)
	}

	line, column := lineColumn(text, contentStart)
	return Document{
		Raw: raw,
		Span: SourceSpan{
			File:   file,
			Start:  contentStart,
			End:    contentEnd,
			Line:   line,
			Column: column,
			Raw:    raw,
		},
		Holes: holes,
	}
}

func firstNamedChild(node *sitter.Node) *sitter.Node {
	if node.NamedChildCount() == 0 {
		return nil
	}
	return node.NamedChild(0)
}

// fillTernary records switch metadata when the hole expression is a
// conditional choosing between two string literals.
func fillTernary(hole *Hole, expr *sitter.Node, src []byte) {
	if expr.Type() != "ternary_expression" {
		return
	}
	condition := expr.ChildByFieldName("condition")
	consequence := expr.ChildByFieldName("consequence")
	alternative := expr.ChildByFieldName("alternative")
	if condition == nil || consequence == nil || alternative == nil {
		return
	}
	trueValue, okTrue := stringLiteral(consequence, src)
	falseValue, okFalse := stringLiteral(alternative, src)
	if !okTrue || !okFalse {
		return
	}
	hole.CondIdent = condition.Content(src)
	hole.TrueValue = trueValue
	hole.FalseValue = falseValue
}

func stringLiteral(node *sitter.Node, src []byte) (string, bool) {
	if node.Type() != "string" {
		return "", false
	}
	content := node.Content(src)
	if len(content) < 2 {
		return "", false
	}
	return content[1 : len(content)-1], true
}
