package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func documentByID(t *testing.T, docs []Document, id string) Document {
	t.Helper()
	for _, doc := range docs {
		if doc.ID == id {
			return doc
		}
	}
	t.Fatalf("document %s not extracted", id)
	return Document{}
}

func TestExtractorPluck(t *testing.T) {
	extractor := NewExtractor(NewPluck(nil, nil), nil, nil, nil)
	docs, err := extractor.ExtractDir("./testdata/app")
	require.NoError(t, err)

	t.Run("ids are file#index in stable file order", func(t *testing.T) {
		var ids []string
		for _, doc := range docs {
			ids = append(ids, doc.ID)
		}
		assert.Equal(t, []string{
			"components/fragments.js#0",
			"components/fragments.js#1",
			"components/userCard.js#0",
			"components/ventureTask.js#0",
			"components/ventureTask.js#1",
			"queries/ventureList.graphql#0",
		}, ids)
	})

	t.Run("query metadata", func(t *testing.T) {
		doc := documentByID(t, docs, "components/userCard.js#0")
		assert.Equal(t, KindQuery, doc.Kind)
		assert.Equal(t, "UserCard", doc.Name)
		assert.Equal(t, []string{"UserFields"}, doc.SpreadNames)
		assert.Empty(t, doc.Holes)
	})

	t.Run("fragment metadata", func(t *testing.T) {
		doc := documentByID(t, docs, "components/fragments.js#0")
		assert.Equal(t, KindFragment, doc.Kind)
		assert.Equal(t, "FreemiumFields", doc.Name)
		assert.Equal(t, "Venture", doc.TypeCondition)
	})

	t.Run("switch document metadata via true branch", func(t *testing.T) {
		doc := documentByID(t, docs, "components/ventureTask.js#0")
		assert.Equal(t, KindQuery, doc.Kind)
		assert.Equal(t, "VentureTask", doc.Name)
		require.Len(t, doc.Holes, 1)
		assert.Equal(t, []string{"FreemiumFields"}, doc.SpreadNames)
	})

	t.Run("mutation metadata", func(t *testing.T) {
		doc := documentByID(t, docs, "components/ventureTask.js#1")
		assert.Equal(t, KindMutation, doc.Kind)
		assert.Equal(t, "RenameVenture", doc.Name)
	})

	t.Run("whole graphql file", func(t *testing.T) {
		doc := documentByID(t, docs, "queries/ventureList.graphql#0")
		assert.Equal(t, KindQuery, doc.Kind)
		assert.Equal(t, "VentureList", doc.Name)
		assert.Equal(t, 0, doc.Span.Start)
		assert.Equal(t, []string{"VentureSummary"}, doc.SpreadNames)
	})
}

func TestExtractorSourceAST(t *testing.T) {
	extractor := NewExtractor(NewSourceAST(nil, nil), nil, nil, nil)
	docs, err := extractor.ExtractDir("./testdata/app")
	require.NoError(t, err)
	require.Len(t, docs, 6)

	t.Run("spans agree with the textual scan", func(t *testing.T) {
		pluckDocs, err := NewExtractor(NewPluck(nil, nil), nil, nil, nil).ExtractDir("./testdata/app")
		require.NoError(t, err)
		require.Len(t, pluckDocs, 6)
		for i := range docs {
			assert.Equal(t, pluckDocs[i].Span, docs[i].Span, "doc %s", docs[i].ID)
		}
	})

	t.Run("ternary hole carries structured metadata", func(t *testing.T) {
		doc := documentByID(t, docs, "components/ventureTask.js#0")
		require.Len(t, doc.Holes, 1)
		hole := doc.Holes[0]
		assert.True(t, hole.AfterSpread)
		assert.Equal(t, "isFreemium", hole.CondIdent)
		assert.Equal(t, "FreemiumFields", hole.TrueValue)
		assert.Equal(t, "PaidFields", hole.FalseValue)
	})
}

func TestExtractorHybrid(t *testing.T) {
	// the vue file is outside the AST grammars, only the pluck fallback sees it
	include := append([]string{"**/*.vue"}, DefaultInclude...)
	extractor := NewExtractor(NewHybrid(nil, nil), include, nil, nil)
	docs, err := extractor.ExtractDir("./testdata/app")
	require.NoError(t, err)
	require.Len(t, docs, 7)

	doc := documentByID(t, docs, "components/settings.vue#0")
	assert.Equal(t, KindQuery, doc.Kind)
	assert.Equal(t, "Settings", doc.Name)
}

func TestExtractorExclude(t *testing.T) {
	extractor := NewExtractor(NewPluck(nil, nil), nil, []string{"components/**"}, nil)
	docs, err := extractor.ExtractDir("./testdata/app")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "queries/ventureList.graphql#0", docs[0].ID)
}
