package resolve

import (
	"strings"
	"testing"

	"github.com/jensneuse/abstractlogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jensneuse/graphql-migrate/pkg/extraction"
	"github.com/jensneuse/graphql-migrate/pkg/fragments"
)

func storeWith(t *testing.T, defs ...fragments.Definition) *fragments.Store {
	t.Helper()
	store := fragments.NewStore(fragments.FirstWins, abstractlogger.NoopLogger)
	for _, def := range defs {
		require.NoError(t, store.Add(def))
	}
	return store
}

func doc(raw string) extraction.Document {
	return extraction.Document{
		ID:   "test.js#0",
		Raw:  raw,
		Span: extraction.SourceSpan{File: "test.js", Raw: raw},
	}
}

var (
	fragA = fragments.Definition{Name: "A", TypeCondition: "User", Body: "fragment A on User {\n  id\n  ...B\n}", File: "a.graphql"}
	fragB = fragments.Definition{Name: "B", TypeCondition: "User", Body: "fragment B on User {\n  email\n  ...C\n}", File: "b.graphql"}
	fragC = fragments.Definition{Name: "C", TypeCondition: "User", Body: "fragment C on User {\n  phone\n}", File: "c.graphql"}
)

func TestResolve(t *testing.T) {
	resolver := NewResolver(abstractlogger.NoopLogger)

	t.Run("transitive closure depth two", func(t *testing.T) {
		store := storeWith(t, fragA, fragB, fragC)
		resolved := resolver.Resolve(doc("query Q { user { ...A } }"), store)

		// A never spreads C directly, the closure still reaches it
		assert.Equal(t, 1, strings.Count(resolved.Text, "fragment C on User"))
		require.Len(t, resolved.Fragments, 3)
		assert.Equal(t, []string{"A", "B", "C"}, []string{
			resolved.Fragments[0].Name, resolved.Fragments[1].Name, resolved.Fragments[2].Name,
		})
		assert.Empty(t, resolved.MissingSpreads)
	})

	t.Run("idempotent against an unchanged store", func(t *testing.T) {
		store := storeWith(t, fragA, fragB, fragC)
		first := resolver.Resolve(doc("query Q { user { ...A } }"), store)
		second := resolver.Resolve(doc("query Q { user { ...A } }"), store)
		assert.Equal(t, first.Text, second.Text)
	})

	t.Run("cyclic fragments terminate and appear once each", func(t *testing.T) {
		store := storeWith(t,
			fragments.Definition{Name: "X", Body: "fragment X on User {\n  id\n  ...Y\n}", File: "x.graphql"},
			fragments.Definition{Name: "Y", Body: "fragment Y on User {\n  email\n  ...X\n}", File: "y.graphql"},
		)
		resolved := resolver.Resolve(doc("query Q { user { ...X } }"), store)
		assert.Equal(t, 1, strings.Count(resolved.Text, "fragment X on User"))
		assert.Equal(t, 1, strings.Count(resolved.Text, "fragment Y on User"))
	})

	t.Run("duplicate spreads inline once", func(t *testing.T) {
		store := storeWith(t, fragA, fragB, fragC)
		resolved := resolver.Resolve(doc("query Q { a: user { ...B } b: user { ...B } }"), store)
		assert.Equal(t, 1, strings.Count(resolved.Text, "fragment B on User"))
	})

	t.Run("unreachable fragments excluded", func(t *testing.T) {
		store := storeWith(t, fragA, fragB, fragC,
			fragments.Definition{Name: "Unused", Body: "fragment Unused on User { nothing }", File: "u.graphql"})
		resolved := resolver.Resolve(doc("query Q { user { ...C } }"), store)
		assert.NotContains(t, resolved.Text, "Unused")
		require.Len(t, resolved.Fragments, 1)
	})

	t.Run("missing spread warns and omits", func(t *testing.T) {
		store := storeWith(t, fragC)
		resolved := resolver.Resolve(doc("query Q { user { ...C ...Nowhere } }"), store)
		assert.Equal(t, []string{"Nowhere"}, resolved.MissingSpreads)
		assert.Contains(t, resolved.Text, "fragment C on User")
	})

	t.Run("document without spreads passes through", func(t *testing.T) {
		store := storeWith(t, fragA)
		resolved := resolver.Resolve(doc("query Q { user { id } }"), store)
		assert.Equal(t, "query Q { user { id } }\n", resolved.Text)
		assert.Empty(t, resolved.Fragments)
	})

	t.Run("fragments defined in the document are not re-inlined", func(t *testing.T) {
		// a whole-file document co-locating the query with its fragment,
		// resolved against a store loaded from that same file
		text := "query VentureList {\n  ventures {\n    ...VentureSummary\n  }\n}\n\nfragment VentureSummary on Venture {\n  id\n  name\n}\n"
		store := storeWith(t, fragments.Definition{
			Name:          "VentureSummary",
			TypeCondition: "Venture",
			Body:          "fragment VentureSummary on Venture {\n  id\n  name\n}",
			File:          "queries/ventureList.graphql",
		})
		resolved := resolver.Resolve(extraction.Document{
			ID:   "queries/ventureList.graphql#0",
			Raw:  text,
			Span: extraction.SourceSpan{File: "queries/ventureList.graphql", Raw: text},
		}, store)

		assert.Equal(t, 1, strings.Count(resolved.Text, "fragment VentureSummary on Venture"))
		assert.Empty(t, resolved.Fragments)
		assert.Empty(t, resolved.MissingSpreads)
	})

	t.Run("local fragment spreading a stored fragment still pulls it in", func(t *testing.T) {
		// the co-located fragment spreads B, which only the store knows
		text := "query Q {\n  user {\n    ...Local\n  }\n}\n\nfragment Local on User {\n  id\n  ...B\n}\n"
		store := storeWith(t, fragB, fragC)
		resolved := resolver.Resolve(extraction.Document{
			ID:   "test.graphql#0",
			Raw:  text,
			Span: extraction.SourceSpan{File: "test.graphql", Raw: text},
		}, store)

		assert.Equal(t, 1, strings.Count(resolved.Text, "fragment Local on User"))
		assert.Equal(t, 1, strings.Count(resolved.Text, "fragment B on User"))
		assert.Equal(t, 1, strings.Count(resolved.Text, "fragment C on User"))
	})

	t.Run("output order is first discovered", func(t *testing.T) {
		store := storeWith(t, fragA, fragB, fragC)
		resolved := resolver.Resolve(doc("query Q { user { ...C ...A } }"), store)
		posC := strings.Index(resolved.Text, "fragment C")
		posA := strings.Index(resolved.Text, "fragment A")
		posB := strings.Index(resolved.Text, "fragment B")
		assert.True(t, posC < posA && posA < posB)
		// C discovered from the document itself, not re-inlined for B
		assert.Equal(t, 1, strings.Count(resolved.Text, "fragment C"))
	})
}
