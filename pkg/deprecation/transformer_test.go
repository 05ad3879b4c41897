package deprecation

import (
	"testing"

	"github.com/jensneuse/abstractlogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/jensneuse/graphql-migrate/pkg/cachestore"
)

func testRules() *Index {
	return NewIndex(Rules{
		{Type: "User", Field: "fullName", Replacement: []string{"displayName"}, Reason: "renamed", Action: ActionReplace},
		{Type: "Venture", Field: "logoUrl", Replacement: []string{"profile", "logoUrl"}, Reason: "moved into profile", Action: ActionReplace},
		{Type: "Venture", Field: "isActive", Vague: true, Reason: "ambiguous without billing context", Action: ActionCommentOut},
		{Type: "Account", Field: "legacyPlan", Reason: "no equivalent", Action: ActionManualReview},
	})
}

func newTestTransformer() *Transformer {
	return NewTransformer(cachestore.Nop{}, abstractlogger.Noop{})
}

func TestTransformRename(t *testing.T) {
	in := `query Profile {
  user {
    id
    fullName
  }
}
`
	want := `query Profile {
  user {
    id
    displayName
  }
}
`
	result := newTestTransformer().Transform(in, testRules(), DefaultOptions())
	assert.Equal(t, want, result.Transformed)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, ChangeRename, result.Changes[0].Kind)
	assert.Equal(t, "user.fullName", result.Changes[0].Path)
	assert.Empty(t, result.Warnings)
}

func TestTransformRenameKeepsAlias(t *testing.T) {
	in := "query Q { user { name: fullName } }"
	result := newTestTransformer().Transform(in, testRules(), DefaultOptions())
	assert.Equal(t, "query Q { user { name: displayName } }", result.Transformed)
}

func TestTransformRestructure(t *testing.T) {
	in := `query Dashboard {
  venture {
    id
    logoUrl
  }
}
`
	want := `query Dashboard {
  venture {
    id
    profile { logoUrl }
  }
}
`
	result := newTestTransformer().Transform(in, testRules(), DefaultOptions())
	assert.Equal(t, want, result.Transformed)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, ChangeRestructure, result.Changes[0].Kind)
	assert.Equal(t, "profile.logoUrl", result.Changes[0].Replacement)
}

func TestTransformCommentOut(t *testing.T) {
	in := `fragment ventureFields on Venture {
  id
  isActive
  name
}
`
	want := `fragment ventureFields on Venture {
  id
  # deprecated field removed: isActive (ambiguous without billing context)
  name
}
`
	result := newTestTransformer().Transform(in, testRules(), DefaultOptions())
	assert.Equal(t, want, result.Transformed)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, ChangeCommentOut, result.Changes[0].Kind)
}

func TestTransformCommentOutWithoutComments(t *testing.T) {
	in := `fragment ventureFields on Venture {
  id
  isActive
  name
}
`
	want := `fragment ventureFields on Venture {
  id
  name
}
`
	opts := DefaultOptions()
	opts.DeprecationComments = false
	result := newTestTransformer().Transform(in, testRules(), opts)
	assert.Equal(t, want, result.Transformed)
}

func TestTransformVagueDisabled(t *testing.T) {
	in := `fragment ventureFields on Venture {
  isActive
}
`
	opts := DefaultOptions()
	opts.CommentOutVague = false
	result := newTestTransformer().Transform(in, testRules(), opts)
	assert.Equal(t, in, result.Transformed)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0].Message, "isActive")
	assert.Equal(t, 2, result.Warnings[0].Line)
}

func TestTransformManualReview(t *testing.T) {
	in := `query Q {
  vnextAccount {
    legacyPlan
  }
}
`
	result := newTestTransformer().Transform(in, testRules(), DefaultOptions())
	assert.Equal(t, in, result.Transformed)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0].Message, "manual review")
}

func TestTransformInsideRemovedField(t *testing.T) {
	// the rename target sits inside a removed selection and must not leave
	// a stray edit behind
	idx := NewIndex(Rules{
		{Type: "Venture", Field: "owner", Vague: true, Reason: "dropped", Action: ActionCommentOut},
		{Type: "User", Field: "fullName", Replacement: []string{"displayName"}, Action: ActionReplace},
	})
	in := `query Q {
  venture {
    owner {
      fullName
    }
    name
  }
}
`
	want := `query Q {
  venture {
    # deprecated field removed: owner (dropped)
    name
  }
}
`
	result := newTestTransformer().Transform(in, idx, DefaultOptions())
	assert.Equal(t, want, result.Transformed)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, ChangeCommentOut, result.Changes[0].Kind)
}

func TestTransformInsideReplacedField(t *testing.T) {
	// the rename target sits inside a field that is itself restructured;
	// only the enclosing edit may apply or the offsets go stale
	idx := NewIndex(Rules{
		{Type: "Venture", Field: "owner", Replacement: []string{"profile", "owner"}, Reason: "moved", Action: ActionReplace},
		{Type: "User", Field: "fullName", Replacement: []string{"displayName"}, Action: ActionReplace},
	})
	in := `query Q {
  venture {
    owner {
      fullName
    }
  }
}
`
	want := `query Q {
  venture {
    profile { owner }
  }
}
`
	result := newTestTransformer().Transform(in, idx, DefaultOptions())
	assert.Equal(t, want, result.Transformed)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, ChangeRestructure, result.Changes[0].Kind)

	_, err := parser.ParseQuery(&ast.Source{Name: "transformed", Input: result.Transformed})
	require.NoError(t, err)
}

func TestTransformCurrentUserAlias(t *testing.T) {
	in := `fragment me on CurrentUser {
  fullName
}
`
	result := newTestTransformer().Transform(in, testRules(), DefaultOptions())
	assert.Contains(t, result.Transformed, "displayName")
}

func TestTransformParseFailure(t *testing.T) {
	in := "query Broken {"
	result := newTestTransformer().Transform(in, testRules(), DefaultOptions())
	assert.Equal(t, in, result.Transformed)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0].Message, "does not parse")
}

func TestTransformCaching(t *testing.T) {
	store, err := cachestore.NewMemory(16)
	require.NoError(t, err)
	tr := NewTransformer(store, abstractlogger.Noop{})
	in := "query Q { user { fullName } }"

	first := tr.Transform(in, testRules(), DefaultOptions())
	assert.False(t, first.Cached)

	second := tr.Transform(in, testRules(), DefaultOptions())
	assert.True(t, second.Cached)
	assert.Equal(t, first.Transformed, second.Transformed)
	assert.Equal(t, first.Changes, second.Changes)

	// different options miss the cache
	opts := DefaultOptions()
	opts.DeprecationComments = false
	third := tr.Transform(in, testRules(), opts)
	assert.False(t, third.Cached)
}

func TestFieldSpanScanners(t *testing.T) {
	text := `query Q { venture(id: "x", filter: {a: ")"}) @include(if: $b) { id } }`
	start := 10 // offset of venture
	span := fieldSpan(text, start)
	assert.Equal(t, `venture(id: "x", filter: {a: ")"}) @include(if: $b) { id }`, text[span.Start:span.End])

	name := fieldNameSpan(text, start)
	assert.Equal(t, "venture", text[name.Start:name.End])

	aliased := "v: venture { id }"
	name = fieldNameSpan(aliased, 0)
	assert.Equal(t, "venture", aliased[name.Start:name.End])
}
