// Package deprecation rewrites resolved documents according to an externally
// supplied list of field deprecation rules.
package deprecation

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/jensneuse/graphql-migrate/pkg/cachestore"
)

type Action string

const (
	ActionReplace      Action = "replace"
	ActionCommentOut   Action = "comment-out"
	ActionManualReview Action = "manual-review"
)

// Rule instructs the transformer what to do with one field on one type.
// Replacement is a dot separated path of at most two segments: one segment
// renames the field in place, two restructure it into a nested selection.
type Rule struct {
	Type        string   `json:"type"`
	Field       string   `json:"field"`
	Reason      string   `json:"reason"`
	Replacement []string `json:"replacement,omitempty"`
	Vague       bool     `json:"isVague"`
	Action      Action   `json:"action"`
}

func (r Rule) key() string {
	return r.Type + "." + r.Field
}

// Rules is the ordered rule list for one transform run. The list is treated
// as immutable; earlier rules win on key collisions.
type Rules []Rule

// Fingerprint identifies the rule set for cache keying.
func (r Rules) Fingerprint() string {
	parts := make([][]byte, 0, len(r))
	for _, rule := range r {
		parts = append(parts, []byte(fmt.Sprintf("%s|%s|%s|%v|%s",
			rule.key(), strings.Join(rule.Replacement, "."), rule.Reason, rule.Vague, rule.Action)))
	}
	return cachestore.Fingerprint(parts...)
}

// LoadRules decodes an externally produced rule file. Both a bare JSON array
// and an object carrying a "rules" array are accepted; unknown keys are
// ignored rather than rejected, since the producer evolves independently.
func LoadRules(data []byte) (Rules, error) {
	root := gjson.ParseBytes(data)
	list := root
	if root.IsObject() {
		list = root.Get("rules")
	}
	if !list.IsArray() {
		return nil, fmt.Errorf("rule file must be a JSON array or an object with a rules array")
	}

	var rules Rules
	var parseErr error
	list.ForEach(func(_, value gjson.Result) bool {
		rule := Rule{
			Type:   value.Get("type").String(),
			Field:  value.Get("field").String(),
			Reason: value.Get("reason").String(),
			Vague:  value.Get("isVague").Bool() || value.Get("vague").Bool(),
			Action: Action(value.Get("action").String()),
		}
		if replacement := value.Get("replacement").String(); replacement != "" {
			rule.Replacement = strings.Split(replacement, ".")
		}
		if rule.Type == "" || rule.Field == "" {
			parseErr = fmt.Errorf("rule %d: type and field are required", len(rules))
			return false
		}
		if rule.Action == "" {
			switch {
			case rule.Vague:
				rule.Action = ActionCommentOut
			case len(rule.Replacement) > 0:
				rule.Action = ActionReplace
			default:
				rule.Action = ActionManualReview
			}
		}
		rules = append(rules, rule)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return rules, nil
}

// Index provides rule lookup by "Type.field" with a small alias table that
// absorbs schema inconsistencies, e.g. a dedicated current-user type that is
// really the generic user type.
type Index struct {
	rules       Rules
	byKey       map[string]int
	aliases     map[string]string
	rootType    string
	fingerprint string
}

func NewIndex(rules Rules) *Index {
	idx := &Index{
		rules:    rules,
		byKey:    make(map[string]int, len(rules)),
		aliases:  map[string]string{"CurrentUser": "User"},
		rootType: RootTypeName,
	}
	for i, rule := range rules {
		if _, exists := idx.byKey[rule.key()]; !exists {
			idx.byKey[rule.key()] = i
		}
	}
	idx.fingerprint = rules.Fingerprint()
	return idx
}

// AddAlias maps an inferred type name onto the type name the rules use. Each
// alias folds into the index fingerprint cumulatively, so differently aliased
// indexes never share cached transform results.
func (idx *Index) AddAlias(from, to string) {
	idx.aliases[from] = to
	idx.fingerprint = cachestore.Fingerprint([]byte(idx.fingerprint), []byte(from), []byte(to))
}

func (idx *Index) Fingerprint() string {
	return idx.fingerprint
}

func (idx *Index) Len() int {
	return len(idx.rules)
}

// Lookup finds a rule for a field on an inferred type. Fields selected
// directly on the document root additionally try the root query type, which
// absorbs rules written against a differently named root.
func (idx *Index) Lookup(typeName, field string, atDocumentRoot bool) (Rule, bool) {
	if alias, ok := idx.aliases[typeName]; ok {
		typeName = alias
	}
	if i, ok := idx.byKey[typeName+"."+field]; ok {
		return idx.rules[i], true
	}
	if atDocumentRoot && typeName != idx.rootType {
		if i, ok := idx.byKey[idx.rootType+"."+field]; ok {
			return idx.rules[i], true
		}
	}
	return Rule{}, false
}
