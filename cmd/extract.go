package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jensneuse/graphql-migrate/pkg/extraction"
	"github.com/jensneuse/graphql-migrate/pkg/fragments"
	"github.com/jensneuse/graphql-migrate/pkg/resolve"
)

var (
	extractSrc     string
	extractTags    []string
	extractExclude []string
	extractJSON    bool
	extractUsage   bool
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:     "extract",
	Short:   "extract lists the embedded GraphQL documents of a source tree",
	Example: "graphql-migrate extract --src ./app --usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()

		extractor := extraction.NewExtractor(
			extraction.NewHybrid(extractTags, logger),
			nil, extractExclude, logger,
		)
		docs, err := extractor.ExtractDir(extractSrc)
		if err != nil {
			return fmt.Errorf("extract: %w", err)
		}

		if extractJSON {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(docs)
		}

		for _, doc := range docs {
			name := doc.Name
			if name == "" {
				name = "(anonymous)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s", doc.ID, doc.Kind, name)
			if len(doc.SpreadNames) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "\tspreads: %s", strings.Join(doc.SpreadNames, ", "))
			}
			if len(doc.Holes) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "\tholes: %d", len(doc.Holes))
			}
			fmt.Fprintln(cmd.OutOrStdout())
		}

		if extractUsage {
			printFragmentUsage(cmd, docs)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVar(&extractSrc, "src", ".", "source tree to scan")
	extractCmd.Flags().StringSliceVar(&extractTags, "tags", nil, "template tags treated as GraphQL embeddings")
	extractCmd.Flags().StringSliceVar(&extractExclude, "exclude", nil, "exclude globs for source files")
	extractCmd.Flags().BoolVar(&extractJSON, "json", false, "print documents as JSON")
	extractCmd.Flags().BoolVar(&extractUsage, "usage", false, "print which documents use which fragments")
}

// printFragmentUsage inverts the spread graph: for every known fragment, the
// documents that reach it through resolution.
func printFragmentUsage(cmd *cobra.Command, docs []extraction.Document) {
	usedBy := map[string][]string{}
	store := fragmentStoreOf(docs)
	resolver := resolve.NewResolver(nil)
	for _, doc := range docs {
		resolved := resolver.Resolve(doc, store)
		for _, def := range resolved.Fragments {
			usedBy[def.Name] = append(usedBy[def.Name], doc.ID)
		}
	}

	fmt.Fprintln(cmd.OutOrStdout())
	fmt.Fprintln(cmd.OutOrStdout(), "Fragment usage:")
	for _, name := range store.Names() {
		users := usedBy[name]
		if len(users) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "- %s: unused\n", name)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "- %s: %s\n", name, strings.Join(users, ", "))
	}
}

func fragmentStoreOf(docs []extraction.Document) *fragments.Store {
	store := fragments.NewStore(fragments.FirstWins, nil)
	for _, doc := range docs {
		if doc.Kind != extraction.KindFragment {
			continue
		}
		text := extraction.ParseableText(doc.Raw, doc.Holes)
		defs, err := fragments.ParseDefinitions(doc.Span.File, text)
		if err != nil {
			continue
		}
		for _, def := range defs {
			_ = store.Add(def)
		}
	}
	return store
}
