package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jensneuse/graphql-migrate/pkg/cachestore"
	"github.com/jensneuse/graphql-migrate/pkg/deprecation"
	"github.com/jensneuse/graphql-migrate/pkg/migration"
	"github.com/jensneuse/graphql-migrate/pkg/textpatch"
)

var (
	migrateSrc           string
	migrateFragmentRoot  string
	migrateRulesFile     string
	migrateInclude       []string
	migrateExclude       []string
	migrateTags          []string
	migrateWrite         bool
	migrateReportFile    string
	migrateMaxSwitches   int
	migrateConcurrency   int
	migrateCache         string
	migrateKeepVague     bool
	migrateNoComments    bool
	migrateRootType      string
	migrateFailOnWarning bool
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:     "migrate",
	Short:   "migrate runs the full pipeline over a source tree",
	Example: "graphql-migrate migrate --src ./app --rules deprecations.json --report report.json --write",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()

		rulesData, err := os.ReadFile(migrateRulesFile)
		if err != nil {
			return fmt.Errorf("migrate: reading rules: %w", err)
		}
		rules, err := deprecation.LoadRules(rulesData)
		if err != nil {
			return fmt.Errorf("migrate: parsing rules: %w", err)
		}

		store, err := buildCacheStore()
		if err != nil {
			return fmt.Errorf("migrate: cache: %w", err)
		}

		opts := migration.DefaultRunnerOptions()
		opts.SourceRoot = migrateSrc
		opts.FragmentRoot = migrateFragmentRoot
		if len(migrateInclude) > 0 {
			opts.Include = migrateInclude
		}
		opts.Exclude = migrateExclude
		if len(migrateTags) > 0 {
			opts.Tags = migrateTags
		}
		opts.MaxSwitches = migrateMaxSwitches
		opts.Concurrency = migrateConcurrency
		opts.Transform.CommentOutVague = !migrateKeepVague
		opts.Transform.DeprecationComments = !migrateNoComments
		if migrateRootType != "" {
			opts.Transform.RootType = migrateRootType
		}

		runner := migration.NewRunner(deprecation.NewIndex(rules), opts, store, logger)
		report, err := runner.Run(context.Background())
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}

		printSummary(cmd, report)

		if migrateReportFile != "" {
			data, err := report.JSON()
			if err != nil {
				return err
			}
			if err := os.WriteFile(migrateReportFile, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "report written to", migrateReportFile)
		}

		if migrateWrite {
			if err := applyPatches(migrateSrc, report.Patches()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d patches\n", len(report.Patches()))
		} else if len(report.Patches()) > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%d patches pending, re-run with --write to apply\n", len(report.Patches()))
		}

		if report.HasErrors() {
			return fmt.Errorf("migrate: run finished with errors:\n%s", report.Error())
		}
		if migrateFailOnWarning && report.Summary.Warnings > 0 {
			return fmt.Errorf("migrate: run finished with %d warnings", report.Summary.Warnings)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().StringVar(&migrateSrc, "src", ".", "source tree to scan")
	migrateCmd.Flags().StringVar(&migrateFragmentRoot, "fragments", "", "fragment library root (defaults to --src)")
	migrateCmd.Flags().StringVar(&migrateRulesFile, "rules", "", "deprecation rule file (JSON)")
	migrateCmd.Flags().StringSliceVar(&migrateInclude, "include", nil, "include globs for source files")
	migrateCmd.Flags().StringSliceVar(&migrateExclude, "exclude", nil, "exclude globs for source files")
	migrateCmd.Flags().StringSliceVar(&migrateTags, "tags", nil, "template tags treated as GraphQL embeddings")
	migrateCmd.Flags().BoolVar(&migrateWrite, "write", false, "rewrite source files in place")
	migrateCmd.Flags().StringVar(&migrateReportFile, "report", "", "write the full JSON report to this file")
	migrateCmd.Flags().IntVar(&migrateMaxSwitches, "max-switches", 0, "cap on conditional switches per document")
	migrateCmd.Flags().IntVar(&migrateConcurrency, "concurrency", 0, "parallel document workers")
	migrateCmd.Flags().StringVar(&migrateCache, "cache", "memory", "transform cache: none, memory or s3")
	migrateCmd.Flags().BoolVar(&migrateKeepVague, "keep-vague", false, "leave vaguely deprecated fields in place and only warn")
	migrateCmd.Flags().BoolVar(&migrateNoComments, "no-comments", false, "do not leave comments where fields were removed")
	migrateCmd.Flags().StringVar(&migrateRootType, "root-type", "", "name of the root query type")
	migrateCmd.Flags().BoolVar(&migrateFailOnWarning, "fail-on-warning", false, "exit non zero when the run produced warnings")
	_ = migrateCmd.MarkFlagRequired("rules")

	_ = viper.BindPFlag("cache", migrateCmd.Flags().Lookup("cache"))
}

func buildCacheStore() (cachestore.Store, error) {
	switch migrateCache {
	case "none":
		return cachestore.Nop{}, nil
	case "memory":
		return cachestore.NewMemory(cachestore.DefaultMemorySize)
	case "s3":
		return cachestore.NewS3(cachestore.S3Config{
			Endpoint:  viper.GetString("s3.endpoint"),
			AccessKey: viper.GetString("s3.accessKey"),
			SecretKey: viper.GetString("s3.secretKey"),
			Bucket:    viper.GetString("s3.bucket"),
			Region:    viper.GetString("s3.region"),
			UseSSL:    viper.GetBool("s3.useSSL"),
		})
	default:
		return nil, fmt.Errorf("unknown cache backend %q", migrateCache)
	}
}

func printSummary(cmd *cobra.Command, report *migration.Report) {
	s := report.Summary
	fmt.Fprintf(cmd.OutOrStdout(), `Migration summary:
- files:      %d
- documents:  %d
- fragments:  %d
- variants:   %d
- changes:    %d
- warnings:   %d
- patches:    %d
- cache hits: %d
- errors:     %d
`, s.Files, s.Documents, s.Fragments, s.Variants, s.Changes, s.Warnings, s.Patches, s.CacheHits, s.Errors)
}

// applyPatches rewrites the source files, one write per file, all patches for
// a file applied together so their spans stay consistent.
func applyPatches(root string, patches []textpatch.Patch) error {
	byFile := map[string][]textpatch.Patch{}
	for _, patch := range patches {
		byFile[patch.File] = append(byFile[patch.File], patch)
	}
	for file, filePatches := range byFile {
		path := filepath.Join(root, filepath.FromSlash(file))
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("applying patches to %s: %w", file, err)
		}
		patched, err := textpatch.ApplyAll(data, filePatches)
		if err != nil {
			return fmt.Errorf("applying patches to %s: %w", file, err)
		}
		if err := os.WriteFile(path, patched, 0o644); err != nil {
			return fmt.Errorf("applying patches to %s: %w", file, err)
		}
	}
	return nil
}
