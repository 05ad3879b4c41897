// Package migration drives a full run: extract embedded documents, resolve
// fragments, expand conditional variants, transform against the deprecation
// rules and emit patches for the documents that can be rewritten in place.
package migration

import (
	"context"
	"sort"
	"strings"

	"github.com/jensneuse/abstractlogger"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/jensneuse/graphql-migrate/pkg/cachestore"
	"github.com/jensneuse/graphql-migrate/pkg/deprecation"
	"github.com/jensneuse/graphql-migrate/pkg/extraction"
	"github.com/jensneuse/graphql-migrate/pkg/fragments"
	"github.com/jensneuse/graphql-migrate/pkg/resolve"
	"github.com/jensneuse/graphql-migrate/pkg/textpatch"
	"github.com/jensneuse/graphql-migrate/pkg/variants"
)

const DefaultConcurrency = 8

type Options struct {
	// SourceRoot is the application tree to scan.
	SourceRoot string
	// FragmentRoot holds the shared fragment library. Defaults to
	// SourceRoot.
	FragmentRoot string

	Include       []string
	Exclude       []string
	FragmentGlobs []string
	Tags          []string

	ConflictPolicy fragments.ConflictPolicy
	MaxSwitches    int
	Concurrency    int

	Transform deprecation.Options
}

func DefaultRunnerOptions() Options {
	return Options{
		Include:       extraction.DefaultInclude,
		FragmentGlobs: fragments.DefaultGlobs,
		Tags:          extraction.DefaultTags,
		MaxSwitches:   variants.DefaultMaxSwitches,
		Concurrency:   DefaultConcurrency,
		Transform:     deprecation.DefaultOptions(),
	}
}

// Runner wires the pipeline together. It is safe to Run it multiple times;
// the cache store carries transform results across runs.
type Runner struct {
	opts  Options
	rules *deprecation.Index
	store cachestore.Store
	log   abstractlogger.Logger
}

func NewRunner(rules *deprecation.Index, opts Options, store cachestore.Store, logger abstractlogger.Logger) *Runner {
	if opts.FragmentRoot == "" {
		opts.FragmentRoot = opts.SourceRoot
	}
	if len(opts.Include) == 0 {
		opts.Include = extraction.DefaultInclude
	}
	if len(opts.FragmentGlobs) == 0 {
		opts.FragmentGlobs = fragments.DefaultGlobs
	}
	if len(opts.Tags) == 0 {
		opts.Tags = extraction.DefaultTags
	}
	if opts.MaxSwitches <= 0 {
		opts.MaxSwitches = variants.DefaultMaxSwitches
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if store == nil {
		store = cachestore.Nop{}
	}
	if logger == nil {
		logger = abstractlogger.Noop{}
	}
	return &Runner{opts: opts, rules: rules, store: store, log: logger}
}

// Run executes the whole pipeline. The returned report is ordered by
// document ID and identical across runs over an unchanged tree.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	extractor := extraction.NewExtractor(
		extraction.NewHybrid(r.opts.Tags, r.log),
		r.opts.Include, r.opts.Exclude, r.log,
	)
	docs, err := extractor.ExtractDir(r.opts.SourceRoot)
	if err != nil {
		return nil, err
	}

	fragStore, err := r.loadFragments(docs)
	if err != nil {
		return nil, err
	}

	resolver := resolve.NewResolver(r.log)
	generator := variants.NewGenerator(resolver, r.opts.MaxSwitches, r.log)
	transformer := deprecation.NewTransformer(r.store, r.log)

	reports := make([]DocumentReport, len(docs))
	var counters runCounters

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)
	for i, doc := range docs {
		i, doc := i, doc
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			reports[i] = r.processDocument(doc, fragStore, resolver, generator, transformer, &counters)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].Document.ID < reports[j].Document.ID
	})

	report := &Report{Documents: reports}
	report.Summary = Summary{
		Files:     countFiles(docs),
		Documents: len(docs),
		Fragments: fragStore.Len(),
		Variants:  counters.variants.Load(),
		Changes:   counters.changes.Load(),
		Warnings:  counters.warnings.Load(),
		Patches:   counters.patches.Load(),
		CacheHits: counters.cacheHits.Load(),
		Errors:    counters.errors.Load(),
	}

	r.log.Info("migration run complete",
		abstractlogger.Int("documents", report.Summary.Documents),
		abstractlogger.Int("fragments", report.Summary.Fragments),
		abstractlogger.Int("changes", int(report.Summary.Changes)),
		abstractlogger.Int("patches", int(report.Summary.Patches)),
	)
	return report, nil
}

type runCounters struct {
	variants  atomic.Int64
	changes   atomic.Int64
	warnings  atomic.Int64
	patches   atomic.Int64
	cacheHits atomic.Int64
	errors    atomic.Int64
}

// loadFragments fills the store from the fragment library on disk, then from
// fragment definitions embedded in source files. Library files win on
// conflicts under the first-wins policy because they are added first.
func (r *Runner) loadFragments(docs []extraction.Document) (*fragments.Store, error) {
	store := fragments.NewStore(r.opts.ConflictPolicy, r.log)
	loader := fragments.NewLoader(r.log)
	if err := loader.LoadDir(store, r.opts.FragmentRoot, r.opts.FragmentGlobs, r.opts.Exclude); err != nil {
		return nil, err
	}

	for _, doc := range docs {
		if doc.Kind != extraction.KindFragment || isLibraryFile(doc.Span.File) {
			continue
		}
		text := extraction.ParseableText(doc.Raw, doc.Holes)
		defs, err := fragments.ParseDefinitions(doc.Span.File, text)
		if err != nil {
			r.log.Warn("skipping embedded fragment document",
				abstractlogger.String("id", doc.ID),
				abstractlogger.Error(err),
			)
			continue
		}
		for _, def := range defs {
			if err := store.Add(def); err != nil {
				return nil, err
			}
		}
	}
	return store, nil
}

func (r *Runner) processDocument(
	doc extraction.Document,
	fragStore *fragments.Store,
	resolver *resolve.Resolver,
	generator *variants.Generator,
	transformer *deprecation.Transformer,
	counters *runCounters,
) DocumentReport {
	report := DocumentReport{Document: doc}

	report.Resolved = resolver.Resolve(doc, fragStore)
	counters.warnings.Add(int64(len(report.Resolved.MissingSpreads)))

	if switches := generator.Switches(doc); len(switches) > 0 {
		vars, err := generator.Generate(doc, fragStore)
		if err != nil {
			report.Errors = append(report.Errors, err.Error())
			counters.errors.Inc()
		}
		for _, variant := range vars {
			result := transformer.Transform(variant.Resolved.Text, r.rules, r.opts.Transform)
			counters.variants.Inc()
			r.count(counters, result)
			report.Variants = append(report.Variants, VariantReport{Variant: variant, Transform: result})
		}
	}

	result := transformer.Transform(report.Resolved.Text, r.rules, r.opts.Transform)
	r.count(counters, result)
	report.Transform = &result

	if patch := r.patchFor(doc, transformer); patch != nil {
		report.Patch = patch
		counters.patches.Inc()
	}
	return report
}

// patchFor rewrites the document's raw source text. Only documents without
// interpolation holes can be patched, since the bytes in the file must equal
// the text the transform ran on.
func (r *Runner) patchFor(doc extraction.Document, transformer *deprecation.Transformer) *textpatch.Patch {
	if len(doc.Holes) > 0 {
		return nil
	}
	result := transformer.Transform(doc.Raw, r.rules, r.opts.Transform)
	if result.Transformed == doc.Raw {
		return nil
	}
	return &textpatch.Patch{
		DocumentID:  doc.ID,
		File:        doc.Span.File,
		Span:        textpatch.Span{Start: doc.Span.Start, End: doc.Span.End},
		Original:    doc.Raw,
		Transformed: result.Transformed,
	}
}

func (r *Runner) count(counters *runCounters, result deprecation.Result) {
	counters.changes.Add(int64(len(result.Changes)))
	counters.warnings.Add(int64(len(result.Warnings)))
	if result.Cached {
		counters.cacheHits.Inc()
	}
}

func countFiles(docs []extraction.Document) int {
	seen := map[string]struct{}{}
	for _, doc := range docs {
		seen[doc.Span.File] = struct{}{}
	}
	return len(seen)
}

func isLibraryFile(file string) bool {
	return strings.HasSuffix(file, ".graphql") || strings.HasSuffix(file, ".gql")
}
