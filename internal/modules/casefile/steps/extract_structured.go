package steps

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/demandly/casefile-backend/internal/platform/logger"
	"github.com/demandly/casefile-backend/internal/platform/openai"
)

type StructuredExtractionDeps struct {
	Log    *logger.Logger
	Oracle openai.Client
}

// ExtractStructuredData turns a classified document's text into the
// category-shaped payload. A single chunk is one oracle call; a chunked
// document fans out one concurrent call per chunk and folds the results with
// the category's merge strategy. A chunk whose response never parses
// contributes nothing; the document only fails when no chunk parses at all.
func ExtractStructuredData(ctx context.Context, deps StructuredExtractionDeps, category string, text string, maxChunkSize int) (map[string]any, error) {
	if deps.Log == nil || deps.Oracle == nil {
		return nil, fmt.Errorf("extract_structured: missing deps")
	}
	spec, ok := categorySpecs[category]
	if !ok {
		return nil, fmt.Errorf("extract_structured: unknown category %q", category)
	}

	chunks := SplitIntoChunks(text, maxChunkSize)
	log := deps.Log.With("step", "ExtractStructuredData", "category", category, "chunks", len(chunks))

	if len(chunks) == 1 {
		raw, err := deps.Oracle.GenerateText(ctx, extractionSystemPrompt, spec.userPrompt(chunks[0]))
		if err != nil {
			return nil, fmt.Errorf("oracle call: %w", err)
		}
		obj, err := ExtractJSONObject(raw)
		if err != nil {
			return nil, fmt.Errorf("parse oracle output: %w", err)
		}
		return obj, nil
	}

	results := make([]map[string]any, len(chunks))
	g, gctx := errgroup.Group{}, ctx
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			raw, err := deps.Oracle.GenerateText(gctx, extractionSystemPrompt, spec.userPrompt(chunk))
			if err != nil {
				log.Warn("Chunk oracle call failed", "chunk_index", i, "error", err)
				return nil
			}
			obj, err := ExtractJSONObject(raw)
			if err != nil {
				log.Warn("Chunk output unparseable", "chunk_index", i, "error", err)
				return nil
			}
			results[i] = obj
			return nil
		})
	}
	_ = g.Wait()

	parsed := 0
	for _, r := range results {
		if r != nil {
			parsed++
		}
	}
	if parsed == 0 {
		return nil, fmt.Errorf("extract_structured: no chunk produced parseable output")
	}
	if parsed < len(chunks) {
		log.Warn("Partial chunk results merged", "parsed", parsed, "total", len(chunks))
	}

	merged := spec.merge(results)
	if merged == nil {
		return nil, fmt.Errorf("extract_structured: merge produced no payload")
	}
	return merged, nil
}
