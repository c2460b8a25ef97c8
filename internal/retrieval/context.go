// Package retrieval assembles grounding context for chat and tool prompts
// from the user's embedded document chunks.
package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/lexvault/lexvault/internal/metrics"
	"github.com/lexvault/lexvault/internal/models"
	"github.com/lexvault/lexvault/internal/observability"
)

const unknownDocumentName = "Unknown"

// Embedder produces a query embedding for retrieval
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// ChunkSearcher finds the most similar chunks for an embedding, scoped to a user
type ChunkSearcher interface {
	SearchSimilar(ctx context.Context, embedding []float32, matchCount int, userID uuid.UUID) ([]models.ChunkMatch, error)
}

// NameLookup resolves document IDs to display names
type NameLookup interface {
	LookupNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

// Options tune a single retrieval pass
type Options struct {
	MatchCount        int
	CitationMaxLength int
}

// ContextAssembler turns a user query into a formatted context block plus
// citation metadata. Embedding failures are fatal for the request; search
// and name lookup failures degrade to an empty context so chat can still
// answer from general knowledge.
type ContextAssembler struct {
	embedder Embedder
	searcher ChunkSearcher
	names    NameLookup
	logger   observability.Logger
}

// NewContextAssembler creates a context assembler
func NewContextAssembler(embedder Embedder, searcher ChunkSearcher, names NameLookup, logger observability.Logger) *ContextAssembler {
	return &ContextAssembler{
		embedder: embedder,
		searcher: searcher,
		names:    names,
		logger:   logger,
	}
}

// BuildContext embeds the query, searches the user's chunks and formats the
// matches into a prompt-ready context block. Matches keep their similarity
// ranking from the search; they are never re-sorted here.
func (a *ContextAssembler) BuildContext(ctx context.Context, query string, userID uuid.UUID, opts Options) (*models.RetrievalContext, error) {
	embedding, err := a.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	start := time.Now()
	matches, err := a.searcher.SearchSimilar(ctx, embedding, opts.MatchCount, userID)
	metrics.SearchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		a.logger.Warn("Chunk search failed, continuing without context", map[string]interface{}{
			"user_id": userID.String(),
			"error":   err.Error(),
		})
		return &models.RetrievalContext{}, nil
	}

	if len(matches) == 0 {
		return &models.RetrievalContext{}, nil
	}

	names := a.lookupNames(ctx, matches)

	blocks := make([]string, 0, len(matches))
	citations := make([]models.Citation, 0, len(matches))

	for i, match := range matches {
		name, ok := names[match.DocumentID]
		if !ok || name == "" {
			name = unknownDocumentName
		}

		blocks = append(blocks, fmt.Sprintf("[Chunk %d | Source: %s, Section %d]\n%s",
			i+1, name, match.ChunkIndex, match.Content))

		citations = append(citations, models.Citation{
			DocumentName: name,
			ChunkContent: truncate(match.Content, opts.CitationMaxLength),
			Similarity:   match.Similarity,
			ChunkIndex:   match.ChunkIndex,
		})
	}

	return &models.RetrievalContext{
		FormattedText: strings.Join(blocks, "\n\n---\n\n"),
		Citations:     citations,
	}, nil
}

func (a *ContextAssembler) lookupNames(ctx context.Context, matches []models.ChunkMatch) map[uuid.UUID]string {
	seen := make(map[uuid.UUID]struct{}, len(matches))
	ids := make([]uuid.UUID, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m.DocumentID]; ok {
			continue
		}
		seen[m.DocumentID] = struct{}{}
		ids = append(ids, m.DocumentID)
	}

	names, err := a.names.LookupNames(ctx, ids)
	if err != nil {
		a.logger.Warn("Document name lookup failed, using placeholder names", map[string]interface{}{
			"error": err.Error(),
		})
		return map[uuid.UUID]string{}
	}
	return names
}

// truncate cuts s to at most max bytes without splitting a UTF-8 sequence
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
