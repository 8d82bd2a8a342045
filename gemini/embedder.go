// Package gemini provides a docchunk.Embedder backed by the Gemini
// embedding API.
package gemini

import (
	"context"

	"github.com/fwojciec/docchunk"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

const embeddingModel = "gemini-embedding-001"

// batchSize is the maximum number of texts sent in one EmbedContent call.
const batchSize = 100

// Ensure Embedder implements docchunk.Embedder at compile time.
var _ docchunk.Embedder = (*Embedder)(nil)

// Embedder implements docchunk.Embedder using Google Gemini.
// Requests are rate limited and large inputs are embedded in concurrent
// batches.
type Embedder struct {
	client      *genai.Client
	limiter     *rate.Limiter
	concurrency int
}

// EmbedderOption configures an Embedder.
type EmbedderOption func(*Embedder)

// WithRequestsPerSecond overrides the default API rate limit.
func WithRequestsPerSecond(rps float64) EmbedderOption {
	return func(e *Embedder) { e.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

// WithConcurrency overrides the number of concurrent batch requests.
func WithConcurrency(n int) EmbedderOption {
	return func(e *Embedder) { e.concurrency = n }
}

// NewEmbedder creates a new Embedder.
func NewEmbedder(client *genai.Client, opts ...EmbedderOption) *Embedder {
	e := &Embedder{
		client:      client,
		limiter:     rate.NewLimiter(rate.Limit(2), 1),
		concurrency: 3,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Embed returns one embedding vector per input text, in input order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float64, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		g.Go(func() error {
			if err := e.limiter.Wait(gctx); err != nil {
				return err
			}

			contents := make([]*genai.Content, 0, end-start)
			for _, text := range texts[start:end] {
				contents = append(contents, &genai.Content{
					Parts: []*genai.Part{{Text: text}},
				})
			}

			result, err := e.client.Models.EmbedContent(gctx, embeddingModel, contents, nil)
			if err != nil {
				return err
			}
			if result == nil || len(result.Embeddings) != end-start {
				return docchunk.Errorf(docchunk.EINTERNAL, "gemini returned %d embeddings for %d texts", embeddingCount(result), end-start)
			}

			for i, embedding := range result.Embeddings {
				vec := make([]float64, len(embedding.Values))
				for j, v := range embedding.Values {
					vec[j] = float64(v)
				}
				vectors[start+i] = vec
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func embeddingCount(result *genai.EmbedContentResponse) int {
	if result == nil {
		return 0
	}
	return len(result.Embeddings)
}
