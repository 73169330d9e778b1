// Package textembed turns normalized page text into cached embedding
// vectors via the OpenAI embeddings endpoint, rate-limited and retried with
// exponential-jittered backoff.
package textembed

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/allanyiin/slidemanager/internal/ratelimit"
)

// ZeroVectorSentinelPrefix and NoSigSentinelPrefix name the two private,
// non-shared cache keys the TEXT_VEC pipeline mints when a page can't use
// the shared (model, text_sig) cache row: ZeroVectorSentinelPrefix for a
// page with no extracted text at all (never calls the provider, still
// cached so repeated runs don't recompute the zero vector), NoSigSentinelPrefix
// for a page whose normalized text produced an empty signature but still
// went through a live provider call. Both are page_id+timestamp scoped so
// they never collide with a real signature or with each other. The
// pipeline that constructs and uses these lives in internal/jobmanager;
// this package only packs and unpacks the vectors themselves.
const (
	ZeroVectorSentinelPrefix = "__zero__:"
	NoSigSentinelPrefix      = "__nosig__:"
)

// EstimateTokens approximates OpenAI's tokenizer cost for rate-limiting
// purposes: round(chars / 4 * 1.2), floored at 1.
func EstimateTokens(text string) int {
	est := int(math.Round(float64(utf8.RuneCountInString(text)) / 4 * 1.2))
	if est < 1 {
		return 1
	}
	return est
}

// PackF32 little-endian-encodes a float32 vector, the wire format stored in
// embedding_cache_text.vector_blob and page_image_embedding.vector_blob.
func PackF32(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// UnpackF32 reverses PackF32.
func UnpackF32(blob []byte) []float32 {
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec
}

// ZeroVector returns a packed all-zero vector of the given dimension, used
// for pages with no text.
func ZeroVector(dim int) []byte {
	return PackF32(make([]float32, dim))
}

// Client wraps the OpenAI client with the rate limiter and retry policy a
// batch embed call needs.
type Client struct {
	oa         openai.Client
	limiter    *ratelimit.Bucket
	maxRetries int
}

// NewClient constructs a Client for the given API key and rate-limiter
// bucket.
func NewClient(apiKey string, limiter *ratelimit.Bucket, maxRetries int) *Client {
	return &Client{
		oa:         openai.NewClient(option.WithAPIKey(apiKey)),
		limiter:    limiter,
		maxRetries: maxRetries,
	}
}

// EmbedBatch acquires rate-limit capacity for the batch's estimated token
// cost, then calls the Embeddings endpoint, retrying with
// ratelimit.BackoffDelay on any error up to maxRetries times.
func (c *Client) EmbedBatch(ctx context.Context, texts []string, model string) ([][]float32, error) {
	tokCost := 0
	for _, t := range texts {
		tokCost += EstimateTokens(t)
	}
	if err := c.limiter.Acquire(ctx, 1.0, float64(tokCost)); err != nil {
		return nil, fmt.Errorf("acquiring rate limit capacity: %w", err)
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		resp, err := c.oa.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
			Model: openai.EmbeddingModel(model),
		})
		if err == nil {
			out := make([][]float32, len(resp.Data))
			for i, d := range resp.Data {
				out[i] = toFloat32(d.Embedding)
			}
			return out, nil
		}
		lastErr = err
		if attempt >= c.maxRetries {
			return nil, fmt.Errorf("embedding batch failed after %d retries: %w", c.maxRetries, lastErr)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(ratelimit.BackoffDelay(attempt)):
		}
	}
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
