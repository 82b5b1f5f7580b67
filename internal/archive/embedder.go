package archive

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"

	chromem "github.com/philippgille/chromem-go"

	"github.com/chriscantu/advisord/internal/memory"
)

// hashEmbedding builds a deterministic local embedding function: each
// keyword hashes into one of dims signed buckets and the bucket vector is
// L2-normalized. No model, no network, stable across runs and platforms.
// Overlapping keyword sets land in overlapping buckets, which is exactly
// the recall the archive needs.
func hashEmbedding(dims int) chromem.EmbeddingFunc {
	return func(_ context.Context, text string) ([]float32, error) {
		if dims <= 0 {
			return nil, fmt.Errorf("embedding dimensions must be positive, got %d", dims)
		}
		vec := make([]float32, dims)
		for _, token := range memory.ExtractKeywords(text) {
			h := fnv.New32a()
			h.Write([]byte(token))
			sum := h.Sum32()
			bucket := sum % uint32(dims)
			if sum&0x80000000 != 0 {
				vec[bucket]--
			} else {
				vec[bucket]++
			}
		}

		var norm float64
		for _, v := range vec {
			norm += float64(v) * float64(v)
		}
		if norm == 0 {
			// Keyword-free text still needs a valid unit vector.
			vec[0] = 1
			return vec, nil
		}
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
		return vec, nil
	}
}
