package experience

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	chromem "github.com/philippgille/chromem-go"
)

// fingerprintDims is the dimensionality of the hashed goal fingerprint.
const fingerprintDims = 256

// Fingerprint maps goal text to a deterministic, L2-normalized vector
// via feature hashing of its word unigrams and bigrams. No external
// embedding API is involved, so similarity works offline and is stable
// across processes.
func Fingerprint(text string) []float32 {
	vec := make([]float32, fingerprintDims)
	words := tokenize(text)
	if len(words) == 0 {
		return vec
	}

	for i, w := range words {
		addFeature(vec, w)
		if i+1 < len(words) {
			addFeature(vec, w+" "+words[i+1])
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

// addFeature hashes one feature into a bucket, with the hash's top bit
// choosing the sign so collisions cancel rather than accumulate.
func addFeature(vec []float32, feature string) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()
	bucket := sum % fingerprintDims
	if sum&(1<<63) != 0 {
		vec[bucket]--
	} else {
		vec[bucket]++
	}
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
}

// embeddingFunc adapts Fingerprint to the vector store's embedding
// contract.
func embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return Fingerprint(text), nil
	}
}

// CosineSimilarity computes the cosine similarity of two equal-length
// vectors. Exposed for tests and for comparator experiments.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
