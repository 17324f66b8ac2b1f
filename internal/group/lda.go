package group

import (
	"context"
	"math"
	"math/rand/v2"
)

// ldaFit is a fitted topic model.
type ldaFit struct {
	// Theta is the per-document topic distribution.
	Theta [][]float64
	// Phi is the per-topic word distribution.
	Phi           [][]float64
	LogLikelihood float64
	Perplexity    float64
}

// lda fits k topics to a count matrix by collapsed Gibbs sampling with
// symmetric priors alpha = beta = 1/k.
func lda(ctx context.Context, counts [][]float64, vocabSize, k, iterations int, seed int64) (*ldaFit, error) {
	rng := rand.New(rand.NewPCG(uint64(seed), 0x2545f4914f6cdd1d))
	alpha := 1 / float64(k)
	beta := 1 / float64(k)
	vBeta := float64(vocabSize) * beta

	// Expand counts into token lists.
	docs := make([][]int, len(counts))
	for d, row := range counts {
		for w, c := range row {
			for i := 0; i < int(c); i++ {
				docs[d] = append(docs[d], w)
			}
		}
	}

	ndk := make([][]int, len(docs))
	nkw := make([][]int, k)
	nk := make([]int, k)
	for t := range nkw {
		nkw[t] = make([]int, vocabSize)
	}
	z := make([][]int, len(docs))
	for d, words := range docs {
		ndk[d] = make([]int, k)
		z[d] = make([]int, len(words))
		for i, w := range words {
			t := rng.IntN(k)
			z[d][i] = t
			ndk[d][t]++
			nkw[t][w]++
			nk[t]++
		}
	}

	p := make([]float64, k)
	for it := 0; it < iterations; it++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for d, words := range docs {
			for i, w := range words {
				t := z[d][i]
				ndk[d][t]--
				nkw[t][w]--
				nk[t]--

				var total float64
				for j := 0; j < k; j++ {
					p[j] = (float64(ndk[d][j]) + alpha) * (float64(nkw[j][w]) + beta) / (float64(nk[j]) + vBeta)
					total += p[j]
				}
				u := rng.Float64() * total
				t = k - 1
				for j := 0; j < k; j++ {
					u -= p[j]
					if u <= 0 {
						t = j
						break
					}
				}

				z[d][i] = t
				ndk[d][t]++
				nkw[t][w]++
				nk[t]++
			}
		}
	}

	fit := &ldaFit{Theta: make([][]float64, len(docs)), Phi: make([][]float64, k)}
	for t := 0; t < k; t++ {
		fit.Phi[t] = make([]float64, vocabSize)
		for w := 0; w < vocabSize; w++ {
			fit.Phi[t][w] = (float64(nkw[t][w]) + beta) / (float64(nk[t]) + vBeta)
		}
	}
	var tokens int
	for d, words := range docs {
		fit.Theta[d] = make([]float64, k)
		denom := float64(len(words)) + float64(k)*alpha
		for t := 0; t < k; t++ {
			fit.Theta[d][t] = (float64(ndk[d][t]) + alpha) / denom
		}
		for _, w := range words {
			var pw float64
			for t := 0; t < k; t++ {
				pw += fit.Theta[d][t] * fit.Phi[t][w]
			}
			fit.LogLikelihood += math.Log(pw)
		}
		tokens += len(words)
	}
	if tokens > 0 {
		fit.Perplexity = math.Exp(-fit.LogLikelihood / float64(tokens))
	}
	return fit, nil
}

// argmax returns the index of the largest value, the first on ties.
func argmax(v []float64) int {
	best := 0
	for i, x := range v {
		if x > v[best] {
			best = i
		}
	}
	return best
}
