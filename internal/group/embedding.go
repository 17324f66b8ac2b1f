package group

import (
	"context"
	"fmt"
	"math"
	mrand "math/rand"
	"math/rand/v2"
	"sort"

	"github.com/coder/hnsw"

	"github.com/Aman-CERP/docsift/internal/embed"
)

// OutlierLabel marks documents the embedding method places in no topic.
const OutlierLabel = -1

// embeddingFit is the outcome of density clustering over reduced embeddings.
type embeddingFit struct {
	Labels   []int
	Topics   int
	Outliers int
	Radius   float64
}

// embedDocuments returns one vector per text, in input order.
func embedDocuments(ctx context.Context, e embed.Embedder, texts []string) ([][]float64, error) {
	vecs, err := e.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(texts))
	}
	out := make([][]float64, len(vecs))
	for i, v := range vecs {
		row := make([]float64, len(v))
		for j, x := range v {
			row[j] = float64(x)
		}
		out[i] = row
	}
	return out, nil
}

// pca projects centered rows onto their top dims principal components,
// found by seeded power iteration with deflation. Rows already at or below
// dims are returned centered.
func pca(rows [][]float64, dims int, seed int64) [][]float64 {
	n := len(rows)
	if n == 0 {
		return nil
	}
	d := len(rows[0])
	mean := make([]float64, d)
	for _, r := range rows {
		for j, x := range r {
			mean[j] += x
		}
	}
	for j := range mean {
		mean[j] /= float64(n)
	}
	centered := make([][]float64, n)
	for i, r := range rows {
		c := make([]float64, d)
		for j, x := range r {
			c[j] = x - mean[j]
		}
		centered[i] = c
	}
	if dims <= 0 || d <= dims {
		return centered
	}

	rng := rand.New(rand.NewPCG(uint64(seed), 0xda942042e4dd58b5))
	components := make([][]float64, 0, dims)
	for len(components) < min(dims, n) {
		v := make([]float64, d)
		for j := range v {
			v[j] = rng.NormFloat64()
		}
		for it := 0; it < 100; it++ {
			w := covTimes(centered, v)
			for _, c := range components {
				p := dot(w, c)
				for j := range w {
					w[j] -= p * c[j]
				}
			}
			if norm(w) == 0 {
				v = w
				break
			}
			l2Normalize(w)
			v = w
		}
		components = append(components, v)
	}

	out := make([][]float64, n)
	for i, r := range centered {
		row := make([]float64, dims)
		for c, comp := range components {
			row[c] = dot(r, comp)
		}
		out[i] = row
	}
	return out
}

// covTimes returns Xᵀ(Xv) without forming the covariance matrix.
func covTimes(x [][]float64, v []float64) []float64 {
	out := make([]float64, len(v))
	for _, r := range x {
		p := dot(r, v)
		for j, xj := range r {
			out[j] += p * xj
		}
	}
	return out
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func norm(v []float64) float64 {
	return math.Sqrt(dot(v, v))
}

type neighbour struct {
	idx  int
	dist float64
}

// knn builds an HNSW graph over rows and returns, for every row, its nearest
// other rows ordered by distance.
func knn(rows [][]float64, k int, seed int64) [][]neighbour {
	g := hnsw.NewGraph[int]()
	g.Distance = hnsw.EuclideanDistance
	g.Rng = mrand.New(mrand.NewSource(seed))

	vecs := make([][]float32, len(rows))
	for i, r := range rows {
		v := make([]float32, len(r))
		for j, x := range r {
			v[j] = float32(x)
		}
		vecs[i] = v
		g.Add(hnsw.MakeNode(i, v))
	}

	out := make([][]neighbour, len(rows))
	for i, v := range vecs {
		nodes := g.Search(v, min(k+1, len(rows)))
		list := make([]neighbour, 0, len(nodes))
		for _, node := range nodes {
			if node.Key == i {
				continue
			}
			list = append(list, neighbour{idx: node.Key, dist: float64(g.Distance(v, node.Value))})
		}
		sort.SliceStable(list, func(a, b int) bool { return list[a].dist < list[b].dist })
		out[i] = list
	}
	return out
}

// densityCluster groups points that have at least minSize neighbours within
// an adaptive radius, the median distance to each point's minSize-th
// neighbour. Core points seed clusters that absorb every neighbour inside
// the radius; points reached by no core point are outliers. Labels are
// dense in discovery order.
func densityCluster(rows [][]float64, minSize int, seed int64) *embeddingFit {
	n := len(rows)
	minSize = max(minSize, 1)
	fit := &embeddingFit{Labels: make([]int, n)}
	for i := range fit.Labels {
		fit.Labels[i] = OutlierLabel
	}
	if n <= minSize {
		fit.Outliers = n
		return fit
	}

	neighbours := knn(rows, max(2*minSize, 10), seed)
	coreDist := make([]float64, n)
	for i, list := range neighbours {
		coreDist[i] = math.Inf(1)
		if len(list) >= minSize {
			coreDist[i] = list[minSize-1].dist
		}
	}
	sorted := append([]float64(nil), coreDist...)
	sort.Float64s(sorted)
	radius := sorted[(n-1)/2]
	fit.Radius = radius

	isCore := func(i int) bool { return coreDist[i] <= radius }

	label := 0
	for i := 0; i < n; i++ {
		if fit.Labels[i] != OutlierLabel || !isCore(i) {
			continue
		}
		fit.Labels[i] = label
		queue := []int{i}
		for len(queue) > 0 {
			p := queue[0]
			queue = queue[1:]
			for _, nb := range neighbours[p] {
				if nb.dist > radius {
					break
				}
				if fit.Labels[nb.idx] != OutlierLabel {
					continue
				}
				fit.Labels[nb.idx] = label
				if isCore(nb.idx) {
					queue = append(queue, nb.idx)
				}
			}
		}
		label++
	}

	fit.Topics = label
	for _, l := range fit.Labels {
		if l == OutlierLabel {
			fit.Outliers++
		}
	}
	return fit
}
