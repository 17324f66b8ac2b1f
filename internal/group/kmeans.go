package group

import (
	"context"
	"math"
	"math/rand/v2"
)

// kmeansFit is the best of several k-means++ restarts.
type kmeansFit struct {
	Labels    []int
	Centroids [][]float64
	Inertia   float64
	Iter      int
}

// kmeans partitions rows into k clusters. Each of nInit restarts is seeded
// with k-means++ from one seeded generator; the lowest-inertia fit wins.
// Every cluster is non-empty when len(rows) >= k.
func kmeans(ctx context.Context, rows [][]float64, k, nInit, maxIter int, seed int64) (*kmeansFit, error) {
	rng := rand.New(rand.NewPCG(uint64(seed), 0x9e3779b97f4a7c15))
	var best *kmeansFit
	for run := 0; run < max(nInit, 1); run++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fit := lloyd(rows, seedCentroids(rows, k, rng), max(maxIter, 1))
		if best == nil || fit.Inertia < best.Inertia {
			best = fit
		}
	}
	return best, nil
}

// seedCentroids picks k initial centroids with k-means++ weighting.
func seedCentroids(rows [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(rows)
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, clone(rows[rng.IntN(n)]))

	dist := make([]float64, n)
	for i := range rows {
		dist[i] = sqDist(rows[i], centroids[0])
	}
	for len(centroids) < k {
		var total float64
		for _, d := range dist {
			total += d
		}
		next := rng.IntN(n)
		if total > 0 {
			target := rng.Float64() * total
			for i, d := range dist {
				target -= d
				if target <= 0 {
					next = i
					break
				}
			}
		}
		c := clone(rows[next])
		centroids = append(centroids, c)
		for i := range rows {
			if d := sqDist(rows[i], c); d < dist[i] {
				dist[i] = d
			}
		}
	}
	return centroids
}

// lloyd iterates assignment and update steps until labels stop changing.
func lloyd(rows [][]float64, centroids [][]float64, maxIter int) *kmeansFit {
	labels := make([]int, len(rows))
	for i := range labels {
		labels[i] = -1
	}

	iter := 0
	for ; iter < maxIter; iter++ {
		changed := false
		for i, r := range rows {
			l := nearest(r, centroids)
			if l != labels[i] {
				labels[i], changed = l, true
			}
		}
		relocateEmpty(rows, labels, centroids)
		updateCentroids(rows, labels, centroids)
		if !changed {
			break
		}
	}

	var inertia float64
	for i, r := range rows {
		inertia += sqDist(r, centroids[labels[i]])
	}
	return &kmeansFit{Labels: labels, Centroids: centroids, Inertia: inertia, Iter: min(iter+1, maxIter)}
}

// relocateEmpty moves the point farthest from its centroid into each empty
// cluster, taking it from a cluster with more than one member.
func relocateEmpty(rows [][]float64, labels []int, centroids [][]float64) {
	sizes := make([]int, len(centroids))
	for _, l := range labels {
		sizes[l]++
	}
	for c := range centroids {
		if sizes[c] > 0 {
			continue
		}
		far, farDist := -1, -1.0
		for i, r := range rows {
			if sizes[labels[i]] < 2 {
				continue
			}
			if d := sqDist(r, centroids[labels[i]]); d > farDist {
				far, farDist = i, d
			}
		}
		if far < 0 {
			return
		}
		sizes[labels[far]]--
		labels[far] = c
		sizes[c]++
		copy(centroids[c], rows[far])
	}
}

func updateCentroids(rows [][]float64, labels []int, centroids [][]float64) {
	counts := make([]int, len(centroids))
	for c := range centroids {
		for j := range centroids[c] {
			centroids[c][j] = 0
		}
	}
	for i, r := range rows {
		c := centroids[labels[i]]
		for j, x := range r {
			c[j] += x
		}
		counts[labels[i]]++
	}
	for c, n := range counts {
		if n == 0 {
			continue
		}
		for j := range centroids[c] {
			centroids[c][j] /= float64(n)
		}
	}
}

func nearest(r []float64, centroids [][]float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, cen := range centroids {
		if d := sqDist(r, cen); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

func clone(v []float64) []float64 {
	return append([]float64(nil), v...)
}

// cosineDistance is 1 - cosine similarity; a zero vector is at distance 1
// from everything.
func cosineDistance(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// silhouette is the mean silhouette coefficient under cosine distance.
// It is 0 unless 2 <= clusters <= n-1; members of singleton clusters
// score 0.
func silhouette(rows [][]float64, labels []int) float64 {
	n := len(rows)
	k := 0
	for _, l := range labels {
		k = max(k, l+1)
	}
	if k < 2 || k > n-1 {
		return 0
	}
	sizes := make([]int, k)
	for _, l := range labels {
		sizes[l]++
	}

	var total float64
	sums := make([]float64, k)
	for i := range rows {
		for c := range sums {
			sums[c] = 0
		}
		for j := range rows {
			if i != j {
				sums[labels[j]] += cosineDistance(rows[i], rows[j])
			}
		}
		own := labels[i]
		if sizes[own] < 2 {
			continue
		}
		a := sums[own] / float64(sizes[own]-1)
		b := math.Inf(1)
		for c := 0; c < k; c++ {
			if c != own && sizes[c] > 0 {
				b = math.Min(b, sums[c]/float64(sizes[c]))
			}
		}
		if m := math.Max(a, b); m > 0 {
			total += (b - a) / m
		}
	}
	return total / float64(n)
}
