package similarity

import (
	"errors"
	"math"
)

const kmeansMaxIterations = 20

// clusterKMeans partitions vectors into k groups with Lloyd's algorithm.
// Centroids are seeded from evenly spaced inputs so runs are deterministic.
// Returned groups hold input indices; empty groups are dropped.
func clusterKMeans(vectors [][]float64, k int) ([][]int, error) {
	n := len(vectors)
	if n == 0 || k < 1 {
		return nil, errors.New("nothing to cluster")
	}
	if k >= n {
		groups := make([][]int, n)
		for i := range groups {
			groups[i] = []int{i}
		}
		return groups, nil
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, errors.New("zero-dimensional vectors")
	}

	centroids := make([][]float64, k)
	for i := range centroids {
		centroids[i] = append([]float64(nil), vectors[i*n/k]...)
	}

	assignments := make([]int, n)
	for iter := 0; iter < kmeansMaxIterations; iter++ {
		changed := false
		for i, vec := range vectors {
			best := 0
			bestDist := math.Inf(1)
			for c, centroid := range centroids {
				if d := squaredDistance(vec, centroid); d < bestDist {
					bestDist = d
					best = c
				}
			}
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		counts := make([]int, k)
		sums := make([][]float64, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, vec := range vectors {
			c := assignments[i]
			counts[c]++
			for d, x := range vec {
				sums[c][d] += x
			}
		}
		for c := range centroids {
			// Empty clusters keep their previous centroid.
			if counts[c] == 0 {
				continue
			}
			for d := range centroids[c] {
				centroids[c][d] = sums[c][d] / float64(counts[c])
			}
		}
	}

	groups := make([][]int, k)
	for i, c := range assignments {
		groups[c] = append(groups[c], i)
	}
	var out [][]int
	for _, group := range groups {
		if len(group) > 0 {
			out = append(out, group)
		}
	}
	return out, nil
}

// clusterHierarchical performs agglomerative clustering with average
// linkage over cosine distance, merging until k clusters remain.
func clusterHierarchical(vectors [][]float64, k int) ([][]int, error) {
	n := len(vectors)
	if n == 0 || k < 1 {
		return nil, errors.New("nothing to cluster")
	}

	clusters := make([][]int, n)
	for i := range clusters {
		clusters[i] = []int{i}
	}

	// Pairwise cosine distances between the original vectors.
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
		for j := range dist[i] {
			if i != j {
				dist[i][j] = 1 - cosine(vectors[i], vectors[j])
			}
		}
	}

	for len(clusters) > k {
		bestA, bestB := 0, 1
		bestDist := math.Inf(1)
		for a := 0; a < len(clusters); a++ {
			for b := a + 1; b < len(clusters); b++ {
				if d := averageLinkage(clusters[a], clusters[b], dist); d < bestDist {
					bestDist = d
					bestA, bestB = a, b
				}
			}
		}
		merged := append(append([]int(nil), clusters[bestA]...), clusters[bestB]...)
		clusters[bestA] = merged
		clusters = append(clusters[:bestB], clusters[bestB+1:]...)
	}
	return clusters, nil
}

func averageLinkage(a, b []int, dist [][]float64) float64 {
	var sum float64
	for _, i := range a {
		for _, j := range b {
			sum += dist[i][j]
		}
	}
	return sum / float64(len(a)*len(b))
}

func squaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
