// Package kmeans implements seeded k-means with k-means++ initialisation.
// The same points, options and seed always produce the same partition.
package kmeans

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/formbricks/collections/pkg/embeddings"
)

// DefaultMaxIterations is used when Options.MaxIterations is not positive.
const DefaultMaxIterations = 100

// Errors returned by Run. Callers treat all of them as "cannot partition".
var (
	ErrNoPoints          = errors.New("kmeans: no points")
	ErrInvalidK          = errors.New("kmeans: k must be between 1 and the number of points")
	ErrDimensionMismatch = errors.New("kmeans: points have different dimensions")
	ErrNonFinite         = errors.New("kmeans: point contains NaN or Inf")
	ErrEmptyCluster      = errors.New("kmeans: cluster ended up empty")
)

// Distance measures dissimilarity between two points; smaller is closer.
type Distance func(a, b []float32) float64

// Cosine is 1 - cosine similarity, for embeddings.
func Cosine(a, b []float32) float64 {
	return embeddings.CosineDistance(a, b)
}

// SquaredEuclidean is the squared L2 distance, for colour triples.
func SquaredEuclidean(a, b []float32) float64 {
	var sum float64

	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}

	return sum
}

// Options configures a run.
type Options struct {
	K             int
	MaxIterations int
	Seed          uint64
	// Distance defaults to Cosine.
	Distance Distance
}

// Result is a partition of the input points.
type Result struct {
	// Assignments[i] is the cluster of points[i].
	Assignments []int
	Centroids   [][]float32
	Iterations  int
	Converged   bool
}

// Members returns the point indices of each cluster, in input order.
func (r *Result) Members() [][]int {
	members := make([][]int, len(r.Centroids))
	for i, c := range r.Assignments {
		members[c] = append(members[c], i)
	}

	return members
}

// Run partitions points into opts.K clusters.
func Run(points [][]float32, opts Options) (*Result, error) {
	if err := validate(points, opts.K); err != nil {
		return nil, err
	}

	distance := opts.Distance
	if distance == nil {
		distance = Cosine
	}

	maxIterations := opts.MaxIterations
	if maxIterations < 1 {
		maxIterations = DefaultMaxIterations
	}

	k := opts.K
	dim := len(points[0])
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))

	centroids := initializeCentroids(points, k, distance, rng)
	assignments := make([]int, len(points))
	result := &Result{Assignments: assignments}

	for iter := 0; iter < maxIterations; iter++ {
		result.Iterations = iter + 1

		changed := false

		for i, p := range points {
			nearest := nearestCentroid(p, centroids, distance)
			if assignments[i] != nearest {
				assignments[i] = nearest
				changed = true
			}
		}

		if !changed && iter > 0 {
			result.Converged = true

			break
		}

		newCentroids := make([][]float32, k)
		counts := make([]int, k)

		for c := range k {
			newCentroids[c] = make([]float32, dim)
		}

		for i, p := range points {
			c := assignments[i]
			counts[c]++

			for d := range dim {
				newCentroids[c][d] += p[d]
			}
		}

		for c := range k {
			if counts[c] == 0 {
				continue
			}

			for d := range dim {
				newCentroids[c][d] /= float32(counts[c])
			}

			centroids[c] = newCentroids[c]
		}
	}

	if !result.Converged {
		slog.Debug("k-means stopped at iteration cap", "iterations", result.Iterations, "k", k)
	}

	counts := make([]int, k)
	for _, c := range assignments {
		counts[c]++
	}

	for c, n := range counts {
		if n == 0 {
			return nil, fmt.Errorf("%w: cluster %d of %d", ErrEmptyCluster, c, k)
		}
	}

	result.Centroids = centroids

	return result, nil
}

func validate(points [][]float32, k int) error {
	if len(points) == 0 {
		return ErrNoPoints
	}

	if k < 1 || k > len(points) {
		return fmt.Errorf("%w (k=%d, n=%d)", ErrInvalidK, k, len(points))
	}

	dim := len(points[0])
	if dim == 0 {
		return ErrDimensionMismatch
	}

	for _, p := range points {
		if len(p) != dim {
			return ErrDimensionMismatch
		}

		if !embeddings.IsFinite(p) {
			return ErrNonFinite
		}
	}

	return nil
}

// initializeCentroids picks k starting centroids with k-means++: the first uniformly,
// the rest with probability proportional to the squared distance to the nearest chosen one.
func initializeCentroids(points [][]float32, k int, distance Distance, rng *rand.Rand) [][]float32 {
	n := len(points)
	centroids := make([][]float32, 0, k)
	centroids = append(centroids, clone(points[rng.IntN(n)]))

	for len(centroids) < k {
		weights := make([]float64, n)

		var total float64

		for i, p := range points {
			minDist := math.MaxFloat64
			for _, c := range centroids {
				if d := distance(p, c); d < minDist {
					minDist = d
				}
			}

			weights[i] = minDist * minDist
			total += weights[i]
		}

		// Every point coincides with a centroid; the duplicate pick leaves a cluster empty later.
		selected := 0

		if total > 0 {
			target := rng.Float64() * total

			var cum float64

			for i, w := range weights {
				if w == 0 {
					continue
				}

				cum += w
				selected = i

				if cum >= target {
					break
				}
			}
		}

		centroids = append(centroids, clone(points[selected]))
	}

	return centroids
}

// nearestCentroid returns the closest centroid; ties go to the lowest index.
func nearestCentroid(p []float32, centroids [][]float32, distance Distance) int {
	minDist := math.MaxFloat64
	nearest := 0

	for i, c := range centroids {
		if d := distance(p, c); d < minDist {
			minDist = d
			nearest = i
		}
	}

	return nearest
}

func clone(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)

	return out
}
