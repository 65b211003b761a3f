package vectorindex

import (
	"fmt"
	"math"

	"ragpipe/internal/domain"
)

// Metric selects how distance between vectors is measured. Lower is closer
// for every metric.
type Metric string

const (
	// L2 is squared Euclidean distance.
	L2 Metric = "l2"
	// Cosine is 1 minus cosine similarity.
	Cosine Metric = "cosine"
)

func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case L2, "":
		return L2, nil
	case Cosine:
		return Cosine, nil
	}
	return "", fmt.Errorf("%w: unknown metric %q", domain.ErrInvalidConfig, s)
}

func (m Metric) code() uint8 {
	if m == Cosine {
		return 2
	}
	return 1
}

func metricFromCode(c uint8) (Metric, bool) {
	switch c {
	case 1:
		return L2, true
	case 2:
		return Cosine, true
	}
	return "", false
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func magnitude(v []float32) float64 { return math.Sqrt(dot(v, v)) }

// cosineDistance treats a zero vector as orthogonal to everything.
func cosineDistance(a, b []float32, magA, magB float64) float64 {
	if magA == 0 || magB == 0 {
		return 1
	}
	return 1 - dot(a, b)/(magA*magB)
}
