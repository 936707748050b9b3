package features

import (
	"fmt"
	"sort"
)

// Bucketer assigns the 4-way quantile buckets used by derived schemas.
type Bucketer interface {
	IncomeBucket(income float64) int
	AgeBucket(age int) int
	Name() string
}

// DegenerateBucketer reproduces quantile bucketing of a one-row batch,
// which always lands in bucket 0.
type DegenerateBucketer struct{}

func (DegenerateBucketer) IncomeBucket(float64) int { return 0 }
func (DegenerateBucketer) AgeBucket(int) int        { return 0 }
func (DegenerateBucketer) Name() string             { return "degenerate" }

// QuantileBucketer buckets against cut points fitted at training time.
// Each edge list holds the three inner quartile boundaries; buckets are
// right-inclusive, so a value equal to an edge falls in the lower bucket.
type QuantileBucketer struct {
	incomeEdges []float64
	ageEdges    []float64
}

const quantileCuts = 3

func NewQuantileBucketer(incomeEdges, ageEdges []float64) (*QuantileBucketer, error) {
	if err := checkEdges("income", incomeEdges); err != nil {
		return nil, err
	}
	if err := checkEdges("age", ageEdges); err != nil {
		return nil, err
	}
	return &QuantileBucketer{
		incomeEdges: append([]float64(nil), incomeEdges...),
		ageEdges:    append([]float64(nil), ageEdges...),
	}, nil
}

func checkEdges(name string, edges []float64) error {
	if len(edges) != quantileCuts {
		return fmt.Errorf("%s bucket edges: want %d cut points, got %d", name, quantileCuts, len(edges))
	}
	for i := 1; i < len(edges); i++ {
		if edges[i] <= edges[i-1] {
			return fmt.Errorf("%s bucket edges must be strictly increasing: %v", name, edges)
		}
	}
	return nil
}

func (q *QuantileBucketer) IncomeBucket(income float64) int {
	return sort.SearchFloat64s(q.incomeEdges, income)
}

func (q *QuantileBucketer) AgeBucket(age int) int {
	return sort.SearchFloat64s(q.ageEdges, float64(age))
}

func (q *QuantileBucketer) Name() string { return "quantile" }
