package vectorstore

import (
	"errors"

	"rag-retrieval/internal/domain"
)

// Index is a read-only nearest-neighbor structure. Hits come back nearest first.
type Index = domain.VectorIndex

// Metric names the distance function fixed when an index is built.
type Metric string

const (
	// MetricL2 is squared Euclidean distance.
	MetricL2 Metric = "l2"
	// MetricCosine is 1 - cosine similarity.
	MetricCosine Metric = "cosine"
)

// ErrDimensionMismatch is returned by backends that check query dimensionality.
var ErrDimensionMismatch = errors.New("query dimension does not match index")
