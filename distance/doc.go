// Package distance provides vector distance calculations for conceptdb.
//
// # Supported Metrics
//
//   - MetricAngular: Annoy-style angular distance (default)
//   - MetricCosine: Cosine distance (1 - cosine similarity)
//   - MetricDot: Negated dot product (inner product)
//   - MetricSquaredL2: Squared Euclidean distance
//
// All functions return distances, not similarities: smaller values mean
// nearer vectors, for every metric.
//
// # Usage
//
//	dist := distance.Angular(a, b)
//	fn, err := distance.Provider(distance.MetricCosine)
package distance
