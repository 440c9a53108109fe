// Package compute derives fleet-wide baselines and per-node deviations from
// probe history.
//
// baseline.go provides ComputeBaseline, which averages every data key over the
// most recent sample of each node that has reported data. The divisor is a
// single contributor count shared by all keys.
//
// deviation.go provides the Classifier, which expresses a node's latest value
// for each key as a percentage of the baseline and maps the distance from 100%
// to a Severity. Rendering severity and alert dispatch use independent
// thresholds.
package compute
