// Package hmm implements the time-inhomogeneous hidden Markov model used to
// decode a sequence of road-network candidates from noisy GPS observations:
// emission/transition probabilities and the Viterbi decoder itself.
package hmm

import "math"

// Probabilities computes emission and transition log-probabilities for the
// map-matching HMM. Sigma models GPS measurement noise; Beta models how far
// a plausible route can deviate from the straight-line distance between two
// observations.
type Probabilities struct {
	Sigma float64
	Beta  float64
}

// DefaultSigma and DefaultBeta are the spec's defaults, tuned against real
// GPS traces.
const (
	DefaultSigma = 50.0
	DefaultBeta  = 2.0
)

// NewDefault returns Probabilities with the default sigma and beta.
func NewDefault() Probabilities {
	return Probabilities{Sigma: DefaultSigma, Beta: DefaultBeta}
}

// EmissionLogP is the log-likelihood of observing a candidate whose
// projection error is d meters from the raw point, under a zero-mean
// Gaussian with standard deviation Sigma.
func (p Probabilities) EmissionLogP(d float64) float64 {
	return math.Log(1/(math.Sqrt(2*math.Pi)*p.Sigma)) - 0.5*(d/p.Sigma)*(d/p.Sigma)
}

// TransitionLogP is the log-likelihood of a transition whose routed path has
// length routeLen when the straight-line distance between the two
// observations is linearLen, under a Laplace-like exponential on their
// absolute difference.
func (p Probabilities) TransitionLogP(routeLen, linearLen float64) float64 {
	return math.Log(1/p.Beta) - math.Abs(linearLen-routeLen)/p.Beta
}
