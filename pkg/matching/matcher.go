// Package matching implements the time-inhomogeneous HMM map matcher:
// driving the Viterbi decoder over per-observation candidate sets generated
// from a RoadNetwork, restarting on HMM breaks and unmatched gaps.
package matching

import (
	"sync"

	"github.com/azybler/mapmatch/pkg/candidate"
	"github.com/azybler/mapmatch/pkg/geo"
	"github.com/azybler/mapmatch/pkg/hmm"
	"github.com/azybler/mapmatch/pkg/network"
	"github.com/azybler/mapmatch/pkg/routing"
	"github.com/azybler/mapmatch/pkg/trajectory"
)

// Config holds the matcher's tunable parameters.
type Config struct {
	MeasurementErrorSigma     float64
	TransitionProbabilityBeta float64
	CandidateSearchRadius     float64
	RoutingWeight             routing.WeightFunc
	MinPathEntities           int
}

// DefaultConfig returns the spec's default tuning: sigma=50m, beta=2,
// candidate search radius == sigma, length-based routing weight.
func DefaultConfig() Config {
	return Config{
		MeasurementErrorSigma:     hmm.DefaultSigma,
		TransitionProbabilityBeta: hmm.DefaultBeta,
		CandidateSearchRadius:     hmm.DefaultSigma,
		RoutingWeight:             routing.DefaultWeight,
		MinPathEntities:           2,
	}
}

// CandidatePtr is the data payload attached to a matched trajectory's
// STPoint.Data: the chosen CandidatePoint, or nil for an unmatched gap.
type CandidatePtr struct {
	Candi *candidate.Point
}

// timeStep is one observation's candidate lattice, per spec.md §4.M.
type timeStep struct {
	obs        trajectory.STPoint
	candidates []candidate.Point
	emission   map[candidate.Point]float64
	transition map[candidate.Point]map[candidate.Point]float64
	roadPaths  map[candidate.Point]map[candidate.Point][]network.VertexKey
}

// MapMatcher matches raw trajectories against a fixed RoadNetwork.
type MapMatcher struct {
	Network *network.RoadNetwork
	Router  *routing.Router
	Probs   hmm.Probabilities
	Config  Config
}

// New builds a MapMatcher over rn using cfg.
func New(rn *network.RoadNetwork, cfg Config) *MapMatcher {
	return &MapMatcher{
		Network: rn,
		Router:  routing.New(rn, cfg.RoutingWeight),
		Probs:   hmm.Probabilities{Sigma: cfg.MeasurementErrorSigma, Beta: cfg.TransitionProbabilityBeta},
		Config:  cfg,
	}
}

func (m *MapMatcher) createTimeStep(pt trajectory.STPoint) *timeStep {
	cands := candidate.GetCandidates(pt.SPoint, m.Network, m.Config.CandidateSearchRadius)
	if cands == nil {
		return nil
	}
	ts := &timeStep{
		obs:        pt,
		candidates: cands,
		emission:   make(map[candidate.Point]float64, len(cands)),
		transition: make(map[candidate.Point]map[candidate.Point]float64),
		roadPaths:  make(map[candidate.Point]map[candidate.Point][]network.VertexKey),
	}
	for _, c := range cands {
		ts.emission[c] = m.Probs.EmissionLogP(c.Error)
	}
	return ts
}

func (m *MapMatcher) fillTransitions(prev, ts *timeStep) {
	linear := haversineSTPoint(prev.obs, ts.obs)
	for _, pc := range prev.candidates {
		for _, cc := range ts.candidates {
			cost, path, err := m.Router.FindShortestPath(pc, cc)
			if err != nil {
				continue
			}
			if ts.transition[pc] == nil {
				ts.transition[pc] = make(map[candidate.Point]float64)
			}
			if ts.roadPaths[pc] == nil {
				ts.roadPaths[pc] = make(map[candidate.Point][]network.VertexKey)
			}
			ts.transition[pc][cc] = m.Probs.TransitionLogP(cost, linear)
			ts.roadPaths[pc][cc] = path
		}
	}
}

func haversineSTPoint(a, b trajectory.STPoint) float64 {
	return geo.Haversine(a.SPoint, b.SPoint)
}

// Match runs the TI-HMM decoder over traj and returns a trajectory of equal
// length whose STPoint.Data is a *CandidatePtr: Candi set for a matched
// point, nil for a gap (no candidates found). An HMM break does not leave a
// gap: the decoded sequence up to the break is kept and decoding restarts
// at the breaking point.
func (m *MapMatcher) Match(traj trajectory.Trajectory) trajectory.Trajectory {
	out := make([]trajectory.STPoint, 0, len(traj.Pts))

	var decoder *hmm.Decoder[candidate.Point, trajectory.STPoint]
	var prevTS *timeStep

	flush := func() {
		if decoder == nil {
			return
		}
		for _, s := range decoder.ComputeMostLikelySequence() {
			out = append(out, withCandidate(s.Observation, &s.State))
		}
	}

	for _, pt := range traj.Pts {
		ts := m.createTimeStep(pt)
		if ts == nil {
			flush()
			out = append(out, withCandidate(pt, nil))
			decoder = nil
			prevTS = nil
			continue
		}

		if decoder == nil {
			decoder = hmm.NewDecoder[candidate.Point, trajectory.STPoint]()
			decoder.StartWithInitialObservation(pt, ts.candidates, ts.emission)
			prevTS = ts
			continue
		}

		m.fillTransitions(prevTS, ts)
		transitionDescriptors := make(map[candidate.Point]map[candidate.Point]any, len(ts.roadPaths))
		for pc, inner := range ts.roadPaths {
			row := make(map[candidate.Point]any, len(inner))
			for cc, path := range inner {
				row[cc] = path
			}
			transitionDescriptors[pc] = row
		}
		decoder.NextStep(pt, ts.candidates, ts.emission, ts.transition, transitionDescriptors)

		if decoder.IsBroken() {
			flush()
			decoder = hmm.NewDecoder[candidate.Point, trajectory.STPoint]()
			decoder.StartWithInitialObservation(pt, ts.candidates, ts.emission)
		}
		prevTS = ts
	}
	flush()

	matched, err := trajectory.New(traj.OID, traj.TID, out)
	if err != nil {
		// Non-decreasing times are guaranteed by the input trajectory and
		// preserved verbatim for every point; a violation here is a bug in
		// this function, not a caller error.
		panic(err)
	}
	return matched
}

func withCandidate(pt trajectory.STPoint, c *candidate.Point) trajectory.STPoint {
	pt.Data = &CandidatePtr{Candi: c}
	return pt
}

// MatchMany matches each trajectory in trajs concurrently across workers
// goroutines, preserving input order in the result. The RoadNetwork is
// read-only and safely shared across the pool.
func (m *MapMatcher) MatchMany(trajs []trajectory.Trajectory, workers int) []trajectory.Trajectory {
	if workers < 1 {
		workers = 1
	}
	results := make([]trajectory.Trajectory, len(trajs))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = m.Match(trajs[i])
			}
		}()
	}
	for i := range trajs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}
