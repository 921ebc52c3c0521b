package hmm

import "math"

// ExtendedState is one node in a Viterbi back-pointer chain: a candidate
// reached at a given step, linked to the ExtendedState it was most likely
// to have come from. Chains form a tree rooted at the first observation;
// Go's garbage collector reclaims nodes once the decoder's frontier of
// last extended states drops the last reference to them, with no manual
// bookkeeping needed.
type ExtendedState[S comparable, O any] struct {
	State              S
	BackPointer        *ExtendedState[S, O]
	Observation        O
	TransitionDescriptor any
}

// SequenceState is one entry of a decoded sequence: either a matched
// candidate or a gap (State's zero value with Matched == false).
type SequenceState[S comparable, O any] struct {
	State   S
	Matched bool
	Observation O
	TransitionDescriptor any
}

// Decoder runs the time-inhomogeneous Viterbi algorithm over a per-step
// candidate lattice. S is the candidate/state type (must be usable as a map
// key); O is the observation type carried through for output.
//
// Determinism: NextStep and StartWithInitialObservation iterate candidate
// sets in the caller-supplied slice order, and the first-seen maximum wins
// on ties — callers must pass candidate sets in a stable order.
type Decoder[S comparable, O any] struct {
	message         map[S]float64
	lastExtended    map[S]*ExtendedState[S, O]
	prevCandidates  []S
	isBroken        bool
	messageHistory  []map[S]float64
}

// NewDecoder creates a fresh, uninitialized Decoder.
func NewDecoder[S comparable, O any]() *Decoder[S, O] {
	return &Decoder[S, O]{}
}

// IsBroken reports whether the decoder has hit an HMM break (every
// hypothesis reached zero probability) and needs to be replaced.
func (d *Decoder[S, O]) IsBroken() bool { return d.isBroken }

// Initialized reports whether StartWithInitialObservation has been called.
func (d *Decoder[S, O]) Initialized() bool { return d.message != nil }

// StartWithInitialObservation initializes the decoder's first time step.
// cands is the candidate set in stable iteration order; initialLogP gives
// each candidate's initial log-probability (e.g. its emission log-p). If
// every candidate has probability -Inf, the decoder starts broken.
func (d *Decoder[S, O]) StartWithInitialObservation(obs O, cands []S, initialLogP map[S]float64) {
	d.message = make(map[S]float64, len(cands))
	d.lastExtended = make(map[S]*ExtendedState[S, O], len(cands))
	d.prevCandidates = append([]S(nil), cands...)

	anyFinite := false
	for _, c := range cands {
		p := initialLogP[c]
		d.message[c] = p
		if !math.IsInf(p, -1) {
			anyFinite = true
		}
		d.lastExtended[c] = &ExtendedState[S, O]{State: c, Observation: obs}
	}
	if !anyFinite {
		d.isBroken = true
	}
}

// NextStep advances the decoder by one observation. cands is the current
// step's candidate set in stable order. emissionLogP must have an entry for
// every candidate in cands; a missing entry is a caller bug (programming
// invariant violation, not a recoverable HMM condition) and panics.
// transitionLogP and transitionDescriptors are keyed by [prev][cur]; a
// missing transition is treated as probability -Inf (no route found).
//
// If every candidate's new message value is -Inf, the decoder sets
// IsBroken and leaves the previous message untouched (the caller is
// expected to discard this decoder and start a new one at this step).
func (d *Decoder[S, O]) NextStep(
	obs O,
	cands []S,
	emissionLogP map[S]float64,
	transitionLogP map[S]map[S]float64,
	transitionDescriptors map[S]map[S]any,
) {
	newMessage := make(map[S]float64, len(cands))
	newExtended := make(map[S]*ExtendedState[S, O], len(cands))
	anyFinite := false

	for _, cur := range cands {
		emission, ok := emissionLogP[cur]
		if !ok {
			panic("hmm: missing emission probability for candidate")
		}

		best := math.Inf(-1)
		var bestPrev S
		havePrev := false

		for _, prev := range d.prevCandidates {
			t, ok := transitionLogP[prev][cur]
			if !ok {
				continue
			}
			cand := d.message[prev] + t
			if cand > best {
				best = cand
				bestPrev = prev
				havePrev = true
			}
		}

		val := math.Inf(-1)
		if !math.IsInf(best, -1) {
			val = best + emission
		}
		newMessage[cur] = val

		if !math.IsInf(val, -1) {
			anyFinite = true
			var descriptor any
			if havePrev && transitionDescriptors != nil {
				descriptor = transitionDescriptors[bestPrev][cur]
			}
			var back *ExtendedState[S, O]
			if havePrev {
				back = d.lastExtended[bestPrev]
			}
			newExtended[cur] = &ExtendedState[S, O]{
				State:                cur,
				BackPointer:          back,
				Observation:          obs,
				TransitionDescriptor: descriptor,
			}
		}
	}

	if !anyFinite {
		d.isBroken = true
		return
	}

	d.message = newMessage
	d.lastExtended = newExtended
	d.prevCandidates = append([]S(nil), cands...)
}

// ComputeMostLikelySequence walks back from the highest-probability current
// candidate to the root, returning the decoded sequence in chronological
// order. Returns nil if the decoder was never initialized. On ties, the
// first-seen (in prevCandidates order) maximum wins.
func (d *Decoder[S, O]) ComputeMostLikelySequence() []SequenceState[S, O] {
	if d.message == nil {
		return nil
	}

	best := math.Inf(-1)
	var bestState S
	found := false
	for _, c := range d.prevCandidates {
		p, ok := d.message[c]
		if !ok {
			continue
		}
		if p > best {
			best = p
			bestState = c
			found = true
		}
	}
	if !found {
		return nil
	}

	var out []SequenceState[S, O]
	for node := d.lastExtended[bestState]; node != nil; node = node.BackPointer {
		out = append(out, SequenceState[S, O]{
			State:                node.State,
			Matched:              true,
			Observation:          node.Observation,
			TransitionDescriptor: node.TransitionDescriptor,
		})
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
