package cipher

import (
	"sort"

	"github.com/RowanDark/wraith/internal/score"
)

// scoreEpsilon absorbs float noise when comparing candidate scores.
const scoreEpsilon = 1e-9

// autoChain is one AutoDecode candidate. Layers are in application order,
// priority is the tie-break rank (lower wins).
type autoChain struct {
	layers   []Layer
	priority int
}

var autoChains = []autoChain{
	{layers: []Layer{Base64}, priority: 0},
	{layers: []Layer{Base64, Rot13}, priority: 1},
	{layers: []Layer{Rot13, Base64}, priority: 2},
	{layers: nil, priority: 3},
	{layers: []Layer{Rot13}, priority: 4},
}

// Detector picks the most text-like decoding of a payload.
type Detector struct {
	scorer    *score.Scorer
	threshold float64
}

// DetectorOption customises a Detector.
type DetectorOption func(*Detector)

// WithScorer replaces the default marker set.
func WithScorer(s *score.Scorer) DetectorOption {
	return func(d *Detector) {
		if s != nil {
			d.scorer = s
		}
	}
}

// WithPrintableThreshold sets the printable share base64 output must reach
// to be accepted.
func WithPrintableThreshold(f float64) DetectorOption {
	return func(d *Detector) { d.threshold = f }
}

// NewDetector creates a detector with the default scorer and threshold.
func NewDetector(opts ...DetectorOption) *Detector {
	d := &Detector{
		scorer:    score.New(nil),
		threshold: score.DefaultPrintableThreshold,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var defaultDetector = NewDetector()

// AutoDecode decodes input with the default detector.
func AutoDecode(input []byte) DecodeResult {
	return defaultDetector.AutoDecode(input)
}

// AutoDecode tries identity, rot13, base64 and both two-layer combinations,
// and returns the highest scoring result. Ties go to the chain with the
// better fixed priority. It never fails; the identity chain always
// qualifies. Every attempted chain is listed in Candidates.
func (d *Detector) AutoDecode(input []byte) DecodeResult {
	type attempt struct {
		result   DecodeResult
		priority int
		ok       bool
	}

	attempts := make([]attempt, 0, len(autoChains))
	for _, chain := range autoChains {
		res := Decode(input, chain.layers)
		ok := true
		for _, step := range res.Steps {
			if !step.OK {
				ok = false
				break
			}
		}
		if ok && containsLayer(chain.layers, Base64) && score.PrintableRatio(res.Output) < d.threshold {
			ok = false
		}
		res.Score = d.scorer.Score(res.Output)
		attempts = append(attempts, attempt{result: res, priority: chain.priority, ok: ok})
	}

	candidates := make([]Candidate, 0, len(attempts))
	best := -1
	for i, a := range attempts {
		c := Candidate{
			Label:    a.result.Label,
			Output:   a.result.Output,
			Score:    a.result.Score,
			Priority: a.priority,
			Rejected: !a.ok,
		}
		candidates = append(candidates, c)
		if !a.ok {
			continue
		}
		if best < 0 || better(a.result.Score, a.priority, attempts[best].result.Score, attempts[best].priority) {
			best = i
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return better(candidates[i].Score, candidates[i].Priority, candidates[j].Score, candidates[j].Priority)
	})

	winner := attempts[best].result
	winner.Candidates = candidates
	return winner
}

// better reports whether (s1, p1) beats (s2, p2).
func better(s1 float64, p1 int, s2 float64, p2 int) bool {
	if s1 > s2+scoreEpsilon {
		return true
	}
	if s2 > s1+scoreEpsilon {
		return false
	}
	return p1 < p2
}

func containsLayer(layers []Layer, want Layer) bool {
	for _, l := range layers {
		if l == want {
			return true
		}
	}
	return false
}
