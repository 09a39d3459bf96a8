package assess

import "math/rand"

// Scorer produces a plausible simulated score when real assessment is
// unavailable. Client and server fallback paths share this exact
// distribution; changing the buckets changes the wire contract.
type Scorer struct {
	rand func() float64
}

func NewScorer() *Scorer {
	return &Scorer{rand: rand.Float64}
}

// NewScorerWithRand injects the random source, for tests.
func NewScorerWithRand(r func() float64) *Scorer {
	return &Scorer{rand: r}
}

// Generate draws one uniform value and maps it onto four fixed buckets:
// 40% great (4-5 stars), 30% good (3), 20% fair (2), 10% poor (1).
func (s *Scorer) Generate() Result {
	r := s.rand()

	var res Result
	switch {
	case r > 0.6:
		if r > 0.8 {
			res.Stars = 5
			res.Feedback = "Excellent! Perfect pronunciation!"
		} else {
			res.Stars = 4
			res.Feedback = "Great job! Very close to perfect!"
		}
		res.ToneScore = s.uniform(85, 100)
		res.ClarityScore = s.uniform(85, 100)
	case r > 0.3:
		res.Stars = 3
		res.ToneScore = s.uniform(60, 80)
		res.ClarityScore = s.uniform(60, 80)
		res.Feedback = "Good effort! Keep practicing the tones."
	case r > 0.1:
		res.Stars = 2
		res.ToneScore = s.uniform(45, 60)
		res.ClarityScore = s.uniform(45, 60)
		res.Feedback = "Needs more practice. Listen to the reference and try again."
	default:
		res.Stars = 1
		res.ToneScore = s.uniform(25, 45)
		res.ClarityScore = s.uniform(25, 45)
		res.Feedback = "Keep practicing! Listen carefully to the tones."
	}

	res.Simulated = true
	res.Engine = nil
	return res
}

// uniform draws a whole-number score in [lo, hi).
func (s *Scorer) uniform(lo, hi int) float64 {
	return float64(lo + int(s.rand()*float64(hi-lo)))
}
