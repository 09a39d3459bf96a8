package speech

import "context"

// Word is per-word assessment detail from the engine.
type Word struct {
	Word          string
	AccuracyScore float64
	ErrorType     string
}

// Result captures one recognition-with-assessment outcome. Recognized is
// false when the engine answered but found no usable speech; that case is
// not an error.
type Result struct {
	Recognized    bool
	Text          string
	Accuracy      float64
	Fluency       float64
	Completeness  float64
	Pronunciation float64
	Words         []Word
}

// Recognizer abstracts the external pronunciation-assessment engine. One
// non-streaming call per practice attempt; referenceText is the exact
// utterance the learner attempted.
type Recognizer interface {
	Assess(ctx context.Context, audio []byte, contentType, referenceText string) (Result, error)
}
