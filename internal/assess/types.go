package assess

// Result is the normalized outcome of one practice attempt, whether the
// score came from the recognition engine or from the fallback scorer.
type Result struct {
	Stars        int
	ToneScore    float64
	ClarityScore float64
	Feedback     string
	// Simulated is true when the score did not come from the engine.
	// Engine is nil in that case; downstream consumers must never present
	// a simulated score as a real one.
	Simulated bool
	Engine    *EngineData
}

// EngineData carries the engine-specific sub-score payload attached to a
// real assessment. RecognizedText holds the sentinel "(not recognized)"
// when a fallback result still includes engine context.
type EngineData struct {
	RecognizedText     string      `json:"recognizedText"`
	AccuracyScore      float64     `json:"accuracyScore"`
	PronunciationScore float64     `json:"pronunciationScore"`
	CompletenessScore  float64     `json:"completenessScore"`
	FluencyScore       float64     `json:"fluencyScore"`
	OverallScore       float64     `json:"overallScore"`
	Words              []WordScore `json:"words"`
	Note               string      `json:"note,omitempty"`
}

// WordScore is per-word detail from the engine.
type WordScore struct {
	Word          string  `json:"word"`
	AccuracyScore float64 `json:"accuracyScore"`
	ErrorType     string  `json:"errorType,omitempty"`
}
