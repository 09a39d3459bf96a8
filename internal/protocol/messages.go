package protocol

import (
	"encoding/json"
	"time"
)

// AssessmentRequest is the JSON body accepted by POST /api/speech-assessment.
type AssessmentRequest struct {
	AudioData     string `json:"audioData"`
	ReferenceText string `json:"referenceText"`
	ContentType   string `json:"contentType,omitempty"`
}

// AssessmentResponse is the normalized score envelope returned to clients.
// Score fields are pointers so consumers can distinguish an absent field
// from a genuine zero.
type AssessmentResponse struct {
	Success      bool            `json:"success"`
	Stars        *float64        `json:"stars,omitempty"`
	ToneScore    *float64        `json:"toneScore,omitempty"`
	ClarityScore *float64        `json:"clarityScore,omitempty"`
	Feedback     string          `json:"feedback,omitempty"`
	AzureData    json.RawMessage `json:"azureData,omitempty"`
	Simulated    bool            `json:"simulated"`
	Note         string          `json:"note,omitempty"`
	Error        string          `json:"error,omitempty"`
	Reason       string          `json:"reason,omitempty"`
}

// ReasonRecognitionFailed marks a response the client should treat as a
// fallback trigger, distinct from success=false (config/validation error).
const ReasonRecognitionFailed = "RecognitionFailed"

// NotRecognizedText is the recognizedText sentinel used when the engine
// produced no usable match, distinguishing a simulated score from a
// genuine low one.
const NotRecognizedText = "(not recognized)"

// TranslateRequest is the JSON body accepted by POST /api/translate.
type TranslateRequest struct {
	Text         string `json:"text"`
	FromLanguage string `json:"fromLanguage,omitempty"`
	ToLanguage   string `json:"toLanguage,omitempty"`
}

// TranslateResponse mirrors the dictionary-lookup envelope.
type TranslateResponse struct {
	Success bool   `json:"success"`
	English string `json:"english,omitempty"`
	Chinese string `json:"chinese,omitempty"`
	Pinyin  string `json:"pinyin,omitempty"`
	Source  string `json:"source,omitempty"`
	Error   string `json:"error,omitempty"`
}

// AssessmentEvent is broadcast on the bus after each completed assessment
// so progress consumers can track practice without polling the history store.
type AssessmentEvent struct {
	AttemptID      string    `json:"attempt_id"`
	ReferenceText  string    `json:"reference_text"`
	RecognizedText string    `json:"recognized_text,omitempty"`
	Stars          int       `json:"stars"`
	ToneScore      float64   `json:"tone_score"`
	ClarityScore   float64   `json:"clarity_score"`
	Simulated      bool      `json:"simulated"`
	Timestamp      time.Time `json:"timestamp"`
}

const SubjectAssessmentCompleted = "practice.assessment.completed"
