package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tonetutor-labs/tonetutor-core/internal/config"
)

// azureRecognizer calls the Azure Speech short-audio REST API with the
// Pronunciation-Assessment header attached.
type azureRecognizer struct {
	key      string
	region   string
	language string
	endpoint string
	client   *http.Client
}

func NewAzureRecognizer(cfg config.SpeechConfig) Recognizer {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.stt.speech.microsoft.com", cfg.Region)
	}
	return &azureRecognizer{
		key:      cfg.Key,
		region:   cfg.Region,
		language: cfg.Language,
		endpoint: endpoint,
		client:   &http.Client{Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond},
	}
}

type pronAssessmentParams struct {
	ReferenceText string `json:"ReferenceText"`
	GradingSystem string `json:"GradingSystem"`
	Granularity   string `json:"Granularity"`
	EnableMiscue  bool   `json:"EnableMiscue"`
	Dimension     string `json:"Dimension"`
}

type azureResponse struct {
	RecognitionStatus string       `json:"RecognitionStatus"`
	DisplayText       string       `json:"DisplayText"`
	NBest             []azureNBest `json:"NBest"`
}

type azureNBest struct {
	Display                 string           `json:"Display"`
	PronunciationAssessment *azureAssessment `json:"PronunciationAssessment"`
	Words                   []azureWord      `json:"Words"`

	// Older response shapes carry the scores flat on the NBest entry.
	AccuracyScore     *float64 `json:"AccuracyScore"`
	FluencyScore      *float64 `json:"FluencyScore"`
	CompletenessScore *float64 `json:"CompletenessScore"`
	PronScore         *float64 `json:"PronScore"`
}

type azureAssessment struct {
	AccuracyScore     float64 `json:"AccuracyScore"`
	FluencyScore      float64 `json:"FluencyScore"`
	CompletenessScore float64 `json:"CompletenessScore"`
	PronScore         float64 `json:"PronScore"`
}

type azureWord struct {
	Word                    string           `json:"Word"`
	PronunciationAssessment *azureWordDetail `json:"PronunciationAssessment"`
	AccuracyScore           *float64         `json:"AccuracyScore"`
	ErrorType               string           `json:"ErrorType"`
}

type azureWordDetail struct {
	AccuracyScore float64 `json:"AccuracyScore"`
	ErrorType     string  `json:"ErrorType"`
}

func (r *azureRecognizer) Assess(ctx context.Context, audio []byte, contentType, referenceText string) (Result, error) {
	params := pronAssessmentParams{
		ReferenceText: referenceText,
		GradingSystem: "HundredMark",
		Granularity:   "Phoneme",
		EnableMiscue:  true,
		Dimension:     "Comprehensive",
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return Result{}, fmt.Errorf("marshal assessment params: %w", err)
	}

	query := url.Values{}
	query.Set("language", r.language)
	query.Set("format", "detailed")
	reqURL := fmt.Sprintf("%s/speech/recognition/conversation/cognitiveservices/v1?%s", r.endpoint, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(audio))
	if err != nil {
		return Result{}, fmt.Errorf("create recognition request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", r.key)
	req.Header.Set("Pronunciation-Assessment", base64.StdEncoding.EncodeToString(paramsJSON))
	req.Header.Set("Accept", "application/json")
	if contentType == "" || contentType == "audio/wav" {
		contentType = "audio/wav; codecs=audio/pcm; samplerate=16000"
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := r.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("speech request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read speech response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("speech api status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var parsed azureResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Result{}, fmt.Errorf("decode speech response: %w", err)
	}
	return mapAzureResponse(parsed), nil
}

func mapAzureResponse(resp azureResponse) Result {
	if resp.RecognitionStatus != "Success" || len(resp.NBest) == 0 {
		return Result{Recognized: false, Text: resp.DisplayText}
	}

	best := resp.NBest[0]
	res := Result{Recognized: true, Text: best.Display}
	if res.Text == "" {
		res.Text = resp.DisplayText
	}

	switch {
	case best.PronunciationAssessment != nil:
		pa := best.PronunciationAssessment
		res.Accuracy = pa.AccuracyScore
		res.Fluency = pa.FluencyScore
		res.Completeness = pa.CompletenessScore
		res.Pronunciation = pa.PronScore
	case best.AccuracyScore != nil || best.FluencyScore != nil ||
		best.CompletenessScore != nil || best.PronScore != nil:
		res.Accuracy = deref(best.AccuracyScore)
		res.Fluency = deref(best.FluencyScore)
		res.Completeness = deref(best.CompletenessScore)
		res.Pronunciation = deref(best.PronScore)
	default:
		// No score payload at all. Zeros here would read as a genuine
		// bottom score, so treat the response as unrecognized instead.
		return Result{Recognized: false, Text: res.Text}
	}

	for _, w := range best.Words {
		word := Word{Word: w.Word, ErrorType: w.ErrorType}
		if w.PronunciationAssessment != nil {
			word.AccuracyScore = w.PronunciationAssessment.AccuracyScore
			if word.ErrorType == "" {
				word.ErrorType = w.PronunciationAssessment.ErrorType
			}
		} else {
			word.AccuracyScore = deref(w.AccuracyScore)
		}
		res.Words = append(res.Words, word)
	}
	return res
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
