package assess

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/tonetutor-labs/tonetutor-core/internal/audio"
	"github.com/tonetutor-labs/tonetutor-core/internal/protocol"
)

// Client talks to the assessment service on behalf of a capture frontend.
// Assess never fails outward: any transport, contract, or engine problem
// degrades to a locally generated simulated score so practice continues.
type Client struct {
	baseURL string
	http    *http.Client
	scorer  *Scorer
	log     *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, log *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		scorer:  NewScorer(),
		log:     log,
	}
}

// Assess submits a recording for assessment against referenceText.
func (c *Client) Assess(ctx context.Context, rec audio.Recording, referenceText string) Result {
	payload := rec.Bytes
	contentType := rec.MimeType

	norm, err := audio.Normalize(rec)
	if err != nil {
		c.log.Warn("audio normalization failed, sending original recording",
			slog.String("mime_type", rec.MimeType),
			slog.String("error", err.Error()))
	} else {
		payload = norm.WAV()
		contentType = "audio/wav"
	}

	req := protocol.AssessmentRequest{
		AudioData:     base64.StdEncoding.EncodeToString(payload),
		ReferenceText: referenceText,
		ContentType:   contentType,
	}

	resp, err := c.post(ctx, req)
	if err != nil {
		c.log.Warn("assessment request failed, using simulated score",
			slog.String("error", err.Error()))
		return c.scorer.Generate()
	}

	if resp.Reason == protocol.ReasonRecognitionFailed || !resp.Success {
		c.log.Info("service reported unusable assessment, using simulated score",
			slog.String("reason", resp.Reason),
			slog.String("error", resp.Error))
		return c.scorer.Generate()
	}
	if resp.Stars == nil || resp.ToneScore == nil || resp.ClarityScore == nil {
		c.log.Warn("assessment response missing score fields, using simulated score")
		return c.scorer.Generate()
	}

	res := Result{
		Stars:        clampStars(int(math.Round(finite(*resp.Stars)))),
		ToneScore:    finite(*resp.ToneScore),
		ClarityScore: finite(*resp.ClarityScore),
		Feedback:     resp.Feedback,
		Simulated:    resp.Simulated,
	}
	if res.Feedback == "" {
		res.Feedback = FeedbackForStars(res.Stars)
	}
	if len(resp.AzureData) > 0 {
		var engine EngineData
		if err := json.Unmarshal(resp.AzureData, &engine); err == nil {
			res.Engine = &engine
		}
	}
	return res
}

func (c *Client) post(ctx context.Context, req protocol.AssessmentRequest) (protocol.AssessmentResponse, error) {
	var resp protocol.AssessmentResponse

	body, err := json.Marshal(req)
	if err != nil {
		return resp, fmt.Errorf("encode assessment request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/speech-assessment", bytes.NewReader(body))
	if err != nil {
		return resp, fmt.Errorf("build assessment request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return resp, fmt.Errorf("assessment request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return resp, fmt.Errorf("assessment service returned status %d", httpResp.StatusCode)
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return resp, fmt.Errorf("decode assessment response: %w", err)
	}
	return resp, nil
}

// finite coerces NaN and infinities to 0 so a malformed score can never
// poison downstream arithmetic or UI rendering.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
