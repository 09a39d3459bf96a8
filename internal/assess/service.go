package assess

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tonetutor-labs/tonetutor-core/internal/bus"
	"github.com/tonetutor-labs/tonetutor-core/internal/history"
	"github.com/tonetutor-labs/tonetutor-core/internal/protocol"
	"github.com/tonetutor-labs/tonetutor-core/internal/speech"
	"github.com/tonetutor-labs/tonetutor-core/internal/transcode"
)

// ErrValidation marks request errors the HTTP layer maps to 400.
var ErrValidation = errors.New("invalid assessment request")

// Service runs the server side of the assessment pipeline: decode the
// payload, transcode if needed, call the recognition engine, map scores.
// A nil recognizer puts the service in demo mode: every request gets a
// structurally valid simulated result.
type Service struct {
	recognizer speech.Recognizer
	transcoder transcode.Transcoder
	scorer     *Scorer
	store      *history.Store
	bus        *bus.Client
	log        *slog.Logger
}

func NewService(recognizer speech.Recognizer, transcoder transcode.Transcoder, store *history.Store, busClient *bus.Client, log *slog.Logger) *Service {
	if transcoder == nil {
		transcoder = transcode.NewNoopTranscoder()
	}
	return &Service{
		recognizer: recognizer,
		transcoder: transcoder,
		scorer:     NewScorer(),
		store:      store,
		bus:        busClient,
		log:        log,
	}
}

// Assess handles one practice attempt. It returns an error only for
// request validation failures; every engine-side problem degrades to a
// simulated score so the learner is never blocked.
func (s *Service) Assess(ctx context.Context, req protocol.AssessmentRequest) (protocol.AssessmentResponse, error) {
	if strings.TrimSpace(req.AudioData) == "" {
		return protocol.AssessmentResponse{}, fmt.Errorf("%w: audioData is required", ErrValidation)
	}
	if strings.TrimSpace(req.ReferenceText) == "" {
		return protocol.AssessmentResponse{}, fmt.Errorf("%w: referenceText is required", ErrValidation)
	}

	audio, err := base64.StdEncoding.DecodeString(req.AudioData)
	if err != nil {
		return protocol.AssessmentResponse{}, fmt.Errorf("%w: audioData is not valid base64", ErrValidation)
	}
	if len(audio) == 0 {
		return protocol.AssessmentResponse{}, fmt.Errorf("%w: audioData is empty", ErrValidation)
	}

	if s.recognizer == nil {
		s.log.Info("assessment engine not configured, returning simulated result",
			slog.String("reference_text", req.ReferenceText))
		res := s.demoResult(req.ReferenceText)
		s.publish(ctx, req.ReferenceText, res)
		return s.encode(res, ""), nil
	}

	payload := audio
	contentType := req.ContentType
	if !strings.Contains(strings.ToLower(contentType), "wav") {
		converted, err := s.transcoder.ToWav16kMono(ctx, audio, contentType)
		if err != nil {
			// Forward the original bytes; the engine accepts several
			// container formats directly.
			s.log.Warn("transcode failed, forwarding original audio",
				slog.String("content_type", contentType),
				slog.String("error", err.Error()))
		} else {
			payload = converted
			contentType = "audio/wav"
		}
	}

	engine, err := s.recognizer.Assess(ctx, payload, contentType, req.ReferenceText)
	if err != nil {
		s.log.Warn("assessment engine call failed",
			slog.String("reference_text", req.ReferenceText),
			slog.String("error", err.Error()))
		res := s.notRecognizedResult()
		s.publish(ctx, req.ReferenceText, res)
		return s.encode(res, protocol.ReasonRecognitionFailed), nil
	}
	if !engine.Recognized {
		s.log.Info("engine produced no match", slog.String("reference_text", req.ReferenceText))
		res := s.notRecognizedResult()
		s.publish(ctx, req.ReferenceText, res)
		return s.encode(res, protocol.ReasonRecognitionFailed), nil
	}

	words := make([]WordScore, 0, len(engine.Words))
	for _, w := range engine.Words {
		words = append(words, WordScore{Word: w.Word, AccuracyScore: w.AccuracyScore, ErrorType: w.ErrorType})
	}

	res := MapEngineScores(engine.Text, engine.Accuracy, engine.Fluency, engine.Completeness, engine.Pronunciation, words)
	s.log.Info("assessment complete",
		slog.String("reference_text", req.ReferenceText),
		slog.String("recognized_text", engine.Text),
		slog.Int("stars", res.Stars))
	s.publish(ctx, req.ReferenceText, res)
	return s.encode(res, ""), nil
}

// demoResult builds the credentials-absent response: a simulated score
// wrapped in a synthetic engine payload so clients exercising the full
// contract still see every field.
func (s *Service) demoResult(referenceText string) Result {
	res := s.scorer.Generate()
	res.Engine = &EngineData{
		RecognizedText:     referenceText,
		AccuracyScore:      res.ToneScore,
		PronunciationScore: res.ClarityScore,
		CompletenessScore:  res.ToneScore,
		FluencyScore:       res.ClarityScore,
		OverallScore:       math.Round((res.ToneScore + res.ClarityScore) / 2),
		Words:              []WordScore{},
		Note:               "Simulated assessment (speech credentials not configured)",
	}
	return res
}

// notRecognizedResult builds the engine-failure response: a simulated
// score whose engine payload carries the not-recognized sentinel so the
// score is never mistaken for a real one.
func (s *Service) notRecognizedResult() Result {
	res := s.scorer.Generate()
	res.Engine = &EngineData{
		RecognizedText:     protocol.NotRecognizedText,
		AccuracyScore:      res.ToneScore,
		PronunciationScore: res.ClarityScore,
		OverallScore:       math.Round((res.ToneScore + res.ClarityScore) / 2),
		Words:              []WordScore{},
		Note:               "Simulated assessment (speech not recognized)",
	}
	return res
}

func (s *Service) encode(res Result, reason string) protocol.AssessmentResponse {
	stars := float64(res.Stars)
	tone := res.ToneScore
	clarity := res.ClarityScore

	resp := protocol.AssessmentResponse{
		Success:      true,
		Stars:        &stars,
		ToneScore:    &tone,
		ClarityScore: &clarity,
		Feedback:     res.Feedback,
		Simulated:    res.Simulated,
		Reason:       reason,
	}
	if res.Engine != nil {
		if data, err := json.Marshal(res.Engine); err == nil {
			resp.AzureData = data
		}
		resp.Note = res.Engine.Note
	}
	return resp
}

// publish records the attempt and broadcasts the completion event. Both
// are best-effort: persistence or bus trouble never fails an assessment.
func (s *Service) publish(ctx context.Context, referenceText string, res Result) {
	recognized := ""
	if res.Engine != nil {
		recognized = res.Engine.RecognizedText
	}

	att := history.Attempt{
		ID:             uuid.NewString(),
		ReferenceText:  referenceText,
		RecognizedText: recognized,
		Stars:          res.Stars,
		ToneScore:      res.ToneScore,
		ClarityScore:   res.ClarityScore,
		Simulated:      res.Simulated,
	}
	if s.store != nil {
		if err := s.store.Record(ctx, att); err != nil {
			s.log.Warn("failed to record attempt", slog.String("error", err.Error()))
		}
	}

	if s.bus != nil {
		event := protocol.AssessmentEvent{
			AttemptID:      att.ID,
			ReferenceText:  referenceText,
			RecognizedText: recognized,
			Stars:          res.Stars,
			ToneScore:      res.ToneScore,
			ClarityScore:   res.ClarityScore,
			Simulated:      res.Simulated,
			Timestamp:      time.Now().UTC(),
		}
		data, err := json.Marshal(event)
		if err != nil {
			return
		}
		if err := s.bus.Publish(protocol.SubjectAssessmentCompleted, data); err != nil {
			s.log.Warn("failed to publish assessment event", slog.String("error", err.Error()))
		}
	}
}
