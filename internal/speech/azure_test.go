package speech

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tonetutor-labs/tonetutor-core/internal/config"
)

func testConfig(endpoint string) config.SpeechConfig {
	return config.SpeechConfig{
		Key:       "test-key",
		Region:    "westus3",
		Language:  "zh-CN",
		Endpoint:  endpoint,
		TimeoutMS: 5000,
	}
}

func TestAzureAssessSuccess(t *testing.T) {
	var gotAssessmentHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Ocp-Apim-Subscription-Key") != "test-key" {
			t.Errorf("missing subscription key header")
		}
		if lang := r.URL.Query().Get("language"); lang != "zh-CN" {
			t.Errorf("language = %q", lang)
		}
		gotAssessmentHeader = r.Header.Get("Pronunciation-Assessment")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"RecognitionStatus": "Success",
			"DisplayText":       "你好",
			"NBest": []map[string]any{{
				"Display": "你好",
				"PronunciationAssessment": map[string]any{
					"AccuracyScore":     90.0,
					"FluencyScore":      92.0,
					"CompletenessScore": 88.0,
					"PronScore":         91.0,
				},
				"Words": []map[string]any{{
					"Word": "你好",
					"PronunciationAssessment": map[string]any{
						"AccuracyScore": 90.0,
						"ErrorType":     "None",
					},
				}},
			}},
		})
	}))
	defer srv.Close()

	rec := NewAzureRecognizer(testConfig(srv.URL))
	res, err := rec.Assess(context.Background(), []byte("fake-wav"), "audio/wav", "你好")
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if !res.Recognized {
		t.Fatal("expected recognized result")
	}
	if res.Text != "你好" {
		t.Fatalf("text = %q", res.Text)
	}
	if res.Accuracy != 90 || res.Fluency != 92 || res.Completeness != 88 || res.Pronunciation != 91 {
		t.Fatalf("sub-scores = %+v", res)
	}
	if len(res.Words) != 1 || res.Words[0].AccuracyScore != 90 {
		t.Fatalf("words = %+v", res.Words)
	}

	raw, err := base64.StdEncoding.DecodeString(gotAssessmentHeader)
	if err != nil {
		t.Fatalf("assessment header not base64: %v", err)
	}
	var params map[string]any
	if err := json.Unmarshal(raw, &params); err != nil {
		t.Fatalf("assessment header not json: %v", err)
	}
	if params["ReferenceText"] != "你好" || params["GradingSystem"] != "HundredMark" {
		t.Fatalf("assessment params = %v", params)
	}
}

func TestAzureAssessNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"RecognitionStatus": "NoMatch"})
	}))
	defer srv.Close()

	rec := NewAzureRecognizer(testConfig(srv.URL))
	res, err := rec.Assess(context.Background(), []byte("silence"), "audio/wav", "你好")
	if err != nil {
		t.Fatalf("no-match must not be an error: %v", err)
	}
	if res.Recognized {
		t.Fatal("expected unrecognized result")
	}
}

func TestAzureAssessFlatLegacyScores(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"RecognitionStatus": "Success",
			"NBest": []map[string]any{{
				"Display":           "谢谢",
				"AccuracyScore":     80.0,
				"FluencyScore":      82.0,
				"CompletenessScore": 78.0,
				"PronScore":         81.0,
			}},
		})
	}))
	defer srv.Close()

	rec := NewAzureRecognizer(testConfig(srv.URL))
	res, err := rec.Assess(context.Background(), []byte("fake"), "audio/wav", "谢谢")
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if res.Accuracy != 80 || res.Pronunciation != 81 {
		t.Fatalf("legacy scores not picked up: %+v", res)
	}
}

func TestAzureAssessMissingScores(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"RecognitionStatus": "Success",
			"NBest":             []map[string]any{{"Display": "你好"}},
		})
	}))
	defer srv.Close()

	rec := NewAzureRecognizer(testConfig(srv.URL))
	res, err := rec.Assess(context.Background(), []byte("fake"), "audio/wav", "你好")
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if res.Recognized {
		t.Fatal("a response without any score payload must not count as recognized")
	}
}

func TestAzureAssessServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	rec := NewAzureRecognizer(testConfig(srv.URL))
	if _, err := rec.Assess(context.Background(), []byte("fake"), "audio/wav", "你好"); err == nil {
		t.Fatal("expected error on non-200 status")
	}
}
