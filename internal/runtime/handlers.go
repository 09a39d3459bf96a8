package runtime

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/tonetutor-labs/tonetutor-core/internal/assess"
	"github.com/tonetutor-labs/tonetutor-core/internal/protocol"
	"github.com/tonetutor-labs/tonetutor-core/internal/translate"
)

// cors applies the configured allow-origin policy and handles preflight.
// Only POST reaches the wrapped handler on /api routes.
func (r *Runtime) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		origin := r.cfg.HTTP.AllowOrigin
		if origin == "" {
			origin = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (r *Runtime) handleAssessment(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, protocol.AssessmentResponse{
			Success: false,
			Error:   "method not allowed",
		})
		return
	}

	var body protocol.AssessmentRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, protocol.AssessmentResponse{
			Success: false,
			Error:   "invalid JSON body",
		})
		return
	}

	start := time.Now()
	resp, err := r.assessSvc.Assess(req.Context(), body)
	if err != nil {
		if errors.Is(err, assess.ErrValidation) {
			writeJSON(w, http.StatusBadRequest, protocol.AssessmentResponse{
				Success: false,
				Error:   err.Error(),
			})
			return
		}
		r.logger.Error("assessment failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, protocol.AssessmentResponse{
			Success: false,
			Error:   "internal error",
		})
		return
	}

	r.logger.Debug("assessment served",
		slog.Bool("simulated", resp.Simulated),
		slog.Duration("elapsed", time.Since(start)))
	writeJSON(w, http.StatusOK, resp)
}

func (r *Runtime) handleTranslate(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, protocol.TranslateResponse{
			Success: false,
			Error:   "method not allowed",
		})
		return
	}

	var body protocol.TranslateRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, protocol.TranslateResponse{
			Success: false,
			Error:   "invalid JSON body",
		})
		return
	}

	res, err := r.translateOp.Translate(req.Context(), body.Text, body.FromLanguage, body.ToLanguage)
	if err != nil {
		switch {
		case errors.Is(err, translate.ErrMissingText):
			writeJSON(w, http.StatusBadRequest, protocol.TranslateResponse{
				Success: false,
				Error:   "text is required",
			})
		case errors.Is(err, translate.ErrNotConfigured):
			writeJSON(w, http.StatusInternalServerError, protocol.TranslateResponse{
				Success: false,
				Error:   "translation service not configured",
			})
		default:
			r.logger.Warn("translation failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusBadGateway, protocol.TranslateResponse{
				Success: false,
				Error:   "translation failed",
			})
		}
		return
	}

	writeJSON(w, http.StatusOK, protocol.TranslateResponse{
		Success: true,
		English: res.English,
		Chinese: res.Chinese,
		Pinyin:  res.Pinyin,
		Source:  res.Source,
	})
}

type attemptView struct {
	ID             string    `json:"id"`
	ReferenceText  string    `json:"referenceText"`
	RecognizedText string    `json:"recognizedText,omitempty"`
	Stars          int       `json:"stars"`
	ToneScore      float64   `json:"toneScore"`
	ClarityScore   float64   `json:"clarityScore"`
	Simulated      bool      `json:"simulated"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (r *Runtime) handleAttempts(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{
			"success": false,
			"error":   "method not allowed",
		})
		return
	}

	limit := 50
	if raw := req.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	attempts, err := r.store.ListRecent(req.Context(), limit)
	if err != nil {
		r.logger.Error("failed to list attempts", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "internal error",
		})
		return
	}

	views := make([]attemptView, 0, len(attempts))
	for _, a := range attempts {
		views = append(views, attemptView{
			ID:             a.ID,
			ReferenceText:  a.ReferenceText,
			RecognizedText: a.RecognizedText,
			Stars:          a.Stars,
			ToneScore:      a.ToneScore,
			ClarityScore:   a.ClarityScore,
			Simulated:      a.Simulated,
			CreatedAt:      a.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"attempts": views,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
