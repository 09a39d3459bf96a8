package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tonetutor-labs/tonetutor-core/internal/config"
)

var (
	// ErrNotConfigured means no translator credentials are present.
	// Unlike assessment there is no simulated fallback for translation.
	ErrNotConfigured = errors.New("translator not configured")
	// ErrMissingText marks a request without text to translate.
	ErrMissingText = errors.New("text is required")
)

// Result is one completed dictionary-style lookup.
type Result struct {
	English string
	Chinese string
	Pinyin  string
	Source  string
}

// Service proxies translation and pinyin transliteration through the
// Azure Translator v3 API.
type Service struct {
	cfg  config.TranslateConfig
	http *http.Client
	log  *slog.Logger
}

func NewService(cfg config.TranslateConfig, log *slog.Logger) *Service {
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Service{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
		log:  log,
	}
}

// Translate converts text between English and Chinese and attaches a
// pinyin reading for the Chinese side. A transliteration failure is not
// fatal; the pinyin field then repeats the Chinese text.
func (s *Service) Translate(ctx context.Context, text, from, to string) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, ErrMissingText
	}
	if !s.cfg.Configured() {
		return Result{}, ErrNotConfigured
	}

	if from == "" {
		from = s.cfg.DefaultFrom
	}
	if to == "" {
		to = s.cfg.DefaultTo
	}

	translated, err := s.callTranslate(ctx, text, from, to)
	if err != nil {
		return Result{}, err
	}

	res := Result{Source: "azure"}
	if strings.HasPrefix(to, "zh") {
		res.English = text
		res.Chinese = translated
	} else {
		res.English = translated
		res.Chinese = text
	}

	pinyin, err := s.callTransliterate(ctx, res.Chinese)
	if err != nil {
		s.log.Warn("transliteration failed, using chinese text as reading",
			slog.String("error", err.Error()))
		pinyin = res.Chinese
	}
	res.Pinyin = pinyin
	return res, nil
}

func (s *Service) callTranslate(ctx context.Context, text, from, to string) (string, error) {
	url := fmt.Sprintf("%s/translate?api-version=3.0&from=%s&to=%s", strings.TrimRight(s.cfg.Endpoint, "/"), from, to)

	var out []struct {
		Translations []struct {
			Text string `json:"text"`
		} `json:"translations"`
	}
	if err := s.call(ctx, url, text, &out); err != nil {
		return "", fmt.Errorf("translate: %w", err)
	}
	if len(out) == 0 || len(out[0].Translations) == 0 {
		return "", errors.New("translate: empty response")
	}
	return out[0].Translations[0].Text, nil
}

func (s *Service) callTransliterate(ctx context.Context, chinese string) (string, error) {
	url := fmt.Sprintf("%s/transliterate?api-version=3.0&language=zh-Hans&fromScript=Hans&toScript=Latn", strings.TrimRight(s.cfg.Endpoint, "/"))

	var out []struct {
		Text string `json:"text"`
	}
	if err := s.call(ctx, url, chinese, &out); err != nil {
		return "", fmt.Errorf("transliterate: %w", err)
	}
	if len(out) == 0 {
		return "", errors.New("transliterate: empty response")
	}
	return out[0].Text, nil
}

func (s *Service) call(ctx context.Context, url, text string, out any) error {
	body, err := json.Marshal([]map[string]string{{"Text": text}})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", s.cfg.Key)
	if s.cfg.Region != "" {
		req.Header.Set("Ocp-Apim-Subscription-Region", s.cfg.Region)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("translator returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
