package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/noah-isme/eduschedule-api/internal/models"
	"github.com/noah-isme/eduschedule-api/internal/scheduler"
)

const (
	defaultGeminiModel       = "gemini-2.5-flash"
	defaultGeminiTemperature = 0.1
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// GeminiConfig configures the Gemini-backed oracle.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float32
}

// Gemini proposes schedules with a Google Gemini model.
type Gemini struct {
	newModel func(schema *genai.Schema) contentGenerator
	close    func() error
	logger   *zap.Logger
}

// NewGemini creates the Gemini client.
func NewGemini(ctx context.Context, cfg GeminiConfig, logger *zap.Logger) (*Gemini, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini api key is not configured")
	}
	if cfg.Model == "" {
		cfg.Model = defaultGeminiModel
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = defaultGeminiTemperature
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("unable to create gemini client: %w", err)
	}
	factory := func(schema *genai.Schema) contentGenerator {
		model := client.GenerativeModel(cfg.Model)
		model.SetTemperature(cfg.Temperature)
		model.ResponseMIMEType = "application/json"
		model.ResponseSchema = schema
		return model
	}
	return newGemini(factory, client.Close, logger), nil
}

func newGemini(factory func(schema *genai.Schema) contentGenerator, closer func() error, logger *zap.Logger) *Gemini {
	if logger == nil {
		logger = zap.NewNop()
	}
	if closer == nil {
		closer = func() error { return nil }
	}
	return &Gemini{newModel: factory, close: closer, logger: logger}
}

// Propose asks the model for a complete schedule. The reply is parsed but not trusted.
func (g *Gemini) Propose(ctx context.Context, req scheduler.OracleRequest) (*models.Schedule, error) {
	prompt, err := buildPrompt(req)
	if err != nil {
		return nil, err
	}
	model := g.newModel(responseSchema(req.Grid))
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}
	text := responseText(resp)
	if text == "" {
		return nil, errors.New("gemini returned an empty response")
	}
	schedule, err := ParseProposal(text)
	if err != nil {
		g.logger.Warn("gemini proposal rejected", zap.Error(err), zap.Int("length", len(text)))
		return nil, err
	}
	g.logger.Debug("gemini proposal received", zap.Int("assignments", len(schedule.Assignments)), zap.Int("notes", len(schedule.Notes)))
	return schedule, nil
}

// Close releases the underlying client.
func (g *Gemini) Close() error {
	return g.close()
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		var b strings.Builder
		for _, part := range candidate.Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				b.WriteString(string(txt))
			}
		}
		if b.Len() > 0 {
			return b.String()
		}
	}
	return ""
}
