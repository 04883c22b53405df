package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// explanationSystemPrompt constrains the generated narrative.
const explanationSystemPrompt = `You are a clinical decision support explanation assistant.

STRICT SAFETY RULES (MUST FOLLOW):
- You MUST NOT invent laboratory values, imaging findings, or measurements.
- You MUST NOT mention triglycerides, HDL, LDL, cholesterol, waist circumference, or imaging unless explicitly provided.
- If information is missing, state clearly: "Data not available".
- You MUST NOT diagnose or confirm a disease.
- You MUST NOT recommend medications or treatments.
- You MUST NOT suggest treatment initiation.
- You MUST use cautious language such as:
  "may be consistent with", "can be seen in", "suggests a possible pattern".

STYLE:
- Neutral, professional, clinician-facing language
- Brief (4-6 sentences max)
- Emphasize uncertainty and need for clinical correlation
- State that final decisions rest with the clinician`

const (
	noFindingsText  = "No significant clinical findings were provided."
	noGuidelineText = "No guideline evidence was available."
)

// OllamaConfig represents configuration for the Ollama generate API
type OllamaConfig struct {
	BaseURL   string        `json:"base_url"`
	Model     string        `json:"model"`
	Timeout   time.Duration `json:"timeout"`
	RateLimit float64       `json:"rate_limit"` // requests per second
}

// OllamaClient generates clinical narratives through a local Ollama server
type OllamaClient struct {
	baseURL    string
	model      string
	httpClient *http.Client
	rateLimit  *rate.Limiter
	logger     *logrus.Logger
}

type generateRequest struct {
	Model   string                 `json:"model"`
	System  string                 `json:"system,omitempty"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// NewOllamaClient creates a new Ollama client
func NewOllamaClient(config OllamaConfig, logger *logrus.Logger) *OllamaClient {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.Model == "" {
		config.Model = "llama3:8b"
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2
	}

	return &OllamaClient{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		model:   config.Model,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimit: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		logger:    logger,
	}
}

// FormatFindings renders findings as "- item" lines.
func FormatFindings(findings []string) string {
	if len(findings) == 0 {
		return noFindingsText
	}
	lines := make([]string, len(findings))
	for i, f := range findings {
		lines[i] = "- " + f
	}
	return strings.Join(lines, "\n")
}

// BuildExplanationPrompt assembles the user prompt for a set of findings.
func BuildExplanationPrompt(findings []string, guidelineContext string) string {
	if strings.TrimSpace(guidelineContext) == "" {
		guidelineContext = noGuidelineText
	}

	var b strings.Builder
	b.WriteString("CLINICAL FINDINGS (ONLY THESE ARE AVAILABLE):\n")
	b.WriteString(FormatFindings(findings))
	b.WriteString("\n\nGUIDELINE CONTEXT (REFERENCE ONLY):\n")
	b.WriteString(guidelineContext)
	b.WriteString("\n\nTASK:\n")
	b.WriteString("Provide a cautious clinical interpretation of the findings.\n")
	b.WriteString("- Do NOT assume missing data\n")
	b.WriteString("- Do NOT infer laboratory abnormalities not listed\n")
	b.WriteString("- Explicitly mention uncertainty where applicable\n")
	b.WriteString("\nOUTPUT:\nA short explanation suitable for a physician.\n")
	return b.String()
}

// Explain implements domain.ExplanationGenerator
func (c *OllamaClient) Explain(ctx context.Context, findings []string, guidelineContext string) (string, error) {
	if err := c.rateLimit.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait failed: %w", err)
	}

	body, err := json.Marshal(generateRequest{
		Model:   c.model,
		System:  explanationSystemPrompt,
		Prompt:  BuildExplanationPrompt(findings, guidelineContext),
		Stream:  false,
		Options: map[string]interface{}{"temperature": 0.2},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("explanation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("explanation service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode explanation response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("explanation service error: %s", out.Error)
	}

	text := strings.TrimSpace(out.Response)
	if text == "" {
		return "", fmt.Errorf("explanation service returned an empty response")
	}

	c.logger.WithFields(logrus.Fields{
		"model":    c.model,
		"findings": len(findings),
		"duration": time.Since(start),
	}).Debug("Generated clinical narrative")

	return text, nil
}

// Ping checks that the Ollama server is reachable
func (c *OllamaClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("explanation service unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("explanation service returned status %d", resp.StatusCode)
	}
	return nil
}
