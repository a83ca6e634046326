// Package casgemini suggests CAS Registry Numbers for chemical names using
// the Gemini API with web-search grounding.
//
// Suggestions are generated, not authoritative: the suggester rejects output
// that fails the CAS checksum, and downstream tables record the value in its
// own suggestion column rather than over an existing identifier.
package casgemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"

	"google.golang.org/genai"

	"github.com/biomonlab/chemtable/pkg/casrn"
	"github.com/biomonlab/chemtable/pkg/enrich"
)

type Config struct {
	APIKey string
	Model  string

	// BaseURL overrides the Gemini API base URL. Useful for proxies/testing.
	BaseURL string
}

type Suggester struct {
	client *genai.Client
	model  string
}

func New(ctx context.Context, cfg Config) (*Suggester, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("GEMINI_MODEL is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	return &Suggester{client: client, model: strings.TrimSpace(cfg.Model)}, nil
}

type responseSchema struct {
	CASNumber  string `json:"cas_number"`
	Confidence string `json:"confidence"`
}

var outputSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"cas_number": {Type: genai.TypeString},
		"confidence": {Type: genai.TypeString},
	},
	Required: []string{"cas_number", "confidence"},
}

// Lookup implements enrich.Lookup: chemical name in, checksum-valid CAS
// suggestion out. A suggestion the model cannot make, or one that fails
// validation, is reported as not found.
func (s *Suggester) Lookup(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &enrich.PermanentError{Err: errors.New("empty chemical name")}
	}

	resp, err := s.client.Models.GenerateContent(
		ctx,
		s.model,
		genai.Text(buildPrompt(name)),
		&genai.GenerateContentConfig{
			Tools: []*genai.Tool{
				{GoogleSearch: &genai.GoogleSearch{}},
			},
			CandidateCount:   1,
			ResponseMIMEType: "application/json",
			ResponseSchema:   outputSchema,
		},
	)
	if err != nil {
		return "", classifyErr(err)
	}

	var parsed responseSchema
	if err := json.Unmarshal([]byte(resp.Text()), &parsed); err != nil {
		return "", fmt.Errorf("gemini: parse structured json: %w", err)
	}

	cas := strings.TrimSpace(parsed.CASNumber)
	if cas == "" {
		return "", fmt.Errorf("name %q: %w", name, enrich.ErrNotFound)
	}
	if kind := casrn.Validate(cas); kind != casrn.ResultValid {
		slog.DebugContext(ctx, "discarding invalid cas suggestion",
			"name", name, "suggestion", cas, "kind", kind.String())
		return "", fmt.Errorf("name %q: suggestion failed validation: %w", name, enrich.ErrNotFound)
	}
	return cas, nil
}

func buildPrompt(name string) string {
	return strings.TrimSpace(`
You are a chemistry data curation tool. Given a chemical name, use web search to find its CAS Registry Number.

Return ONLY a single JSON object with these keys:
- cas_number (string; format NNNNNNN-NN-N, or an empty string if unknown)
- confidence (string; one of: low, medium, high)

Rules:
- Only return a CAS number you found in a source, never one you constructed.
- If the name is ambiguous between substances, return an empty string.
- Do not include extra keys.

Chemical name: ` + name + `
`)
}

func classifyErr(err error) error {
	// Wrap transient failures so the runner retries with backoff.
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Code/100 == 5 {
			return &enrich.TransientError{Err: err}
		}
		return err
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &enrich.TransientError{Err: err}
	}
	return err
}
