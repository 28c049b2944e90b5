package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"rideflow/internal/types"
)

// GeminiProvider estimates driving distance and duration with a Gemini model.
// It implements routes.Provider.
type GeminiProvider struct {
	client *genai.Client
	model  generator
	region string
}

// NewGeminiProvider initializes a new Gemini client.
// region names the city the estimates are for, e.g. "Bangalore, India".
func NewGeminiProvider(ctx context.Context, apiKey, region string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY is empty", types.ErrConfiguration)
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	// Use Gemini 2.0 Flash for low latency and cost efficiency.
	model := client.GenerativeModel("gemini-2.0-flash")

	// Force JSON response for structured parsing.
	model.ResponseMIMEType = "application/json"

	// Estimates should be stable between refreshes.
	model.SetTemperature(0.1)

	return &GeminiProvider{client: client, model: model, region: region}, nil
}

// Close cleans up the Gemini client resources.
func (p *GeminiProvider) Close() {
	if p.client != nil {
		p.client.Close()
	}
}

// GetRouteDetails returns the estimated driving distance and duration.
func (p *GeminiProvider) GetRouteDetails(ctx context.Context, pickup, dropoff string) (types.RouteFacts, error) {
	text, err := p.generate(ctx, buildRoutePrompt(p.region, pickup, dropoff))
	if err != nil {
		return types.RouteFacts{}, err
	}
	return parseRouteFacts(text)
}

// GetAlternativeRoutes asks for three drop-off points near dropoff that are
// quicker or cheaper to reach from pickup. Unusable entries are dropped.
func (p *GeminiProvider) GetAlternativeRoutes(ctx context.Context, pickup, dropoff string) ([]types.AlternativeCandidate, error) {
	text, err := p.generate(ctx, buildAlternativesPrompt(p.region, pickup, dropoff))
	if err != nil {
		return nil, err
	}
	return parseAlternatives(text)
}

func (p *GeminiProvider) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := p.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("%w: gemini generation error: %v", types.ErrTransport, err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: no response candidates from Gemini", types.ErrFormat)
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
		}
	}
	return cleanJSONString(responseText.String()), nil
}

func buildRoutePrompt(region, pickup, dropoff string) string {
	return fmt.Sprintf(`Role: You are a precise distance and time calculator for %s.
Task: Estimate the driving distance and duration by cab from "%s" to "%s".
Consider:
1. Current traffic patterns in the city
2. The route a cab would typically take
3. Real-world road conditions

Output JSON Schema:
{"distance_km": number (one decimal place), "duration_min": integer}
`, region, pickup, dropoff)
}

func buildAlternativesPrompt(region, pickup, dropoff string) string {
	return fmt.Sprintf(`Role: You are a transportation expert for %s.
Task: Suggest 3 alternative drop-off points near "%s" that have less traffic or a shorter route from "%s".
Consider:
1. Popular landmarks or areas
2. Areas with better traffic flow
3. Nearby commercial or residential hubs

Each location must be a specific, real place name.
Distance and duration are measured from "%s".

Output JSON Schema:
{"alternatives": [{"location": "string", "distance_km": number (one decimal place), "duration_min": integer}]}
`, region, dropoff, pickup, pickup)
}

// parseRouteFacts accepts the JSON schema, or the bare "km,min" form the
// model sometimes falls back to.
func parseRouteFacts(text string) (types.RouteFacts, error) {
	var est routeEstimate
	if err := json.Unmarshal([]byte(text), &est); err == nil && est.DistanceKm != nil && est.DurationMin != nil {
		return validated(*est.DistanceKm, *est.DurationMin)
	}

	parts := strings.Split(strings.Trim(text, `" `), ",")
	if len(parts) != 2 {
		return types.RouteFacts{}, fmt.Errorf("%w: unexpected route estimate %q", types.ErrFormat, text)
	}
	km, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	mins, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return types.RouteFacts{}, fmt.Errorf("%w: non-numeric route estimate %q", types.ErrFormat, text)
	}
	return validated(km, mins)
}

func parseAlternatives(text string) ([]types.AlternativeCandidate, error) {
	var resp alternativesResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse alternatives: %v", types.ErrFormat, err)
	}

	out := make([]types.AlternativeCandidate, 0, len(resp.Alternatives))
	for _, a := range resp.Alternatives {
		loc := strings.TrimSpace(a.Location)
		if loc == "" || a.DistanceKm == nil || a.DurationMin == nil {
			continue
		}
		facts, err := validated(*a.DistanceKm, *a.DurationMin)
		if err != nil {
			continue
		}
		out = append(out, types.AlternativeCandidate{Location: loc, Route: facts})
	}
	return out, nil
}

func validated(km, minutes float64) (types.RouteFacts, error) {
	facts := types.RouteFacts{DistanceMeters: km * 1000, DurationSeconds: minutes * 60}
	if err := facts.Validate(); err != nil {
		return types.RouteFacts{}, err
	}
	return facts, nil
}

// cleanJSONString removes markdown code blocks if present (e.g. ```json ... ```)
func cleanJSONString(input string) string {
	input = strings.TrimSpace(input)
	input = strings.TrimPrefix(input, "```json")
	input = strings.TrimPrefix(input, "```")
	input = strings.TrimSuffix(input, "```")
	return strings.TrimSpace(input)
}
