// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package chat defines the model interface the gateway talks to and a
// Gemini generateContent adapter. The model call is an external
// collaborator; everything the gateway owns is the prompt assembly in the
// HTTP layer.
package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"

	apperrors "github.com/votrix/tapo-energy-gateway/pkg/errors"
)

const defaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"

// Request is one single-turn completion request.
type Request struct {
	SystemPrompt    string
	ContextLine     string
	Message         string
	Temperature     float64
	TopP            float64
	TopK            int
	MaxOutputTokens int
}

// Model generates a single chat completion.
type Model interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeminiClient calls the Gemini generateContent REST API.
type GeminiClient struct {
	http     *resty.Client
	apiKey   string
	model    string
	endpoint string
}

// NewGeminiClient creates a Gemini-backed chat model.
func NewGeminiClient(apiKey, model string) *GeminiClient {
	return &GeminiClient{
		http:     resty.New(),
		apiKey:   apiKey,
		model:    model,
		endpoint: defaultEndpoint,
	}
}

// SetEndpoint overrides the API base URL. Used in tests.
func (g *GeminiClient) SetEndpoint(endpoint string) {
	g.endpoint = endpoint
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateRequest struct {
	Contents         []geminiContent  `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate performs one generateContent call. The system prompt and the
// device status line travel as the first user turn, matching the single-turn
// shape the assistant was built around.
func (g *GeminiClient) Generate(ctx context.Context, req Request) (string, error) {
	body := generateRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: fmt.Sprintf("[SYSTEM]\n%s\n%s", req.SystemPrompt, req.ContextLine)}}},
			{Role: "user", Parts: []geminiPart{{Text: req.Message}}},
		},
		GenerationConfig: generationConfig{
			Temperature:     req.Temperature,
			TopP:            req.TopP,
			TopK:            req.TopK,
			MaxOutputTokens: req.MaxOutputTokens,
		},
	}

	var out generateResponse
	resp, err := g.http.R().
		SetContext(ctx).
		SetQueryParam("key", g.apiKey).
		SetBody(body).
		SetResult(&out).
		SetError(&out).
		Post(fmt.Sprintf("%s/models/%s:generateContent", g.endpoint, g.model))
	if err != nil {
		return "", apperrors.NewConnectError("gemini", err)
	}
	if resp.IsError() {
		if out.Error != nil {
			return "", apperrors.NewProtocolError("generateContent", fmt.Errorf("api error %d: %s", out.Error.Code, out.Error.Message))
		}
		return "", apperrors.NewProtocolError("generateContent", fmt.Errorf("http status %d", resp.StatusCode()))
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", apperrors.NewProtocolError("generateContent", errors.New("no candidates in response"))
	}

	return out.Candidates[0].Content.Parts[0].Text, nil
}
