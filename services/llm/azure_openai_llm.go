// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// azureAPIKeySecretPath is the container secret fallback for the API key.
const azureAPIKeySecretPath = "/run/secrets/azure_openai_api_key"

// AzureOpenAIConfig holds Azure OpenAI connection settings.
type AzureOpenAIConfig struct {
	Endpoint    string
	Deployment  string
	APIVersion  string
	APIKey      string
	Temperature float32
}

// LoadAzureOpenAIConfig reads Azure OpenAI settings from environment
// variables. The error lists every missing required variable so a
// misconfigured deployment fails with one actionable message.
func LoadAzureOpenAIConfig() (AzureOpenAIConfig, error) {
	endpoint := os.Getenv("AZURE_OPENAI_ENDPOINT")
	deployment := os.Getenv("AZURE_OPENAI_DEPLOYMENT_NAME")
	if deployment == "" {
		deployment = os.Getenv("AZURE_OPENAI_DEPLOYMENT")
	}
	apiVersion := os.Getenv("AZURE_OPENAI_API_VERSION")
	if apiVersion == "" {
		apiVersion = os.Getenv("OPENAI_API_VERSION")
	}
	apiKey := os.Getenv("AZURE_OPENAI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		if keyBytes, err := os.ReadFile(azureAPIKeySecretPath); err == nil {
			apiKey = strings.TrimSpace(string(keyBytes))
			slog.Info("Read the Azure OpenAI API key from container secrets")
		}
	}

	var temperature float32
	if raw := os.Getenv("AZURE_OPENAI_TEMPERATURE"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return AzureOpenAIConfig{}, fmt.Errorf("invalid AZURE_OPENAI_TEMPERATURE %q: %w", raw, err)
		}
		temperature = float32(parsed)
	}

	var missing []string
	for name, value := range map[string]string{
		"AZURE_OPENAI_ENDPOINT":        endpoint,
		"AZURE_OPENAI_DEPLOYMENT_NAME": deployment,
		"AZURE_OPENAI_API_VERSION":     apiVersion,
		"AZURE_OPENAI_API_KEY":         apiKey,
	} {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		// Map iteration order is random; sort for a stable message.
		sort.Strings(missing)
		return AzureOpenAIConfig{}, fmt.Errorf("missing Azure OpenAI environment variables: %s", strings.Join(missing, ", "))
	}

	return AzureOpenAIConfig{
		Endpoint:    endpoint,
		Deployment:  deployment,
		APIVersion:  apiVersion,
		APIKey:      apiKey,
		Temperature: temperature,
	}, nil
}

// AzureOpenAIClient is a ChatClient backed by an Azure OpenAI deployment.
type AzureOpenAIClient struct {
	client      *openai.Client
	deployment  string
	temperature float32
}

// NewAzureOpenAIClient builds a client for the configured deployment.
func NewAzureOpenAIClient(cfg AzureOpenAIConfig) (*AzureOpenAIClient, error) {
	if cfg.Endpoint == "" || cfg.Deployment == "" || cfg.APIKey == "" {
		return nil, fmt.Errorf("azure openai config incomplete: endpoint, deployment and api key are required")
	}

	clientCfg := openai.DefaultAzureConfig(cfg.APIKey, cfg.Endpoint)
	if cfg.APIVersion != "" {
		clientCfg.APIVersion = cfg.APIVersion
	}
	deployment := cfg.Deployment
	clientCfg.AzureModelMapperFunc = func(model string) string {
		return deployment
	}

	slog.Info("Initializing Azure OpenAI client",
		"endpoint", cfg.Endpoint,
		"deployment", cfg.Deployment,
		"api_version", clientCfg.APIVersion,
	)

	return &AzureOpenAIClient{
		client:      openai.NewClientWithConfig(clientCfg),
		deployment:  deployment,
		temperature: cfg.Temperature,
	}, nil
}

// NewAzureOpenAIClientFromEnv is the env-driven constructor used by the
// service wiring.
func NewAzureOpenAIClientFromEnv() (*AzureOpenAIClient, error) {
	cfg, err := LoadAzureOpenAIConfig()
	if err != nil {
		return nil, err
	}
	return NewAzureOpenAIClient(cfg)
}

// Chat implements the ChatClient interface.
func (a *AzureOpenAIClient) Chat(ctx context.Context, messages []Message, params GenerationParams) (Message, error) {
	req := openai.ChatCompletionRequest{
		Model:       a.deployment,
		Messages:    toOpenAIMessages(messages),
		Temperature: a.temperature,
	}
	applyParams(&req, params)

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		slog.Error("Azure OpenAI chat completion failed", "error", err)
		return Message{}, fmt.Errorf("azure openai chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Message{}, fmt.Errorf("azure openai returned no choices")
	}

	reply := fromOpenAIMessage(resp.Choices[0].Message)
	slog.Debug("Received Azure OpenAI response",
		"finish_reason", resp.Choices[0].FinishReason,
		"tool_calls", len(reply.ToolCalls),
	)
	return reply, nil
}

// Generate implements the ChatClient interface.
func (a *AzureOpenAIClient) Generate(ctx context.Context, system, prompt string, params GenerationParams) (string, error) {
	reply, err := a.Chat(ctx, []Message{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: prompt},
	}, params)
	if err != nil {
		return "", err
	}
	return reply.Content, nil
}

var _ ChatClient = (*AzureOpenAIClient)(nil)
