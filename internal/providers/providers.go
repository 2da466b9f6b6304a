package providers

import (
	"context"
	"fmt"
	"strings"
)

// Config represents one request to an LLM provider
type Config struct {
	Model       string
	Temperature float64
	Prompt      string
	// Images are raw image bytes sent alongside the prompt, for vision models
	Images [][]byte
}

// Provider defines the interface for an LLM provider
type Provider interface {
	Generate(ctx context.Context, config Config) (string, error)
}

// Names lists the providers larder can talk to.
var Names = []string{"ollama", "openai", "gemini"}

// TrimCodeFence strips a markdown code block around a model response.
func TrimCodeFence(response string) string {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	return strings.TrimSpace(response)
}

// ExtractJSON returns the first JSON object in a model response. Models
// often wrap the object in prose or a code block.
func ExtractJSON(response string) (string, error) {
	response = TrimCodeFence(response)
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end < start {
		return "", fmt.Errorf("no JSON object in model response")
	}
	return response[start : end+1], nil
}
