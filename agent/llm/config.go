package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/kalpit-S/ai-support-agent/agent/contract"
	openrouterx "github.com/kalpit-S/ai-support-agent/pkg/openrouter"
)

const (
	DriverEino      = "eino"
	DriverOpenAI    = "openai"
	DriverAnthropic = "anthropic"
)

type Config struct {
	Driver             string        `envconfig:"DRIVER" default:"eino"`
	BaseURL            string        `envconfig:"BASE_URL" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY"`
	Model              string        `envconfig:"MODEL" default:"anthropic/claude-sonnet-4.5"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" default:"1024"`
	Temperature        float32       `envconfig:"TEMPERATURE" default:"0.7"`
	Timeout            time.Duration `envconfig:"TIMEOUT" default:"60s"`
	SiteURL            string        `envconfig:"SITE_URL"`
	SiteName           string        `envconfig:"SITE_NAME"`

	AnthropicAPIKey string `envconfig:"ANTHROPIC_API_KEY"`
	AnthropicModel  string `envconfig:"ANTHROPIC_MODEL" default:"claude-sonnet-4-5"`
}

func (c Config) driver() string {
	d := strings.ToLower(strings.TrimSpace(c.Driver))
	if d == "" {
		return DriverEino
	}
	return d
}

func (c Config) Validate() error {
	switch c.driver() {
	case DriverEino, DriverOpenAI:
		if strings.TrimSpace(c.APIKey) == "" {
			return fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
		}
		if strings.TrimSpace(c.Model) == "" {
			return fmt.Errorf("%w: model is required", contractx.ErrValidation)
		}
	case DriverAnthropic:
		if strings.TrimSpace(c.AnthropicAPIKey) == "" {
			return fmt.Errorf("%w: anthropic api key is required", contractx.ErrValidation)
		}
		if strings.TrimSpace(c.AnthropicModel) == "" {
			return fmt.Errorf("%w: anthropic model is required", contractx.ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown llm driver %q", contractx.ErrValidation, c.Driver)
	}
	if c.MaxCompletionToken <= 0 {
		return fmt.Errorf("%w: max completion tokens must be positive", contractx.ErrValidation)
	}
	return nil
}

func (c Config) OpenRouter() openrouterx.Config {
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              strings.TrimSpace(c.Model),
		MaxCompletionToken: c.MaxCompletionToken,
		Temperature:        c.Temperature,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
