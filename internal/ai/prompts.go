package ai

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/finwire/finwire/internal/storage"
)

// Embedded default prompts
//
//go:embed prompts/reporter.txt
var defaultReporterPrompt string

//go:embed prompts/editor.txt
var defaultEditorPrompt string

//go:embed prompts/designer.txt
var defaultDesignerPrompt string

//go:embed prompts/marketer.txt
var defaultMarketerPrompt string

// PromptType identifies an agent stage's prompt
type PromptType string

const (
	PromptTypeReporter PromptType = "reporter"
	PromptTypeEditor   PromptType = "editor"
	PromptTypeDesigner PromptType = "designer"
	PromptTypeMarketer PromptType = "marketer"
)

// GetPrompt loads a prompt with 2-tier fallback.
// Priority: config file -> embedded default.
func GetPrompt(cfg *storage.Config, promptType PromptType) (string, error) {
	if cfg != nil {
		var configPrompt string
		switch promptType {
		case PromptTypeReporter:
			configPrompt = cfg.Prompts.Reporter
		case PromptTypeEditor:
			configPrompt = cfg.Prompts.Editor
		case PromptTypeDesigner:
			configPrompt = cfg.Prompts.Designer
		case PromptTypeMarketer:
			configPrompt = cfg.Prompts.Marketer
		}
		if configPrompt != "" {
			return configPrompt, nil
		}
	}

	switch promptType {
	case PromptTypeReporter:
		return defaultReporterPrompt, nil
	case PromptTypeEditor:
		return defaultEditorPrompt, nil
	case PromptTypeDesigner:
		return defaultDesignerPrompt, nil
	case PromptTypeMarketer:
		return defaultMarketerPrompt, nil
	default:
		return "", fmt.Errorf("unknown prompt type: %s", promptType)
	}
}

// GetTemperature returns the sampling temperature for a prompt type.
// Priority: config file -> built-in default.
func GetTemperature(cfg *storage.Config, promptType PromptType) float64 {
	if cfg != nil {
		var configTemp float64
		switch promptType {
		case PromptTypeReporter:
			configTemp = cfg.Temperatures.Reporter
		case PromptTypeEditor:
			configTemp = cfg.Temperatures.Editor
		case PromptTypeDesigner:
			configTemp = cfg.Temperatures.Designer
		case PromptTypeMarketer:
			configTemp = cfg.Temperatures.Marketer
		}
		if configTemp > 0 {
			return configTemp
		}
	}

	switch promptType {
	case PromptTypeReporter:
		return 0.7
	case PromptTypeEditor:
		return 0.3
	case PromptTypeDesigner, PromptTypeMarketer:
		return 0.8
	default:
		return 0.5 // balanced default
	}
}

// ExecutePrompt renders a prompt template with the given data
func ExecutePrompt(promptTemplate string, data interface{}) (string, error) {
	tmpl, err := template.New("prompt").Parse(promptTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse prompt template: %w", err)
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}

	return buf.String(), nil
}
