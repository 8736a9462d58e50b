package openai

import (
	"bytes"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Prompt is one system/user prompt pair with its sampling parameters
type Prompt struct {
	Temperature  float32 `yaml:"temperature"`
	MaxTokens    int     `yaml:"max_tokens"`
	System       string  `yaml:"system"`
	UserTemplate string  `yaml:"user_template"`
}

// PromptConfig holds the prompts used by the structurer and page OCR
type PromptConfig struct {
	BillExtraction   Prompt `yaml:"bill_extraction"`
	PolicyExtraction Prompt `yaml:"policy_extraction"`
	PageOCR          Prompt `yaml:"page_ocr"`
}

// LoadPrompts loads prompt configuration from a YAML file
func LoadPrompts(promptsPath string) (*PromptConfig, error) {
	data, err := os.ReadFile(promptsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}
	return ParsePrompts(data)
}

// ParsePrompts parses prompt configuration and checks that every user template
// compiles
func ParsePrompts(data []byte) (*PromptConfig, error) {
	var prompts PromptConfig
	if err := yaml.Unmarshal(data, &prompts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prompts: %w", err)
	}

	for name, p := range map[string]Prompt{
		"bill_extraction":   prompts.BillExtraction,
		"policy_extraction": prompts.PolicyExtraction,
	} {
		if p.UserTemplate == "" {
			return nil, fmt.Errorf("prompt %s: user_template is required", name)
		}
		if _, err := template.New(name).Parse(p.UserTemplate); err != nil {
			return nil, fmt.Errorf("prompt %s: %w", name, err)
		}
	}

	return &prompts, nil
}

// renderTemplate renders a template with provided data
func renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("prompt").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}
