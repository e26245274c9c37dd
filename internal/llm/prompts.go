package llm

import (
	_ "embed"
	"strings"
)

var (
	//go:embed prompts/small.txt
	promptSmall string
	//go:embed prompts/standard.txt
	promptStandard string
	//go:embed prompts/module_pricing.txt
	promptModulePricing string
	//go:embed prompts/module_catalog.txt
	promptModuleCatalog string
	//go:embed prompts/module_marketing.txt
	promptModuleMarketing string
)

// Optional analysis modules, in the order they appear in prompts.
const (
	ModulePricing   = "pricing"
	ModuleCatalog   = "catalog"
	ModuleMarketing = "marketing"
)

var moduleOrder = []string{ModulePricing, ModuleCatalog, ModuleMarketing}

// smallModelPatterns lists lowercase substrings identifying low-capability models.
var smallModelPatterns = []string{
	"gemma",
	"glm-4",
	"llama2-7b",
	"llama-7b",
	"phi",
	"mistral-7b",
	"qwen-7b",
}

// IsSmallModel reports whether model matches a known small-model pattern.
func IsSmallModel(model string) bool {
	lower := strings.ToLower(model)
	for _, p := range smallModelPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// BuildPrompt returns the analysis instructions for the given model and enabled modules.
// Small models get a step-by-step template with a worked example; others get the terse template.
// Both embed the same output schema.
func BuildPrompt(model string, modules []string) string {
	enabled := enabledModules(modules)

	template := promptStandard
	if IsSmallModel(model) {
		template = promptSmall
	}

	replacer := strings.NewReplacer(
		"{{MODULES}}", modulePrompts(enabled),
		"{{SCHEMA}}", buildSchema(enabled),
	)
	return replacer.Replace(template)
}

// SchemaFromPrompt extracts the JSON output schema embedded in a prompt built by BuildPrompt.
func SchemaFromPrompt(prompt string) (string, bool) {
	idx := strings.Index(prompt, schemaHead)
	if idx < 0 {
		return "", false
	}
	return strings.TrimSpace(prompt[idx:]), true
}

func enabledModules(modules []string) map[string]bool {
	out := make(map[string]bool, len(modules))
	for _, m := range modules {
		out[strings.ToLower(strings.TrimSpace(m))] = true
	}
	return out
}

func modulePrompts(enabled map[string]bool) string {
	var b strings.Builder
	for _, m := range moduleOrder {
		if !enabled[m] {
			continue
		}
		switch m {
		case ModulePricing:
			b.WriteString(promptModulePricing)
		case ModuleCatalog:
			b.WriteString(promptModuleCatalog)
		case ModuleMarketing:
			b.WriteString(promptModuleMarketing)
		}
	}
	return b.String()
}

const schemaHead = "{\n  \"competitors\""

const schemaBase = `{
  "competitors": [
    {
      "name": "Competitor Name",
      "url": "https://example.com",
      "price": "99.99",
      "currency": "USD",
      "stock_status": "in_stock|out_of_stock|unknown",
      "comparison_notes": "Brief comparison notes"
    }
  ],
  "content_analysis": {
    "my_tone": "Tone description",
    "competitor_tone": "Tone description",
    "missing_keywords": ["keyword1", "keyword2"],
    "improvement_suggestion": "Suggested improvement text"
  },
  "sentiment_analysis": {
    "competitor_weaknesses": ["weakness1", "weakness2"],
    "market_gaps": ["gap1", "gap2"]
  },
  "strategy": {
    "pricing_advice": "Pricing recommendation",
    "action_items": ["action1", "action2"]
  }`

const schemaPricing = `,
  "pricing_intelligence": {
    "price_distribution": {
      "min": "0.00",
      "max": "0.00",
      "average": "0.00"
    },
    "discount_patterns": ["pattern1", "pattern2"],
    "positioning": "premium|mid-range|budget"
  }`

const schemaCatalog = `,
  "catalog_intelligence": {
    "variants": ["variant1", "variant2"],
    "unique_features": ["feature1", "feature2"],
    "product_line_breadth": "narrow|moderate|extensive"
  }`

const schemaMarketing = `,
  "marketing_intelligence": {
    "messaging": "Key messaging themes",
    "target_audience": "Audience description",
    "brand_positioning": "Positioning description",
    "promotional_tactics": ["tactic1", "tactic2"]
  }`

func buildSchema(enabled map[string]bool) string {
	var b strings.Builder
	b.WriteString(schemaBase)
	if enabled[ModulePricing] {
		b.WriteString(schemaPricing)
	}
	if enabled[ModuleCatalog] {
		b.WriteString(schemaCatalog)
	}
	if enabled[ModuleMarketing] {
		b.WriteString(schemaMarketing)
	}
	b.WriteString("\n}")
	return b.String()
}
