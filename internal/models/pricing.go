package models

import "math"

// PricingUnit says how a model is billed
type PricingUnit string

const (
	// PricingUnitToken rates are cents per 1M tokens
	PricingUnitToken PricingUnit = "token"
	// PricingUnitImage is a flat rate in cents per generated image
	PricingUnitImage PricingUnit = "image"
	// PricingUnitAudio is a flat rate in cents per synthesized audio unit
	PricingUnitAudio PricingUnit = "audio"
)

// ModelPricing is one entry of the pricing table
type ModelPricing struct {
	Model      string      `yaml:"-" json:"model"`
	Unit       PricingUnit `yaml:"unit" json:"unit"`
	InputRate  float64     `yaml:"input_rate,omitempty" json:"input_rate,omitempty"`
	OutputRate float64     `yaml:"output_rate,omitempty" json:"output_rate,omitempty"`
	FlatRate   int64       `yaml:"flat_rate,omitempty" json:"flat_rate,omitempty"`
}

// IsFlat reports whether token counts are ignored for this model
func (p ModelPricing) IsFlat() bool {
	return p.Unit == PricingUnitImage || p.Unit == PricingUnitAudio
}

// CostCents returns the cost of one call in whole cents, rounded up
func (p ModelPricing) CostCents(inputTokens, outputTokens int) int64 {
	if p.IsFlat() {
		return p.FlatRate
	}
	if inputTokens < 0 {
		inputTokens = 0
	}
	if outputTokens < 0 {
		outputTokens = 0
	}
	cents := float64(inputTokens)/1e6*p.InputRate + float64(outputTokens)/1e6*p.OutputRate
	return int64(math.Ceil(cents))
}
