package llm

import "github.com/RichardoC/clawd-gateway/internal/models"

// Defaults are the hard-coded fallbacks used when neither the request nor
// the stored settings supply a value.
type Defaults struct {
	Model        string
	SystemPrompt *string
	Temperature  *float64
}

// ResolveSettings picks each field independently: request, then stored,
// then default. Only a nil request field falls through, so an explicit
// empty system prompt or zero temperature is honored. An empty model name
// is treated as unset because no completion call can use it.
func ResolveSettings(req *models.SettingsOverride, stored *models.Settings, defaults Defaults) models.EffectiveSettings {
	eff := models.EffectiveSettings{
		Model:        defaults.Model,
		SystemPrompt: defaults.SystemPrompt,
		Temperature:  defaults.Temperature,
	}

	if stored != nil {
		if stored.Model != "" {
			eff.Model = stored.Model
		}
		if stored.SystemPrompt != nil {
			eff.SystemPrompt = stored.SystemPrompt
		}
		if stored.Temperature != nil {
			eff.Temperature = stored.Temperature
		}
	}

	if req != nil {
		if req.Model != nil && *req.Model != "" {
			eff.Model = *req.Model
		}
		if req.SystemPrompt != nil {
			eff.SystemPrompt = req.SystemPrompt
		}
		if req.Temperature != nil {
			eff.Temperature = req.Temperature
		}
	}
	return eff
}
