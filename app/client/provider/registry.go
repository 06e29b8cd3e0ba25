package provider

import (
	"github.com/elliotchance/pie/v2"
	"github.com/samber/oops"

	"stagetalk/app/config"
)

// Registry is the static catalog of available backends. Pure lookup,
// no I/O.
type Registry struct {
	descriptors []Descriptor
}

func NewRegistry(cfg *config.Config) *Registry {
	return &Registry{
		descriptors: []Descriptor{
			{
				ID:              OpenAI,
				DisplayName:     "OpenAI",
				Model:           cfg.Providers.OpenAI.Model,
				MaxOutputTokens: defaultMaxOutputTokens,
				Temperature:     defaultTemperature,
				Endpoint:        cfg.Providers.OpenAI.BaseURL,
			},
			{
				ID:              Together,
				DisplayName:     "Together AI",
				Model:           cfg.Providers.Together.Model,
				MaxOutputTokens: defaultMaxOutputTokens,
				Temperature:     defaultTemperature,
				Endpoint:        cfg.Providers.Together.BaseURL,
			},
			{
				ID:              Gemini,
				DisplayName:     "Google Gemini",
				Model:           cfg.Providers.Gemini.Model,
				MaxOutputTokens: defaultMaxOutputTokens,
				Temperature:     defaultTemperature,
				Endpoint:        cfg.Providers.Gemini.BaseURL,
			},
		},
	}
}

func (r *Registry) Get(id ID) (Descriptor, error) {
	idx := pie.FindFirstUsing(r.descriptors, func(d Descriptor) bool {
		return d.ID == id
	})
	if idx < 0 {
		return Descriptor{}, oops.With("provider", string(id)).Wrap(ErrUnknownProvider)
	}

	return r.descriptors[idx], nil
}

func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, len(r.descriptors))
	copy(out, r.descriptors)

	return out
}

// Fallback picks the first backend other than current.
func (r *Registry) Fallback(current ID) (Descriptor, bool) {
	idx := pie.FindFirstUsing(r.descriptors, func(d Descriptor) bool {
		return d.ID != current
	})
	if idx < 0 {
		return Descriptor{}, false
	}

	return r.descriptors[idx], true
}
