package routing

import (
	"gopkg.in/yaml.v3"

	"github.com/forgewell/acengine/core"
)

// catalogDocument is the on-disk shape of a Tier Catalog, keyed by
// tier name so deployments can hand-author their candidate lists
// without touching code.
type catalogDocument struct {
	Tiers map[string]struct {
		CostFactor float64 `yaml:"cost_factor"`
		UseCases   []string `yaml:"use_cases"`
		Candidates []struct {
			Provider string `yaml:"provider"`
			Model    string `yaml:"model"`
		} `yaml:"candidates"`
	} `yaml:"tiers"`
}

// LoadCatalog parses a YAML Tier Catalog document (spec §3/§4.4) into a
// Catalog, validating it in the same pass.
func LoadCatalog(data []byte) (*Catalog, error) {
	var doc catalogDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, core.New("routing.LoadCatalog", core.KindConfig, err)
	}

	entries := make([]TierConfig, 0, len(doc.Tiers))
	for name, t := range doc.Tiers {
		candidates := make([]ModelCandidate, 0, len(t.Candidates))
		for _, c := range t.Candidates {
			candidates = append(candidates, ModelCandidate{Provider: c.Provider, Model: c.Model})
		}
		entries = append(entries, TierConfig{
			Tier:       Tier(name),
			CostFactor: t.CostFactor,
			UseCases:   t.UseCases,
			Candidates: candidates,
		})
	}

	catalog := NewCatalog(entries)
	if errs := catalog.ValidateConfiguration(); len(errs) > 0 {
		return nil, core.New("routing.LoadCatalog", core.KindConfig, errs[0])
	}
	return catalog, nil
}
