package stress

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// LoadCatalog reads the scenario tables from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file %s: %w", path, err)
	}
	return ParseCatalog(raw)
}

// ParseCatalog parses scenario tables from YAML.
func ParseCatalog(raw []byte) (*Catalog, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(raw, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse scenario file: %w", err)
	}
	if len(catalog.Historical) == 0 && len(catalog.MultiFactor) == 0 {
		return nil, fmt.Errorf("scenario file defines no scenarios")
	}
	return &catalog, nil
}

// List enumerates the catalog's scenarios sorted by key.
func (c *Catalog) List() []ScenarioInfo {
	out := make([]ScenarioInfo, 0, len(c.Historical)+len(c.MultiFactor))
	for key, s := range c.Historical {
		out = append(out, ScenarioInfo{Key: key, Kind: "historical", Description: s.Description})
	}
	for key, s := range c.MultiFactor {
		out = append(out, ScenarioInfo{Key: key, Kind: "multi_factor", Description: s.Description})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// shockForClass resolves the scenario's shock for an asset class, falling
// back to the equity shock, then zero.
func (s Scenario) shockForClass(assetType string) float64 {
	var class *float64
	switch assetType {
	case AssetBond:
		class = s.BondShock
	case AssetCredit:
		class = s.CreditShock
	case AssetCommodity:
		class = s.CommodityShock
	case AssetGrowth:
		class = s.GrowthShock
	}
	if class != nil {
		return *class
	}
	if s.EquityShock != nil {
		return *s.EquityShock
	}
	return 0
}
