package config

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// DefaultRegions returns the DC and Fairfax zip code groups, in fetch order.
func DefaultRegions() []RegionGroup {
	return []RegionGroup{
		{
			Name: "dc",
			Keys: []string{"20001", "20002", "20003", "20004", "20005", "20007", "20008", "20009", "20010", "20011"},
		},
		{
			Name: "fairfax",
			Keys: []string{"22030", "22031", "22032", "22033", "22034", "22035", "22038", "22041", "22042", "22043"},
		},
	}
}

// LoadRegions reads region groups from a YAML file with a top-level
// "regions" key. Blank keys are dropped; group order and key order are kept.
func LoadRegions(path string) ([]RegionGroup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read regions %s", path)
	}

	var wrapper struct {
		Regions []RegionGroup `yaml:"regions"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "config: parse regions")
	}

	groups := make([]RegionGroup, 0, len(wrapper.Regions))
	for i, g := range wrapper.Regions {
		if g.Name == "" {
			return nil, eris.Errorf("config: region group %d has no name", i)
		}
		keys := make([]string, 0, len(g.Keys))
		for _, k := range g.Keys {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
		groups = append(groups, RegionGroup{Name: g.Name, Keys: keys})
	}
	return groups, nil
}
