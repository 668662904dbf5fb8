package services

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/iyanrinri/hr-app-tenant-backend-sub001/modules/settlement/domain/types"
	"gopkg.in/yaml.v3"
)

//go:embed rates.default.yaml
var embeddedRateDefaults []byte

// RateDefaultsNone disables defaults; every rate must then come from tenant
// rows.
const RateDefaultsNone = "none"

type rateDefaultsDocument struct {
	PTKP     map[string]string `yaml:"ptkp"`
	Brackets map[string]string `yaml:"brackets"`
	BPJS     map[string]string `yaml:"bpjs"`
}

// LoadRateDefaults reads the defaults document at path. An empty path uses
// the embedded document.
func LoadRateDefaults(path string) ([]types.RateSetting, error) {
	path = strings.TrimSpace(path)
	switch path {
	case "":
		return ParseRateDefaults(embeddedRateDefaults)
	case RateDefaultsNone:
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rate defaults: %w", err)
	}
	return ParseRateDefaults(b)
}

func ParseRateDefaults(b []byte) ([]types.RateSetting, error) {
	var doc rateDefaultsDocument
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("rate defaults: %w", err)
	}

	var out []types.RateSetting
	groups := []struct {
		prefix string
		values map[string]string
	}{
		{prefix: PTKPKeyPrefix, values: doc.PTKP},
		{prefix: BracketKeyPrefix, values: doc.Brackets},
		{prefix: InsuranceKeyPrefix, values: doc.BPJS},
	}
	for _, g := range groups {
		for k, v := range g.values {
			key := strings.ToUpper(strings.TrimSpace(k))
			if !strings.HasPrefix(key, g.prefix) {
				return nil, fmt.Errorf("rate defaults: key %q must start with %s", k, g.prefix)
			}
			out = append(out, types.RateSetting{Key: key, Value: strings.TrimSpace(v)})
		}
	}
	if len(out) == 0 {
		return nil, errors.New("rate defaults: document is empty")
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
