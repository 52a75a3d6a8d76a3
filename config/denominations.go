package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed catalog/denominations.yaml
var defaultDenominationCatalog []byte

type DenominationSeed struct {
	CountryCode string
	Name        string
	Value       decimal.Decimal
	SortOrder   int
}

type denominationCatalogFile struct {
	Countries []struct {
		CountryCode   string `yaml:"country_code"`
		Denominations []struct {
			Name  string `yaml:"name"`
			Value string `yaml:"value"`
		} `yaml:"denominations"`
	} `yaml:"countries"`
}

// LoadDenominationCatalog reads DENOMINATION_CATALOG_PATH, falling back to the
// catalog embedded in the binary.
func LoadDenominationCatalog() ([]DenominationSeed, error) {
	raw := defaultDenominationCatalog
	if path := strings.TrimSpace(os.Getenv("DENOMINATION_CATALOG_PATH")); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read denomination catalog %q: %w", path, err)
		}
		raw = b
	}
	return ParseDenominationCatalog(raw)
}

func ParseDenominationCatalog(raw []byte) ([]DenominationSeed, error) {
	var file denominationCatalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse denomination catalog: %w", err)
	}
	var seeds []DenominationSeed
	seen := make(map[string]bool)
	for _, country := range file.Countries {
		code := strings.ToUpper(strings.TrimSpace(country.CountryCode))
		if code == "" {
			return nil, fmt.Errorf("denomination catalog: country_code is required")
		}
		for i, d := range country.Denominations {
			name := strings.TrimSpace(d.Name)
			if name == "" {
				return nil, fmt.Errorf("denomination catalog %s[%d]: name is required", code, i)
			}
			key := code + "|" + name
			if seen[key] {
				return nil, fmt.Errorf("denomination catalog %s: duplicate name %q", code, name)
			}
			seen[key] = true
			value, err := decimal.NewFromString(strings.TrimSpace(d.Value))
			if err != nil {
				return nil, fmt.Errorf("denomination catalog %s %q: %w", code, name, err)
			}
			if !value.IsPositive() {
				return nil, fmt.Errorf("denomination catalog %s %q: value must be positive", code, name)
			}
			seeds = append(seeds, DenominationSeed{
				CountryCode: code,
				Name:        name,
				Value:       value,
				SortOrder:   i + 1,
			})
		}
	}
	return seeds, nil
}
