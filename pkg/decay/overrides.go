package decay

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Override files let operators tune decay without recompiling:
//
//	default:
//	  half_life: 2160h
//	  floor: 0.1
//	relation_types:
//	  isMemberOf:
//	    half_life: 8760h
//	    floor: 0.2
//
// Half-lives use Go duration syntax.

type rawParams struct {
	HalfLife string   `yaml:"half_life"`
	Floor    *float64 `yaml:"floor"`
}

type rawConfig struct {
	Default       *rawParams           `yaml:"default"`
	RelationTypes map[string]rawParams `yaml:"relation_types"`
}

// LoadConfig reads a decay configuration from r, filling unspecified
// fields from the defaults.
func LoadConfig(r io.Reader) (Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, fmt.Errorf("read decay config: %w", err)
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parse decay config: %w", err)
	}

	cfg := DefaultConfig()
	if raw.Default != nil {
		p, err := raw.Default.toParams(cfg.Default)
		if err != nil {
			return Config{}, fmt.Errorf("decay config default: %w", err)
		}
		cfg.Default = p
	}
	if len(raw.RelationTypes) > 0 {
		cfg.RelationTypes = make(map[string]Params, len(raw.RelationTypes))
		for relType, rp := range raw.RelationTypes {
			p, err := rp.toParams(cfg.Default)
			if err != nil {
				return Config{}, fmt.Errorf("decay config for %q: %w", relType, err)
			}
			cfg.RelationTypes[relType] = p
		}
	}
	return cfg, nil
}

// LoadConfigFile reads a decay configuration from a YAML file.
func LoadConfigFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open decay config: %w", err)
	}
	defer f.Close()
	return LoadConfig(f)
}

func (rp rawParams) toParams(base Params) (Params, error) {
	p := base
	if rp.HalfLife != "" {
		d, err := time.ParseDuration(rp.HalfLife)
		if err != nil {
			return Params{}, fmt.Errorf("bad half_life %q: %w", rp.HalfLife, err)
		}
		p.HalfLife = d
	}
	if rp.Floor != nil {
		if *rp.Floor < 0 || *rp.Floor > 1 {
			return Params{}, fmt.Errorf("floor %v outside [0,1]", *rp.Floor)
		}
		p.Floor = *rp.Floor
	}
	return p, nil
}
