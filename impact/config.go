package impact

import (
	"os"

	"github.com/BurntSushi/toml"
)

// AnalyzerConfig is the on-disk, TOML-encoded form of an Analyzer, mirroring
// the teacher's modules/zeta/config layered loader (BurntSushi/toml decoding
// straight into a struct) but trimmed to the single setting this analyzer
// exposes.
type AnalyzerConfig struct {
	DetectCherrypicks bool `toml:"detect_cherrypicks"`
}

// LoadConfig reads path as TOML into an AnalyzerConfig. A missing file is
// not an error: it returns the zero-value config (cherry-pick detection
// off), matching the teacher's LoadGlobal treatment of an absent user
// config file.
func LoadConfig(path string) (*AnalyzerConfig, error) {
	var cfg AnalyzerConfig
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, err
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Analyzer builds an Analyzer from its loaded settings.
func (c *AnalyzerConfig) Analyzer() *Analyzer {
	return NewAnalyzer(c.DetectCherrypicks)
}
