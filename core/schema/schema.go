// Package schema maps a survey version string to the feature lists the
// encoder needs: real-valued features, discrete features, and allocation
// flags (imputation markers, excludable as a group).
package schema

import (
	"fmt"
	"io"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Info describes one survey version's feature layout. The slices are
// ordered; encoded column order follows them.
type Info struct {
	RealFeats     []string `yaml:"real_feats"`
	DiscreteFeats []string `yaml:"discrete_feats"`
	AllocFlags    []string `yaml:"alloc_flags"`
	WeightCol     string   `yaml:"weight_col"`
}

// CategoricalFeats returns discrete features followed by allocation flags,
// the order the encoder lays out one-hot blocks in.
func (i *Info) CategoricalFeats() []string {
	out := make([]string, 0, len(i.DiscreteFeats)+len(i.AllocFlags))
	out = append(out, i.DiscreteFeats...)
	out = append(out, i.AllocFlags...)
	return out
}

var (
	mu       sync.RWMutex
	registry = map[string]*Info{
		"acs-2006-10": {
			RealFeats: []string{
				"AGEP", "INTP", "JWMNP", "OIP", "PAP", "PERNP", "PINCP",
				"RETP", "SEMP", "SSIP", "SSP", "WAGP", "WKHP",
			},
			DiscreteFeats: []string{
				"CIT", "COW", "ENG", "FER", "JWTR", "MAR", "MIL", "SCH",
				"SCHL", "SEX", "WKL", "WKW", "DIS", "ESR", "HISP", "NATIVITY",
				"RAC1P",
			},
			AllocFlags: []string{
				"FAGEP", "FCITP", "FCOWP", "FENGP", "FERP", "FINTP",
				"FJWMNP", "FJWTRP", "FMARP", "FMILPP", "FOIP", "FPAP",
				"FPINCP", "FRETP", "FSCHLP", "FSCHP", "FSEMP", "FSEXP",
				"FSSIP", "FSSP", "FWAGP", "FWKHP", "FWKLP", "FWKWP",
			},
			WeightCol: "PWGTP",
		},
		"acs-2010-14": {
			RealFeats: []string{
				"AGEP", "INTP", "JWMNP", "OIP", "PAP", "PERNP", "PINCP",
				"RETP", "SEMP", "SSIP", "SSP", "WAGP", "WKHP",
			},
			DiscreteFeats: []string{
				"CIT", "COW", "DDRS", "DEAR", "DEYE", "DOUT", "DPHY",
				"DREM", "ENG", "FER", "JWTR", "MAR", "MIL", "SCH", "SCHL",
				"SEX", "WKL", "WKW", "DIS", "ESR", "HISP", "NATIVITY",
				"RAC1P",
			},
			AllocFlags: []string{
				"FAGEP", "FCITP", "FCOWP", "FDDRSP", "FDEARP", "FDEYEP",
				"FDISP", "FDOUTP", "FDPHYP", "FDREMP", "FENGP", "FERP",
				"FINTP", "FJWMNP", "FJWTRP", "FMARP", "FMILPP", "FOIP",
				"FPAP", "FPINCP", "FRETP", "FSCHLP", "FSCHP", "FSEMP",
				"FSEXP", "FSSIP", "FSSP", "FWAGP", "FWKHP", "FWKLP",
				"FWKWP",
			},
			WeightCol: "PWGTP",
		},
	}
)

// Lookup returns the Info registered for version.
func Lookup(version string) (*Info, error) {
	mu.RLock()
	defer mu.RUnlock()
	info, ok := registry[version]
	if !ok {
		return nil, fmt.Errorf("schema: unknown version %q", version)
	}
	return info, nil
}

// Versions returns the registered version names.
func Versions() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(registry))
	for v := range registry {
		out = append(out, v)
	}
	return out
}

// Register adds or replaces a version.
func Register(version string, info *Info) error {
	if version == "" {
		return fmt.Errorf("schema: empty version name")
	}
	if info == nil {
		return fmt.Errorf("schema: nil info for version %q", version)
	}
	if info.WeightCol == "" {
		info.WeightCol = "PWGTP"
	}
	mu.Lock()
	registry[version] = info
	mu.Unlock()
	return nil
}

// LoadYAML registers versions from a YAML document mapping version name to
// Info fields.
func LoadYAML(r io.Reader) error {
	var doc map[string]*Info
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("schema: decode versions: %w", err)
	}
	for v, info := range doc {
		if err := Register(v, info); err != nil {
			return err
		}
	}
	return nil
}

// LoadYAMLFile registers versions from a YAML file.
func LoadYAMLFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("schema: open versions file: %w", err)
	}
	defer f.Close()
	return LoadYAML(f)
}
