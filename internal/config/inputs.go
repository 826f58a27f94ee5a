package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Inputs is the on-disk run description. YAML and JSON are both accepted.
type Inputs struct {
	SearchURLs    []string      `yaml:"searchUrls"`
	Searches      []SearchInput `yaml:"searches"`
	MaxItems      int           `yaml:"maxItems"`
	ProxyPool     []string      `yaml:"proxyPool"`
	OutputFormats []string      `yaml:"outputFormats"`
	Output        OutputInput   `yaml:"output"`
}

type SearchInput struct {
	URL      string `yaml:"url"`
	MaxItems int    `yaml:"maxItems"`
}

type OutputInput struct {
	Directory string `yaml:"directory"`
	Basename  string `yaml:"basename"`
	Filename  string `yaml:"filename"`
	Format    string `yaml:"format"`
}

// ReadInputs parses an inputs file.
func ReadInputs(path string) (Inputs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Inputs{}, fmt.Errorf("config: read inputs: %w", err)
	}
	return ParseInputs(data)
}

// ParseInputs decodes inputs from YAML or JSON bytes.
func ParseInputs(data []byte) (Inputs, error) {
	var in Inputs
	if strings.TrimSpace(string(data)) == "" {
		return in, nil
	}
	if err := yaml.Unmarshal(data, &in); err != nil {
		return Inputs{}, fmt.Errorf("config: parse inputs: %w", err)
	}
	return in, nil
}

// URLs returns searchUrls followed by searches[].url, blanks dropped.
func (in Inputs) URLs() []string {
	var out []string
	for _, u := range in.SearchURLs {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	for _, s := range in.Searches {
		if u := strings.TrimSpace(s.URL); u != "" {
			out = append(out, u)
		}
	}
	return out
}

// Limit is maxItems, or the largest per-search maxItems when only those are set.
func (in Inputs) Limit() int {
	if in.MaxItems > 0 {
		return in.MaxItems
	}
	limit := 0
	for _, s := range in.Searches {
		if s.MaxItems > limit {
			limit = s.MaxItems
		}
	}
	return limit
}

// Formats merges outputFormats with the single output.format.
func (in Inputs) Formats() []string {
	formats := append([]string(nil), in.OutputFormats...)
	if f := strings.TrimSpace(in.Output.Format); f != "" {
		formats = append(formats, f)
	}
	return formats
}

// Basename prefers output.basename, then output.filename minus its extension.
func (in Inputs) Basename() string {
	if b := strings.TrimSpace(in.Output.Basename); b != "" {
		return b
	}
	name := strings.TrimSpace(in.Output.Filename)
	if name == "" {
		return ""
	}
	name = filepath.Base(name)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
