// Package catalog holds the list of legal codes a deployment ingests.
//
// A built-in catalog covers common federal codes; deployments override it
// with a YAML file listing their own selection.
package catalog

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/normenwerk/normstore/core"
)

// Entry describes one legal code known to the catalog.
type Entry struct {
	// Code is the normalized identifier, e.g. "bgb".
	Code string `yaml:"code"`

	// Title is the human-readable name of the code.
	Title string `yaml:"title"`
}

// Catalog is a list of legal codes with lookup by identifier.
type Catalog struct {
	Entries []Entry `yaml:"codes"`
}

// Default returns the built-in catalog of common federal codes.
func Default() *Catalog {
	return &Catalog{Entries: []Entry{
		{Code: "bgb", Title: "Bürgerliches Gesetzbuch"},
		{Code: "stgb", Title: "Strafgesetzbuch"},
		{Code: "gg", Title: "Grundgesetz"},
		{Code: "hgb", Title: "Handelsgesetzbuch"},
		{Code: "zpo", Title: "Zivilprozessordnung"},
		{Code: "stpo", Title: "Strafprozeßordnung"},
		{Code: "vwvfg", Title: "Verwaltungsverfahrensgesetz"},
	}}
}

// Load reads a catalog from a YAML file. A missing file yields the
// built-in default catalog.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}

	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}

	for i := range c.Entries {
		c.Entries[i].Code = core.NormalizeCode(c.Entries[i].Code)
		if err := core.ValidateCode(c.Entries[i].Code); err != nil {
			return nil, fmt.Errorf("catalog entry %d: %w", i, err)
		}
	}
	return &c, nil
}

// Codes returns the identifiers of all catalog entries.
func (c *Catalog) Codes() []string {
	codes := make([]string, len(c.Entries))
	for i, entry := range c.Entries {
		codes[i] = entry.Code
	}
	return codes
}

// Lookup finds an entry by its normalized code.
func (c *Catalog) Lookup(code string) (Entry, bool) {
	code = core.NormalizeCode(code)
	for _, entry := range c.Entries {
		if entry.Code == code {
			return entry, true
		}
	}
	return Entry{}, false
}
