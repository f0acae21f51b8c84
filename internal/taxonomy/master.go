package taxonomy

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Section is one domain of the master taxonomy document.
type Section struct {
	Values   []string            `json:"values"`
	Synonyms map[string][]string `json:"synonyms,omitempty"`
}

// MasterDocument is the on-disk taxonomy source: top-level metadata
// plus per-domain sections keyed by section name.
type MasterDocument struct {
	Version     string
	LastUpdated string
	Description string
	Sections    map[string]Section
}

// metadata keys that are not sections.
var reservedKeys = map[string]bool{
	"version":      true,
	"last_updated": true,
	"description":  true,
}

// LoadMaster reads and parses the master taxonomy document.
func LoadMaster(path string) (*MasterDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read taxonomy master; %w", err)
	}
	return ParseMaster(data)
}

// ParseMaster parses master document JSON.
func ParseMaster(data []byte) (*MasterDocument, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse taxonomy master; %w", err)
	}

	doc := &MasterDocument{Sections: map[string]Section{}}
	for key, val := range raw {
		switch key {
		case "version":
			_ = json.Unmarshal(val, &doc.Version)
		case "last_updated":
			_ = json.Unmarshal(val, &doc.LastUpdated)
		case "description":
			_ = json.Unmarshal(val, &doc.Description)
		default:
			var sec Section
			if err := json.Unmarshal(val, &sec); err != nil {
				return nil, fmt.Errorf("failed to parse taxonomy section %q; %w", key, err)
			}
			doc.Sections[key] = sec
		}
	}
	return doc, nil
}

// MarshalJSON renders the document back to its on-disk shape.
func (d *MasterDocument) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"version":      d.Version,
		"last_updated": d.LastUpdated,
		"description":  d.Description,
	}
	for name, sec := range d.Sections {
		if reservedKeys[name] {
			continue
		}
		out[name] = sec
	}
	return json.Marshal(out)
}

// Entry is one flattened (group, name) pair from the master document.
type Entry struct {
	Group string
	Name  string
}

// Flatten lists every category the document defines, ordered by group
// then name for stable iteration.
func (d *MasterDocument) Flatten() []Entry {
	var out []Entry
	for group, sec := range d.Sections {
		for _, name := range sec.Values {
			out = append(out, Entry{Group: group, Name: name})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Group != out[j].Group {
			return out[i].Group < out[j].Group
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// SynonymIndex maps every category name to its synonyms across all
// sections.
func (d *MasterDocument) SynonymIndex() map[string][]string {
	out := map[string][]string{}
	for _, sec := range d.Sections {
		for name, syns := range sec.Synonyms {
			out[name] = append(out[name], syns...)
		}
	}
	return out
}
