// Package metadata loads the editable session metadata YAML that sits
// next to a behavioral export. The file describes the session (who ran
// it, where) and the subject, and may override trial column specs. Every
// field is optional: the loaded document is deep-merged over the lab
// defaults, so a metadata file only states what differs.
package metadata

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/catalystneuro/constantinople-lab-to-nwb/pkg/types"
)

// document mirrors the YAML layout of a session metadata file.
type document struct {
	Session struct {
		Description  string `yaml:"description"`
		Experimenter string `yaml:"experimenter"`
		Institution  string `yaml:"institution"`
		Lab          string `yaml:"lab"`
	} `yaml:"session"`
	Subject struct {
		Description string `yaml:"description"`
		Species     string `yaml:"species"`
		Sex         string `yaml:"sex"`
	} `yaml:"subject"`
	Columns map[string]struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
	} `yaml:"columns"`
}

// Default returns the lab-wide metadata every session starts from.
func Default() types.SessionMetadata {
	return types.SessionMetadata{
		Description: "Temporal wagering task session with synchronized acquisition recordings.",
		Institution: "New York University Center for Neural Science",
		Lab:         "Constantinople Lab",
		Subject: types.SubjectMetadata{
			Species: "Rattus norvegicus",
			Sex:     "U",
		},
	}
}

// Load reads a session metadata YAML file and merges it over Default.
func Load(path string) (types.SessionMetadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return types.SessionMetadata{}, types.NewInputError(types.CodeParseFailed,
			fmt.Sprintf("metadata: read session metadata file %s", path), err)
	}
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return types.SessionMetadata{}, types.NewInputError(types.CodeParseFailed,
			fmt.Sprintf("metadata: parse session metadata file %s", path), err)
	}

	override := types.SessionMetadata{
		Description:  doc.Session.Description,
		Experimenter: doc.Session.Experimenter,
		Institution:  doc.Session.Institution,
		Lab:          doc.Session.Lab,
		Subject: types.SubjectMetadata{
			Description: doc.Subject.Description,
			Species:     doc.Subject.Species,
			Sex:         doc.Subject.Sex,
		},
	}
	if len(doc.Columns) > 0 {
		override.Columns = make(map[string]types.ColumnSpec, len(doc.Columns))
		for field, c := range doc.Columns {
			override.Columns[field] = types.ColumnSpec{Name: c.Name, Description: c.Description}
		}
	}
	return Merge(Default(), override), nil
}

// Merge lays override on top of base field by field. Empty override
// strings keep the base value; column override maps merge per key, with
// the same empty-keeps-base rule inside each entry.
func Merge(base, override types.SessionMetadata) types.SessionMetadata {
	merged := base
	if override.Description != "" {
		merged.Description = override.Description
	}
	if override.Experimenter != "" {
		merged.Experimenter = override.Experimenter
	}
	if override.Institution != "" {
		merged.Institution = override.Institution
	}
	if override.Lab != "" {
		merged.Lab = override.Lab
	}
	if override.Subject.Description != "" {
		merged.Subject.Description = override.Subject.Description
	}
	if override.Subject.Species != "" {
		merged.Subject.Species = override.Subject.Species
	}
	if override.Subject.Sex != "" {
		merged.Subject.Sex = override.Subject.Sex
	}
	if len(override.Columns) > 0 {
		columns := make(map[string]types.ColumnSpec, len(base.Columns)+len(override.Columns))
		for field, spec := range base.Columns {
			columns[field] = spec
		}
		for field, o := range override.Columns {
			spec := columns[field]
			if o.Name != "" {
				spec.Name = o.Name
			}
			if o.Description != "" {
				spec.Description = o.Description
			}
			columns[field] = spec
		}
		merged.Columns = columns
	}
	return merged
}
