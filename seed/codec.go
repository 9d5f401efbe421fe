package seed

import (
	"bytes"
	"encoding/json"

	"gopkg.in/yaml.v3"

	"github.com/forgewell/acengine/core"
)

// FromYAML decodes a Seed document from YAML, rejecting unknown fields
// per spec §6 ("unknown fields are rejected"). Grounded on the teacher's
// use of gopkg.in/yaml.v3 for config decoding.
func FromYAML(data []byte) (*Seed, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, core.New("seed.FromYAML", core.KindValidation, err)
	}
	return New(doc)
}

// ToYAML serializes a Seed to its canonical YAML document form.
func ToYAML(s *Seed) ([]byte, error) {
	out, err := yaml.Marshal(s.ToDocument())
	if err != nil {
		return nil, core.New("seed.ToYAML", core.KindPersistence, err)
	}
	return out, nil
}

// FromJSON decodes a Seed document from JSON, rejecting unknown fields.
func FromJSON(data []byte) (*Seed, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, core.New("seed.FromJSON", core.KindValidation, err)
	}
	return New(doc)
}

// ToJSON serializes a Seed to its canonical JSON document form.
func ToJSON(s *Seed) ([]byte, error) {
	out, err := json.Marshal(s.ToDocument())
	if err != nil {
		return nil, core.New("seed.ToJSON", core.KindPersistence, err)
	}
	return out, nil
}
