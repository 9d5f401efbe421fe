// Package seed implements the immutable Seed data model (spec §3): the
// validated goal/constraints/acceptance-criteria/ontology document that
// enters the Orchestrator Runner. A Seed is constructed once through
// New and never mutated afterward; every exported accessor returns a
// defensive copy so a caller cannot reach into the value and change it.
//
// Grounded on the teacher's value-typed config objects (core/config.go's
// Option pattern) for the construction style, and on
// _examples/original_source/src/ouroboros/core/seed.py (read via its test
// file, tests/unit/core/test_seed.py) for the field set and the
// ambiguity-gated, frozen-record semantics.
package seed

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/forgewell/acengine/core"
)

// OntologyField describes one field of a domain ontology.
type OntologyField struct {
	Name        string `json:"name" yaml:"name"`
	FieldType   string `json:"field_type" yaml:"field_type"`
	Description string `json:"description" yaml:"description"`
	Required    bool   `json:"required" yaml:"required"`
}

// OntologySchema is the named record of typed fields describing the
// domain the Seed's goal operates over.
type OntologySchema struct {
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description" yaml:"description"`
	Fields      []OntologyField `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// EvaluationPrinciple is a weighted named rubric used to judge the
// finished artifact.
type EvaluationPrinciple struct {
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description" yaml:"description"`
	Weight      float64 `json:"weight" yaml:"weight"`
}

// ExitCondition is a named predicate with a textual evaluation criterion.
type ExitCondition struct {
	Name               string `json:"name" yaml:"name"`
	Description        string `json:"description" yaml:"description"`
	EvaluationCriteria string `json:"evaluation_criteria" yaml:"evaluation_criteria"`
}

// Metadata carries the Seed's generated identity: seed_id, ambiguity
// score, creation time, and the interview that produced it (if any).
// The interview loop itself is external (spec non-goal); this engine
// only records the score it was handed.
type Metadata struct {
	SeedID         string    `json:"seed_id" yaml:"seed_id"`
	AmbiguityScore float64   `json:"ambiguity_score" yaml:"ambiguity_score"`
	CreatedAt      time.Time `json:"created_at" yaml:"created_at"`
	InterviewID    string    `json:"interview_id,omitempty" yaml:"interview_id,omitempty"`
}

// Seed is the immutable, fully specified input to the Orchestrator
// Runner (C12). Construct with New; every field is unexported so the
// only way to read one back out is through an accessor that copies.
type Seed struct {
	goal                 string
	constraints           []string
	acceptanceCriteria    []string
	ontologySchema        OntologySchema
	evaluationPrinciples  []EvaluationPrinciple
	exitConditions        []ExitCondition
	metadata              Metadata
}

// Document is the self-describing, lossless wire shape of a Seed —
// what New validates and what ToDocument produces. Unknown fields are
// rejected by the YAML/JSON decoder's strict mode at the call site that
// owns decoding (see FromYAML and FromJSON).
type Document struct {
	Goal                 string                `json:"goal" yaml:"goal"`
	Constraints          []string              `json:"constraints,omitempty" yaml:"constraints,omitempty"`
	AcceptanceCriteria   []string              `json:"acceptance_criteria,omitempty" yaml:"acceptance_criteria,omitempty"`
	OntologySchema       OntologySchema        `json:"ontology_schema" yaml:"ontology_schema"`
	EvaluationPrinciples []EvaluationPrinciple `json:"evaluation_principles,omitempty" yaml:"evaluation_principles,omitempty"`
	ExitConditions       []ExitCondition       `json:"exit_conditions,omitempty" yaml:"exit_conditions,omitempty"`
	Metadata             Metadata              `json:"metadata" yaml:"metadata"`
}

// New validates a Document and returns an immutable Seed, generating a
// seed_id and created_at if the document's metadata omits them.
func New(doc Document) (*Seed, error) {
	if strings.TrimSpace(doc.Goal) == "" {
		return nil, core.Newf("seed.New", core.KindValidation, "goal must not be empty")
	}
	if strings.TrimSpace(doc.OntologySchema.Name) == "" {
		return nil, core.Newf("seed.New", core.KindValidation, "ontology_schema.name must not be empty")
	}
	if doc.Metadata.AmbiguityScore < 0 || doc.Metadata.AmbiguityScore > 1 {
		return nil, core.Newf("seed.New", core.KindValidation, "ambiguity_score must be in [0,1], got %v", doc.Metadata.AmbiguityScore)
	}
	for _, p := range doc.EvaluationPrinciples {
		if p.Weight < 0 || p.Weight > 1 {
			return nil, core.Newf("seed.New", core.KindValidation, "evaluation_principle %q weight must be in [0,1], got %v", p.Name, p.Weight)
		}
	}

	meta := doc.Metadata
	if meta.SeedID == "" {
		id, err := newSeedID()
		if err != nil {
			return nil, core.New("seed.New", core.KindPersistence, err)
		}
		meta.SeedID = id
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}

	return &Seed{
		goal:                 doc.Goal,
		constraints:           append([]string(nil), doc.Constraints...),
		acceptanceCriteria:    append([]string(nil), doc.AcceptanceCriteria...),
		ontologySchema:        copyOntologySchema(doc.OntologySchema),
		evaluationPrinciples:  append([]EvaluationPrinciple(nil), doc.EvaluationPrinciples...),
		exitConditions:        append([]ExitCondition(nil), doc.ExitConditions...),
		metadata:              meta,
	}, nil
}

func newSeedID() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return fmt.Sprintf("seed_%s", hex.EncodeToString(buf)), nil
}

func copyOntologySchema(s OntologySchema) OntologySchema {
	return OntologySchema{
		Name:        s.Name,
		Description: s.Description,
		Fields:      append([]OntologyField(nil), s.Fields...),
	}
}

// ToDocument serializes the Seed back to its lossless wire shape.
func (s *Seed) ToDocument() Document {
	return Document{
		Goal:                 s.goal,
		Constraints:          append([]string(nil), s.constraints...),
		AcceptanceCriteria:   append([]string(nil), s.acceptanceCriteria...),
		OntologySchema:       copyOntologySchema(s.ontologySchema),
		EvaluationPrinciples: append([]EvaluationPrinciple(nil), s.evaluationPrinciples...),
		ExitConditions:       append([]ExitCondition(nil), s.exitConditions...),
		Metadata:             s.metadata,
	}
}

func (s *Seed) Goal() string                               { return s.goal }
func (s *Seed) Constraints() []string                       { return append([]string(nil), s.constraints...) }
func (s *Seed) AcceptanceCriteria() []string                 { return append([]string(nil), s.acceptanceCriteria...) }
func (s *Seed) OntologySchema() OntologySchema               { return copyOntologySchema(s.ontologySchema) }
func (s *Seed) EvaluationPrinciples() []EvaluationPrinciple  { return append([]EvaluationPrinciple(nil), s.evaluationPrinciples...) }
func (s *Seed) ExitConditions() []ExitCondition              { return append([]ExitCondition(nil), s.exitConditions...) }
func (s *Seed) Metadata() Metadata                           { return s.metadata }
func (s *Seed) SeedID() string                               { return s.metadata.SeedID }

// Equal reports whether two Seeds agree on goal, ontology schema name,
// constraints, acceptance criteria and seed_id, used by the round-trip
// invariant test (spec §8 property 1). Other fields are not compared.
func (s *Seed) Equal(other *Seed) bool {
	if s == nil || other == nil {
		return s == other
	}
	a, b := s.ToDocument(), other.ToDocument()
	if a.Goal != b.Goal || a.OntologySchema.Name != b.OntologySchema.Name {
		return false
	}
	if len(a.Constraints) != len(b.Constraints) || len(a.AcceptanceCriteria) != len(b.AcceptanceCriteria) {
		return false
	}
	for i := range a.Constraints {
		if a.Constraints[i] != b.Constraints[i] {
			return false
		}
	}
	for i := range a.AcceptanceCriteria {
		if a.AcceptanceCriteria[i] != b.AcceptanceCriteria[i] {
			return false
		}
	}
	return a.Metadata.SeedID == b.Metadata.SeedID
}
