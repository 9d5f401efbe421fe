package seed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDocument() Document {
	return Document{
		Goal:               "ship a working CLI",
		Constraints:        []string{"no external network calls"},
		AcceptanceCriteria: []string{"unit tests pass"},
		OntologySchema:     OntologySchema{Name: "cli-tool"},
	}
}

func TestNew_GeneratesSeedIDAndCreatedAt(t *testing.T) {
	s, err := New(validDocument())
	require.NoError(t, err)
	assert.NotEmpty(t, s.SeedID())
	assert.False(t, s.Metadata().CreatedAt.IsZero())
}

func TestNew_RejectsEmptyGoal(t *testing.T) {
	doc := validDocument()
	doc.Goal = "   "
	_, err := New(doc)
	assert.Error(t, err)
}

func TestNew_RejectsOutOfRangeAmbiguityScore(t *testing.T) {
	doc := validDocument()
	doc.Metadata.AmbiguityScore = 1.5
	_, err := New(doc)
	assert.Error(t, err)
}

func TestNew_RejectsOutOfRangeEvaluationWeight(t *testing.T) {
	doc := validDocument()
	doc.EvaluationPrinciples = []EvaluationPrinciple{{Name: "correctness", Weight: 2}}
	_, err := New(doc)
	assert.Error(t, err)
}

func TestSeed_AccessorsReturnDefensiveCopies(t *testing.T) {
	s, err := New(validDocument())
	require.NoError(t, err)

	constraints := s.Constraints()
	constraints[0] = "mutated"
	assert.Equal(t, "no external network calls", s.Constraints()[0], "mutating the returned slice must not affect the Seed")
}

func TestYAMLRoundTrip(t *testing.T) {
	s, err := New(validDocument())
	require.NoError(t, err)

	data, err := ToYAML(s)
	require.NoError(t, err)

	back, err := FromYAML(data)
	require.NoError(t, err)
	assert.True(t, s.Equal(back))
}

func TestFromYAML_RejectsUnknownFields(t *testing.T) {
	_, err := FromYAML([]byte("goal: x\nontology_schema:\n  name: y\nbogus_field: true\n"))
	assert.Error(t, err)
}

func TestJSONRoundTrip(t *testing.T) {
	s, err := New(validDocument())
	require.NoError(t, err)

	data, err := ToJSON(s)
	require.NoError(t, err)

	back, err := FromJSON(data)
	require.NoError(t, err)
	assert.True(t, s.Equal(back))
}
