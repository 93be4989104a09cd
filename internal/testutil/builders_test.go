package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/felixgeelhaar/envira/internal/domain/platform"
	"github.com/felixgeelhaar/envira/internal/domain/step"
)

func TestNewStep_ValidForEveryMethod(t *testing.T) {
	t.Parallel()

	for _, m := range step.Methods {
		s := NewStep("tool", m).DependsOn("base").Build()
		assert.NoError(t, s.Validate(), m)
		assert.Equal(t, step.IDs("base"), s.DependsOn)
	}
}

func TestStepBuilder_Applicability(t *testing.T) {
	t.Parallel()

	s := NewStep("docker", step.MethodBinaryInstaller).
		OnlyModes(platform.ModeElevated).
		OnlyFamilies(platform.FamilyArch).
		SatisfiedBy("docker").
		Build()

	assert.False(t, s.AppliesTo.Matches(FactsFor(platform.ModeElevated)))
	assert.True(t, s.AppliesTo.Matches(NewFacts(platform.FamilyArch, platform.ModeElevated)))
	assert.Equal(t, []string{"docker"}, s.Satisfied.Commands)
}
