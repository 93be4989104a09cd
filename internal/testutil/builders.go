package testutil

import (
	"github.com/felixgeelhaar/envira/internal/domain/platform"
	"github.com/felixgeelhaar/envira/internal/domain/step"
)

// StepBuilder builds test steps. Build does not validate.
type StepBuilder struct {
	step step.Step
}

// NewStep starts a step with the given ID and method. Config-patch steps
// get a minimal line patch so they validate.
func NewStep(id string, method step.Method) *StepBuilder {
	b := &StepBuilder{step: step.Step{ID: step.MustNewID(id), Method: method}}
	switch method {
	case step.MethodConfigPatch:
		b.step.Spec.Patch = &step.PatchSpec{Path: "~/." + id + "rc", Mode: step.PatchLine, Line: id, Create: true}
	case step.MethodLanguagePackage:
		b.step.Spec.Lang = &step.LangSpec{Manager: step.LangPipx, Packages: []string{id}}
	case step.MethodDistroPackage:
		b.step.Spec.Packages = &step.PackageSpec{Names: map[platform.Family][]string{
			platform.FamilyDebian: {id},
			platform.FamilyFedora: {id},
			platform.FamilyArch:   {id},
		}}
	case step.MethodBinaryInstaller:
		b.step.Spec.Installer = &step.InstallerSpec{Kind: step.InstallerScript, URL: "https://example.com/" + id + ".sh", Interpreter: "sh"}
	case step.MethodManualArchive:
		b.step.Spec.Archive = &step.ArchiveSpec{URL: "https://example.com/" + id + ".tar.gz", Format: step.ArchiveTarGz, Dest: "${OPT_DIR}/" + id}
	}
	return b
}

// DependsOn adds dependencies.
func (b *StepBuilder) DependsOn(ids ...string) *StepBuilder {
	b.step.DependsOn = append(b.step.DependsOn, step.IDs(ids...)...)
	return b
}

// OnlyFamilies restricts the step to families.
func (b *StepBuilder) OnlyFamilies(families ...platform.Family) *StepBuilder {
	b.step.AppliesTo.Families = append(b.step.AppliesTo.Families, families...)
	return b
}

// OnlyModes restricts the step to privilege modes.
func (b *StepBuilder) OnlyModes(modes ...platform.PrivilegeMode) *StepBuilder {
	b.step.AppliesTo.Modes = append(b.step.AppliesTo.Modes, modes...)
	return b
}

// SatisfiedBy sets commands whose presence satisfies the step.
func (b *StepBuilder) SatisfiedBy(commands ...string) *StepBuilder {
	b.step.Satisfied.Commands = append(b.step.Satisfied.Commands, commands...)
	return b
}

// Build returns the step.
func (b *StepBuilder) Build() step.Step {
	return b.step
}

// FactsFor returns Facts for a Debian-family amd64 host with home /home/dev.
func FactsFor(mode platform.PrivilegeMode) platform.Facts {
	return NewFacts(platform.FamilyDebian, mode)
}

// NewFacts returns Facts for the given family and mode.
func NewFacts(family platform.Family, mode platform.PrivilegeMode) platform.Facts {
	return platform.NewFacts(platform.Params{
		Family:         family,
		DistroID:       string(family),
		Mode:           mode,
		Home:           "/home/dev",
		PathEntries:    []string{"/usr/local/bin", "/usr/bin", "/bin"},
		PackageManager: platform.ManagerFor(family),
		Arch:           "amd64",
	})
}
