// Package catalog loads the step catalog and the verification checks,
// either from the copy embedded in the binary or from a file.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/envira/internal/domain/config"
	"github.com/felixgeelhaar/envira/internal/domain/platform"
	"github.com/felixgeelhaar/envira/internal/domain/step"
	"github.com/felixgeelhaar/envira/internal/domain/verify"
	"github.com/felixgeelhaar/envira/internal/validation"
)

//go:embed catalog.yaml
var embeddedYAML []byte

// EmbeddedSource names the built-in catalog in errors and listings.
const EmbeddedSource = "built-in catalog"

// Catalog is a validated set of steps and checks. Steps keep declaration
// order.
type Catalog struct {
	Source string
	Steps  []step.Step
	Checks []verify.Check
}

// Load parses the embedded catalog.
func Load() (*Catalog, error) {
	return Parse(embeddedYAML, EmbeddedSource)
}

// LoadFile parses a catalog file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, config.NewCatalogNotFoundError(path)
		}
		return nil, config.NewUserError(config.ErrCodeCatalogNotFound, "cannot read catalog file").
			WithContext(path).WithUnderlying(err)
	}
	return Parse(data, path)
}

// Parse decodes, validates and converts a catalog document. Field errors
// come back as a *config.ErrorList; dependency errors as a *step.StepError.
func Parse(data []byte, source string) (*Catalog, error) {
	var dto catalogDTO
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&dto); err != nil {
		return nil, config.NewYAMLParseError(config.ErrCodeCatalogParse, source, err)
	}
	if err := config.NewValidator().Struct(dto, ""); err != nil {
		return nil, err
	}

	cat := &Catalog{Source: source}
	errs := config.NewErrorList()
	for i, d := range dto.Steps {
		s, err := toStep(d)
		if err == nil {
			err = checkArguments(s)
		}
		if err != nil {
			errs.Add(invalid(fmt.Sprintf("steps[%d]", i), d.ID, err))
			continue
		}
		cat.Steps = append(cat.Steps, s)
	}
	for i, d := range dto.Checks {
		c, err := toCheck(d)
		if err == nil {
			err = c.Validate()
		}
		if err != nil {
			errs.Add(invalid(fmt.Sprintf("checks[%d]", i), d.Label, err))
			continue
		}
		cat.Checks = append(cat.Checks, c)
	}
	if errs.HasErrors() {
		return nil, errs
	}

	if _, err := step.BuildGraph(cat.Steps); err != nil {
		return nil, err
	}
	return cat, nil
}

// Step returns the step with the given ID.
func (c *Catalog) Step(id step.ID) (step.Step, bool) {
	for _, s := range c.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return step.Step{}, false
}

// Ordered returns the steps in execution order.
func (c *Catalog) Ordered() ([]step.Step, error) {
	g, err := step.BuildGraph(c.Steps)
	if err != nil {
		return nil, err
	}
	return g.Order()
}

func invalid(field, name string, err error) *config.UserError {
	ue := config.NewUserError(config.ErrCodeCatalogInvalid, fmt.Sprintf("%s: %s", name, cause(err))).
		WithContext(field).
		WithUnderlying(err)
	var se *step.StepError
	if errors.As(err, &se) && se.Suggestion != "" {
		ue = ue.WithSuggestion(se.Suggestion)
	}
	return ue
}

// cause drops the StepError wrapper so messages do not repeat the ID.
func cause(err error) string {
	var se *step.StepError
	if errors.As(err, &se) {
		return se.Message
	}
	return err.Error()
}

func toStep(d stepDTO) (step.Step, error) {
	id, err := step.NewID(d.ID)
	if err != nil {
		return step.Step{}, err
	}
	applies, err := toApplicability(d.AppliesTo)
	if err != nil {
		return step.Step{}, err
	}
	deps := make([]step.ID, 0, len(d.DependsOn))
	for _, raw := range d.DependsOn {
		dep, err := step.NewID(raw)
		if err != nil {
			return step.Step{}, err
		}
		deps = append(deps, dep)
	}

	s := step.Step{
		ID:          id,
		Description: d.Description,
		Method:      step.Method(d.Method),
		AppliesTo:   applies,
		DependsOn:   deps,
		Satisfied:   toPredicate(d.Satisfied),
		Timeout:     d.Timeout,
		Spec: step.Spec{
			Packages:  toPackages(d.Packages),
			Installer: toInstaller(d.Installer),
			Lang:      toLang(d.Lang),
			Archive:   toArchive(d.Archive),
			Patch:     toPatch(d.Patch),
		},
	}
	return s, s.Validate()
}

// checkArguments rejects names that end up as command arguments but do
// not look like what the package manager expects.
func checkArguments(s step.Step) error {
	spec := s.Spec
	if spec.Packages != nil {
		for _, names := range spec.Packages.Names {
			for _, name := range names {
				if err := validation.PackageName(name); err != nil {
					return err
				}
			}
		}
	}
	if spec.Lang != nil {
		for _, name := range spec.Lang.Packages {
			if err := validation.LangPackage(string(spec.Lang.Manager), name); err != nil {
				return err
			}
		}
	}
	if spec.Installer != nil && spec.Installer.Kind == step.InstallerGit {
		if err := validation.GitURL(spec.Installer.URL); err != nil {
			return err
		}
	}
	if spec.Patch != nil && spec.Patch.Mode == step.PatchINI {
		if v, ok := spec.Patch.Value.(string); ok {
			if err := validation.ConfigValue(v); err != nil {
				return err
			}
		}
	}
	return nil
}

func toApplicability(d appliesDTO) (step.Applicability, error) {
	var a step.Applicability
	for _, raw := range d.Families {
		f, err := platform.ParseFamily(raw)
		if err != nil {
			return a, err
		}
		a.Families = append(a.Families, f)
	}
	for _, raw := range d.Modes {
		m, err := platform.ParsePrivilegeMode(raw)
		if err != nil {
			return a, err
		}
		a.Modes = append(a.Modes, m)
	}
	return a, nil
}

func toPredicate(d predicateDTO) step.Predicate {
	p := step.Predicate{Commands: d.Commands, Paths: d.Paths, Globs: d.Globs}
	for _, c := range d.Contains {
		p.Contains = append(p.Contains, step.ContentMatch{Path: c.Path, Pattern: c.Pattern})
	}
	return p
}

func toLinks(in []linkDTO) []step.Link {
	var out []step.Link
	for _, l := range in {
		out = append(out, step.Link{Target: l.Target, Path: l.Path})
	}
	return out
}

func toPackages(d *packagesDTO) *step.PackageSpec {
	if d == nil {
		return nil
	}
	names := make(map[platform.Family][]string)
	for family, list := range map[platform.Family][]string{
		platform.FamilyDebian: d.Debian,
		platform.FamilyFedora: d.Fedora,
		platform.FamilyArch:   d.Arch,
	} {
		if len(list) > 0 {
			names[family] = list
		}
	}
	return &step.PackageSpec{Names: names, Refresh: d.Refresh, Links: toLinks(d.Links)}
}

func toCommand(d *commandDTO) *step.CommandSpec {
	if d == nil {
		return nil
	}
	return &step.CommandSpec{Name: d.Name, Args: d.Args, Dir: d.Dir, Env: d.Env, Elevate: d.Elevate, Stdout: d.Stdout}
}

func toInstaller(d *installerDTO) *step.InstallerSpec {
	if d == nil {
		return nil
	}
	return &step.InstallerSpec{
		Kind:        step.InstallerKind(d.Kind),
		URL:         d.URL,
		Interpreter: d.Interpreter,
		Args:        d.Args,
		Env:         d.Env,
		Elevate:     d.Elevate,
		Dest:        d.Dest,
		Depth:       d.Depth,
		Run:         toCommand(d.Run),
	}
}

func toLang(d *langDTO) *step.LangSpec {
	if d == nil {
		return nil
	}
	return &step.LangSpec{
		Manager:  step.LangManager(d.Manager),
		Packages: d.Packages,
		Binaries: d.Binaries,
		Args:     d.Args,
	}
}

func toArchive(d *archiveDTO) *step.ArchiveSpec {
	if d == nil {
		return nil
	}
	return &step.ArchiveSpec{
		URL:             d.URL,
		URLs:            d.URLs,
		Format:          step.ArchiveFormat(d.Format),
		Dest:            d.Dest,
		StripComponents: d.StripComponents,
		Binaries:        d.Binaries,
		Links:           toLinks(d.Links),
		Merge:           d.Merge,
	}
}

func toPatch(d *patchDTO) *step.PatchSpec {
	if d == nil {
		return nil
	}
	return &step.PatchSpec{
		Path:    d.Path,
		Mode:    step.PatchMode(d.Mode),
		Line:    d.Line,
		Block:   d.Block,
		Pattern: d.Pattern,
		Section: d.Section,
		Key:     d.Key,
		Value:   d.Value,
		Create:  d.Create,
	}
}

func toCheck(d checkDTO) (verify.Check, error) {
	kind, err := verify.ParseKind(d.Kind)
	if err != nil {
		return verify.Check{}, err
	}
	applies, err := toApplicability(d.AppliesTo)
	if err != nil {
		return verify.Check{}, err
	}
	return verify.Check{
		Label:  d.Label,
		Kind:   kind,
		Target: d.Target,
		Args:   d.Args,
		Expected: verify.Expectation{
			Absent:     d.Expect.Absent,
			Pattern:    d.Expect.Pattern,
			MinVersion: d.Expect.MinVersion,
		},
		AppliesTo: applies,
		Timeout:   d.Timeout,
	}, nil
}
