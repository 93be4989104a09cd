package catalog

import "time"

// catalogDTO is the YAML document.
type catalogDTO struct {
	Steps  []stepDTO  `yaml:"steps" validate:"required,min=1,dive"`
	Checks []checkDTO `yaml:"checks" validate:"dive"`
}

type appliesDTO struct {
	Families []string `yaml:"families" validate:"dive,oneof=debian fedora arch"`
	Modes    []string `yaml:"modes" validate:"dive,mode"`
}

type contentDTO struct {
	Path    string `yaml:"path" validate:"required"`
	Pattern string `yaml:"pattern" validate:"required"`
}

type predicateDTO struct {
	Commands []string     `yaml:"commands" validate:"dive,required"`
	Paths    []string     `yaml:"paths" validate:"dive,required"`
	Globs    []string     `yaml:"globs" validate:"dive,required"`
	Contains []contentDTO `yaml:"contains" validate:"dive"`
}

type linkDTO struct {
	Target string `yaml:"target" validate:"required"`
	Path   string `yaml:"path" validate:"required"`
}

type packagesDTO struct {
	Refresh bool      `yaml:"refresh"`
	Debian  []string  `yaml:"debian" validate:"dive,required"`
	Fedora  []string  `yaml:"fedora" validate:"dive,required"`
	Arch    []string  `yaml:"arch" validate:"dive,required"`
	Links   []linkDTO `yaml:"links" validate:"dive"`
}

type commandDTO struct {
	Name    string   `yaml:"name" validate:"required"`
	Args    []string `yaml:"args"`
	Dir     string   `yaml:"dir"`
	Env     []string `yaml:"env" validate:"dive,contains=="`
	Elevate bool     `yaml:"elevate"`
	Stdout  string   `yaml:"stdout"`
}

type installerDTO struct {
	Kind        string      `yaml:"kind" validate:"required,oneof=script git command"`
	URL         string      `yaml:"url" validate:"required_unless=Kind command,omitempty,url"`
	Interpreter string      `yaml:"interpreter" validate:"required_if=Kind script"`
	Args        []string    `yaml:"args"`
	Env         []string    `yaml:"env" validate:"dive,contains=="`
	Elevate     bool        `yaml:"elevate"`
	Dest        string      `yaml:"dest" validate:"required_if=Kind git"`
	Depth       int         `yaml:"depth" validate:"min=0"`
	Run         *commandDTO `yaml:"run" validate:"required_if=Kind command,omitempty"`
}

type langDTO struct {
	Manager  string   `yaml:"manager" validate:"required,oneof=cargo go pipx npm conda"`
	Packages []string `yaml:"packages" validate:"required,min=1,dive,required"`
	Binaries []string `yaml:"binaries" validate:"dive,required"`
	Args     []string `yaml:"args"`
}

type archiveDTO struct {
	URL             string            `yaml:"url" validate:"required_without=URLs,omitempty,url"`
	URLs            map[string]string `yaml:"urls" validate:"dive,keys,oneof=amd64 arm64 386 arm,endkeys,url"`
	Format          string            `yaml:"format" validate:"required,oneof=tar.gz zip binary"`
	Dest            string            `yaml:"dest" validate:"required"`
	StripComponents int               `yaml:"strip_components" validate:"min=0"`
	Binaries        []string          `yaml:"binaries" validate:"dive,required"`
	Links           []linkDTO         `yaml:"links" validate:"dive"`
	Merge           bool              `yaml:"merge"`
}

type patchDTO struct {
	Path    string `yaml:"path" validate:"required"`
	Mode    string `yaml:"mode" validate:"required,oneof=line block replace toml ini kdl"`
	Line    string `yaml:"line"`
	Block   string `yaml:"block"`
	Pattern string `yaml:"pattern"`
	Section string `yaml:"section"`
	Key     string `yaml:"key"`
	Value   any    `yaml:"value"`
	Create  bool   `yaml:"create"`
}

type stepDTO struct {
	ID          string        `yaml:"id" validate:"required,stepid"`
	Description string        `yaml:"description"`
	Method      string        `yaml:"method" validate:"required,oneof=distro-package binary-installer language-package manual-archive config-patch"`
	AppliesTo   appliesDTO    `yaml:"applies_to"`
	DependsOn   []string      `yaml:"depends_on" validate:"dive,stepid"`
	Satisfied   predicateDTO  `yaml:"satisfied"`
	Timeout     time.Duration `yaml:"timeout" validate:"min=0s"`

	Packages  *packagesDTO  `yaml:"packages"`
	Installer *installerDTO `yaml:"installer"`
	Lang      *langDTO      `yaml:"lang"`
	Archive   *archiveDTO   `yaml:"archive"`
	Patch     *patchDTO     `yaml:"patch"`
}

type expectDTO struct {
	Absent     bool   `yaml:"absent"`
	Pattern    string `yaml:"pattern"`
	MinVersion string `yaml:"min_version"`
}

type checkDTO struct {
	Label     string        `yaml:"label" validate:"required"`
	Kind      string        `yaml:"kind" validate:"required,oneof=command-on-path file-exists directory-exists file-contains-pattern command-runs-successfully"`
	Target    string        `yaml:"target" validate:"required"`
	Args      []string      `yaml:"args"`
	Expect    expectDTO     `yaml:"expect"`
	AppliesTo appliesDTO    `yaml:"applies_to"`
	Timeout   time.Duration `yaml:"timeout" validate:"min=0s"`
}
