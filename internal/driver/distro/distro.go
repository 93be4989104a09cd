// Package distro installs distribution packages through apt, dnf or pacman.
package distro

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/felixgeelhaar/envira/internal/domain/platform"
	"github.com/felixgeelhaar/envira/internal/domain/step"
	"github.com/felixgeelhaar/envira/internal/driver"
	"github.com/felixgeelhaar/envira/internal/ports"
)

// alreadyInstalledMarkers are printed by the managers when there is
// nothing to do for some package.
var alreadyInstalledMarkers = []string{
	"is already the newest version",
	"is already installed",
	"is up to date",
	"Nothing to do",
	"there is nothing to do",
}

// Driver implements driver.Driver for step.MethodDistroPackage.
// A Driver refreshes each package index at most once over its lifetime, so
// create one per run. Installs are serialized: the managers hold a global
// database lock.
type Driver struct {
	driver.Base

	mu        sync.Mutex
	refreshed map[platform.PackageManager]bool
}

// New creates a distro package driver.
func New(runner ports.CommandRunner, fs ports.FileSystem) *Driver {
	return &Driver{
		Base:      driver.Base{Runner: runner, FS: fs},
		refreshed: make(map[platform.PackageManager]bool),
	}
}

// Method returns step.MethodDistroPackage.
func (d *Driver) Method() step.Method {
	return step.MethodDistroPackage
}

// IsSatisfied queries the package database for every package. Steps with
// no packages for the family never reach the driver.
func (d *Driver) IsSatisfied(ctx context.Context, s step.Step, f platform.Facts) (bool, error) {
	if ok, handled := d.CheckPredicate(s, f); handled {
		return ok, nil
	}
	spec := s.Spec.Packages
	names := spec.Names[f.Family()]
	if len(names) == 0 {
		return false, nil
	}
	pm := managerFor(f)
	if pm == platform.PMNone {
		return false, nil
	}
	ok, err := d.allInstalled(ctx, pm, names)
	if err != nil || !ok {
		return false, err
	}
	return d.LinksInPlace(f, spec.Links), nil
}

func (d *Driver) allInstalled(ctx context.Context, pm platform.PackageManager, names []string) (bool, error) {
	for _, name := range names {
		installed, err := d.installed(ctx, pm, name)
		if err != nil || !installed {
			return false, err
		}
	}
	return true, nil
}

func (d *Driver) installed(ctx context.Context, pm platform.PackageManager, name string) (bool, error) {
	switch pm {
	case platform.PMApt:
		result, ok, err := driver.Probe(ctx, d.Runner, ports.Command{
			Name: "dpkg-query",
			Args: []string{"-W", "-f=${db:Status-Status}", name},
		})
		if err != nil || !ok {
			return false, err
		}
		return strings.TrimSpace(result.Stdout) == "installed", nil
	case platform.PMDnf:
		_, ok, err := driver.Probe(ctx, d.Runner, ports.Command{Name: "rpm", Args: []string{"-q", "--whatprovides", name}})
		return ok, err
	case platform.PMPacman:
		_, ok, err := driver.Probe(ctx, d.Runner, ports.Command{Name: "pacman", Args: []string{"-Q", name}})
		if err != nil || ok {
			return ok, err
		}
		// Groups such as base-devel are not packages.
		_, ok, err = driver.Probe(ctx, d.Runner, ports.Command{Name: "pacman", Args: []string{"-Qg", name}})
		return ok, err
	default:
		return false, nil
	}
}

// Execute installs the packages for the host's family.
func (d *Driver) Execute(ctx context.Context, s step.Step, f platform.Facts) driver.Result {
	spec := s.Spec.Packages
	names := spec.Names[f.Family()]
	if len(names) == 0 {
		return driver.Failed(fmt.Errorf("%w: no packages for %s", driver.ErrPermanent, f.Family()))
	}
	pm := managerFor(f)
	if pm == platform.PMNone {
		return driver.Failed(fmt.Errorf("%w: no package manager for %s", driver.ErrToolNotFound, f.Family()))
	}
	if f.Mode() != platform.ModeElevated && !f.IsRoot() {
		return driver.Failed(fmt.Errorf("%w: %s needs system mode", driver.ErrPermanent, pm))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if spec.Refresh {
		if err := d.refresh(ctx, pm, f); err != nil {
			if logger := ports.LoggerFromContext(ctx); logger != nil {
				logger.Warn(ctx, "package index refresh failed", ports.F("manager", pm), ports.Err(err))
			}
		}
	}

	cmd := installCommand(pm, names, spec.Refresh)
	result, err := driver.Run(ctx, d.Runner, f.Elevate(cmd))
	if err != nil {
		// A non-zero exit is only forgiven when the manager said there was
		// nothing to do and every package is in the database.
		if !alreadyInstalled(result) {
			return driver.Failed(err)
		}
		if ok, qerr := d.allInstalled(ctx, pm, names); qerr != nil || !ok {
			return driver.Failed(err)
		}
	}

	if err := d.EnsureLinks(ctx, f, spec.Links); err != nil {
		return driver.Failed(err)
	}
	return driver.Succeeded("installed %s via %s", strings.Join(names, " "), pm)
}

// refresh updates the package index once per manager. Callers hold d.mu.
func (d *Driver) refresh(ctx context.Context, pm platform.PackageManager, f platform.Facts) error {
	if d.refreshed[pm] {
		return nil
	}

	var cmd ports.Command
	switch pm {
	case platform.PMApt:
		cmd = ports.Command{Name: "apt-get", Args: []string{"update"}, Env: []string{"DEBIAN_FRONTEND=noninteractive"}}
	case platform.PMDnf:
		cmd = ports.Command{Name: "dnf", Args: []string{"makecache"}}
	default:
		// pacman refreshes as part of the install (-Sy).
		d.refreshed[pm] = true
		return nil
	}
	if _, err := driver.Run(ctx, d.Runner, f.Elevate(cmd)); err != nil {
		return err
	}
	d.refreshed[pm] = true
	return nil
}

func installCommand(pm platform.PackageManager, names []string, refresh bool) ports.Command {
	switch pm {
	case platform.PMApt:
		return ports.Command{
			Name: "apt-get",
			Args: append([]string{"install", "-y"}, names...),
			Env:  []string{"DEBIAN_FRONTEND=noninteractive"},
		}
	case platform.PMDnf:
		return ports.Command{Name: "dnf", Args: append([]string{"install", "-y"}, names...)}
	default:
		flags := "-S"
		if refresh {
			flags = "-Sy"
		}
		return ports.Command{Name: "pacman", Args: append([]string{flags, "--needed", "--noconfirm"}, names...)}
	}
}

func managerFor(f platform.Facts) platform.PackageManager {
	if native := platform.ManagerFor(f.Family()); native != platform.PMNone {
		return native
	}
	return f.PackageManager()
}

func alreadyInstalled(result ports.CommandResult) bool {
	out := result.Output()
	for _, marker := range alreadyInstalledMarkers {
		if strings.Contains(out, marker) {
			return true
		}
	}
	return false
}

// Ensure Driver implements driver.Driver.
var _ driver.Driver = (*Driver)(nil)
