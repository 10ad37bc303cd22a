package generate

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/jellydator/ttlcache/v3"
)

// Project describes the project an edited file belongs to.
type Project struct {
	Dir string
	// Root is the git work tree root, or "" outside a repository.
	Root string
	// Files lists the entries of Dir.
	Files string
	// Manifests maps a label such as "go.mod" to a one-line summary.
	Manifests map[string]string
}

const (
	projectTTL       = 10 * time.Minute
	gatherTimeout    = 5 * time.Second
	manifestMaxBytes = 512
	listingMaxBytes  = 512
)

// ProjectCache is a TTL cache of Project entries keyed by directory.
type ProjectCache struct {
	log   *slog.Logger
	cache *ttlcache.Cache[string, *Project]
}

// NewProjectCache creates an empty cache.
func NewProjectCache(log *slog.Logger) *ProjectCache {
	if log == nil {
		log = slog.Default()
	}
	c := ttlcache.New[string, *Project](
		ttlcache.WithTTL[string, *Project](projectTTL),
		ttlcache.WithDisableTouchOnHit[string, *Project](),
	)
	go c.Start()
	return &ProjectCache{log: log, cache: c}
}

// Close stops the cache expiration loop.
func (pc *ProjectCache) Close() {
	pc.cache.Stop()
}

// Get returns the cached project of dir, or nil.
func (pc *ProjectCache) Get(dir string) *Project {
	item := pc.cache.Get(dir)
	if item == nil {
		return nil
	}
	return item.Value()
}

// Gather inspects dir and caches the result.
func (pc *ProjectCache) Gather(ctx context.Context, dir string) *Project {
	ctx, cancel := context.WithTimeout(ctx, gatherTimeout)
	defer cancel()

	p := &Project{
		Dir:       dir,
		Root:      strings.TrimSpace(runCmd(ctx, dir, "git", "rev-parse", "--show-toplevel")),
		Files:     listDir(dir),
		Manifests: make(map[string]string),
	}
	gatherManifests(dir, p.Manifests)
	if p.Root != "" && p.Root != dir {
		gatherManifests(p.Root, p.Manifests)
	}

	pc.cache.Set(dir, p, ttlcache.DefaultTTL)
	pc.log.Debug("gathered project context", "dir", dir, "root", p.Root)
	return p
}

// runCmd runs a command and returns its stdout, or "" on error.
func runCmd(ctx context.Context, dir string, name string, args ...string) string {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return string(out)
}

func listDir(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	return truncate(strings.Join(names, " "), listingMaxBytes)
}

type manifest struct {
	file    string
	label   string
	extract func(content string) string
}

var manifests = []manifest{
	{"go.mod", "go.mod", extractGoMod},
	{"package.json", "package.json scripts", extractPackageScripts},
	{"Cargo.toml", "Cargo.toml", extractCargo},
	{"pyproject.toml", "pyproject.toml", extractPyproject},
	{"Makefile", "Makefile targets", extractMakeTargets},
}

// gatherManifests adds summaries of the manifests found in dir, keeping
// entries already present.
func gatherManifests(dir string, out map[string]string) {
	for _, m := range manifests {
		if _, ok := out[m.label]; ok {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, m.file))
		if err != nil {
			continue
		}
		if s := m.extract(string(data)); s != "" {
			out[m.label] = truncate(s, manifestMaxBytes)
		}
	}
}

// extractGoMod returns the module path and Go version lines.
func extractGoMod(content string) string {
	var parts []string
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "module ") || (strings.HasPrefix(line, "go ") && !strings.HasPrefix(line, "go.")) {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, ", ")
}

// extractPackageScripts returns the "scripts" of a package.json.
func extractPackageScripts(content string) string {
	var pkg struct {
		Scripts map[string]string `json:"scripts"`
	}
	if err := json.Unmarshal([]byte(content), &pkg); err != nil || len(pkg.Scripts) == 0 {
		return ""
	}
	names := make([]string, 0, len(pkg.Scripts))
	for k := range pkg.Scripts {
		names = append(names, k)
	}
	slices.Sort(names)
	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = k + ": " + pkg.Scripts[k]
	}
	return strings.Join(parts, ", ")
}

type cargoToml struct {
	Package struct {
		Name    string `toml:"name"`
		Edition string `toml:"edition"`
	} `toml:"package"`
}

// extractCargo returns the crate name and edition.
func extractCargo(content string) string {
	var cargo cargoToml
	if _, err := toml.Decode(content, &cargo); err != nil || cargo.Package.Name == "" {
		return ""
	}
	s := fmt.Sprintf(`name = "%s"`, cargo.Package.Name)
	if cargo.Package.Edition != "" {
		s += fmt.Sprintf(`, edition = "%s"`, cargo.Package.Edition)
	}
	return s
}

type pyprojectToml struct {
	Project struct {
		Name           string `toml:"name"`
		RequiresPython string `toml:"requires-python"`
	} `toml:"project"`
}

// extractPyproject returns the project name and Python requirement.
func extractPyproject(content string) string {
	var py pyprojectToml
	if _, err := toml.Decode(content, &py); err != nil || py.Project.Name == "" {
		return ""
	}
	s := fmt.Sprintf(`name = "%s"`, py.Project.Name)
	if py.Project.RequiresPython != "" {
		s += fmt.Sprintf(`, requires-python = "%s"`, py.Project.RequiresPython)
	}
	return s
}

// extractMakeTargets returns the plain target names of a Makefile.
func extractMakeTargets(content string) string {
	var targets []string
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.ContainsRune("\t#. ", rune(line[0])) {
			continue
		}
		name, rest, ok := strings.Cut(line, ":")
		if !ok || name == "" || strings.HasPrefix(rest, "=") || strings.ContainsAny(name, "$% =") {
			continue
		}
		if !slices.Contains(targets, name) {
			targets = append(targets, name)
		}
	}
	return strings.Join(targets, ", ")
}

// truncate truncates s to maxBytes, appending "..." if truncated.
func truncate(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	return s[:maxBytes] + "..."
}
