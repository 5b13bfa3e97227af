package media

import (
	_ "embed"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/pders01/gallery/internal/debuglog"
)

//go:embed viewers.toml
var viewersTOML []byte

// ViewerDefinition describes how an image viewer is invoked.
type ViewerDefinition struct {
	Description string   `toml:"description"`
	Platforms   []string `toml:"platforms"`
	Args        []string `toml:"args,omitempty"`
	ArgsDarwin  []string `toml:"args_darwin,omitempty"`
	ArgsLinux   []string `toml:"args_linux,omitempty"`
	ArgsWindows []string `toml:"args_windows,omitempty"`
}

type ImageTypes struct {
	Extensions  []string `toml:"extensions"`
	URLPatterns []string `toml:"url_patterns"`
}

type viewersFile struct {
	Image     ImageTypes                  `toml:"image"`
	Platforms map[string]string           `toml:"platforms"`
	Viewers   map[string]ViewerDefinition `toml:"viewers"`
}

// Registry holds the known viewers and the image type rules.
type Registry struct {
	viewers   map[string]ViewerDefinition
	images    ImageTypes
	platforms map[string]string
	goos      string
}

// NewRegistry parses the built-in definitions and merges any user files
// found at paths. Unreadable user files are skipped.
func NewRegistry(paths ...string) (*Registry, error) {
	var builtin viewersFile
	if err := toml.Unmarshal(viewersTOML, &builtin); err != nil {
		return nil, fmt.Errorf("parsing viewers.toml: %w", err)
	}

	r := &Registry{
		viewers:   builtin.Viewers,
		images:    builtin.Image,
		platforms: builtin.Platforms,
		goos:      runtime.GOOS,
	}
	if r.viewers == nil {
		r.viewers = make(map[string]ViewerDefinition)
	}

	for _, path := range paths {
		r.merge(path)
	}
	return r, nil
}

// DefaultUserPaths lists where user viewer definitions are looked up.
func DefaultUserPaths() []string {
	paths := []string{"./viewers.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append([]string{filepath.Join(home, ".config", "gallery", "viewers.toml")}, paths...)
	}
	return paths
}

func (r *Registry) merge(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var user viewersFile
	if err := toml.Unmarshal(data, &user); err != nil {
		debuglog.Warnf("ignoring %s: %v", path, err)
		return
	}
	for name, def := range user.Viewers {
		r.viewers[name] = def
	}
	if len(user.Image.Extensions) > 0 {
		r.images.Extensions = append(r.images.Extensions, user.Image.Extensions...)
	}
	if len(user.Image.URLPatterns) > 0 {
		r.images.URLPatterns = append(r.images.URLPatterns, user.Image.URLPatterns...)
	}
	debuglog.Debugf("merged viewer definitions from %s", path)
}

// Viewer returns the definition for name.
func (r *Registry) Viewer(name string) (ViewerDefinition, bool) {
	def, ok := r.viewers[name]
	return def, ok
}

// Command builds the command that shows url with the named viewer. Unknown
// viewers are run with the url as the only argument.
func (r *Registry) Command(name, url string) (*exec.Cmd, error) {
	def, ok := r.viewers[name]
	if !ok {
		return exec.Command(name, url), nil
	}

	supported := false
	for _, p := range def.Platforms {
		if p == r.goos {
			supported = true
			break
		}
	}
	if !supported {
		return nil, fmt.Errorf("%s not supported on %s", name, r.goos)
	}

	args := append(append([]string(nil), r.args(def)...), url)
	return exec.Command(name, args...), nil
}

func (r *Registry) args(def ViewerDefinition) []string {
	switch r.goos {
	case "darwin":
		if len(def.ArgsDarwin) > 0 {
			return def.ArgsDarwin
		}
	case "linux":
		if len(def.ArgsLinux) > 0 {
			return def.ArgsLinux
		}
	case "windows":
		if len(def.ArgsWindows) > 0 {
			return def.ArgsWindows
		}
	}
	return def.Args
}

// IsImage reports whether ref looks like an image by extension or host.
func (r *Registry) IsImage(ref string) bool {
	lower := strings.ToLower(ref)
	if i := strings.IndexAny(lower, "?#"); i != -1 {
		lower = lower[:i]
	}
	if idx := strings.LastIndex(lower, "."); idx != -1 && !strings.Contains(lower[idx:], "/") {
		ext := lower[idx+1:]
		for _, e := range r.images.Extensions {
			if e == ext {
				return true
			}
		}
	}
	for _, p := range r.images.URLPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// DefaultOpener is the platform's generic "open this" command.
func (r *Registry) DefaultOpener() string {
	if o, ok := r.platforms[r.goos]; ok && o != "" {
		return o
	}
	if o, ok := r.platforms["fallback"]; ok && o != "" {
		return o
	}
	return "open"
}
