package media

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/pders01/gallery/internal/config"
	"github.com/pders01/gallery/internal/debuglog"
	"github.com/pders01/gallery/internal/validation"
)

var ErrNoViewer = errors.New("no application found to open image")

// Launcher opens image references in an external program.
type Launcher struct {
	imageViewer   string
	defaultOpener string
	registry      *Registry
	validator     *validation.URLValidator

	// start runs cmd without waiting for it. Replaced in tests.
	start func(cmd *exec.Cmd) error
}

func NewLauncher(cfg *config.MediaConfig) *Launcher {
	registry, err := NewRegistry(DefaultUserPaths()...)
	if err != nil {
		debuglog.Errorf("loading viewer definitions: %v", err)
		registry = &Registry{viewers: map[string]ViewerDefinition{}, goos: runtime.GOOS}
	}
	return newLauncher(cfg, registry, exec.LookPath)
}

func newLauncher(cfg *config.MediaConfig, registry *Registry, lookPath func(string) (string, error)) *Launcher {
	l := &Launcher{
		registry:      registry,
		defaultOpener: cfg.DefaultOpener,
		validator:     validation.NewURLValidator(),
		start:         startDetached,
	}
	if l.defaultOpener == "" {
		l.defaultOpener = registry.DefaultOpener()
	}

	var candidates []string
	switch registry.goos {
	case "darwin":
		candidates = cfg.Darwin
	case "linux":
		candidates = cfg.Linux
	case "windows":
		candidates = cfg.Windows
	default:
		candidates = cfg.Darwin
	}
	l.imageViewer = findCommand(lookPath, candidates...)
	if l.imageViewer == "" {
		l.imageViewer = l.defaultOpener
	}
	return l
}

// ImageViewer is the program images are handed to.
func (l *Launcher) ImageViewer() string {
	return l.imageViewer
}

// Command returns the command Open would start for ref.
func (l *Launcher) Command(ref string) (*exec.Cmd, error) {
	name := l.defaultOpener
	if l.registry.IsImage(ref) {
		name = l.imageViewer
	}
	if name == "" {
		return nil, ErrNoViewer
	}

	cmd, err := l.registry.Command(name, ref)
	if err != nil {
		debuglog.Debugf("falling back to bare %s: %v", name, err)
		cmd = exec.Command(name, ref)
	}
	return cmd, nil
}

// Open starts the viewer for ref and returns without waiting for it to exit.
func (l *Launcher) Open(ref string) error {
	if _, err := l.validator.ValidateImageRef(ref); err != nil {
		return fmt.Errorf("refusing to open %q: %w", ref, err)
	}
	cmd, err := l.Command(ref)
	if err != nil {
		return err
	}
	if err := l.start(cmd); err != nil {
		return fmt.Errorf("failed to start %s: %w", cmd.Path, err)
	}
	debuglog.With("viewer", cmd.Path).Infof("opened %s", ref)
	return nil
}

func startDetached(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		_ = cmd.Wait()
	}()
	return nil
}

func findCommand(lookPath func(string) (string, error), commands ...string) string {
	for _, cmd := range commands {
		if _, err := lookPath(cmd); err == nil {
			return cmd
		}
	}
	return ""
}
