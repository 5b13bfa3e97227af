package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/pders01/gallery/internal/config"
	"github.com/pders01/gallery/internal/debuglog"
	"github.com/pders01/gallery/internal/gallery"
	"github.com/pders01/gallery/internal/source"
	"github.com/pders01/gallery/internal/storage"
	"github.com/pders01/gallery/internal/tui"
	"github.com/pders01/gallery/internal/validation"
)

// Version is the version of the application, set at build time
var Version = "dev"

var (
	configPath string
	dbPath     string
	entry      string
	logLevel   string
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:          "gallery",
	Short:        "Browse tagged image galleries in the terminal",
	SilenceUsage: true,
	RunE:         runGallery,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("gallery %s\n", Version)
		fmt.Println("Tag gallery browser")
		fmt.Println("github.com/pders01/gallery")
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configGenCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write the default configuration file",
	Run: func(cmd *cobra.Command, args []string) {
		configFile := configPath
		if configFile == "" {
			configFile = defaultConfigPath()
		}
		if err := config.GenerateDefaultConfig(configFile); err != nil {
			log.Fatalf("Failed to generate config: %v", err)
		}
		fmt.Printf("Generated default configuration at: %s\n", configFile)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file")
	rootCmd.Flags().StringVar(&dbPath, "db", "", "Path to database file (overrides config)")
	rootCmd.Flags().StringVar(&entry, "entry", "", `Initial view; "ranking" ignores the last search`)
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error or off")
	rootCmd.Flags().BoolVar(&quiet, "quiet", false, "Skip startup banner")

	configCmd.AddCommand(configGenCmd)
	rootCmd.AddCommand(versionCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "gallery", "config.toml")
}

func runGallery(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := applyOverrides(cfg); err != nil {
		return err
	}

	if err := debuglog.Setup(debuglog.ParseLogLevel(cfg.Log.Level), cfg.Log.File); err != nil {
		return err
	}
	defer debuglog.Close()

	src, err := source.New(&cfg.Source)
	if err != nil {
		return err
	}

	cache, closeCache := storage.Open(cfg.Database.Path, cfg.Database.Timeout)
	defer closeCache()

	store := gallery.NewStore(src, cache)
	debuglog.With("source", cfg.Source.Kind, "db", cfg.Database.Path).Infof("starting gallery %s", Version)

	tui.ApplyTheme(cfg.UI.Colors)
	if !quiet {
		tui.ShowBanner(os.Stdout, Version)
	}

	app := tui.NewApp(store, cfg, tui.Options{Entry: entry})
	defer app.Close()

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running interface: %w", err)
	}
	return nil
}

// applyOverrides folds command line flags into cfg and validates what the
// user can get wrong.
func applyOverrides(cfg *config.Config) error {
	if dbPath != "" {
		p, err := validation.ValidateDBPath(dbPath)
		if err != nil {
			return fmt.Errorf("invalid --db: %w", err)
		}
		cfg.Database.Path = p
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if entry != "" && entry != source.Ranking {
		return fmt.Errorf("unknown entry %q, only %q is supported", entry, source.Ranking)
	}

	base, err := validation.NewPermissiveURLValidator().ValidateBaseURL(cfg.Source.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid source base_url: %w", err)
	}
	cfg.Source.BaseURL = base
	return nil
}
