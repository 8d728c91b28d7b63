package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chrissnell/stormtrack/internal/app"
	"github.com/chrissnell/stormtrack/internal/constants"
	"github.com/chrissnell/stormtrack/internal/log"
	"github.com/chrissnell/stormtrack/pkg/config"
)

// linkSummary is the JSON line printed for each linked track
type linkSummary struct {
	Track      int    `json:"track"`
	Identifier int    `json:"identifier"`
	Overlap    int    `json:"overlap"`
	Selected   string `json:"selected,omitempty"`
	MaskStep   int    `json:"mask_step"`
	PixelCount int    `json:"pixel_count"`
}

func main() {
	cfgFile := flag.String("config", "config.yaml", "Path to configuration source:\n\t\t\t  YAML: config.yaml\n\t\t\t  SQLite: config.db\n\t\t\t  Use 'config-convert' tool to convert YAML→SQLite")
	cfgBackend := flag.String("config-backend", "yaml", "Configuration backend type: 'yaml' for YAML files, 'sqlite' for SQLite databases")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	track := flag.Int("track", app.AllTracks, "Track index to link; -1 links every track")
	when := flag.String("time", "", "Mask timestamp to link at, e.g. 2020-02-01T03 (default: first aligned step)")
	serve := flag.Bool("serve", false, "Serve the REST API instead of linking once")
	flag.Parse()

	if *showVersion {
		fmt.Printf("stormtrack %s\n", constants.Version)
		os.Exit(0)
	}

	// Set up logging
	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Load configuration
	cfgData, err := loadConfig(*cfgFile, *cfgBackend)
	if err != nil {
		log.Errorf("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	application := app.New(cfgData, log.GetSugaredLogger())

	if *serve {
		if err := application.Serve(context.Background()); err != nil {
			log.Errorf("Application error: %v", err)
			os.Exit(1)
		}
		return
	}

	results, err := application.Link(context.Background(), *track, *when)
	enc := json.NewEncoder(os.Stdout)
	for _, r := range results {
		s := linkSummary{
			Track:      r.Track,
			Identifier: r.Identifier,
			Overlap:    r.Alignment.Overlap(),
			MaskStep:   r.MaskStep,
			PixelCount: r.PixelCount(),
		}
		if r.Selected.IsValid() {
			s.Selected = r.Selected.String()
		}
		enc.Encode(s)
	}
	if err != nil {
		log.Errorf("Link failed: %v", err)
		os.Exit(1)
	}
}

func loadConfig(cfgFile, cfgBackend string) (*config.ConfigData, error) {
	filename, _ := filepath.Abs(cfgFile)

	var provider config.ConfigProvider
	var err error

	switch cfgBackend {
	case "yaml":
		provider = config.NewYAMLProvider(filename)
	case "sqlite":
		provider, err = config.NewSQLiteProvider(filename)
		if err != nil {
			return nil, fmt.Errorf("error creating SQLite provider: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported configuration backend: %s. Use 'yaml' or 'sqlite'", cfgBackend)
	}
	defer provider.Close()

	cfgData, err := provider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error reading config file. Did you pass the -config flag? Run with -h for help: %w", err)
	}

	// STORMTRACK_* environment variables take precedence over the file
	if err := cfgData.ApplyEnv(nil); err != nil {
		return nil, err
	}

	return cfgData, nil
}
