package config

import (
	"fmt"
	"time"
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetDatasets() (*DatasetsData, error)
	GetStorageConfig() (*StorageData, error)
	GetServerConfig() (*ServerData, error)

	IsReadOnly() bool
	Close() error
}

// Dataset formats understood by the readers
const (
	FormatTrackFile  = "trackfile"
	FormatChunkStore = "chunkstore"
)

const (
	defaultMaskVariable = "mcs_mask"
	defaultListenAddr   = "0.0.0.0"
	defaultPort         = 8080
)

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Datasets DatasetsData `json:"datasets"`
	Matching MatchingData `json:"matching,omitempty"`
	Storage  StorageData  `json:"storage,omitempty"`
	Server   ServerData   `json:"server,omitempty"`
}

// DatasetsData locates the two datasets being joined
type DatasetsData struct {
	Tracks DatasetData `json:"tracks"`
	Mask   DatasetData `json:"mask"`
}

// DatasetData locates one dataset on disk
type DatasetData struct {
	Path   string `json:"path"`
	Format string `json:"format,omitempty"`
	// Variable names the mask variable; unused for track datasets
	Variable string `json:"variable,omitempty"`
}

// MatchingData controls nearest-timestep selection in the mask dataset
type MatchingData struct {
	// NearestTolerance is a Go duration string; empty means unlimited
	NearestTolerance string `json:"nearest_tolerance,omitempty"`
}

// StorageData holds the configuration for result storage backends
type StorageData struct {
	TimescaleDB *TimescaleDBData `json:"timescaledb,omitempty"`
}

type TimescaleDBData struct {
	ConnectionString string `json:"connection_string"`
}

// ServerData configures the REST API
type ServerData struct {
	ListenAddr string `json:"listen_addr,omitempty"`
	Port       int    `json:"port,omitempty"`
	Cert       string `json:"cert,omitempty"`
	Key        string `json:"key,omitempty"`
}

// Tolerance parses NearestTolerance
func (m MatchingData) Tolerance() (time.Duration, error) {
	if m.NearestTolerance == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(m.NearestTolerance)
	if err != nil {
		return 0, fmt.Errorf("invalid matching.nearest_tolerance %q: %w", m.NearestTolerance, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("matching.nearest_tolerance must not be negative")
	}
	return d, nil
}

// ApplyDefaults fills in optional settings
func (c *ConfigData) ApplyDefaults() {
	if c.Datasets.Tracks.Format == "" {
		c.Datasets.Tracks.Format = FormatTrackFile
	}
	if c.Datasets.Mask.Format == "" {
		c.Datasets.Mask.Format = FormatChunkStore
	}
	if c.Datasets.Mask.Variable == "" {
		c.Datasets.Mask.Variable = defaultMaskVariable
	}
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = defaultListenAddr
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
}

// Validate checks that the configuration can be used
func (c *ConfigData) Validate() error {
	if c.Datasets.Tracks.Path == "" {
		return fmt.Errorf("datasets.tracks.path is required")
	}
	if c.Datasets.Mask.Path == "" {
		return fmt.Errorf("datasets.mask.path is required")
	}
	for name, ds := range map[string]DatasetData{"tracks": c.Datasets.Tracks, "mask": c.Datasets.Mask} {
		switch ds.Format {
		case FormatTrackFile, FormatChunkStore:
		default:
			return fmt.Errorf("datasets.%s.format %q is not one of %s, %s", name, ds.Format, FormatTrackFile, FormatChunkStore)
		}
	}
	if c.Datasets.Mask.Format != FormatChunkStore {
		return fmt.Errorf("datasets.mask.format must be %s; track files carry no time axis", FormatChunkStore)
	}
	if _, err := c.Matching.Tolerance(); err != nil {
		return err
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if (c.Server.Cert == "") != (c.Server.Key == "") {
		return fmt.Errorf("server.cert and server.key must be set together")
	}
	if c.Storage.TimescaleDB != nil && c.Storage.TimescaleDB.ConnectionString == "" {
		return fmt.Errorf("storage.timescaledb.connection_string is required when timescaledb is configured")
	}
	return nil
}
