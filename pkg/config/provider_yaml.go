package config

import (
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

type configYAML struct {
	Datasets struct {
		Tracks datasetYAML `yaml:"tracks"`
		Mask   datasetYAML `yaml:"mask"`
	} `yaml:"datasets"`
	Matching struct {
		NearestTolerance string `yaml:"nearest-tolerance,omitempty"`
	} `yaml:"matching,omitempty"`
	Storage struct {
		TimescaleDB *struct {
			ConnectionString string `yaml:"connection-string"`
		} `yaml:"timescaledb,omitempty"`
	} `yaml:"storage,omitempty"`
	Server struct {
		ListenAddr string `yaml:"listen-addr,omitempty"`
		Port       int    `yaml:"port,omitempty"`
		Cert       string `yaml:"cert,omitempty"`
		Key        string `yaml:"key,omitempty"`
	} `yaml:"server,omitempty"`
}

type datasetYAML struct {
	Path     string `yaml:"path"`
	Format   string `yaml:"format,omitempty"`
	Variable string `yaml:"variable,omitempty"`
}

// LoadConfig loads the complete configuration from the YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	if y.config != nil {
		return y.config, nil
	}

	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	var raw configYAML
	if err := yaml.Unmarshal(cfgFile, &raw); err != nil {
		return nil, err
	}

	config := &ConfigData{
		Datasets: DatasetsData{
			Tracks: DatasetData(raw.Datasets.Tracks),
			Mask:   DatasetData(raw.Datasets.Mask),
		},
		Matching: MatchingData{NearestTolerance: raw.Matching.NearestTolerance},
		Server: ServerData{
			ListenAddr: raw.Server.ListenAddr,
			Port:       raw.Server.Port,
			Cert:       raw.Server.Cert,
			Key:        raw.Server.Key,
		},
	}
	if raw.Storage.TimescaleDB != nil {
		config.Storage.TimescaleDB = &TimescaleDBData{
			ConnectionString: raw.Storage.TimescaleDB.ConnectionString,
		}
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	y.config = config
	return config, nil
}

// GetDatasets returns the dataset locations
func (y *YAMLProvider) GetDatasets() (*DatasetsData, error) {
	config, err := y.LoadConfig()
	if err != nil {
		return nil, err
	}
	return &config.Datasets, nil
}

// GetStorageConfig returns the result storage configuration
func (y *YAMLProvider) GetStorageConfig() (*StorageData, error) {
	config, err := y.LoadConfig()
	if err != nil {
		return nil, err
	}
	return &config.Storage, nil
}

// GetServerConfig returns the REST API configuration
func (y *YAMLProvider) GetServerConfig() (*ServerData, error) {
	config, err := y.LoadConfig()
	if err != nil {
		return nil, err
	}
	return &config.Server, nil
}

// IsReadOnly returns true since YAML files are edited by hand
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}
