package config

import (
	"database/sql"
	"embed"
	"fmt"
	"strconv"

	"github.com/chrissnell/stormtrack/pkg/migrate"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const (
	settingNearestTolerance = "matching.nearest_tolerance"
	settingTimescaleDB      = "storage.timescaledb.connection_string"
	settingListenAddr       = "server.listen_addr"
	settingPort             = "server.port"
	settingCert             = "server.cert"
	settingKey              = "server.key"
)

// NewMigrator returns a migrator for the embedded configuration schema
func NewMigrator(db *sql.DB, logger *zap.SugaredLogger) *migrate.Migrator {
	return migrate.NewMigrator(db, migrate.NewFSProvider(migrationFS, "migrations", ""), logger)
}

// SQLiteProvider implements ConfigProvider for SQLite database configuration
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider opens (creating if needed) a SQLite configuration
// database and brings its schema up to date
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	if err := NewMigrator(db, nil).MigrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate configuration schema: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// LoadConfig loads the complete configuration from SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	config := &ConfigData{}

	datasets, err := s.GetDatasets()
	if err != nil {
		return nil, fmt.Errorf("failed to load datasets: %w", err)
	}
	config.Datasets = *datasets

	storage, err := s.GetStorageConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}
	config.Storage = *storage

	server, err := s.GetServerConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load server config: %w", err)
	}
	config.Server = *server

	settings, err := s.settings()
	if err != nil {
		return nil, err
	}
	config.Matching.NearestTolerance = settings[settingNearestTolerance]

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// GetDatasets returns dataset locations from the database
func (s *SQLiteProvider) GetDatasets() (*DatasetsData, error) {
	rows, err := s.db.Query(`SELECT role, path, format, variable FROM datasets`)
	if err != nil {
		return nil, fmt.Errorf("failed to query datasets: %w", err)
	}
	defer rows.Close()

	datasets := &DatasetsData{}
	for rows.Next() {
		var role string
		var ds DatasetData
		if err := rows.Scan(&role, &ds.Path, &ds.Format, &ds.Variable); err != nil {
			return nil, fmt.Errorf("failed to scan dataset row: %w", err)
		}
		switch role {
		case "tracks":
			datasets.Tracks = ds
		case "mask":
			datasets.Mask = ds
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dataset rows: %w", err)
	}
	return datasets, nil
}

// GetStorageConfig returns the result storage configuration
func (s *SQLiteProvider) GetStorageConfig() (*StorageData, error) {
	settings, err := s.settings()
	if err != nil {
		return nil, err
	}
	storage := &StorageData{}
	if conn, ok := settings[settingTimescaleDB]; ok {
		storage.TimescaleDB = &TimescaleDBData{ConnectionString: conn}
	}
	return storage, nil
}

// GetServerConfig returns the REST API configuration
func (s *SQLiteProvider) GetServerConfig() (*ServerData, error) {
	settings, err := s.settings()
	if err != nil {
		return nil, err
	}
	server := &ServerData{
		ListenAddr: settings[settingListenAddr],
		Cert:       settings[settingCert],
		Key:        settings[settingKey],
	}
	if p, ok := settings[settingPort]; ok && p != "" {
		server.Port, err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", settingPort, p, err)
		}
	}
	return server, nil
}

func (s *SQLiteProvider) settings() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		settings[k] = v
	}
	return settings, rows.Err()
}

// SaveConfig replaces the stored configuration with config
func (s *SQLiteProvider) SaveConfig(config *ConfigData) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM datasets`); err != nil {
		return fmt.Errorf("failed to clear datasets: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM settings`); err != nil {
		return fmt.Errorf("failed to clear settings: %w", err)
	}

	for role, ds := range map[string]DatasetData{"tracks": config.Datasets.Tracks, "mask": config.Datasets.Mask} {
		if ds.Path == "" {
			continue
		}
		if _, err := tx.Exec(`INSERT INTO datasets (role, path, format, variable) VALUES (?, ?, ?, ?)`,
			role, ds.Path, ds.Format, ds.Variable); err != nil {
			return fmt.Errorf("failed to insert %s dataset: %w", role, err)
		}
	}

	settings := map[string]string{
		settingNearestTolerance: config.Matching.NearestTolerance,
		settingListenAddr:       config.Server.ListenAddr,
		settingCert:             config.Server.Cert,
		settingKey:              config.Server.Key,
	}
	if config.Server.Port != 0 {
		settings[settingPort] = strconv.Itoa(config.Server.Port)
	}
	if config.Storage.TimescaleDB != nil {
		settings[settingTimescaleDB] = config.Storage.TimescaleDB.ConnectionString
	}
	for k, v := range settings {
		if v == "" && k != settingTimescaleDB {
			continue
		}
		if _, err := tx.Exec(`INSERT INTO settings (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("failed to insert setting %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit configuration: %w", err)
	}
	return nil
}

// IsReadOnly returns false since SQLite configuration can be rewritten
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	return s.db.Close()
}
