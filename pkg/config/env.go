package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "STORMTRACK_"

// envOverrides lists the settings that may be replaced from the environment,
// e.g. STORMTRACK_MASK_PATH or STORMTRACK_SERVER_PORT
type envOverrides struct {
	TracksPath       string `env:"TRACKS_PATH"`
	TracksFormat     string `env:"TRACKS_FORMAT"`
	MaskPath         string `env:"MASK_PATH"`
	MaskFormat       string `env:"MASK_FORMAT"`
	MaskVariable     string `env:"MASK_VARIABLE"`
	NearestTolerance string `env:"NEAREST_TOLERANCE"`
	TimescaleDB      string `env:"TIMESCALEDB_CONNECTION_STRING"`
	ListenAddr       string `env:"SERVER_LISTEN_ADDR"`
	Port             int    `env:"SERVER_PORT"`
}

// ApplyEnv overrides configuration values with STORMTRACK_* environment
// variables and revalidates the result. environ replaces the process
// environment when non-nil.
func (c *ConfigData) ApplyEnv(environ map[string]string) error {
	var o envOverrides
	opts := env.Options{Prefix: EnvPrefix, Environment: environ}
	if err := env.ParseWithOptions(&o, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Datasets.Tracks.Path, o.TracksPath)
	set(&c.Datasets.Tracks.Format, o.TracksFormat)
	set(&c.Datasets.Mask.Path, o.MaskPath)
	set(&c.Datasets.Mask.Format, o.MaskFormat)
	set(&c.Datasets.Mask.Variable, o.MaskVariable)
	set(&c.Matching.NearestTolerance, o.NearestTolerance)
	set(&c.Server.ListenAddr, o.ListenAddr)
	if o.Port != 0 {
		c.Server.Port = o.Port
	}
	if o.TimescaleDB != "" {
		c.Storage.TimescaleDB = &TimescaleDBData{ConnectionString: o.TimescaleDB}
	}

	return c.Validate()
}
