package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"plasma-rootchain/common"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env"
	"github.com/go-playground/validator"
	"github.com/joho/godotenv"
)

// Duration is a wrapper type that parses time duration from text
type Duration struct {
	time.Duration `validate:"required"`
}

// UnmarshalText unmarshalls time duration from text
func (d *Duration) UnmarshalText(data []byte) error {
	duration, err := time.ParseDuration(string(data))
	if err != nil {
		return common.Wrap(err)
	}
	d.Duration = duration
	return nil
}

// DefaultValues is the default fallbacks of the configuration
const DefaultValues = `
[API]
Address = "localhost:8086"
Explorer = true
ReadTimeout = "30s"
WriteTimeout = "30s"
MaxSQLConnections = 100
SQLConnectionTimeout = "2s"

[Ledger]
GenesisTimestamp = 1700000000
BlockInterval = "15s"

[RootChain]
Authority = "0x0000000000000000000000000000000000000000"

[Synchronizer]
SyncLoopInterval = "1s"

[PostgreSQL]
PortWrite = 5432
HostWrite = "localhost"
UserWrite = "plasma"
PasswordWrite = "plasma"
NameWrite = "plasma"

[Log]
Level = "info"
Out = ["stdout"]
`

// Node is the configuration of the plasma node
type Node struct {
	API struct {
		// Address where the API will listen if set
		Address string `env:"PLASMA_API_ADDRESS"`
		// Explorer enables the Explorer api endpoints
		Explorer             bool     `env:"PLASMA_API_EXPLORER"`
		ReadTimeout          Duration `validate:"required" env:"PLASMA_API_READ_TIMEOUT"`
		WriteTimeout         Duration `validate:"required" env:"PLASMA_API_WRITE_TIMEOUT"`
		MaxSQLConnections    int      `validate:"required" env:"PLASMA_API_MAX_SQL_CONNECTIONS"`
		SQLConnectionTimeout Duration `env:"PLASMA_API_SQL_CONNECTION_TIMEOUT"`
	} `validate:"required"`
	Ledger struct {
		// GenesisTimestamp is the unix time of the ledger block 0
		GenesisTimestamp int64 `validate:"required" env:"PLASMA_LEDGER_GENESIS"`
		// BlockInterval is the time between consecutive ledger blocks
		BlockInterval Duration `validate:"required" env:"PLASMA_LEDGER_BLOCK_INTERVAL"`
	} `validate:"required"`
	RootChain struct {
		// Authority is the operator address allowed to submit blocks
		Authority string `validate:"required" env:"PLASMA_ROOTCHAIN_AUTHORITY"`
	} `validate:"required"`
	Synchronizer struct {
		// SyncLoopInterval is the interval between synchronizer passes
		SyncLoopInterval Duration `validate:"required" env:"PLASMA_SYNC_LOOP_INTERVAL"`
	} `validate:"required"`
	PostgreSQL struct {
		// Port of the PostgreSQL write server
		PortWrite int `validate:"required" env:"PLASMA_POSTGRESQL_PORT_WRITE"`
		// Host of the PostgreSQL write server
		HostWrite string `validate:"required" env:"PLASMA_POSTGRESQL_HOST_WRITE"`
		// User of the PostgreSQL write server
		UserWrite string `validate:"required" env:"PLASMA_POSTGRESQL_USER_WRITE"`
		// Password of the PostgreSQL write server
		PasswordWrite string `validate:"required" env:"PLASMA_POSTGRESQL_PASSWORD_WRITE"`
		// Name of the PostgreSQL write server database
		NameWrite string `validate:"required" env:"PLASMA_POSTGRESQL_NAME_WRITE"`
		// Port of the PostgreSQL read server
		PortRead int `env:"PLASMA_POSTGRESQL_PORT_READ"`
		// Host of the PostgreSQL read server
		HostRead string `env:"PLASMA_POSTGRESQL_HOST_READ"`
		// User of the PostgreSQL read server
		UserRead string `env:"PLASMA_POSTGRESQL_USER_READ"`
		// Password of the PostgreSQL read server
		PasswordRead string `env:"PLASMA_POSTGRESQL_PASSWORD_READ"`
		// Name of the PostgreSQL read server database
		NameRead string `env:"PLASMA_POSTGRESQL_NAME_READ"`
	} `validate:"required"`
	Log struct {
		Level string   `validate:"required" env:"PLASMA_LOG_LEVEL"`
		Out   []string `validate:"required" env:"PLASMA_LOG_OUT" envSeparator:","`
	} `validate:"required"`
}

func loadDefault(defaultValues string, cfg interface{}) error {
	if _, err := toml.Decode(defaultValues, cfg); err != nil {
		return common.Wrap(err)
	}
	return nil
}

func loadFile(path string, cfg interface{}) error {
	bs, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return common.Wrap(err)
	}
	cfgToml := string(bs)
	if _, err := toml.Decode(cfgToml, cfg); err != nil {
		return common.Wrap(err)
	}
	return nil
}

func loadEnv(cfg interface{}) error {
	return common.Wrap(env.Parse(cfg))
}

// LoadConfig loads the default values, then the file values when a path is
// given, then overwrites with the environment
func LoadConfig(filePath string, defaultValues string, cfg interface{}) error {
	if err := loadDefault(defaultValues, cfg); err != nil {
		return common.Wrap(fmt.Errorf("error loading default configuration: %w", err))
	}
	var errLoadFile error
	if filePath != "" {
		errLoadFile = loadFile(filePath, cfg)
	}
	errLoadEnv := loadEnv(cfg)
	if errLoadFile != nil {
		return common.Wrap(fmt.Errorf("error loading configuration file: %w", errLoadFile))
	}
	if errLoadEnv != nil {
		return common.Wrap(fmt.Errorf("error loading environment variables: %w", errLoadEnv))
	}
	return nil
}

// LoadNode loads the node configuration from the given path. A missing .env
// file is not an error.
func LoadNode(filePath string) (*Node, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, common.Wrap(fmt.Errorf("error loading .env file: %w", err))
	}
	var cfg Node
	if err := LoadConfig(filePath, DefaultValues, &cfg); err != nil {
		return nil, common.Wrap(err)
	}
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, common.Wrap(fmt.Errorf("error validating configuration file: %w", err))
	}
	return &cfg, nil
}
