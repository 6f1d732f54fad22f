package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var (
	TimeoutMillisDefault               = 3000
	BackoffMaxElapsedTime              = 5 * time.Second
	GlobalConfigCallback               = ConfigCallback[GlobalConfig]{}
	CfgFlag                            = flag.String("config", "config.toml", "Configuration file (toml format)")
	EnvFileFlag                        = flag.String("env", ".env", "Optional dotenv file with environment overrides")
	DefaultConfirmations        uint64 = 1
)

type GlobalConfig interface {
	LoggerConfig() LoggerConfig
	ChainConfig() ChainConfig
}

type Config struct {
	DB       DBConfig       `toml:"db"`
	Logger   LoggerConfig   `toml:"logger"`
	Chain    ChainConfig    `toml:"chain"`
	Requests RequestsConfig `toml:"requests"`
	Poller   PollerConfig   `toml:"poller"`
}

type LoggerConfig struct {
	Level       string `toml:"level"` // valid values are: DEBUG, INFO, WARN, ERROR, DPANIC, PANIC, FATAL (zap)
	File        string `toml:"file"`
	MaxFileSize int    `toml:"max_file_size"` // In megabytes
	Console     bool   `toml:"console"`
}

// DBConfig selects the database. Driver is "mysql" (default) or "sqlite";
// for sqlite, Database is the file name or a full "file:" DSN and an empty
// name selects a shared in-memory database.
type DBConfig struct {
	Driver     string `toml:"driver" envconfig:"DB_DRIVER"`
	Host       string `toml:"host" envconfig:"DB_HOST"`
	Port       int    `toml:"port" envconfig:"DB_PORT"`
	Database   string `toml:"database" envconfig:"DB_DATABASE"`
	Username   string `toml:"username" envconfig:"DB_USERNAME"`
	Password   string `toml:"password" envconfig:"DB_PASSWORD"`
	LogQueries bool   `toml:"log_queries"`

	DropTableAtStart bool `toml:"drop_table_at_start"`
}

// ChainConfig lists the public RPC endpoints used when a project does not
// provide its own.
type ChainConfig struct {
	Networks      []NetworkConfig `toml:"networks"`
	TimeoutMillis int             `toml:"timeout_millis" envconfig:"CHAIN_TIMEOUT_MILLIS"`
}

type NetworkConfig struct {
	ChainID       int64  `toml:"chain_id"`
	NodeURL       string `toml:"node_url"`
	Confirmations uint64 `toml:"confirmations"`
}

// RequestsConfig holds the redirect URL templates applied when a request is
// stored without its own. Each may contain the ${id} token.
type RequestsConfig struct {
	BalanceRedirectURL       string `toml:"balance_redirect_url"`
	AuthorizationRedirectURL string `toml:"authorization_redirect_url"`
	FunctionCallRedirectURL  string `toml:"function_call_redirect_url"`
	ReadonlyCallRedirectURL  string `toml:"readonly_call_redirect_url"`
	LockRedirectURL          string `toml:"lock_redirect_url"`
}

type PollerConfig struct {
	BatchSize             int `toml:"batch_size"`
	NumParallelReq        int `toml:"num_parallel_req"`
	NewRequestCheckMillis int `toml:"new_request_check_millis"`
}

func newConfig() *Config {
	return &Config{
		Logger: LoggerConfig{Level: "INFO", Console: true},
		Chain:  ChainConfig{TimeoutMillis: TimeoutMillisDefault},
		Requests: RequestsConfig{
			BalanceRedirectURL:       "/request-balance/${id}/action",
			AuthorizationRedirectURL: "/request-authorization/${id}/action",
			FunctionCallRedirectURL:  "/request-function-call/${id}/action",
			ReadonlyCallRedirectURL:  "/request-readonly-call/${id}/action",
			LockRedirectURL:          "/request-lock/${id}/action",
		},
		Poller: PollerConfig{BatchSize: 100, NumParallelReq: 4, NewRequestCheckMillis: 5000},
	}
}

func BuildConfig() (*Config, error) {
	cfgFileName := *CfgFlag

	cfg := newConfig()
	err := ParseConfigFile(cfg, cfgFileName)
	if err != nil {
		return nil, err
	}
	err = LoadEnvFile(*EnvFileFlag)
	if err != nil {
		return nil, err
	}
	err = ReadEnv(cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func ParseConfigFile(cfg *Config, fileName string) error {
	content, err := os.ReadFile(fileName)
	if err != nil {
		return fmt.Errorf("error opening config file: %w", err)
	}

	_, err = toml.Decode(string(content), cfg)
	if err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}
	return nil
}

// LoadEnvFile loads variables from a dotenv file. A missing file is not an error.
func LoadEnvFile(fileName string) error {
	if fileName == "" {
		return nil
	}
	if _, err := os.Stat(fileName); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(fileName); err != nil {
		return fmt.Errorf("error loading env file: %w", err)
	}
	return nil
}

func ReadEnv(cfg interface{}) error {
	err := envconfig.Process("", cfg)
	if err != nil {
		return fmt.Errorf("error reading env config: %w", err)
	}
	return nil
}

func (c Config) LoggerConfig() LoggerConfig {
	return c.Logger
}

func (c Config) ChainConfig() ChainConfig {
	return c.Chain
}

// Timeout is the bound applied to every single RPC call.
func (c ChainConfig) Timeout() time.Duration {
	if c.TimeoutMillis <= 0 {
		return time.Duration(TimeoutMillisDefault) * time.Millisecond
	}
	return time.Duration(c.TimeoutMillis) * time.Millisecond
}

func (c ChainConfig) Network(chainID int64) (NetworkConfig, bool) {
	for _, n := range c.Networks {
		if n.ChainID == chainID {
			if n.Confirmations == 0 {
				n.Confirmations = DefaultConfirmations
			}
			return n, true
		}
	}
	return NetworkConfig{}, false
}

func (n NetworkConfig) String() string {
	return strconv.FormatInt(n.ChainID, 10) + "@" + n.NodeURL
}
