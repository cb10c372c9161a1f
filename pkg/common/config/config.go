package config

import (
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"github.com/imdario/mergo"

	"github.com/fystack/walletstream/pkg/common/constant"
	"github.com/fystack/walletstream/pkg/common/enum"
)

var validate = validator.New()

type Config struct {
	Environment string       `yaml:"environment" validate:"required,oneof=production development"`
	Server      ServerCfg    `yaml:"server"`
	DB          DBCfg        `yaml:"db" validate:"required"`
	NATS        NATSCfg      `yaml:"nats" validate:"required"`
	Watchlist   WatchlistCfg `yaml:"watchlist" validate:"required"`
	Streams     StreamsCfg   `yaml:"streams"`
	Filter      FilterCfg    `yaml:"filter"`
	Tokens      TokensCfg    `yaml:"tokens"`
}

type ServerCfg struct {
	Port int `yaml:"port" validate:"required"`
}

type DBCfg struct {
	URL string `yaml:"url" validate:"required"`
}

type NATSCfg struct {
	URL           string `yaml:"url" validate:"required,url"`
	SubjectPrefix string `yaml:"subject_prefix" validate:"required"`
}

type WatchlistCfg struct {
	Type   enum.WatchlistStoreType `yaml:"type" validate:"required,oneof=http badger"`
	HTTP   HTTPListCfg             `yaml:"http"`
	Badger BadgerListCfg           `yaml:"badger"`
	Lists  ListKeysCfg             `yaml:"lists"`
	Bloom  BloomCfg                `yaml:"bloom"`
}

type HTTPListCfg struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

type BadgerListCfg struct {
	Directory string `yaml:"directory"`
}

type ListKeysCfg struct {
	EVM    string `yaml:"evm"`
	Solana string `yaml:"solana"`
}

type BloomCfg struct {
	Enabled           bool    `yaml:"enabled"`
	ExpectedItems     uint    `yaml:"expected_items"`
	FalsePositiveRate float64 `yaml:"false_positive_rate"`
	BatchSize         int     `yaml:"batch_size"`
}

type StreamsCfg struct {
	// Any of the configured tokens may have signed an inbound webhook.
	SecurityTokens         []string `yaml:"security_tokens"`
	DefaultNetwork         string   `yaml:"default_network"`
	TimestampMaxAgeSeconds int64    `yaml:"timestamp_max_age_seconds"`
}

type FilterCfg struct {
	// Native balance deltas at or below this many lamports are fee noise.
	DustLamports uint64 `yaml:"dust_lamports"`
}

type TokensCfg struct {
	EVMEndpoint             string `yaml:"evm_endpoint"`
	SolanaEndpoint          string `yaml:"solana_endpoint"`
	JupiterBaseURL          string `yaml:"jupiter_base_url"`
	ListTTLMinutes          int    `yaml:"list_ttl_minutes"`
	SearchTTLMinutes        int    `yaml:"search_ttl_minutes"`
	SearchMinIntervalMillis int    `yaml:"search_min_interval_millis"`
}

func defaults() Config {
	return Config{
		Server: ServerCfg{Port: 8080},
		Watchlist: WatchlistCfg{
			HTTP: HTTPListCfg{BaseURL: "https://api.quicknode.com/kv/rest/v1"},
			Lists: ListKeysCfg{
				EVM:    constant.DefaultEVMListKey,
				Solana: constant.DefaultSolanaListKey,
			},
			Bloom: BloomCfg{
				ExpectedItems:     100_000,
				FalsePositiveRate: 0.001,
				BatchSize:         1000,
			},
		},
		Streams: StreamsCfg{TimestampMaxAgeSeconds: 300},
		Filter:  FilterCfg{DustLamports: 10_000},
		Tokens: TokensCfg{
			JupiterBaseURL:          "https://lite-api.jup.ag/tokens/v2",
			ListTTLMinutes:          360,
			SearchTTLMinutes:        60,
			SearchMinIntervalMillis: 1100,
		},
	}
}

func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}

	// merge defaults
	if err := mergo.Merge(&cfg, defaults()); err != nil {
		return cfg, err
	}

	// validate
	if err := validate.Struct(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
