// Package config loads and validates the process configuration. The returned
// Config is constructed once at startup and passed by reference into each
// component; nothing here is mutated afterwards.
package config

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/lucknot3/transfer-tea-multi-address/account"
	"github.com/lucknot3/transfer-tea-multi-address/throttle"
)

// ValidationError means the configuration cannot support a run. It is fatal:
// the process refuses to start.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + e.Reason
}

func invalid(format string, a ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, a...)}
}

// AmountRange is the closed token-unit interval an attempt amount is sampled
// from. Min == Max yields a fixed amount.
type AmountRange struct {
	Min      decimal.Decimal
	Max      decimal.Decimal
	Decimals int32
}

// Gas bundles the throttle band with the limits used per transfer kind.
type Gas struct {
	Band       throttle.Band
	Limit      uint64
	TokenLimit uint64
}

// QuotaRange bounds how many recipients one run attempts.
type QuotaRange struct {
	Min int
	Max int
}

// Delays are the randomized pacing intervals, sampled uniformly per use.
type Delays struct {
	PreMin  time.Duration // before each recipient's attempt
	PreMax  time.Duration
	PostMin time.Duration // after a confirmed transfer
	PostMax time.Duration
}

// Confirm tunes the confirmation phase of the transfer executor.
type Confirm struct {
	Depth        uint64
	Timeout      time.Duration
	PollInterval time.Duration
	RetryMax     int
	RetryBackoff time.Duration
}

// Schedule is the daily trigger: wall-clock time of day in a zone, plus an
// upper bound for the random jitter added to each wake.
type Schedule struct {
	Hour      int
	Minute    int
	Location  *time.Location
	JitterMax time.Duration
}

// Telegram credentials; both empty disables notifications.
type Telegram struct {
	BotToken string
	ChatID   string
}

type Config struct {
	RPCURL        string
	CandidatesURL string
	StateDir      string
	LogDir        string
	FetchTimeout  time.Duration

	Senders  []account.Spec
	Amount   AmountRange
	Gas      Gas
	Quota    QuotaRange
	Delays   Delays
	Confirm  Confirm
	Schedule Schedule
	Telegram Telegram
}

type rawSender struct {
	PrivateKey string `mapstructure:"private_key"`
	Keystore   string `mapstructure:"keystore"`
	Password   string `mapstructure:"password"`
	Token      string `mapstructure:"token"`
}

type rawConfig struct {
	RPCURL        string        `mapstructure:"rpc_url"`
	CandidatesURL string        `mapstructure:"candidates_url"`
	StateDir      string        `mapstructure:"state_dir"`
	LogDir        string        `mapstructure:"log_dir"`
	FetchTimeout  time.Duration `mapstructure:"fetch_timeout"`
	Senders       []rawSender   `mapstructure:"senders"`

	Amount struct {
		Min      string `mapstructure:"min"`
		Max      string `mapstructure:"max"`
		Decimals int32  `mapstructure:"decimals"`
	} `mapstructure:"amount"`

	Gas struct {
		MinGwei    string `mapstructure:"min_gwei"`
		MaxGwei    string `mapstructure:"max_gwei"`
		Limit      uint64 `mapstructure:"limit"`
		TokenLimit uint64 `mapstructure:"token_limit"`
	} `mapstructure:"gas"`

	Quota struct {
		Min int `mapstructure:"min"`
		Max int `mapstructure:"max"`
	} `mapstructure:"quota"`

	Delays struct {
		PreMin  time.Duration `mapstructure:"pre_min"`
		PreMax  time.Duration `mapstructure:"pre_max"`
		PostMin time.Duration `mapstructure:"post_min"`
		PostMax time.Duration `mapstructure:"post_max"`
	} `mapstructure:"delays"`

	Confirm struct {
		Depth        uint64        `mapstructure:"depth"`
		Timeout      time.Duration `mapstructure:"timeout"`
		PollInterval time.Duration `mapstructure:"poll_interval"`
		RetryMax     int           `mapstructure:"retry_max"`
		RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	} `mapstructure:"confirm"`

	Schedule struct {
		At        string        `mapstructure:"at"`
		Timezone  string        `mapstructure:"timezone"`
		JitterMax time.Duration `mapstructure:"jitter_max"`
	} `mapstructure:"schedule"`

	Telegram struct {
		BotToken string `mapstructure:"bot_token"`
		ChatID   string `mapstructure:"chat_id"`
	} `mapstructure:"telegram"`
}

// Load reads the configuration file at path and validates it.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("state_dir", ".")
	v.SetDefault("fetch_timeout", "30s")
	v.SetDefault("amount.decimals", 18)
	v.SetDefault("gas.limit", 21000)
	v.SetDefault("gas.token_limit", 65000)
	v.SetDefault("confirm.depth", 2)
	v.SetDefault("confirm.timeout", "90s")
	v.SetDefault("confirm.poll_interval", "3s")
	v.SetDefault("confirm.retry_max", 5)
	v.SetDefault("confirm.retry_backoff", "5s")
	v.SetDefault("schedule.timezone", "UTC")
	v.SetDefault("schedule.jitter_max", "3m")

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "read config %v", path)
	}

	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return nil, errors.Wrapf(err, "decode config %v", path)
	}
	return validate(&raw)
}

func validate(raw *rawConfig) (*Config, error) {
	cfg := &Config{
		RPCURL:        raw.RPCURL,
		CandidatesURL: raw.CandidatesURL,
		StateDir:      raw.StateDir,
		LogDir:        raw.LogDir,
		FetchTimeout:  raw.FetchTimeout,
		Telegram:      Telegram{BotToken: raw.Telegram.BotToken, ChatID: raw.Telegram.ChatID},
	}

	if cfg.RPCURL == "" {
		return nil, invalid("rpc_url is required")
	}
	if cfg.CandidatesURL == "" {
		return nil, invalid("candidates_url is required")
	}

	if len(raw.Senders) == 0 {
		return nil, invalid("at least one sender is required")
	}
	for i, s := range raw.Senders {
		if s.PrivateKey == "" && s.Keystore == "" {
			return nil, invalid("sender %v: private_key or keystore is required", i+1)
		}
		cfg.Senders = append(cfg.Senders, account.Spec{
			PrivateKey: s.PrivateKey,
			Keystore:   s.Keystore,
			Password:   s.Password,
			Token:      s.Token,
		})
	}

	var err error
	if cfg.Amount, err = parseAmount(raw); err != nil {
		return nil, err
	}
	if cfg.Gas, err = parseGas(raw); err != nil {
		return nil, err
	}

	cfg.Quota = QuotaRange{Min: raw.Quota.Min, Max: raw.Quota.Max}
	if cfg.Quota.Min < 1 {
		return nil, invalid("quota.min must be at least 1")
	}
	if cfg.Quota.Max < cfg.Quota.Min {
		return nil, invalid("quota.max %v is below quota.min %v", cfg.Quota.Max, cfg.Quota.Min)
	}

	cfg.Delays = Delays{
		PreMin:  raw.Delays.PreMin,
		PreMax:  raw.Delays.PreMax,
		PostMin: raw.Delays.PostMin,
		PostMax: raw.Delays.PostMax,
	}
	if cfg.Delays.PreMin < 0 || cfg.Delays.PostMin < 0 {
		return nil, invalid("delays must not be negative")
	}
	if cfg.Delays.PreMax < cfg.Delays.PreMin || cfg.Delays.PostMax < cfg.Delays.PostMin {
		return nil, invalid("delay max is below delay min")
	}

	cfg.Confirm = Confirm{
		Depth:        raw.Confirm.Depth,
		Timeout:      raw.Confirm.Timeout,
		PollInterval: raw.Confirm.PollInterval,
		RetryMax:     raw.Confirm.RetryMax,
		RetryBackoff: raw.Confirm.RetryBackoff,
	}
	if cfg.Confirm.Depth < 1 {
		return nil, invalid("confirm.depth must be at least 1")
	}
	if cfg.Confirm.Timeout <= 0 || cfg.Confirm.PollInterval <= 0 {
		return nil, invalid("confirm.timeout and confirm.poll_interval must be positive")
	}

	if cfg.Schedule, err = parseSchedule(raw); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseAmount(raw *rawConfig) (AmountRange, error) {
	var a AmountRange
	if raw.Amount.Min == "" || raw.Amount.Max == "" {
		return a, invalid("amount.min and amount.max are required")
	}

	var err error
	if a.Min, err = decimal.NewFromString(raw.Amount.Min); err != nil {
		return a, invalid("amount.min %q: %v", raw.Amount.Min, err)
	}
	if a.Max, err = decimal.NewFromString(raw.Amount.Max); err != nil {
		return a, invalid("amount.max %q: %v", raw.Amount.Max, err)
	}
	a.Decimals = raw.Amount.Decimals

	if a.Min.Sign() <= 0 {
		return a, invalid("amount.min must be positive")
	}
	if a.Max.LessThan(a.Min) {
		return a, invalid("amount.max %v is below amount.min %v", a.Max, a.Min)
	}
	return a, nil
}

func parseGas(raw *rawConfig) (Gas, error) {
	var g Gas
	if raw.Gas.MinGwei == "" || raw.Gas.MaxGwei == "" {
		return g, invalid("gas.min_gwei and gas.max_gwei are required")
	}

	var err error
	if g.Band.Min, err = decimal.NewFromString(raw.Gas.MinGwei); err != nil {
		return g, invalid("gas.min_gwei %q: %v", raw.Gas.MinGwei, err)
	}
	if g.Band.Max, err = decimal.NewFromString(raw.Gas.MaxGwei); err != nil {
		return g, invalid("gas.max_gwei %q: %v", raw.Gas.MaxGwei, err)
	}
	if g.Band.Max.LessThan(g.Band.Min) {
		return g, invalid("gas.max_gwei %v is below gas.min_gwei %v", g.Band.Max, g.Band.Min)
	}

	g.Limit = raw.Gas.Limit
	g.TokenLimit = raw.Gas.TokenLimit
	if g.Limit == 0 || g.TokenLimit == 0 {
		return g, invalid("gas limits must be positive")
	}
	return g, nil
}

func parseSchedule(raw *rawConfig) (Schedule, error) {
	var s Schedule
	if raw.Schedule.At == "" {
		return s, invalid("schedule.at is required")
	}

	at, err := time.Parse("15:04", raw.Schedule.At)
	if err != nil {
		return s, invalid("schedule.at %q is not HH:MM", raw.Schedule.At)
	}
	s.Hour, s.Minute = at.Hour(), at.Minute()

	if s.Location, err = time.LoadLocation(raw.Schedule.Timezone); err != nil {
		return s, invalid("schedule.timezone %q: %v", raw.Schedule.Timezone, err)
	}

	s.JitterMax = raw.Schedule.JitterMax
	if s.JitterMax < 0 {
		return s, invalid("schedule.jitter_max must not be negative")
	}
	return s, nil
}
