package distribute

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lucknot3/transfer-tea-multi-address/account"
	"github.com/lucknot3/transfer-tea-multi-address/chain"
	"github.com/lucknot3/transfer-tea-multi-address/config"
	"github.com/lucknot3/transfer-tea-multi-address/fetch"
	"github.com/lucknot3/transfer-tea-multi-address/notify"
	"github.com/lucknot3/transfer-tea-multi-address/store"
	"github.com/lucknot3/transfer-tea-multi-address/throttle"
)

var (
	rootCmd = &cobra.Command{
		Use:   "run",
		Short: "run the daily distribution loop",
		RunE:  run,
	}

	// command flags
	configPath string
	once       bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "configuration file path")
	rootCmd.PersistentFlags().BoolVar(&once, "once", false, "run a single distribution pass and exit")
}

// SetParent sets parent command
func SetParent(parent *cobra.Command) {
	parent.AddCommand(rootCmd)
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := setupFileLog(cfg.LogDir); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}

	if once {
		_, err := engine.Run(ctx)
		return err
	}
	return NewDriver(engine, cfg.Schedule, engine.notifier).Start(ctx)
}

func buildEngine(ctx context.Context, cfg *config.Config) (*Engine, error) {
	client, err := chain.Dial(ctx, cfg.RPCURL)
	if err != nil {
		return nil, err
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "query chain id")
	}

	pool, err := account.NewPool(cfg.Senders)
	if err != nil {
		return nil, err
	}

	exec, err := chain.NewExecutor(client, chainID, chain.Options{
		GasLimit:       cfg.Gas.Limit,
		TokenGasLimit:  cfg.Gas.TokenLimit,
		ConfirmDepth:   cfg.Confirm.Depth,
		ConfirmTimeout: cfg.Confirm.Timeout,
		PollInterval:   cfg.Confirm.PollInterval,
		Retry: chain.RetryPolicy{
			Max:     cfg.Confirm.RetryMax,
			Backoff: cfg.Confirm.RetryBackoff,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create state dir %v", cfg.StateDir)
	}

	var notifier notify.Notifier = notify.Nop{}
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		notifier = notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	}

	return NewEngine(cfg,
		store.New(cfg.StateDir),
		fetch.NewHTTPSource(cfg.CandidatesURL, cfg.FetchTimeout),
		throttle.NewGasPriceSampler(client),
		pool,
		exec,
		notifier,
	), nil
}

func setupFileLog(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create log dir %v", dir)
	}

	name := filepath.Join(dir, "log-"+time.Now().Format("2006-01-02")+".txt")
	f, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrapf(err, "open log file %v", name)
	}
	logrus.SetOutput(io.MultiWriter(os.Stdout, f))
	return nil
}
