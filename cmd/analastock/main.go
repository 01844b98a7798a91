package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"analastock/internal/analyser"
	"analastock/internal/config"
	"analastock/internal/fetch"
	"analastock/internal/logging"
	"analastock/internal/metadata"
	"analastock/internal/model"
	"analastock/internal/period"
	"analastock/internal/quota"
	"analastock/internal/refresh"
	"analastock/internal/report"
	"analastock/internal/store"
)

func main() {
	root := &cli.Command{
		Name:  "analastock",
		Usage: "Analyse historical stock price data",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the YAML config file",
				Value:   "config.yaml",
				Sources: cli.EnvVars("CONFIG_PATH"),
			},
		},
		Commands: []*cli.Command{
			analyseCommand(),
			searchCommand(),
			exchangesCommand(),
			refreshCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "analastock:", err)
		os.Exit(1)
	}
}

// app bundles everything a command needs, wired once from config.
type app struct {
	cfg   *config.Config
	log   zerolog.Logger
	store fullStore
	sched *fetch.Scheduler
	meta  *metadata.Service
	anl   *analyser.Analyser
}

type fullStore interface {
	store.Store
	store.CompanyCache
	store.SymbolLister
}

func setup(cmd *cli.Command) (*app, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	log := logging.New(cfg.LogLevel)
	gov := quota.NewGovernor(cfg.Budgets(), log)

	var st fullStore
	if err := os.MkdirAll(filepath.Dir(cfg.Store.SQLitePath), 0o755); err != nil {
		log.Warn().Err(err).Msg("create store directory failed, using in-memory cache")
		st = store.NewMemoryStore()
	} else if sq, err := store.NewSQLiteStore(cfg.Store.SQLitePath, gov, log); err != nil {
		log.Warn().Err(err).Msg("open sqlite store failed, using in-memory cache")
		st = store.NewMemoryStore()
	} else {
		st = sq
	}

	var provider fetch.Provider
	if cfg.Data.Mode == config.ModeSample {
		provider = fetch.NewSampleProvider()
	} else {
		provider = fetch.NewYahooProvider(cfg.Data.Proxy, log)
	}
	log.Info().Str("provider", provider.Name()).Msg("price data source")

	sched := fetch.NewScheduler(provider, gov, cfg.Policy(), cfg.FetchTimeout(), log)

	var rapid *metadata.RapidClient
	if cfg.RapidAPI.APIKey != "" {
		opts := []metadata.Option{metadata.WithGovernor(gov), metadata.WithLogger(log)}
		if cfg.RapidAPI.BaseURL != "" {
			opts = append(opts, metadata.WithBaseURL(cfg.RapidAPI.BaseURL))
		}
		rapid = metadata.NewRapidClient(cfg.RapidAPI.APIKey, opts...)
	}
	meta := metadata.NewService(st, rapid, log)

	return &app{
		cfg:   cfg,
		log:   log,
		store: st,
		sched: sched,
		meta:  meta,
		anl:   analyser.New(st, sched, meta, cfg.Workers, log),
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn().Err(err).Msg("close store")
	}
}

func analyseCommand() *cli.Command {
	return &cli.Command{
		Name:      "analyse",
		Usage:     "Analyse price history for up to 3 symbols",
		ArgsUsage: "SYMBOL [SYMBOL...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "period",
				Aliases: []string{"p"},
				Value:   "1y to",
				Usage:   "period like '1y to', 'ytd', or '1-1-2022 to 1-6-2022'",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			p, err := period.Parse(cmd.String("period"), time.Now().UTC())
			if err != nil {
				return fmt.Errorf("period %q: %w", cmd.String("period"), err)
			}

			results, err := a.anl.Run(ctx, analyser.Request{Period: p, Symbols: cmd.Args().Slice()})
			if err != nil {
				return err
			}

			var analysed []*model.Analysis
			for _, r := range results {
				if r.Err != nil {
					report.WriteSymbolError(os.Stdout, r.Symbol, r.Err)
					continue
				}
				if err := report.WriteAnalysis(os.Stdout, r.Analysis); err != nil {
					return err
				}
				analysed = append(analysed, r.Analysis)
			}
			if len(analysed) > 1 {
				if err := report.WriteSummary(os.Stdout, analysed); err != nil {
					return err
				}
			}
			if len(analysed) == 0 {
				return errors.New("no symbol produced an analysis")
			}
			return nil
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Find companies by name on an exchange",
		ArgsUsage: "NAMEPART",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "exchange",
				Aliases:  []string{"x"},
				Usage:    "exchange code, e.g. AMS (see the exchanges command)",
				Required: true,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			query := strings.Join(cmd.Args().Slice(), " ")
			companies, err := a.meta.Search(ctx, cmd.String("exchange"), query)
			if err != nil {
				if errors.Is(err, metadata.ErrNoClient) {
					return errors.New("search needs a RapidAPI key; set RAPIDAPI_KEY or rapidapi.api_key")
				}
				return err
			}
			if len(companies) == 0 {
				fmt.Println("No matching companies.")
				return nil
			}
			for _, c := range companies {
				fmt.Printf("%-12s %-45s %s\n", c.Symbol, c.Name, c.Industry)
			}
			return nil
		},
	}
}

func exchangesCommand() *cli.Command {
	return &cli.Command{
		Name:  "exchanges",
		Usage: "List exchange codes available for search",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			codes, err := a.meta.Exchanges(ctx)
			if err != nil {
				if errors.Is(err, metadata.ErrNoClient) {
					return errors.New("listing exchanges needs a RapidAPI key; set RAPIDAPI_KEY or rapidapi.api_key")
				}
				return err
			}
			for _, code := range codes {
				fmt.Println(code)
			}
			return nil
		},
	}
}

func refreshCommand() *cli.Command {
	return &cli.Command{
		Name:  "refresh",
		Usage: "Bring cached price history up to date",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "daemon",
				Usage: "keep running on the configured schedule",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			d := refresh.NewDaemon(a.store, a.sched, a.log)
			if !cmd.Bool("daemon") {
				d.RunOnce(ctx)
				return nil
			}

			if err := d.Register(ctx, a.cfg.Schedule.RefreshCron); err != nil {
				return err
			}
			d.Start()
			defer d.Stop()
			if a.cfg.Schedule.RunOnStart {
				d.RunOnce(ctx)
			}

			a.log.Info().
				Str("schedule", a.cfg.Schedule.RefreshCron).
				Msg("refresh daemon running, Ctrl+C to stop")
			<-ctx.Done()
			a.log.Info().Msg("shutdown signal received, stopping")
			return nil
		},
	}
}
