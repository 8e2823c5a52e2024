package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/deb4uuu-coder/stock-strategy-alert/internal/aggregator"
	"github.com/deb4uuu-coder/stock-strategy-alert/internal/collector"
	"github.com/deb4uuu-coder/stock-strategy-alert/internal/config"
	"github.com/deb4uuu-coder/stock-strategy-alert/internal/model"
	"github.com/deb4uuu-coder/stock-strategy-alert/internal/notifier"
	"github.com/deb4uuu-coder/stock-strategy-alert/internal/scheduler"
	"github.com/deb4uuu-coder/stock-strategy-alert/internal/store"
	"github.com/deb4uuu-coder/stock-strategy-alert/internal/strategy"
	"github.com/deb4uuu-coder/stock-strategy-alert/internal/symbols"
)

var (
	cfgFile     string
	triggerName string
	groupList   string
	workers     int
	format      string
	dryRun      bool
	showBar     bool
	runOnStart  bool
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	rootCmd := &cobra.Command{
		Use:   "stockalert",
		Short: "V20 breakout and H45 mean-reversion alerts for grouped stock lists",
		Long: `stockalert evaluates every symbol of every configured group against the
group's rules and sends one consolidated alert by email and Telegram.

Rules:
  BREAKOUT        - V20: a green run that rose at least 20% and the close is back near its start
  MEAN_REVERSION  - H45: the close is at least 14% below its 200-day average

Examples:
  stockalert run --trigger manual --dry-run
  stockalert run --groups V40,H45 --format table --progress
  stockalert serve`,
		SilenceUsage: true,
	}

	defaultCfg := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultCfg = v
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", defaultCfg, "config file path")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "number of parallel workers (default from config)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run one scan, print the report and deliver the alert",
		RunE:  runScan,
	}
	runCmd.Flags().StringVar(&triggerName, "trigger", "", "manual, schedule or other (default from GITHUB_EVENT_NAME)")
	runCmd.Flags().StringVar(&groupList, "groups", "", "comma-separated groups to scan (default: all)")
	runCmd.Flags().StringVar(&format, "format", "table", "output format: table, text, json")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the alert instead of sending it")
	runCmd.Flags().BoolVar(&showBar, "progress", false, "show a progress bar on stderr")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Scan on the configured cron schedule and answer Telegram commands",
		RunE:  serve,
	}
	serveCmd.Flags().BoolVar(&runOnStart, "run-on-start", os.Getenv("RUN_ON_START") == "true", "run a manual scan immediately")

	rootCmd.AddCommand(runCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds the wired components shared by run and serve.
type app struct {
	cfg      *config.Config
	agg      *aggregator.Aggregator
	notifier notifier.Notifier
	cache    store.BarCache
}

func (a *app) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			log.Printf("[WARN] close bar cache: %v", err)
		}
	}
}

func setup() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if workers > 0 {
		cfg.Scan.Workers = workers
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	a := &app{cfg: cfg}
	fetcher, err := newFetcher(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Cache.SQLitePath != "" {
		c, err := store.NewSQLiteCache(cfg.Cache.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init bar cache failed, fetching without cache: %v", err)
		} else {
			a.cache = c
			fetcher = store.NewCachingFetcher(fetcher, c)
		}
	}
	log.Printf("[INFO] data source: %s", fetcher.Name())

	engine := strategy.NewEngine(cfg.StrategyConfig())
	a.agg = aggregator.New(fetcher, engine, cfg.Scan.Workers, cfg.Scan.FetchTimeout)
	a.notifier = newNotifier(cfg)
	return a, nil
}

func newFetcher(cfg *config.Config) (collector.Fetcher, error) {
	ds := cfg.DataSource
	switch ds.Provider {
	case "yahoo":
		f := collector.NewYahooFetcher(cfg.Proxy, cfg.Scan.FetchTimeout, ds.RateLimit)
		if ds.BaseURL != "" {
			f.BaseURL = ds.BaseURL
		}
		for k, v := range ds.SymbolMap {
			f.SymbolMap[k] = v
		}
		return f, nil
	case "rest":
		return collector.NewRESTFetcher(ds.BaseURL, ds.APIKey, cfg.Proxy, cfg.Scan.FetchTimeout), nil
	case "mock":
		return &collector.MockFetcher{Default: cfg.StrategyConfig().Lookback(), Base: 100}, nil
	default:
		return nil, fmt.Errorf("unknown data source provider %q", ds.Provider)
	}
}

// newNotifier returns every configured channel, or nil when none is.
func newNotifier(cfg *config.Config) notifier.Notifier {
	var m notifier.Multi
	if cfg.Email.From != "" && len(cfg.Email.To) > 0 {
		m = append(m, notifier.NewEmailNotifier(cfg.Email.Host, cfg.Email.Port, cfg.Email.From, cfg.Email.Password, cfg.Email.To))
	}
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		m = append(m, notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy))
	}
	switch len(m) {
	case 0:
		log.Println("[WARN] no email or Telegram configured, alerts will not be sent")
		return nil
	case 1:
		return m[0]
	}
	return m
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runScan(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	event := a.cfg.EventName
	if triggerName != "" {
		event = triggerName
	}
	trigger := notifier.TriggerFromEvent(event)

	groups, err := a.cfg.LoadGroups()
	if err != nil {
		return fmt.Errorf("load groups: %w", err)
	}
	if groupList != "" {
		groups, err = symbols.Filter(groups, strings.Split(groupList, ","))
		if err != nil {
			return err
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	var bar *progressbar.ProgressBar
	if showBar {
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription("Scanning"),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]█[reset]",
				SaucerHead:    "[green]█[reset]",
				SaucerPadding: "░",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
		a.agg.SetProgressCallback(func(done, total int) {
			bar.ChangeMax(total)
			bar.Set(done)
		})
	}

	n := a.notifier
	if dryRun {
		n = notifier.Writer{W: os.Stdout}
	}
	sched := scheduler.NewScheduler(ctx, a.agg, func() ([]model.Group, error) { return groups, nil }, n, a.cfg.Location())
	sched.Subject = a.cfg.Email.Subject
	sched.NotifyEmpty = a.cfg.Scan.NotifyEmpty

	report, err := sched.RunOnce(ctx, trigger)
	if bar != nil {
		bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	if report != nil {
		if werr := writeReport(os.Stdout, format, report, a.cfg.Location()); werr != nil {
			return werr
		}
	}
	if errors.Is(err, notifier.ErrDelivery) {
		return fmt.Errorf("alert not delivered: %w", err)
	}
	return err
}

func serve(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()

	sched := scheduler.NewScheduler(ctx, a.agg, a.cfg.LoadGroups, a.notifier, a.cfg.Location())
	sched.Subject = a.cfg.Email.Subject
	sched.NotifyEmpty = a.cfg.Scan.NotifyEmpty
	if err := sched.Register(a.cfg.Schedule.ScanCron); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()
	log.Printf("[INFO] scan scheduled at %q (%s), next run %s",
		a.cfg.Schedule.ScanCron, a.cfg.Schedule.Timezone, sched.NextRun().Format("2006-01-02 15:04 MST"))

	if a.cfg.Telegram.BotToken != "" && a.cfg.Telegram.ChatID != "" {
		tn := notifier.NewTelegramNotifier(a.cfg.Telegram.BotToken, a.cfg.Telegram.ChatID, a.cfg.Proxy)
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Println("[INFO] Telegram polling started")
	}

	if runOnStart {
		log.Println("[INFO] run-on-start enabled, executing scan now")
		go func() {
			if _, err := sched.RunOnce(ctx, model.TriggerManual); err != nil {
				log.Printf("[ERROR] startup scan: %v", err)
			}
		}()
	}

	log.Println("[INFO] stockalert is running. Press Ctrl+C to stop.")
	<-ctx.Done()
	log.Println("[INFO] shutdown signal received, stopping...")
	return nil
}
