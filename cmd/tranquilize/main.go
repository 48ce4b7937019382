package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bnema/tranquilize/internal/background"
	"github.com/bnema/tranquilize/internal/fetcher"
	"github.com/bnema/tranquilize/internal/logging"
	"github.com/bnema/tranquilize/internal/messaging"
	"github.com/bnema/tranquilize/internal/models"
	"github.com/bnema/tranquilize/internal/parser"
	"github.com/bnema/tranquilize/internal/remoteconfig"
	"github.com/bnema/tranquilize/internal/settings"
	"github.com/bnema/tranquilize/internal/storage"
)

var (
	cfgFile string
	cfg     models.Config
	log     *zap.Logger
)

func main() {
	err := rootCmd.Execute()
	if log != nil {
		_ = log.Sync()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tranquilize",
	Short: "Hide distracting page elements on social sites",
	Long: `Tranquilize hides home feeds, suggestions and other distracting elements
on social sites using a remotely maintained rule set and per-rule toggles.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(cfg.Log)
		if err != nil {
			log = logging.NewDefault()
			log.Warn("invalid log config, using defaults", zap.Error(err))
			return nil
		}
		log = l
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ./configs/tranquilize.toml)")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("tranquilize")
		viper.SetConfigType("toml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
	}

	// Every key needs a default, AutomaticEnv only overrides keys viper knows
	viper.SetDefault("remote.url", models.ProdConfigURL)
	viper.SetDefault("remote.dev_url", models.DevConfigURL)
	viper.SetDefault("remote.use_dev", false)
	viper.SetDefault("remote.ttl", remoteconfig.DefaultTTL)
	viper.SetDefault("http.timeout", "30s")
	viper.SetDefault("http.retries", 3)
	viper.SetDefault("storage.path", "./data/tranquilize.db")
	viper.SetDefault("server.addr", "127.0.0.1:7373")
	viper.SetDefault("browser.devtools_url", "")
	viper.SetDefault("browser.target", "")
	viper.SetDefault("browser.poll_interval", "2s")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("log.file", "")
	viper.SetDefault("log.max_size_mb", 10)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("output.max_rules_per_file", 50000)
	viper.SetDefault("output.generate_manifest", true)
	viper.SetDefault("custom_rules", []string{})

	viper.SetEnvPrefix("tranquilize")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "Error reading config: %v\n", err)
		}
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing config: %v\n", err)
	}
}

// stores holds the two storage areas and the database behind them, if any
type stores struct {
	db    *gorm.DB
	local storage.Store
	sync  storage.Store
}

func openStores() (*stores, error) {
	if cfg.Storage.Path == "" {
		log.Debug("using in-memory storage")
		return &stores{
			local: storage.NewMemory(storage.AreaLocal),
			sync:  storage.NewMemory(storage.AreaSync),
		}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0755); err != nil {
		return nil, err
	}
	db, err := storage.OpenDB(cfg.Storage.Path, log)
	if err != nil {
		return nil, err
	}
	return &stores{
		db:    db,
		local: storage.NewSQLite(db, storage.AreaLocal),
		sync:  storage.NewSQLite(db, storage.AreaSync),
	}, nil
}

func (s *stores) Close() error {
	if s.db == nil {
		return nil
	}
	return storage.CloseDB(s.db)
}

// app wires the background side from the loaded config
type app struct {
	stores   *stores
	registry *prometheus.Registry
	cache    *remoteconfig.Cache
	settings *settings.Store
	bg       *background.Controller
}

func newApp() (*app, error) {
	st, err := openStores()
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	cache := remoteconfig.New(st.local, fetcher.New(cfg.HTTP), remoteconfig.Options{
		URL:     cfg.Remote.ConfigURL(),
		TTL:     cfg.Remote.TTL,
		Logger:  log.Named("remoteconfig"),
		Metrics: remoteconfig.NewMetrics(registry),
	})

	custom, err := loadCustomRules()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	store := settings.New(st.sync, log.Named("settings"))
	return &app{
		stores:   st,
		registry: registry,
		cache:    cache,
		settings: store,
		bg:       background.New(cache, store, custom, log.Named("background")),
	}, nil
}

func (a *app) Close() error {
	return a.stores.Close()
}

func loadCustomRules() ([]models.Filter, error) {
	if len(cfg.CustomRules) == 0 {
		return nil, nil
	}

	p := parser.New()
	filters, err := p.ParseFiles(cfg.CustomRules)
	if err != nil {
		return nil, fmt.Errorf("custom rules: %w", err)
	}

	stats := p.Stats()
	log.Info("loaded custom rules",
		zap.Int("lines", stats.Total),
		zap.Int("cosmetic", stats.Cosmetic),
		zap.Int("unsupported", stats.Unsupported))
	for reason, count := range stats.SkipReasons {
		log.Debug("custom rules skipped", zap.String("reason", reason), zap.Int("count", count))
	}
	return filters, nil
}

func newClient(attempts int) *messaging.Client {
	return messaging.NewClient(cfg.Server.Addr, messaging.ClientOptions{
		Attempts: attempts,
		Logger:   log.Named("messaging"),
	})
}

// notifyDaemon asks a running daemon to re-apply its tabs. A daemon that is
// not running is not an error.
func notifyDaemon(ctx context.Context) {
	if err := newClient(1).ProcessTab(ctx); err != nil {
		log.Debug("no daemon notified", zap.Error(err))
		return
	}
	fmt.Println("Notified running daemon")
}

func writeJSON(dir, filename string, data any) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path := filepath.Join(dir, filename)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
