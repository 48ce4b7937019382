package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/spf13/cobra"

	"github.com/bnema/tranquilize/internal/applier"
	"github.com/bnema/tranquilize/internal/content"
	"github.com/bnema/tranquilize/internal/converter"
	"github.com/bnema/tranquilize/internal/matcher"
	"github.com/bnema/tranquilize/internal/models"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or refresh the remote config",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current config, custom rules included",
	RunE:  runConfigShow,
}

var configRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Drop the cached config and fetch it again",
	RunE:  runConfigRefresh,
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "List or change rule toggles",
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every rule and whether it is enabled",
	RunE:  runSettingsList,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <site.rule> <true|false>",
	Short: "Enable or disable a rule",
	Args:  cobra.ExactArgs(2),
	RunE:  runSettingsSet,
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply the rules to an HTML file and print the result",
	RunE:  runApply,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export enabled rules as WebKit content blocker JSON",
	RunE:  runExport,
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the daemon answers messages",
	RunE:  runPing,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	RunE:  runInit,
}

func init() {
	applyCmd.Flags().String("url", "", "address the page was loaded from")
	applyCmd.Flags().String("html", "-", "HTML file to apply the rules to, - for stdin")
	applyCmd.Flags().StringP("output", "o", "", "write the result here instead of stdout")
	applyCmd.Flags().Bool("daemon", false, "load the config from the running daemon")
	_ = applyCmd.MarkFlagRequired("url")

	exportCmd.Flags().StringP("output", "o", "./output", "output directory")
	exportCmd.Flags().Bool("dry-run", false, "convert without writing files")
	exportCmd.Flags().Bool("verbose", false, "verbose output")

	configCmd.AddCommand(configShowCmd, configRefreshCmd)
	settingsCmd.AddCommand(settingsListCmd, settingsSetCmd)
	rootCmd.AddCommand(configCmd, settingsCmd, applyCmd, exportCmd, pingCmd, initCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := json.MarshalIndent(a.bg.GetConfig(cmd.Context()), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runConfigRefresh(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Printf("Refreshing config from %s...\n", a.cache.URL())
	refreshed := a.bg.ForceRefresh(ctx)
	fmt.Printf("  Version: %s\n", refreshed.Version)
	fmt.Printf("  Sites: %d\n", len(refreshed.Sites))
	for _, problem := range invalidPatterns(matcher.New(log.Named("matcher")), refreshed) {
		fmt.Printf("  Warning: %s\n", problem)
	}

	notifyDaemon(ctx)
	return nil
}

func runSettingsList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	remote := a.bg.GetConfig(ctx)
	current, err := a.settings.LoadOrInit(ctx, remote)
	if err != nil {
		return err
	}

	fmt.Printf("Rules (config %s):\n", remote.Version)
	for _, site := range remote.SiteNames() {
		fmt.Printf("\n  %s\n", site)
		for _, rule := range remote.Sites[site].Rules {
			status := "on "
			if !current.Enabled(site, rule) {
				status = "off"
			}
			name := rule.DisplayName
			if name == "" {
				name = rule.ID
			}
			fmt.Printf("    [%s] %-32s %s\n", status, models.Key(site, rule.ID), name)
		}
	}
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	key, err := models.ParseSettingKey(args[0])
	if err != nil {
		return err
	}
	enabled, err := strconv.ParseBool(args[1])
	if err != nil {
		return fmt.Errorf("invalid value %q: %w", args[1], err)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	remote := a.bg.GetConfig(ctx)
	if !hasRule(remote, key) {
		fmt.Printf("Warning: %s is not a rule of config %s\n", key, remote.Version)
	}
	if _, err := a.settings.LoadOrInit(ctx, remote); err != nil {
		return err
	}
	if err := a.settings.Update(ctx, key, enabled); err != nil {
		return err
	}
	fmt.Printf("%s = %t\n", key, enabled)

	notifyDaemon(ctx)
	return nil
}

func hasRule(cfg *models.RemoteConfig, key models.SettingKey) bool {
	for _, rule := range cfg.Sites[key.Site].Rules {
		if rule.ID == key.RuleID {
			return true
		}
	}
	return false
}

// invalidPatterns lists the url patterns of cfg that cannot be compiled,
// in site and rule order
func invalidPatterns(m *matcher.Matcher, cfg *models.RemoteConfig) []string {
	var problems []string
	for _, site := range cfg.SiteNames() {
		for _, rule := range cfg.Sites[site].Rules {
			for _, pattern := range rule.URLPatterns {
				if err := m.Validate(pattern); err != nil {
					problems = append(problems, fmt.Sprintf("%s: %v", models.Key(site, rule.ID), err))
				}
			}
		}
	}
	return problems
}

func runApply(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	pageURL, _ := cmd.Flags().GetString("url")
	htmlPath, _ := cmd.Flags().GetString("html")
	outPath, _ := cmd.Flags().GetString("output")
	viaDaemon, _ := cmd.Flags().GetBool("daemon")

	doc, err := readDocument(htmlPath)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var source content.ConfigSource = content.ConfigSourceFunc(func(ctx context.Context) (*models.RemoteConfig, error) {
		return a.bg.GetConfig(ctx), nil
	})
	if viaDaemon {
		// The content controller retries, the client must not multiply it
		source = newClient(1)
	}

	m := matcher.New(log.Named("matcher"))
	surface := content.NewDocumentSurface(doc, applier.New(m, log.Named("applier")))
	c := content.New(source, a.settings, surface, content.Options{Matcher: m, Logger: log.Named("content")})
	if err := c.Init(ctx, pageURL); err != nil {
		return err
	}

	out, err := surface.HTML()
	if err != nil {
		return err
	}
	if outPath == "" {
		fmt.Println(out)
		return nil
	}
	return os.WriteFile(outPath, []byte(out), 0644)
}

func readDocument(path string) (*goquery.Document, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	outputDir, _ := cmd.Flags().GetString("output")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	verbose, _ := cmd.Flags().GetBool("verbose")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	remote := a.bg.GetConfig(ctx)
	current, err := a.settings.LoadOrInit(ctx, remote)
	if err != nil {
		return err
	}

	fmt.Printf("Exporting config %s (%d sites)...\n", remote.Version, len(remote.Sites))
	if dryRun {
		fmt.Println("[DRY RUN] No files will be written")
	}

	c := converter.New(log.Named("converter"))
	rules := converter.Deduplicate(c.Convert(remote, current))
	stats := c.Stats()

	fmt.Printf("  Converted: %d rules (skipped: %d)\n", len(rules), stats.Skipped)
	if verbose && len(stats.SkipReasons) > 0 {
		fmt.Printf("  Skips:\n")
		for reason, count := range stats.SkipReasons {
			fmt.Printf("    - %s: %d\n", reason, count)
		}
	}

	if dryRun {
		return nil
	}

	splitter := converter.NewSplitter(cfg.Output.MaxRulesPerFile)
	var files []string
	for _, part := range splitter.Split(rules, "tranquilize") {
		name := part.Name + ".json"
		if err := writeJSON(outputDir, name, part.Rules); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		files = append(files, name)
	}

	if cfg.Output.GenerateManifest {
		manifest := Manifest{
			Version:       time.Now().Format("2006.01.02"),
			GeneratedAt:   time.Now().UTC().Format(time.RFC3339),
			ConfigVersion: remote.Version,
			SourceURL:     a.cache.URL(),
			TotalRules:    len(rules),
			SkippedCount:  stats.Skipped,
			Files:         files,
		}
		if err := writeJSON(outputDir, "manifest.json", manifest); err != nil {
			return fmt.Errorf("write manifest: %w", err)
		}
	}

	fmt.Printf("  Wrote %s to %s\n", strings.Join(files, ", "), outputDir)
	return nil
}

// Manifest describes an export
type Manifest struct {
	Version       string   `json:"version"`
	GeneratedAt   string   `json:"generated_at"`
	ConfigVersion string   `json:"config_version"`
	SourceURL     string   `json:"source_url"`
	TotalRules    int      `json:"total_rules"`
	SkippedCount  int      `json:"skipped_count"`
	Files         []string `json:"files"`
}

func runPing(cmd *cobra.Command, args []string) error {
	pong, err := newClient(1).Ping(cmd.Context())
	if err != nil {
		return fmt.Errorf("daemon at %s: %w", cfg.Server.Addr, err)
	}
	fmt.Printf("%s (%s)\n", pong.Status, time.UnixMilli(pong.Timestamp).Format(time.RFC3339))
	return nil
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := "./configs/tranquilize.toml"
	if cfgFile != "" {
		configPath = cfgFile
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s", configPath)
	}

	defaultConfig := `# Tranquilize configuration

# Extra cosmetic filters in uBlock syntax, e.g. "./configs/custom/*.txt"
custom_rules = []

# Where the rule document comes from
[remote]
url = "` + models.ProdConfigURL + `"
dev_url = "` + models.DevConfigURL + `"
use_dev = false
ttl = "24h"

# HTTP client settings
[http]
timeout = "30s"
retries = 3

# Cached config and settings. Leave path empty to keep them in memory.
[storage]
path = "./data/tranquilize.db"

# Message endpoint of the background daemon
[server]
addr = "127.0.0.1:7373"

# Apply rules to the tabs of a browser started with --remote-debugging-port
[browser]
devtools_url = ""
target = ""
poll_interval = "2s"

[log]
level = "info"
development = false
file = ""
max_size_mb = 10
max_backups = 3

# WebKit export settings
[output]
max_rules_per_file = 50000
generate_manifest = true
`

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0644); err != nil {
		return err
	}

	fmt.Printf("Created config file: %s\n", configPath)
	return nil
}
