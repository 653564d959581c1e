package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"stratopt-go/internal/app"
	"stratopt-go/internal/config"
	"stratopt-go/internal/history"
	"stratopt-go/internal/util"
)

const defaultConfigPath = "internal/config/config.yaml"

func main() {
	reader := bufio.NewReader(os.Stdin)

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := util.NewLoggerTo(os.Stderr, "warn", nil)

	a, err := app.New(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open storage: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = a.Close() }()

	ctx := context.Background()
	for {
		fmt.Println("\n=== Strategy Optimizer Console ===")
		fmt.Println("1) Show configuration summary")
		fmt.Println("2) List strategies")
		fmt.Println("3) Show strategy history")
		fmt.Println("4) Show suggestions")
		fmt.Println("5) Write suggested scripts")
		fmt.Println("6) Re-run analysis for all strategies")
		fmt.Println("7) Replay event journal")
		fmt.Println("8) Edit storage / output settings")
		fmt.Println("9) Save config")
		fmt.Println("0) Exit")
		fmt.Print("Select option: ")

		choice, ok := readChoice(reader)
		if !ok {
			fmt.Println()
			return
		}

		switch choice {
		case "1":
			printSummary(cfg)
		case "2":
			listStrategies(ctx, a)
		case "3":
			showHistory(ctx, reader, a)
		case "4":
			showSuggestions(ctx, reader, a)
		case "5":
			writeScripts(ctx, reader, a)
		case "6":
			n, err := a.Service.Reanalyze(ctx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "reanalyze failed: %v\n", err)
			} else {
				fmt.Printf("analysis refreshed for %d strategies\n", n)
			}
		case "7":
			replayJournal(ctx, reader, a, cfg)
		case "8":
			editSettings(reader, cfg)
			fmt.Println("settings take effect after saving and restarting")
		case "9":
			if err := saveConfig(cfg); err != nil {
				fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
			} else {
				fmt.Println("config saved")
			}
		case "0":
			return
		default:
			fmt.Println("unknown option")
		}
	}
}

func printSummary(cfg *config.Config) {
	fmt.Println("\n--- Configuration Summary ---")
	fmt.Printf("Webhook port: %d (max body %d bytes)\n", cfg.Server.Port, cfg.Server.MaxBodyBytes)
	fmt.Printf("Storage backend: %s\n", cfg.Storage.Backend)
	fmt.Printf("Data dir: %s | sqlite: %s\n", cfg.Storage.DataDir, cfg.Storage.SQLitePath)
	fmt.Printf("Event journal: %s\n", orNone(cfg.Storage.Journal))
	fmt.Printf("Scripts dir: %s (default script: %t)\n", cfg.Scripts.Dir, cfg.Scripts.EmitDefault)
	fmt.Printf("Analysis: enabled=%t dir=%s schedule=%s\n", cfg.Analysis.Enabled, cfg.Analysis.Dir, orNone(cfg.Analysis.Schedule))
	fmt.Printf("Metrics addr: %s | log level: %s\n", orNone(cfg.App.MetricsAddr), cfg.App.LogLevel)
}

func listStrategies(ctx context.Context, a *app.App) {
	names, err := a.Service.Strategies(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list failed: %v\n", err)
		return
	}
	if len(names) == 0 {
		fmt.Println("no strategies recorded yet")
		return
	}
	for _, name := range names {
		fmt.Println(" -", name)
	}
}

func showHistory(ctx context.Context, reader *bufio.Reader, a *app.App) {
	name := promptString(reader, "Strategy name", "")
	if name == "" {
		return
	}
	rows, err := a.Service.History(ctx, name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load failed: %v\n", err)
		return
	}
	fmt.Printf("\n%s: %d observations\n", name, len(rows))
	fmt.Println(strings.Join(history.Header, " | "))
	for _, obs := range rows {
		cells := []string{obs.Timestamp.Format("2006-01-02 15:04:05")}
		for _, v := range obs.Values() {
			cells = append(cells, fmt.Sprintf("%.4g", v))
		}
		fmt.Println(strings.Join(cells, " | "))
	}
}

func showSuggestions(ctx context.Context, reader *bufio.Reader, a *app.App) {
	name := promptString(reader, "Strategy name", "")
	if name == "" {
		return
	}
	set, err := a.Service.Suggest(ctx, name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "suggest failed: %v\n", err)
		return
	}
	if set == nil {
		fmt.Println("not enough history yet")
		return
	}
	for _, lp := range set.Labeled() {
		p := lp.Params
		fmt.Printf("%-18s tp=%.4g sl=%.4g trail=%.4g activation=%.4g\n",
			lp.Label, p.TakeProfit, p.StopLoss, p.TrailingStop, p.TrailingActivation)
	}
}

func writeScripts(ctx context.Context, reader *bufio.Reader, a *app.App) {
	name := promptString(reader, "Strategy name", "")
	if name == "" {
		return
	}
	written, err := a.Service.EmitScripts(ctx, name)
	for _, artifactName := range written {
		fmt.Println("wrote", filepath.Join(a.Config.Scripts.Dir, artifactName))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "write scripts failed: %v\n", err)
	}
}

func replayJournal(ctx context.Context, reader *bufio.Reader, a *app.App, cfg *config.Config) {
	path := promptString(reader, "Journal path", cfg.Storage.Journal)
	if path == "" {
		return
	}
	if path == cfg.Storage.Journal {
		fmt.Println("refusing to replay the live journal into its own store; copy it first")
		return
	}
	events, err := history.ReadJournal(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read journal failed: %v\n", err)
		return
	}
	n, err := a.Service.Replay(ctx, events)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay stopped after %d events: %v\n", n, err)
		return
	}
	fmt.Printf("replayed %d events\n", n)
}

func editSettings(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Settings ---")
	cfg.Storage.Backend = promptString(reader, "Storage backend (csv|sqlite|memory)", cfg.Storage.Backend)
	cfg.Storage.DataDir = promptString(reader, "Data dir", cfg.Storage.DataDir)
	cfg.Scripts.Dir = promptString(reader, "Scripts dir", cfg.Scripts.Dir)
	cfg.Analysis.Dir = promptString(reader, "Analysis dir", cfg.Analysis.Dir)
	cfg.Analysis.Schedule = promptString(reader, "Analysis schedule (blank to keep, '-' to clear)", cfg.Analysis.Schedule)
	if cfg.Analysis.Schedule == "-" {
		cfg.Analysis.Schedule = ""
	}
}

// readChoice returns the next trimmed input line; ok is false once stdin is exhausted.
func readChoice(reader *bufio.Reader) (string, bool) {
	input, err := reader.ReadString('\n')
	if errors.Is(err, io.EOF) && strings.TrimSpace(input) == "" {
		return "", false
	}
	return strings.TrimSpace(input), true
}

func promptString(reader *bufio.Reader, label, current string) string {
	if current != "" {
		fmt.Printf("%s [%s]: ", label, current)
	} else {
		fmt.Printf("%s: ", label)
	}
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return current
	}
	return line
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func loadConfig() (*config.Config, error) {
	return config.LoadWithEnv(locateConfig())
}

func saveConfig(cfg *config.Config) error {
	return config.Save(locateConfig(), cfg)
}

func locateConfig() string {
	if filepath.IsAbs(defaultConfigPath) {
		return defaultConfigPath
	}
	return filepath.Clean(defaultConfigPath)
}
