// wuic processes configured asset workflows: it resolves heaps, runs the
// stage chain and writes versioned outputs, delivery hints and offline
// manifests under the output directory.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/pflag"

	"github.com/tool-recommender-bot/wuic/config"
	"github.com/tool-recommender-bot/wuic/delivery"
	"github.com/tool-recommender-bot/wuic/logger"
	"github.com/tool-recommender-bot/wuic/nut"
	"github.com/tool-recommender-bot/wuic/telemetry"
	"github.com/tool-recommender-bot/wuic/workflow"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		outDir     string
		only       []string
		logLevel   string
		trace      bool
		showStats  bool
	)

	flagSet := pflag.NewFlagSet("wuic", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "wuic.yml", "path to the configuration file")
	flagSet.StringVar(&outDir, "out", "dist", "directory processed assets are written to")
	flagSet.StringSliceVar(&only, "workflow", nil, "process only the named workflows (default: all)")
	flagSet.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (default: from config)")
	flagSet.BoolVar(&trace, "trace", false, "emit OpenTelemetry spans through the installed provider")
	flagSet.BoolVar(&showStats, "stats", false, "print cache statistics after the run")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel == "" {
		logLevel = cfg.LogLevel
	}
	logger.Init(logLevel)

	if trace || cfg.Trace {
		telemetry.Init(telemetry.NewOtel("wuic", nil))
		defer telemetry.Shutdown(context.Background())
	}

	rt, err := workflow.New(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := context.Background()

	ids := rt.Workflows()
	if len(only) > 0 {
		ids = only
	}
	for _, id := range ids {
		if err := processWorkflow(ctx, rt, outDir, id); err != nil {
			return fmt.Errorf("workflow %s: %w", id, err)
		}
	}

	if showStats {
		printStats(rt)
	}
	return nil
}

// processWorkflow runs one workflow and writes every reachable asset, the
// delivery hints document and one offline manifest per root.
func processWorkflow(ctx context.Context, rt *workflow.Runtime, outDir, id string) error {
	results, err := rt.Run(ctx, id)
	if err != nil {
		return err
	}

	p := delivery.NewProvider(rt.ContextPath(), id)

	written := 0
	for _, n := range nut.Flatten(results) {
		if err := writeNut(ctx, p, outDir, n); err != nil {
			return err
		}
		written++
	}

	var tags []string
	for _, root := range results {
		hints, err := delivery.CollectHints(ctx, p, root)
		if err != nil {
			return err
		}
		for _, h := range hints {
			tags = append(tags, h.LinkTag())
		}

		manifest, err := delivery.Manifest(ctx, p, root)
		if err != nil {
			return err
		}
		if err := writeNut(ctx, p, outDir, manifest); err != nil {
			return err
		}
		written++
	}
	if len(tags) > 0 {
		dir := filepath.Join(outDir, filepath.FromSlash(strings.TrimPrefix(rt.ContextPath(), "/")), id)
		if err := writeFile(filepath.Join(dir, "hints.html"), []byte(strings.Join(tags, "\n")+"\n")); err != nil {
			return err
		}
	}

	logger.L().Info("workflow processed", "workflow", id, "assets", written, "out", outDir)
	return nil
}

// writeNut places one asset at its delivery URL path under the output
// directory.
func writeNut(ctx context.Context, p *delivery.Provider, outDir string, n *nut.Nut) error {
	url, err := p.URL(ctx, n)
	if err != nil {
		return err
	}
	data, err := n.Content(ctx)
	if err != nil {
		return err
	}
	return writeFile(filepath.Join(outDir, filepath.FromSlash(strings.TrimPrefix(url, "/"))), data)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func printStats(rt *workflow.Runtime) {
	stats := rt.Stats().GetStats()
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Println("cache statistics:")
	for _, k := range keys {
		fmt.Printf("  %s: %v\n", k, stats[k])
	}
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Println("wuic processes web asset workflows: heap resolution, aggregation,")
	fmt.Println("reference inspection, minification, caching and compression.")
	fmt.Println()
	fmt.Println("usage: wuic [flags]")
	fmt.Println()
	fmt.Println("flags:")
	fmt.Print(flagSet.FlagUsages())
}
