package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"

	"github.com/yourneighborhoodchef/asinfetch/internal/batch"
	"github.com/yourneighborhoodchef/asinfetch/internal/client"
	"github.com/yourneighborhoodchef/asinfetch/internal/config"
	"github.com/yourneighborhoodchef/asinfetch/internal/logging"
	"github.com/yourneighborhoodchef/asinfetch/internal/metrics"
	"github.com/yourneighborhoodchef/asinfetch/internal/ramp"
	"github.com/yourneighborhoodchef/asinfetch/internal/session"
)

func main() {
	rand.Seed(time.Now().UnixNano())
	logging.StartLogger()

	var (
		file       = flag.String("file", "", "file of ASINs: plain list or CSV with an asin column")
		configPath = flag.String("config", "config.json", "path to the configuration file")
		proxyFile  = flag.String("proxies", "proxies.txt", "line-delimited host:port:username:password proxy list")
		outputDir  = flag.String("output", "output", "directory for JSON and CSV results")
	)
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: asinfetch [flags] [ASIN ...]")
		fmt.Fprintln(os.Stderr, "\nFetches product data for each ASIN given on the command line and/or via --file.")
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := run(flag.Args(), *file, *configPath, *proxyFile, *outputDir); err != nil {
		logging.Errorf("%v", err)
		os.Exit(1)
	}
}

func run(args []string, file, configPath, proxyFile, outputDir string) error {
	// .env values feed the config overrides; a missing file is fine
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	asins, err := batch.CollectASINs(args, file)
	if err != nil {
		flag.Usage()
		return err
	}

	if cfg.AllowProxy {
		proxies, err := client.LoadProxyFile(proxyFile)
		if err != nil {
			return err
		}
		client.SetProxyList(proxies)
		logging.Infof("using %d proxies", len(proxies))
	}

	met := metrics.New()
	orch := session.NewOrchestrator(cfg.AllowProxy, met)
	orch.SetBaseURL(os.Getenv("ASINFETCH_BASE_URL"))
	if debugDir := os.Getenv("ASINFETCH_DEBUG_DIR"); debugDir != "" {
		orch.SetDebugSink(debugWriter(debugDir))
	}
	pool := session.NewPool(orch, cfg.InitialSessionPoolSize, met)

	ctx := context.Background()
	logging.Infof("warming %d sessions...", cfg.InitialSessionPoolSize)
	warmed := pool.Warm(ctx)
	logging.Infof("session pool ready with %d sessions", warmed)

	control := cfg.ConcurrencyControl
	gate := ramp.NewController(
		control.InitialConcurrent,
		control.ScaleIncrement,
		cfg.InitialSessionPoolSize+control.InitialConcurrent,
		control.ScaleUpDelayDuration(),
	)

	runner := &batch.Runner{
		Sessions:  pool,
		Fetcher:   orch,
		Gate:      gate,
		OutputDir: outputDir,
	}

	logging.Infof("processing %d ASINs", len(asins))
	summary := runner.Run(ctx, asins)

	logging.Infof("=== summary ===")
	logging.Infof("total ASINs processed: %d", summary.Total)
	logging.Successf("succeeded: %d", summary.Succeeded)
	if summary.Failed > 0 {
		logging.Warnf("failed: %d", summary.Failed)
	}
	if summary.CombinedCSV != "" {
		logging.Infof("combined results: %s", summary.CombinedCSV)
	}
	if data, err := json.Marshal(summary); err == nil {
		logging.JSON(string(data))
	}

	// let the async logger drain before the process exits
	time.Sleep(50 * time.Millisecond)
	return nil
}

// debugWriter saves fetched bodies under dir for offline inspection.
func debugWriter(dir string) func(shape, body string) {
	var n atomic.Int64
	return func(shape, body string) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return
		}
		name := fmt.Sprintf("%s_%s_%03d.html", shape, time.Now().Format("150405"), n.Add(1))
		_ = os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644)
	}
}
