package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"TickerPulse/internal/di"
	"TickerPulse/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	mode := flag.String("mode", "", "override engine mode (conservative, balanced, aggressive)")
	focus := flag.String("focus", "", "override focus region (US, IN, CRYPTO)")
	tickers := flag.String("tickers", "", "comma separated tickers added to the seed list")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *mode != "" {
		cfg.Engine.Mode = *mode
	}
	if *focus != "" {
		cfg.Engine.FocusRegion = strings.ToUpper(*focus)
	}
	for _, t := range strings.Split(*tickers, ",") {
		if t = strings.TrimSpace(t); t != "" {
			cfg.Engine.SeedTickers = append(cfg.Engine.SeedTickers, t)
		}
	}

	log.Printf("env=%s mode=%s focus=%s storage=%s kafka=%t redis=%t",
		cfg.App.Environment, cfg.Engine.Mode, cfg.Engine.FocusRegion,
		cfg.Storage.Backend, cfg.Kafka.Enabled, cfg.Redis.Enabled)

	// mode and focus are re-validated when the orchestrator is built
	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
