// Package btserve runs the HTTP backtest service.
package btserve

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"niftybt/api"
	"niftybt/backtest"
	"niftybt/config"
	"niftybt/marketdata"
	"niftybt/options"
)

// Run starts the service and blocks until SIGINT/SIGTERM.
func Run(args []string) int {
	flags := flag.NewFlagSet("btserve", flag.ContinueOnError)
	flags.SetOutput(os.Stderr)

	var (
		configPath string
		port       int
	)
	flags.StringVar(&configPath, "config", "", "service config path (YAML), defaults to ./config.yaml when present")
	flags.IntVar(&port, "port", 0, "override the HTTP port")
	// -serve is consumed by the entrypoint router; accept it here so
	// `niftybt -serve -port N` parses cleanly.
	flags.Bool("serve", true, "run the HTTP service")

	if err := flags.Parse(args); err != nil {
		return 2
	}

	if configPath == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			configPath = "config.yaml"
		}
	}

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	cfg := config.GetConfig(configPath)
	if port > 0 {
		cfg.Port = port
	}

	store, err := marketdata.OpenStore(cfg.DBPath)
	if err != nil {
		log.Printf("[btserve] open store: %v\n", err)
		return 1
	}
	defer store.Close()

	premiums := &options.Source{Provider: store, Window: cfg.PremiumWindow}
	engine := backtest.New(store)
	server := api.NewServer(engine, premiums, cfg.Port)

	go func() {
		if err := server.Start(); err != nil {
			log.Printf("[btserve] server: %v\n", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("[btserve] shutting down...")
	if err := server.Shutdown(); err != nil {
		log.Printf("[btserve] shutdown: %v\n", err)
		return 1
	}
	log.Println("[btserve] stopped")
	return 0
}
