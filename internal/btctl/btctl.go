// Package btctl implements the one-shot CLI modes: running a backtest
// from a YAML run file, and seeding the candle store from CSV dumps.
package btctl

import (
	"flag"
	"log"
	"os"

	"niftybt/config"
)

// Run dispatches the CLI flags. Returns the process exit code.
func Run(args []string) int {
	flags := flag.NewFlagSet("btctl", flag.ContinueOnError)
	flags.SetOutput(os.Stderr)

	var (
		configPath string
		runPath    string
		outPath    string
		chartPath  string
		asJSON     bool
		importSpec string
	)

	flags.StringVar(&configPath, "config", "", "service config path (YAML), defaults to ./config.yaml when present")
	flags.StringVar(&runPath, "run", "", "backtest run file path (YAML)")
	flags.StringVar(&outPath, "out", "", "output path (default stdout)")
	flags.StringVar(&chartPath, "chart", "", "also write the equity curve SVG to this path")
	flags.BoolVar(&asJSON, "json", false, "emit the full result as JSON instead of the text report")
	flags.StringVar(&importSpec, "import", "", "seed candles from CSV: SYMBOL=PATH[,SYMBOL=PATH...]")

	if err := flags.Parse(args); err != nil {
		return 2
	}

	if configPath == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			configPath = "config.yaml"
		}
	}

	log.SetFlags(log.Ldate | log.Ltime)
	cfg := config.GetConfig(configPath)

	if importSpec != "" {
		if err := runImport(cfg, importSpec); err != nil {
			log.Printf("[btctl] import failed: %v\n", err)
			return 1
		}
		return 0
	}

	if runPath == "" {
		flags.Usage()
		return 2
	}
	if err := runBacktest(cfg, runPath, outPath, chartPath, asJSON); err != nil {
		log.Printf("[btctl] backtest failed: %v\n", err)
		return 1
	}
	return 0
}
