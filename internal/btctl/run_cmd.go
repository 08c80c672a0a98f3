package btctl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"niftybt/backtest"
	"niftybt/config"
	"niftybt/marketdata"
	"niftybt/options"
	"niftybt/report"
	"niftybt/strategy"
)

// runBacktest executes one run file against the local candle store.
func runBacktest(cfg *config.Config, runPath, outPath, chartPath string, asJSON bool) error {
	rf, err := config.LoadRunFile(runPath)
	if err != nil {
		return err
	}

	store, err := marketdata.OpenStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	premiums := &options.Source{Provider: store, Window: cfg.PremiumWindow}
	runCfg, err := rf.Build(cfg, strategy.Deps{Premiums: premiums})
	if err != nil {
		return err
	}
	runCfg.Progress = func(percent int, message string) {
		log.Printf("[btctl] %3d%% %s\n", percent, message)
	}

	engine := backtest.New(store)
	res, err := engine.Run(context.Background(), runCfg)
	if err != nil {
		return err
	}

	out := io.Writer(os.Stdout)
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		report.Render(out, res, runCfg.InitialCash)
	}

	if chartPath != "" {
		svg, err := backtest.RenderEquitySVG(res, runCfg.InitialCash, backtest.SVGChartOptions{})
		if err != nil {
			return fmt.Errorf("render chart: %w", err)
		}
		if err := os.WriteFile(chartPath, svg, 0o644); err != nil {
			return fmt.Errorf("write chart: %w", err)
		}
		log.Printf("[btctl] equity chart written to %s\n", chartPath)
	}
	return nil
}
