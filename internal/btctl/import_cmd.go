package btctl

import (
	"context"
	"fmt"
	"log"
	"strings"

	"niftybt/config"
	"niftybt/marketdata"
)

// runImport seeds the candle store from SYMBOL=PATH CSV specs. Option
// contract files use the full NSEFO symbol so premium lookups find them.
func runImport(cfg *config.Config, spec string) error {
	store, err := marketdata.OpenStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	for _, part := range strings.Split(spec, ",") {
		symbol, path, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || symbol == "" || path == "" {
			return fmt.Errorf("bad import spec %q: want SYMBOL=PATH", part)
		}
		n, err := marketdata.ImportCSV(ctx, store, symbol, path)
		if err != nil {
			return err
		}
		log.Printf("[btctl] %s: imported %d candles from %s\n", symbol, n, path)
	}
	return nil
}
