// Command warrantd serves the Warrant permission API as a standalone Forge
// application. Configuration is read from WARRANT_* environment variables.
// The store is in-memory unless a grove database is registered in the
// container and WARRANT_GROVE_DRIVER names its driver.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/xraph/forge"

	warrantext "github.com/xraph/warrant/extension"
	"github.com/xraph/warrant/store/memory"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := warrantext.LoadConfigFromEnv("WARRANT")
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	opts := []warrantext.ExtOption{
		warrantext.WithConfig(cfg),
		warrantext.WithLogger(logger),
	}
	if cfg.GroveDriver == "" {
		opts = append(opts, warrantext.WithStore(memory.New()))
	}

	app := forge.New(
		forge.WithExtensions(warrantext.New(opts...)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return app.Start(ctx)
}
