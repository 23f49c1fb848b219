// Command scigo-serve trains text classifiers on named datasets and serves
// predictions from stored artifacts over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/YuminosukeSato/scigo-serve/config"
	"github.com/YuminosukeSato/scigo-serve/datasets"
	"github.com/YuminosukeSato/scigo-serve/pkg/log"
	"github.com/YuminosukeSato/scigo-serve/runs"
	"github.com/YuminosukeSato/scigo-serve/server"
	"github.com/YuminosukeSato/scigo-serve/storage"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	addr := flag.String("addr", "", "listen address. overrides server.addr")
	loglevel := flag.String("loglevel", "", "log level. debug|info|warn|error")
	flag.Parse()

	if err := run(*configPath, *addr, *loglevel); err != nil {
		fmt.Fprintf(os.Stderr, "scigo-serve: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, addr, loglevel string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if loglevel != "" {
		cfg.Log.Level = loglevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	closer, err := log.Setup(cfg.LogOptions())
	if err != nil {
		return err
	}
	defer closer.Close()
	logger := log.GetLoggerWithName("main")

	loaders := make([]datasets.Loader, 0, len(cfg.Datasets))
	for _, d := range cfg.Datasets {
		var opts []datasets.CSVOption
		if d.TextColumn != "" && d.LabelColumn != "" {
			opts = append(opts, datasets.WithColumns(d.TextColumn, d.LabelColumn))
		}
		loaders = append(loaders, datasets.NewCSVLoader(d.Name, cfg.DataDir(), opts...))
	}
	registry, err := datasets.NewRegistry(loaders...)
	if err != nil {
		return err
	}

	st, err := storage.NewLocal(cfg.ArtifactsDir(), storage.WithCacheSize(cfg.Cache.Size))
	if err != nil {
		return err
	}
	ledger, err := runs.Open(cfg.RunsDatabase())
	if err != nil {
		return err
	}
	defer ledger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := st.Watch(ctx, nil); err != nil {
			logger.Error("Artifact watcher stopped", err)
		}
	}()

	srv := server.New(registry, st, ledger)
	errc := make(chan error, 1)
	go func() { errc <- srv.Start(cfg.Server.Addr) }()

	logger.Info("Serving",
		"addr", cfg.Server.Addr,
		"datasets", registry.Names(),
		log.ArtifactPathKey, st.Root(),
	)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	graceful, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(graceful); err != nil {
		return err
	}
	return <-errc
}
