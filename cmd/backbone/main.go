package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/idmesh/reference-resolution-backend/common"
	"github.com/idmesh/reference-resolution-backend/httpserver"
	"github.com/idmesh/reference-resolution-backend/storage"
)

var flags []cli.Flag = []cli.Flag{
	&cli.StringFlag{
		Name:  "listen-addr",
		Value: "127.0.0.1:8080",
		Usage: "address to listen on for the record API",
	},
	&cli.StringSliceFlag{
		Name:  "storage-uri",
		Value: cli.NewStringSlice("file:///tmp/idmesh-records"),
		Usage: "record storage backend URI (repeatable; file://, s3://, ipfs://, vault://)",
	},
	&cli.BoolFlag{
		Name:  "log-json",
		Value: false,
		Usage: "log in JSON format",
	},
	&cli.BoolFlag{
		Name:  "log-debug",
		Value: false,
		Usage: "log debug messages",
	},
	&cli.BoolFlag{
		Name:  "log-uid",
		Value: false,
		Usage: "generate a uuid and add to all log messages",
	},
	&cli.BoolFlag{
		Name:  "pprof",
		Value: false,
		Usage: "enable pprof debug endpoint",
	},
	&cli.Int64Flag{
		Name:  "drain-seconds",
		Value: 45,
		Usage: "seconds to wait in drain HTTP request",
	},
}

func main() {
	app := &cli.App{
		Name:  "backbone-server",
		Usage: "Serve the development backbone record API",
		Flags: flags,
		Action: func(cCtx *cli.Context) error {
			logger := common.SetupLogger(&common.LoggingOpts{
				Debug:   cCtx.Bool("log-debug"),
				JSON:    cCtx.Bool("log-json"),
				Service: "backbone-server",
				Version: common.Version,
				UID:     cCtx.Bool("log-uid"),
			})

			storageFactory := storage.NewStorageBackendFactory(logger)
			backend, err := storageFactory.CreateMultiBackend(cCtx.StringSlice("storage-uri"))
			if err != nil {
				logger.Error("Failed to create storage backend", "err", err)
				return err
			}
			logger.Info("Record storage configured", "backend", backend.Name())

			cfg := &httpserver.HTTPServerConfig{
				ListenAddr:               cCtx.String("listen-addr"),
				EnablePprof:              cCtx.Bool("pprof"),
				Log:                      logger,
				DrainDuration:            time.Duration(cCtx.Int64("drain-seconds")) * time.Second,
				GracefulShutdownDuration: 30 * time.Second,
				ReadTimeout:              60 * time.Second,
				WriteTimeout:             30 * time.Second,
			}

			server, err := httpserver.New(cfg, httpserver.NewHandler(backend, logger))
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			logger.Info("Starting server", "addr", cfg.ListenAddr)
			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			logger.Info("Server shutdown complete")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
