package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ruteri/attestation-registry/attestation"
	"github.com/ruteri/attestation-registry/chain"
	"github.com/ruteri/attestation-registry/cmd/flags"
	"github.com/ruteri/attestation-registry/cryptoutils"
	"github.com/ruteri/attestation-registry/events"
	"github.com/ruteri/attestation-registry/httpserver"
	"github.com/ruteri/attestation-registry/interfaces"
	"github.com/ruteri/attestation-registry/storage"
	"github.com/urfave/cli/v2"
)

var serverFlags = []cli.Flag{
	flags.RpcAddrFlag,
	flags.StorageFlag,
	flags.HashFlag,
	&cli.StringFlag{
		Name:  "listen-addr",
		Value: "127.0.0.1:8080",
		Usage: "address to listen on for API",
	},
	&cli.StringFlag{
		Name:  "clock",
		Value: "eth",
		Usage: "block height source: 'eth' (head block of --rpc-addr) or 'time'",
	},
	&cli.TimestampFlag{
		Name:   "genesis",
		Layout: time.RFC3339,
		Usage:  "genesis time of the 'time' clock (RFC3339)",
	},
	&cli.DurationFlag{
		Name:  "block-interval",
		Value: 6 * time.Second,
		Usage: "block interval of the 'time' clock",
	},
	&cli.StringFlag{
		Name:  "treasury",
		Value: "memory",
		Usage: "treasury for registration payments: 'memory' or 'eth'",
	},
	&cli.StringFlag{
		Name:  "treasury-key-file",
		Usage: "hex-encoded key of the treasury account (required for --treasury=eth)",
	},
	&cli.StringFlag{
		Name:  "denom",
		Value: interfaces.NativeDenom,
		Usage: "denomination accepted by the treasury",
	},
	&cli.StringFlag{
		Name:  "events-redis",
		Usage: "redis URL to publish attestation events to",
	},
	&cli.StringFlag{
		Name:  "events-channel",
		Value: events.DefaultChannel,
		Usage: "redis pub/sub channel for attestation events",
	},
}

func main() {
	app := &cli.App{
		Name:  "attestation-server",
		Usage: "Serve the identity attestation registry API",
		Flags: append(append(serverFlags, flags.CommonFlags...), flags.LogServiceFlagFn("attestation-registry")),
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			engine, cleanup, err := buildEngine(cCtx, logger)
			if err != nil {
				logger.Error("Failed to set up attestation engine", "err", err)
				return err
			}
			defer cleanup()

			cfg := flags.ConfigureServer(cCtx, logger, cCtx.String("listen-addr"))
			server, err := httpserver.New(cfg, httpserver.NewHandler(engine, logger))
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			logger.Info("Starting server")
			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("Server is running, press Ctrl+C to stop")
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

// buildEngine assembles the engine environment from flags. The returned
// cleanup releases connections opened along the way.
func buildEngine(cCtx *cli.Context, logger *slog.Logger) (*attestation.Engine, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	locations, err := flags.StorageLocations(cCtx)
	if err != nil {
		return nil, cleanup, err
	}
	backend, err := storage.NewStorageBackendFactory(logger).CreateMultiBackend(locations)
	if err != nil {
		return nil, cleanup, err
	}
	logger.Info("Storage configured", "location", backend.LocationURI())

	hasher, err := cryptoutils.HasherByName(cCtx.String(flags.HashFlag.Name))
	if err != nil {
		return nil, cleanup, err
	}

	var ethClient *ethclient.Client
	dialEth := func() (*ethclient.Client, error) {
		if ethClient != nil {
			return ethClient, nil
		}
		rpcAddress := cCtx.String(flags.RpcAddrFlag.Name)
		logger.Info("Connecting to Ethereum RPC", "address", rpcAddress)
		client, err := ethclient.Dial(rpcAddress)
		if err != nil {
			return nil, fmt.Errorf("dial RPC: %w", err)
		}
		ethClient = client
		closers = append(closers, client.Close)
		return client, nil
	}

	var clock interfaces.Clock
	switch mode := cCtx.String("clock"); mode {
	case "eth":
		client, err := dialEth()
		if err != nil {
			return nil, cleanup, err
		}
		clock = chain.NewEthClock(client)
	case "time":
		genesis := cCtx.Timestamp("genesis")
		if genesis == nil {
			return nil, cleanup, fmt.Errorf("--genesis is required for --clock=time")
		}
		clock, err = chain.NewTimeClock(*genesis, cCtx.Duration("block-interval"))
		if err != nil {
			return nil, cleanup, err
		}
	default:
		return nil, cleanup, fmt.Errorf("invalid --clock %q", mode)
	}

	var treasury interfaces.Treasury
	switch mode := cCtx.String("treasury"); mode {
	case "memory":
		treasury = chain.NewMemoryTreasury(cCtx.String("denom"))
	case "eth":
		keyFile := cCtx.String("treasury-key-file")
		if keyFile == "" {
			return nil, cleanup, fmt.Errorf("--treasury-key-file is required for --treasury=eth")
		}
		key, err := cryptoutils.LoadKey(keyFile)
		if err != nil {
			return nil, cleanup, err
		}
		client, err := dialEth()
		if err != nil {
			return nil, cleanup, err
		}
		ethTreasury := chain.NewEthTreasury(client, key, cCtx.String("denom"), logger)
		logger.Info("Using Ethereum treasury", "address", ethTreasury.Address().Hex())
		treasury = ethTreasury
	default:
		return nil, cleanup, fmt.Errorf("invalid --treasury %q", mode)
	}

	sinks := []interfaces.EventSink{events.NewLogSink(logger)}
	if url := cCtx.String("events-redis"); url != "" {
		ctx, cancel := context.WithTimeout(cCtx.Context, storage.ConnectTimeout)
		defer cancel()
		redisSink, err := events.NewRedisSinkFromURL(ctx, url, cCtx.String("events-channel"))
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, func() { redisSink.Close() })
		sinks = append(sinks, redisSink)
	}

	engine, err := attestation.NewEngine(attestation.EngineOpts{
		Store:    attestation.NewStore(backend),
		Clock:    clock,
		Hasher:   hasher,
		Treasury: treasury,
		Events:   events.NewMultiSink(sinks...),
		Log:      logger,
	})
	if err != nil {
		return nil, cleanup, err
	}
	return engine, cleanup, nil
}
