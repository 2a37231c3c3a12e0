package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sebastiankruger/fiber-twin/internal/api"
	"github.com/sebastiankruger/fiber-twin/internal/config"
	"github.com/sebastiankruger/fiber-twin/internal/control"
	"github.com/sebastiankruger/fiber-twin/internal/core"
	"github.com/sebastiankruger/fiber-twin/internal/firmware"
	"github.com/sebastiankruger/fiber-twin/internal/health"
	"github.com/sebastiankruger/fiber-twin/internal/opcua"
	"github.com/sebastiankruger/fiber-twin/internal/telemetry"
	"github.com/sebastiankruger/fiber-twin/internal/twin"
)

const (
	opcuaFolder     = "FiberTwin"
	opcuaRefresh    = 250 * time.Millisecond
	shutdownTimeout = 30 * time.Second
)

type serveOptions struct {
	targetTemp  float64
	targetSpool float64
	feedSpeed   float64
}

func newServeCmd() *cobra.Command {
	var opts serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run the twin with OPC UA, HTTP and optional serial and broker interfaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	cmd.Flags().Float64Var(&opts.targetTemp, "target-temp", 0, "close the heater loop on this temperature in °C (0 disables)")
	cmd.Flags().Float64Var(&opts.targetSpool, "target-spool", 0, "close the spool loop on this speed in rps (0 disables)")
	cmd.Flags().Float64Var(&opts.feedSpeed, "feed-speed", 0, "controller feed speed in rps, applied once the heater is hot")
	return cmd
}

func runServe(parent context.Context, opts serveOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if logLevel == "" && cfg.LogLevel != "" {
		if err := setLogLevel(cfg.LogLevel); err != nil {
			return err
		}
	}

	log.Info().
		Str("name", cfg.TwinName).
		Str("variant", cfg.Variant.String()).
		Int("opcua_port", cfg.OPCUAPort).
		Int("health_port", cfg.HealthPort).
		Dur("update_interval", cfg.UpdateInterval).
		Msg("Configuration loaded")

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tw, err := twin.New(twin.Config{
		Variant:          cfg.Variant,
		UpdateInterval:   cfg.UpdateInterval,
		DebugLogInterval: cfg.DebugLogInterval,
		Params:           cfg.Params,
		Logger:           &log.Logger,
	})
	if err != nil {
		return fmt.Errorf("create twin: %w", err)
	}
	rc := config.NewRuntimeConfig(cfg, tw)

	opcuaServer := opcua.NewServer(cfg.OPCUAPort, cfg.TwinName)
	if err := opcuaServer.Register(core.NamespaceTwin, opcuaFolder, "FrED fiber extrusion twin", tw.GetOPCUANodes()); err != nil {
		return err
	}
	if err := opcuaServer.Start(ctx); err != nil {
		return fmt.Errorf("start OPC UA server: %w", err)
	}

	healthHandler := health.NewHandler()
	healthHandler.AddCheck("twin_loop", tw.IsRunning)
	healthHandler.AddCheck("opcua_server", opcuaServer.Ready)

	mux := http.NewServeMux()
	healthHandler.Register(mux)
	api.NewHandler(cfg.TwinName, opcuaFolder, tw, rc).Register(mux)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HealthPort),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	session := firmware.NewSession(tw, firmware.WithNoise(core.NewNoiseGenerator(cfg.NoiseSeed), rc.GetNoiseLevel))
	publishers, err := newPublishers(cfg, session)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		tw.Start(ctx)
		<-ctx.Done()
		tw.Stop()
		tw.Wait()
		log.Info().Msg("Twin loop stopped")
		return nil
	})

	g.Go(func() error {
		opcuaServer.Run(ctx, opcuaFolder, opcuaRefresh, tw.GenerateData)
		return nil
	})

	g.Go(func() error {
		log.Info().Int("port", cfg.HealthPort).Msg("Starting HTTP server (health + API)")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})

	if len(publishers) > 0 {
		g.Go(func() error {
			return telemetry.Run(ctx, tw, cfg.PublishInterval, publishers...)
		})
	}

	if cfg.SerialPort != "" {
		g.Go(func() error {
			return serveSerial(ctx, cfg, session)
		})
	}

	if opts.targetTemp > 0 || opts.targetSpool > 0 {
		ctrl := newController(tw, opts)
		g.Go(func() error {
			ctrl.Run(ctx)
			return nil
		})
	}

	<-ctx.Done()
	log.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if err := opcuaServer.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("OPC UA server shutdown error")
	}
	for _, p := range publishers {
		if err := p.Close(); err != nil {
			log.Error().Err(err).Msg("Publisher close error")
		}
	}

	err = g.Wait()
	log.Info().
		Float64("energy_wh", tw.SystemEnergy()).
		Float64("fiber_length_mm", tw.FiberLength()).
		Msg("Twin shutdown complete")
	return err
}

func newPublishers(cfg *config.Config, session *firmware.Session) ([]telemetry.Publisher, error) {
	var pubs []telemetry.Publisher
	if cfg.MQTTBroker != "" {
		p, err := telemetry.NewMQTTPublisher(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopic)
		if err != nil {
			return nil, err
		}
		if cfg.MQTTCommandTopic != "" {
			if err := p.SubscribeCommands(cfg.MQTTCommandTopic, session); err != nil {
				p.Close()
				return nil, err
			}
		}
		pubs = append(pubs, p)
	}
	if len(cfg.KafkaBrokers) > 0 {
		p, err := telemetry.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			for _, prev := range pubs {
				prev.Close()
			}
			return nil, err
		}
		pubs = append(pubs, p)
	}
	return pubs, nil
}

func serveSerial(ctx context.Context, cfg *config.Config, session *firmware.Session) error {
	port, err := firmware.OpenSerial(cfg.SerialPort, cfg.SerialBaud)
	if err != nil {
		return err
	}
	defer port.Close()

	log.Info().
		Str("port", cfg.SerialPort).
		Int("baud", cfg.SerialBaud).
		Msg("Serving controller protocol on serial port")
	return session.Serve(ctx, port)
}

func newController(tw *twin.Twin, opts serveOptions) *control.Manual {
	mode := control.ModeDynamic
	if tw.Variant() == twin.BasicState || tw.Variant() == twin.RegressionState {
		mode = control.ModeState
	}
	ctrl := control.NewManual(tw, control.ManualConfig{Mode: mode, Logger: &log.Logger})
	ctrl.SetTargets(control.Targets{
		HeaterTemperature: opts.targetTemp,
		SpoolSpeed:        opts.targetSpool,
		FeedSpeed:         opts.feedSpeed,
	})
	if mode == control.ModeDynamic {
		ctrl.EnableHeaterPID(opts.targetTemp > 0)
		ctrl.EnableSpoolPID(opts.targetSpool > 0)
	}
	return ctrl
}
