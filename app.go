package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wfunc/matchgame/config"
	"github.com/wfunc/matchgame/coordinator"
	"github.com/wfunc/matchgame/events"
	"github.com/wfunc/matchgame/logger"
	"github.com/wfunc/matchgame/monitor"
	"github.com/wfunc/matchgame/persistence"
	"github.com/wfunc/matchgame/room"
	"github.com/wfunc/matchgame/rpc"
	"github.com/wfunc/matchgame/server"
	"github.com/wfunc/matchgame/services"
	"github.com/wfunc/matchgame/timer"
	"github.com/wfunc/matchgame/tracing"
)

const loadTimeout = 10 * time.Second

// run wires every component from cfg and serves until ctx is done.
func run(ctx context.Context, cfg *config.Config) error {
	if err := logger.Init(cfg.Log); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	shutdownTracing, err := tracing.InitTracer(cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Log.Warnf("Tracer shutdown: %v", err)
		}
	}()

	mon := monitor.NewMonitor(cfg.Metrics.Namespace)

	var recorders coordinator.Recorders

	store, err := persistence.Open(cfg.Store)
	switch {
	case errors.Is(err, persistence.ErrNoStore):
		logger.Log.Info("No store configured, rooms are memory only.")
	case err != nil:
		return fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	default:
		defer store.Close()
		mirror := persistence.NewMirror(store, cfg.Store.QueueSize, mon.StoreWriteDropped)
		defer mirror.Close()
		recorders = append(recorders, mirror)
		logger.Log.Infof("Mirroring rooms to the %s store.", cfg.Store.Driver)
	}

	if cfg.Events.AMQPURL != "" {
		publisher, err := events.NewPublisher(cfg.Events, mon.PublishDropped)
		if err != nil {
			return err
		}
		defer publisher.Close()
		recorders = append(recorders, publisher)
		logger.Log.Infof("Publishing room events to exchange %s.", cfg.Events.Exchange)
	}

	coord := coordinator.New(room.NewRoomManager(), coordinator.Options{
		Recorder: recorders,
		Metrics:  mon,
	})

	if store != nil && cfg.Store.ClearStale {
		loadCtx, cancel := context.WithTimeout(ctx, loadTimeout)
		snapshots, err := store.LoadRooms(loadCtx)
		cancel()
		if err != nil {
			logger.Log.Warnf("Could not load stored rooms: %v", err)
		} else {
			logger.Log.Infof("Cleared %d stale rooms from the store.", coord.ClearStale(snapshots))
		}
	}

	timers := timer.NewManager()
	defer timers.Stop()
	if cfg.Room.IdleTimeout > 0 {
		coord.StartReaper(timers, cfg.Room.IdleTimeout, cfg.Room.ReapInterval)
	}

	var summaries services.SummarySource
	if store != nil {
		summaries = store
	}
	stats := services.NewStatsService(coord, summaries)

	if cfg.Server.RPCAddress != "" {
		rpcServer, err := rpc.NewServer(cfg.Server.RPCAddress, stats)
		if err != nil {
			return fmt.Errorf("start RPC server: %w", err)
		}
		go rpcServer.Start()
		defer rpcServer.Stop()
	}

	if cfg.Server.GRPCAddress != "" {
		health, err := rpc.NewHealthServer(cfg.Server.GRPCAddress)
		if err != nil {
			return fmt.Errorf("start gRPC health server: %w", err)
		}
		go health.Start()
		defer health.Stop()
		health.SetServing(true)
		defer health.SetServing(false)
	}

	gameServer := server.NewGameServer(cfg.Server, cfg.Room, coord, mon, releaseVersion)
	logger.Log.Infof("Starting game server on %s", cfg.Server.HTTPAddress)
	return gameServer.Start(ctx)
}
