// Package app wires a fabric node from its configuration: dispatcher,
// router, computer, state store or request client.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thushan/ferry/internal/adapter/callback"
	"github.com/thushan/ferry/internal/adapter/client"
	"github.com/thushan/ferry/internal/adapter/computer"
	"github.com/thushan/ferry/internal/adapter/estimator"
	"github.com/thushan/ferry/internal/adapter/orchestrator"
	"github.com/thushan/ferry/internal/adapter/processor"
	"github.com/thushan/ferry/internal/adapter/state"
	"github.com/thushan/ferry/internal/adapter/stats"
	"github.com/thushan/ferry/internal/config"
	"github.com/thushan/ferry/internal/core/ports"
	"github.com/thushan/ferry/internal/logger"
)

// Application is one running fabric node.
type Application struct {
	cfg       *config.Config
	logger    logger.StyledLogger
	server    *Server
	collector *stats.Collector
	store     ports.StateStore
	hub       *callback.Hub
	driver    *orchestrator.Driver
	startTime time.Time
	cleanups  []func()
}

func New(startTime time.Time, cfg *config.Config, styled logger.StyledLogger) (*Application, error) {
	a := &Application{
		cfg:       cfg,
		logger:    styled,
		collector: stats.NewCollector(),
		startTime: startTime,
	}

	var proc LambdaProcessor
	var err error
	switch cfg.Role {
	case "dispatcher", "router":
		proc, err = a.buildProcessor()
	case "computer":
		proc, err = a.buildComputer()
	case "state", "client":
		proc = nil
	default:
		err = fmt.Errorf("invalid role: %s", cfg.Role)
	}
	if err != nil {
		return nil, err
	}

	a.server = NewServer(cfg, proc, a.collector, styled)

	// every node can receive one-way callback deliveries and serve states
	// when configured as the store
	a.hub = callback.NewHub(styled.Logger())
	callback.NewServer(a.hub, styled.Logger()).Register(a.server.Mux())

	if cfg.Role == "client" {
		if err := a.buildDriver(); err != nil {
			return nil, err
		}
	}

	if cfg.Role == "state" || (cfg.Role == "computer" && cfg.State.Endpoint == "") {
		store, err := a.stateStore()
		if err != nil {
			return nil, err
		}
		state.NewServer(store, styled.Logger()).Register(a.server.Mux())
	}

	styled.InfoWithCount("fabric node ready, role "+cfg.Role, len(cfg.Table.Entries))
	return a, nil
}

// Start runs the node until the context is cancelled. In client role the
// request driver runs alongside the server.
func (a *Application) Start(ctx context.Context) error {
	defer a.cleanup()

	if a.driver != nil {
		driverCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := a.driver.Run(driverCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("request driver failed", "error", err)
			}
		}()
	}

	return a.server.Start(ctx)
}

func (a *Application) cleanup() {
	for _, fn := range a.cleanups {
		fn()
	}
}

func (a *Application) buildProcessor() (LambdaProcessor, error) {
	cfg := a.cfg

	pool := client.NewPool(func(endpoint string) ports.LambdaClient {
		return client.New(endpoint, client.Options{
			ConnectionTimeout: cfg.Client.ConnectionTimeout,
			ResponseTimeout:   cfg.Client.ResponseTimeout,
		})
	}, cfg.Processor.MaxPendingClients)
	a.cleanups = append(a.cleanups, func() { _ = pool.Close() })

	var strategy processor.Strategy
	switch cfg.Processor.Type {
	case "router":
		router := processor.NewRouter()
		for _, entry := range cfg.Table.Entries {
			weight := entry.Weight
			if weight == 0 {
				weight = 1
			}
			for _, t := range router.Tables() {
				t.Change(entry.Lambda, entry.Destination, weight, entry.Final)
			}
		}
		strategy = router

	default:
		est, err := estimator.NewFromConfig(cfg.Estimator, probePool(cfg), a.logger.Logger())
		if err != nil {
			return nil, err
		}
		for _, entry := range cfg.Table.Entries {
			est.Change(entry.Lambda, entry.Destination, entry.Weight, entry.Final)
		}
		a.cleanups = append(a.cleanups, func() { _ = est.Close() })
		strategy = processor.NewDispatcher(est)
	}

	var controller ports.Controller
	if cfg.Processor.Controller != "" {
		controller = processor.NewHTTPController(cfg.Processor.Controller)
	}

	proc := processor.New(processor.Options{
		Endpoint:         cfg.ListenAddress(),
		CommandsEndpoint: cfg.Processor.CommandsEndpoint,
		MinForwardTime:   cfg.Processor.MinForwardTime,
		MaxForwardTime:   cfg.Processor.MaxForwardTime,
		Fake:             cfg.Processor.Fake,
	}, pool, strategy, controller, a.collector, a.logger.Logger())
	proc.Init(context.Background())
	return proc, nil
}

// probePool is the dedicated client pool the probe estimator dry-runs
// through, capped separately from the forwarding pool.
func probePool(cfg *config.Config) *client.Pool {
	return client.NewPool(func(endpoint string) ports.LambdaClient {
		return client.New(endpoint, client.Options{
			ConnectionTimeout: cfg.Client.ConnectionTimeout,
			ResponseTimeout:   cfg.Client.ResponseTimeout,
		})
	}, cfg.Estimator.MaxClients)
}

func (a *Application) buildComputer() (LambdaProcessor, error) {
	cfg := a.cfg

	comp := computer.New(cfg.ListenAddress(), cfg.Computer.Namespace, a.collector, a.logger.Logger())

	var backend computer.Backend
	switch cfg.Computer.Type {
	case "faas":
		gateway, err := computer.NewGateway(
			cfg.Computer.Gateway.URL,
			cfg.Computer.Gateway.NumClients,
			cfg.Computer.Gateway.Timeout,
			comp.TaskDone,
			a.logger.Logger())
		if err != nil {
			return nil, err
		}
		backend = gateway

	default:
		specs := make([]computer.LambdaSpec, 0, len(cfg.Computer.Lambdas))
		for _, l := range cfg.Computer.Lambdas {
			specs = append(specs, computer.LambdaSpec{
				Name:       l.Name,
				FixedOps:   l.FixedOps,
				OpsPerByte: l.OpsPerByte,
			})
		}
		backend = computer.NewSimulator(
			"computer@"+cfg.ListenAddress(),
			1e8,
			cfg.Computer.NumWorkers,
			specs,
			comp.TaskDone,
			a.logger.Logger())
	}
	comp.Attach(backend)
	a.cleanups = append(a.cleanups, func() { _ = backend.Close() })

	// chain/DAG orchestration needs a reachable state store
	var states computer.StateAccess
	if cfg.State.Endpoint != "" {
		states = state.NewClient(cfg.State.Endpoint, a.logger.Logger())
	} else {
		store, err := a.stateStore()
		if err != nil {
			return nil, err
		}
		states = store
	}
	walker := computer.NewWalker(comp, states, callback.NewClient(), a.logger.Logger())
	comp.AttachWalker(walker)

	return comp, nil
}

// buildDriver assembles the client role: a multi-destination client racing
// the configured endpoints, the composer on top, and the request driver.
func (a *Application) buildDriver() error {
	cfg := a.cfg

	multi, err := client.NewMulti(cfg.Client.Endpoints, cfg.Client.Persistence, func(endpoint string) ports.LambdaClient {
		return client.New(endpoint, client.Options{
			ConnectionTimeout: cfg.Client.ConnectionTimeout,
			ResponseTimeout:   cfg.Client.ResponseTimeout,
		})
	}, a.logger.Logger())
	if err != nil {
		return err
	}
	a.cleanups = append(a.cleanups, func() { _ = multi.Close() })

	composer := orchestrator.NewComposer(multi, a.logger.Logger())
	if cfg.Client.StateEndpoint != "" {
		composer.SetStateSource(state.NewClient(cfg.Client.StateEndpoint, a.logger.Logger()))
	}

	opts := orchestrator.DriverOptions{
		Lambda:           cfg.Client.Lambda,
		MaxRequests:      cfg.Client.MaxRequests,
		InterRequestTime: cfg.Client.InterRequestTime,
		InputSize:        cfg.Client.InputSize,
		Dry:              cfg.Client.Dry,
	}
	if cfg.Client.ChainFile != "" {
		chain, sizes, err := orchestrator.LoadChainFile(cfg.Client.ChainFile)
		if err != nil {
			return err
		}
		opts.Chain = chain
		opts.Callback = cfg.ListenAddress()
		stageSizedStates(composer, sizes)
	}
	if cfg.Client.DagFile != "" {
		dag, sizes, err := orchestrator.LoadDagFile(cfg.Client.DagFile)
		if err != nil {
			return err
		}
		opts.Dag = dag
		opts.Callback = cfg.ListenAddress()
		stageSizedStates(composer, sizes)
	}

	a.driver = orchestrator.NewDriver(composer, opts, a.hub, a.collector, a.logger.Logger())
	return nil
}

// stageSizedStates pre-stages zero-filled states of the declared sizes.
func stageSizedStates(composer *orchestrator.Composer, sizes map[string]int) {
	for name, size := range sizes {
		composer.StageState(name, make([]byte, size))
	}
}

// stateStore lazily builds the node-local store, shared by the state server
// routes and the walker.
func (a *Application) stateStore() (ports.StateStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	var store ports.StateStore
	var err error
	switch a.cfg.State.Backend {
	case "sqlite":
		store, err = state.NewSQLiteStore(a.cfg.State.Path)
		if err != nil {
			return nil, err
		}
	default:
		store = state.NewMemoryStore()
	}
	a.store = store
	a.cleanups = append(a.cleanups, func() { _ = store.Close() })
	return store, nil
}
