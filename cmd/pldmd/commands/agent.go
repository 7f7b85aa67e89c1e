package commands

import (
	"context"
	"fmt"
	"net/http"

	"github.com/openbmc/pldm-sub002/internal/bej"
	"github.com/openbmc/pldm-sub002/internal/config"
	"github.com/openbmc/pldm-sub002/internal/dbussink"
	"github.com/openbmc/pldm-sub002/internal/dictionary"
	"github.com/openbmc/pldm-sub002/internal/eventpump"
	"github.com/openbmc/pldm-sub002/internal/logging"
	"github.com/openbmc/pldm-sub002/internal/mctp"
	"github.com/openbmc/pldm-sub002/internal/metrics"
	"github.com/openbmc/pldm-sub002/internal/platform"
	"github.com/openbmc/pldm-sub002/internal/rde"
	"github.com/openbmc/pldm-sub002/internal/requester"
	"github.com/openbmc/pldm-sub002/internal/terminus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// agent bundles the subsystems a running pldmd process wires together:
// transport, request/response correlation, terminus discovery, platform
// init, and an RDE engine, plus the ambient logging/metrics/D-Bus
// plumbing around them.
type agent struct {
	cfg    *config.Config
	logger *logging.Logger

	transport mctp.Transport
	runner    *requester.Runner
	terminus  *terminus.Manager
	platform  *platform.Initializer
	pump      *eventpump.Pump
	rde       *rde.Engine
	dbus      *dbussink.Sink
	metrics   *metrics.Metrics

	hostEID uint8
}

// newAgent loads configuration and constructs every subsystem. Only the
// requester runner's receive goroutine starts here; runServe starts
// discovery, the event pump, and the metrics listener.
func newAgent(configPath string) (*agent, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("pldmd: loading configuration: %w", err)
	}

	logger := buildLogger(cfg.Logging)
	logging.SetDefault(logger)

	backend := mctp.BackendMCTPDemux
	if cfg.Transport.Backend == "af-mctp" {
		backend = mctp.BackendAFMCTP
	}
	transport, err := mctp.New(backend, cfg.Transport.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("pldmd: constructing transport: %w", err)
	}

	m := metrics.New()

	runner := requester.NewRunner(transport, requester.Config{
		Retries:         cfg.Requester.Retries,
		ResponseTimeout: cfg.Requester.ResponseTimeout,
		Logger:          logger,
		Metrics:         m,
	})

	var dbusSink *dbussink.Sink
	if cfg.DBus.Enabled {
		dbusSink, err = dbussink.Connect()
		if err != nil {
			logger.Warn("d-bus connection failed, signal emission disabled", "error", err)
		}
	}

	dictStore := dictionary.New(cfg.Dictionary.Root)
	codec := bej.NewCodec()

	rdeEngine := rde.NewEngine(runner, rde.EngineConfig{
		Store:   dictStore,
		Loader:  dictStore,
		Codec:   codec,
		Sink:    sinkOrNil(dbusSink),
		Metrics: m,
	})

	hostEID := cfg.Transport.MinEID

	plat := platform.New(runner, platform.Config{
		Logger:          logger,
		LocalEID:        hostEID,
		LocalBufferSize: uint32(cfg.EventPump.BufferSize),
	})

	pump := eventpump.New(runner, eventpump.Config{
		Logger:       logger,
		Capacity:     cfg.EventPump.BufferSize,
		PollInterval: cfg.EventPump.PollInterval,
		Metrics:      m,
	})

	termMgr := terminus.NewManager(runner, transport, terminus.Config{
		Logger: logger,
		OnPlatformSupport: func(ctx context.Context, term *terminus.Terminus) error {
			if err := plat.Init(ctx, term); err != nil {
				return err
			}
			return startRDEIfAdvertised(ctx, rdeEngine, dictStore, runner, term, logger)
		},
	})

	return &agent{
		cfg:       cfg,
		logger:    logger,
		transport: transport,
		runner:    runner,
		terminus:  termMgr,
		platform:  plat,
		pump:      pump,
		rde:       rdeEngine,
		dbus:      dbusSink,
		metrics:   m,
		hostEID:   hostEID,
	}, nil
}

// discoveredEIDs returns the EID range config asks the terminus manager to
// probe.
func (a *agent) discoveredEIDs() []uint8 {
	eids := make([]uint8, 0, int(a.cfg.Transport.MaxEID)-int(a.cfg.Transport.MinEID)+1)
	for eid := a.cfg.Transport.MinEID; eid <= a.cfg.Transport.MaxEID; eid++ {
		eids = append(eids, eid)
		if eid == a.cfg.Transport.MaxEID {
			break // avoid wrapping past 255 if MaxEID is the uint8 max
		}
	}
	return eids
}

// metricsHandler returns the HTTP handler serving the Prometheus scrape
// endpoint, or nil if metrics are disabled.
func (a *agent) metricsHandler() http.Handler {
	if !a.cfg.Metrics.Enabled {
		return nil
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics.NewCollector(a.metrics))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// close releases every subsystem's resources.
func (a *agent) close() {
	a.runner.Close()
	a.transport.Close()
	if a.dbus != nil {
		a.dbus.Close()
	}
}

func buildLogger(cfg config.LoggingConfig) *logging.Logger {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	var formatter logrus.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	if cfg.Format == "json" {
		formatter = &logrus.JSONFormatter{}
	}
	return logging.NewLogger(&logging.Config{Level: level, Format: formatter})
}

func sinkOrNil(s *dbussink.Sink) rde.Sink {
	if s == nil {
		return nil
	}
	return s
}
