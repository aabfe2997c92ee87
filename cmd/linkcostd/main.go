// Command linkcostd is a standalone example wiring of the link-cost
// subsystem: it constructs a demohost.Face/LSDB/AdjacencyList (simulating
// the NDN forwarder and LSDB this subsystem normally plugs into), runs the
// subsystem's core loop, and serves the Metrics Control Channel and
// Prometheus metrics over HTTP for local exercise. A real deployment wires
// the same internal/linkcost/subsystem.Subsystem against the host NLSR
// daemon's own Face/LSDB/AdjacencyList implementations instead of this
// package's fakes.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/ndn-routing/linkcost/internal/linkcost/calculator/selector"
	"github.com/ndn-routing/linkcost/internal/linkcost/demohost"
	"github.com/ndn-routing/linkcost/internal/linkcost/engine"
	"github.com/ndn-routing/linkcost/internal/linkcost/feedback"
	"github.com/ndn-routing/linkcost/internal/linkcost/host"
	"github.com/ndn-routing/linkcost/internal/linkcost/lifecycle"
	"github.com/ndn-routing/linkcost/internal/linkcost/probe"
	"github.com/ndn-routing/linkcost/internal/linkcost/store"
	"github.com/ndn-routing/linkcost/internal/linkcost/subsystem"
	"github.com/ndn-routing/linkcost/internal/support/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	routerFlag := flag.String("router", "/nlsr/site/self", "this router's NDN name")
	httpAddrFlag := flag.String("http-addr", "127.0.0.1:8089", "address the control channel and metrics HTTP server listen on")
	neighborsFlag := flag.StringArray("neighbor", nil,
		"neighbor=cost[,rtt_ms[,loss]] (repeatable), e.g. --neighbor /nlsr/site/b=10,40,0.01")

	measurementIntervalFlag := flag.Duration("measurement-interval", probe.DefaultInterval, "base interval between RTT probes to one neighbor")
	measurementTimeoutFlag := flag.Duration("measurement-timeout", probe.DefaultTimeout, "how long to wait for a probe response before declaring it lost")
	maxMultiplierFlag := flag.Float64("max-cost-multiplier", store.DefaultMaxMultiplier, "ceiling on current_cost as a multiple of original_cost")
	changeThresholdFlag := flag.Float64("cost-change-threshold", 0.05, "change-ratio gate applied before accepting a new cost")
	retryLimitFlag := flag.Uint32("retry-limit", store.DefaultRetryLimit, "consecutive hello timeouts before a neighbor is declared INACTIVE")
	rebuildIntervalFlag := flag.Duration("rebuild-interval", 10*time.Second, "minimum interval between LSDB rebuild requests for one neighbor")
	warmupFlag := flag.Duration("warmup", lifecycle.DefaultWarmup, "delay after start before any probe is armed")
	calculatorFlag := flag.String("calculator", "standard", "adaptive calculator: standard|load_aware|ml_adaptive|hyperbolic|hyperbolic_dry_run")

	flag.Parse()

	if v := os.Getenv("LINKCOSTD_HTTP_ADDR"); v != "" {
		*httpAddrFlag = v
	}
	if v := os.Getenv("LINKCOSTD_VERBOSE"); v == "true" {
		*verboseFlag = true
	}

	log := logger.New(*verboseFlag)
	log.Info("starting linkcostd", "router", *routerFlag)

	profiles, err := parseNeighbors(*neighborsFlag)
	if err != nil {
		return fmt.Errorf("parsing --neighbor: %w", err)
	}
	if len(profiles) == 0 {
		return fmt.Errorf("at least one --neighbor is required")
	}

	mode, err := parseCalculatorMode(*calculatorFlag)
	if err != nil {
		return err
	}

	face := demohost.NewFace(log, profiles)
	adjacency := demohost.NewAdjacencyList(profiles)
	lsdb := demohost.NewLSDB(log)

	cfg := subsystem.Config{
		Logger: log,
		Self:   host.Name(*routerFlag),
		StoreConfig: store.Config{
			MaxMultiplier: *maxMultiplierFlag,
			RetryLimit:    *retryLimitFlag,
		},
		EngineConfig: engine.Config{
			Logger:            log,
			EngineChangeRatio: *changeThresholdFlag,
			InnerChangeRatio:  *changeThresholdFlag,
			RebuildInterval:   *rebuildIntervalFlag,
		},
		ProbeConfig: probe.Config{
			Logger:   log,
			Interval: *measurementIntervalFlag,
			Timeout:  *measurementTimeoutFlag,
			Self:     host.Name(*routerFlag),
		},
		LifecycleConfig: lifecycle.Config{
			Logger: log,
			Warmup: *warmupFlag,
		},
		FeedbackWeights: feedback.DefaultWeights(),
		CalculatorMode:  mode,
	}

	sub := subsystem.New(cfg, face, adjacency, lsdb, demohost.Signer{})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", sub.ControlHTTPHandler().Router())

	httpSrv := &http.Server{Addr: *httpAddrFlag, Handler: mux}
	go func() {
		log.Info("control channel and metrics listening", "addr", *httpAddrFlag)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		sub.Run(ctx)
		close(runDone)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("received signal, shutting down", "signal", sig)

	cancel()
	sub.Stop()
	<-runDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown error", "error", err)
	}

	return nil
}

// parseNeighbors parses repeated --neighbor flags of the form
// "name=cost[,rtt_ms[,loss]]" into demohost profiles for the standalone
// demo's simulated Face and AdjacencyList.
func parseNeighbors(raw []string) ([]demohost.NeighborProfile, error) {
	out := make([]demohost.NeighborProfile, 0, len(raw))
	for _, r := range raw {
		name, rest, ok := strings.Cut(r, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("expected name=cost[,rtt_ms[,loss]], got %q", r)
		}
		fields := strings.Split(rest, ",")
		cost, err := strconv.ParseUint(strings.TrimSpace(fields[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q: invalid cost: %w", r, err)
		}
		profile := demohost.NeighborProfile{
			Neighbor:     host.NeighborID(name),
			OriginalCost: cost,
			BaseRTT:      20 * time.Millisecond,
			Jitter:       5 * time.Millisecond,
		}
		if len(fields) > 1 && strings.TrimSpace(fields[1]) != "" {
			rttMS, err := strconv.ParseUint(strings.TrimSpace(fields[1]), 10, 32)
			if err != nil {
				return nil, fmt.Errorf("%q: invalid rtt_ms: %w", r, err)
			}
			profile.BaseRTT = time.Duration(rttMS) * time.Millisecond
		}
		if len(fields) > 2 && strings.TrimSpace(fields[2]) != "" {
			loss, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
			if err != nil {
				return nil, fmt.Errorf("%q: invalid loss: %w", r, err)
			}
			profile.LossRate = loss
		}
		out = append(out, profile)
	}
	return out, nil
}

func parseCalculatorMode(s string) (selector.Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard":
		return selector.Standard, nil
	case "load_aware", "loadaware", "load-aware":
		return selector.LoadAware, nil
	case "ml_adaptive", "mladaptive", "ml-adaptive":
		return selector.MLAdaptive, nil
	case "hyperbolic":
		return selector.Hyperbolic, nil
	case "hyperbolic_dry_run", "hyperbolic-dry-run", "hyperbolicdryrun":
		return selector.HyperbolicDryRun, nil
	default:
		return selector.Standard, fmt.Errorf("unknown --calculator %q", s)
	}
}
