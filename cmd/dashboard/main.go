package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-dashboard/internal/client"
	"github.com/kjstillabower/weather-dashboard/internal/config"
	"github.com/kjstillabower/weather-dashboard/internal/dashboard"
	httphandler "github.com/kjstillabower/weather-dashboard/internal/http"
	"github.com/kjstillabower/weather-dashboard/internal/lifecycle"
	"github.com/kjstillabower/weather-dashboard/internal/lookup"
	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
	"github.com/kjstillabower/weather-dashboard/internal/push"
	"github.com/kjstillabower/weather-dashboard/internal/render"
	"github.com/kjstillabower/weather-dashboard/internal/validation"
)

const usage = `usage: dashboard [command] [flags]

commands:
  watch                      live dashboard (default)
  lookup <id>                show one weather record
  create -date D -location L [-notes N]
                             submit a weather record
`

func main() {
	logger, err := observability.NewLogger(observability.LoggerConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	backend, err := client.NewHTTPClient(cfg.BackendURL, cfg.BackendTimeout)
	if err != nil {
		logger.Fatal("backend client", zap.Error(err))
	}

	cmd, args := parseCommand(os.Args[1:])
	switch cmd {
	case "watch":
		err = runWatch(cfg, backend, args, logger)
	case "lookup":
		err = runLookup(cfg, backend, args, os.Stdout)
	case "create":
		err = runCreate(cfg, backend, args, os.Stdout)
	case "help":
		fmt.Fprint(os.Stdout, usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		err = errUsage
	}

	if flushErr := observability.FlushTelemetry(context.Background(), logger); flushErr != nil {
		fmt.Fprintf(os.Stderr, "telemetry flush: %v\n", flushErr)
	}
	if err != nil {
		if !errors.Is(err, errUsage) && !errors.Is(err, errReported) {
			logger.Error(cmd+" failed", zap.Error(err))
		}
		os.Exit(1)
	}
}

var (
	errUsage = errors.New("usage")
	// errReported marks failures already shown to the user.
	errReported = errors.New("reported")
)

// parseCommand splits the subcommand from its arguments. A leading flag or no
// arguments at all selects watch.
func parseCommand(args []string) (string, []string) {
	if len(args) == 0 {
		return "watch", nil
	}
	switch {
	case args[0] == "-h", args[0] == "--help", args[0] == "help":
		return "help", nil
	case strings.HasPrefix(args[0], "-"):
		return "watch", args
	}
	return args[0], args[1:]
}

func runWatch(cfg *config.Config, backend client.BackendClient, args []string, logger *zap.Logger) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	noColor := fs.Bool("no-color", false, "disable ANSI colors and screen clearing")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	view := dashboard.New(backend, dashboard.Options{
		Limit:           cfg.RecordLimit,
		RefreshInterval: cfg.RefreshInterval,
		Push:            newPushSubscriber(cfg, logger),
		Logger:          logger,
	})

	renderer := render.New(!*noColor)
	var outMu sync.Mutex
	view.OnChange(func(snap dashboard.Snapshot) {
		outMu.Lock()
		defer outMu.Unlock()
		if !*noColor {
			fmt.Fprint(os.Stdout, "\x1b[H\x1b[2J")
		}
		if err := renderer.Dashboard(os.Stdout, snap); err != nil {
			logger.Error("render", zap.Error(err))
		}
	})

	var srv *http.Server
	if cfg.StatusPort != "" {
		srv = newStatusServer(cfg, view, lookup.NewPanel(backend, logger), logger)
		go func() {
			logger.Info("status server starting", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Fatal("status server", zap.Error(err))
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := view.Mount(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mount dashboard: %w", err)
	}
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.BeginShutdown(time.Now())
	view.Unmount()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("status server shutdown", zap.Error(err))
		}
		inFlight := httphandler.InFlightCount()
		logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
		observability.RecordShutdownInFlight(inFlight)
		if err := httphandler.WaitForInFlight(shutdownCtx, 50*time.Millisecond); err != nil {
			logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
		}
	}
	if err := view.Wait(shutdownCtx); err != nil {
		logger.Warn("background refresh still running at exit", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return nil
}

func newStatusServer(cfg *config.Config, view *dashboard.View, panel *lookup.Panel, logger *zap.Logger) *http.Server {
	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	health := &httphandler.HealthConfig{
		DegradedWindow:   cfg.HealthWindow,
		DegradedErrorPct: cfg.HealthDegradedErrorPct,
		MinSamples:       cfg.HealthMinSamples,
	}
	handler := httphandler.NewHandler(view, panel, health, logger)
	router := httphandler.NewRouter(handler, httphandler.RouterOptions{
		Limiter:        limiter,
		RequestTimeout: cfg.BackendTimeout,
	}, logger)
	return &http.Server{
		Addr:         ":" + cfg.StatusPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.BackendTimeout + 5*time.Second,
	}
}

// newPushSubscriber returns nil when push is disabled.
func newPushSubscriber(cfg *config.Config, logger *zap.Logger) push.Subscriber {
	switch cfg.PushTransport {
	case config.PushTransportWebSocket:
		return push.NewWebSocketSubscriber(cfg.PushURL, cfg.PushHandshakeTimeout, logger)
	case config.PushTransportMQTT:
		return push.NewMQTTSubscriber(push.MQTTConfig{
			Broker:         cfg.MQTTBroker,
			Topic:          cfg.MQTTTopic,
			QoS:            byte(cfg.MQTTQoS),
			ConnectTimeout: cfg.PushHandshakeTimeout,
		}, logger)
	default:
		logger.Info("push disabled; relying on timer refresh")
		return nil
	}
}

func runLookup(cfg *config.Config, backend client.BackendClient, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("lookup", flag.ContinueOnError)
	noColor := fs.Bool("no-color", false, "disable ANSI colors")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.BackendTimeout)
	defer cancel()
	panel := lookup.NewPanel(backend, nil)
	_, lookupErr := panel.Submit(ctx, strings.Join(fs.Args(), " "))
	if err := render.New(!*noColor).Lookup(out, panel.State()); err != nil {
		return err
	}
	if lookupErr != nil {
		return errReported
	}
	return nil
}

func runCreate(cfg *config.Config, backend client.BackendClient, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	var req models.CreateRequest
	fs.StringVar(&req.Date, "date", "", "observation date (YYYY-MM-DD)")
	fs.StringVar(&req.Location, "location", "", "location name")
	fs.StringVar(&req.Notes, "notes", "", "optional notes")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	req, err := validation.ValidateCreateRequest(req)
	if err != nil {
		fmt.Fprintln(out, err)
		return errReported
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.BackendTimeout)
	defer cancel()
	id, err := backend.CreateRecord(ctx, req)
	if err != nil {
		return fmt.Errorf("create record: %w", err)
	}
	fmt.Fprintln(out, id)
	return nil
}
