// Command voiceos runs the structured capture core.
//
// With -scenario it replays scripted calls through fresh sessions and exits
// non-zero when any call misses its expectation. Without it, it serves the
// ops listener (/metrics, /healthz, /readyz) until interrupted.
package main

import (
	"cmp"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/Spotfunnel/voiceOS-sub001/internal/audit"
	"github.com/Spotfunnel/voiceOS-sub001/internal/capture"
	"github.com/Spotfunnel/voiceOS-sub001/internal/capture/address"
	"github.com/Spotfunnel/voiceOS-sub001/internal/capture/datetime"
	"github.com/Spotfunnel/voiceOS-sub001/internal/capture/email"
	"github.com/Spotfunnel/voiceOS-sub001/internal/capture/phone"
	"github.com/Spotfunnel/voiceOS-sub001/internal/config"
	"github.com/Spotfunnel/voiceOS-sub001/internal/health"
	"github.com/Spotfunnel/voiceOS-sub001/internal/observe"
	"github.com/Spotfunnel/voiceOS-sub001/internal/scenario"
	"github.com/Spotfunnel/voiceOS-sub001/internal/session"
	"github.com/Spotfunnel/voiceOS-sub001/internal/validate"
	"github.com/Spotfunnel/voiceOS-sub001/internal/validate/llmvalidate"
)

var version = "dev"

// errScenarioFailed marks a replay where at least one call missed its
// expectation.
var errScenarioFailed = errors.New("scenario replay failed")

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	scenarioPath := flag.String("scenario", "", "scenario file to replay; empty serves the ops listener until interrupted")
	parallel := flag.Int("parallel", 4, "calls replayed concurrently")
	verbose := flag.Bool("v", false, "print the dialogue of every replayed call")
	watch := flag.Bool("watch", true, "reload log level and objective plan when the config file changes")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "voiceos: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("voiceos starting",
		"version", version,
		"config", *configPath,
		"locale", cfg.LocaleTag().String(),
		"objectives", len(cfg.Objectives),
		"validator", cmp.Or(cfg.Validator.Mode, config.ValidatorRules),
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	tel, err := observe.StartTelemetry(ctx, observe.TelemetryConfig{
		ServiceVersion: version,
		Locale:         cfg.LocaleTag().String(),
		ValidatorMode:  string(cmp.Or(cfg.Validator.Mode, config.ValidatorRules)),
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown", "err", err)
		}
	}()
	metrics := tel.Metrics

	// ── Capture, validation, audit ────────────────────────────────────────────
	reg := captureRegistry(cfg)
	plan, err := cfg.Plan()
	if err == nil {
		err = plan.Validate(reg)
	}
	if err != nil {
		slog.Error("invalid objective plan", "err", err)
		return 1
	}

	chain, err := buildValidator(cfg, reg, metrics)
	if err != nil {
		slog.Error("failed to build validator", "err", err)
		return 1
	}

	sink, pool, err := buildSink(ctx, cfg.Audit)
	if err != nil {
		slog.Error("failed to open audit sink", "err", err)
		return 1
	}
	if pool != nil {
		defer pool.Close()
	}

	mgr := session.NewManager(plan, reg, metrics,
		session.WithValidator(chain),
		session.WithSink(sink),
	)

	// ── Config hot reload ─────────────────────────────────────────────────────
	if *watch {
		w, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
			applyReload(config.Diff(old, new), new, level, mgr)
		})
		if err != nil {
			slog.Warn("config watcher disabled", "err", err)
		} else {
			defer w.Stop()
		}
	}

	eg, ctx := errgroup.WithContext(ctx)

	// ── Ops listener ──────────────────────────────────────────────────────────
	if cfg.Server.ListenAddr != "" {
		checkers := []health.Checker{health.Breakers("validator", chain.BreakerStates)}
		if pool != nil {
			checkers = append(checkers, health.Ping("audit_db", pool))
		}
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", tel.Handler())
		health.New(checkers...).Register(mux)

		srv := &http.Server{
			Addr:              cfg.Server.ListenAddr,
			Handler:           observe.Middleware(metrics)(mux),
			ReadHeaderTimeout: 5 * time.Second,
		}
		eg.Go(func() error {
			slog.Info("ops listener ready", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("ops listener: %w", err)
			}
			return nil
		})
		eg.Go(func() error {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	// ── Scenario replay ───────────────────────────────────────────────────────
	if *scenarioPath != "" {
		eg.Go(func() error {
			defer stop()
			return replay(ctx, mgr, *scenarioPath, *parallel, *verbose)
		})
	} else {
		eg.Go(func() error {
			<-ctx.Done()
			return nil
		})
		slog.Info("ready, press Ctrl+C to shut down")
	}

	runErr := eg.Wait()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := mgr.Shutdown(shutdownCtx); err != nil {
		slog.Warn("session shutdown", "err", err)
	}

	switch {
	case errors.Is(runErr, errScenarioFailed):
		return 2
	case runErr != nil && !errors.Is(runErr, context.Canceled):
		slog.Error("run error", "err", runErr)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Wiring ────────────────────────────────────────────────────────────────────

func captureRegistry(cfg *config.Config) *capture.Registry {
	return capture.NewRegistry(
		email.New(email.WithProviders(cfg.Capture.EmailProviders)),
		phone.New(phone.WithCountryCode(cfg.CountryCode())),
		address.New(address.WithSuburbs(cfg.Capture.Suburbs), address.WithLanguage(cfg.LocaleTag())),
		datetime.New(),
	)
}

// buildValidator returns the rule gate, with the LLM judge behind it in llm
// mode.
func buildValidator(cfg *config.Config, reg *capture.Registry, metrics *observe.Metrics) (*validate.Chain, error) {
	vc := cfg.Validator
	opts := []validate.ChainOption{
		validate.WithMetrics(metrics),
		validate.WithBreaker(vc.CircuitBreaker.Resilience()),
	}
	if vc.Timeout > 0 {
		opts = append(opts, validate.WithTimeout(vc.Timeout))
	}
	if vc.Mode == config.ValidatorLLM {
		provider, err := config.NewDefaultRegistry().BuildLLM(vc.Providers, vc.CircuitBreaker)
		if err != nil {
			return nil, err
		}
		judge := llmvalidate.New(provider,
			llmvalidate.WithTemperature(vc.Temperature),
			llmvalidate.WithLocale(cfg.LocaleTag().String()),
		)
		opts = append(opts, validate.WithJudge(llmvalidate.Source, judge))
	}
	return validate.NewChain(validate.NewRuleValidator(reg), opts...), nil
}

// buildSink always logs transitions and adds the file and PostgreSQL sinks
// when configured. The returned pool is nil without a DSN.
func buildSink(ctx context.Context, ac config.AuditConfig) (audit.Sink, *pgxpool.Pool, error) {
	sinks := []audit.Sink{audit.NewLogSink(slog.Default())}
	if ac.FilePath != "" {
		sinks = append(sinks, audit.NewFileSink(ac.FilePath))
	}
	if ac.PostgresDSN == "" {
		return audit.Multi(sinks...), nil, nil
	}

	pcfg, err := pgxpool.ParseConfig(ac.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("audit: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("audit: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("audit: ping: %w", err)
	}
	pg := audit.NewPostgresSink(pool)
	if err := pg.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return audit.Multi(append(sinks, pg)...), pool, nil
}

// applyReload applies the hot-reloadable parts of a config change. A new
// plan only affects sessions opened afterwards.
func applyReload(d config.ConfigDiff, cfg *config.Config, level *slog.LevelVar, mgr *session.Manager) {
	if d.LogLevelChanged {
		level.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if !d.PlanChanged {
		return
	}
	plan, err := cfg.Plan()
	if err == nil {
		err = mgr.SetPlan(plan)
	}
	if err != nil {
		slog.Warn("objective plan not reloaded", "err", err)
		return
	}
	slog.Info("objective plan reloaded", "objectives", len(plan.Steps), "on_failure", plan.OnFailure.String(), "changes", len(d.ObjectiveChanges))
}

// ── Replay ────────────────────────────────────────────────────────────────────

func replay(ctx context.Context, mgr *session.Manager, path string, parallel int, verbose bool) error {
	f, err := scenario.Load(path)
	if err != nil {
		return err
	}
	results, err := scenario.NewRunner(mgr, scenario.WithParallelism(parallel)).Run(ctx, f)
	if err != nil {
		return err
	}

	failed := 0
	for _, res := range results {
		status := "PASS"
		if !res.Passed() {
			status = "FAIL"
			failed++
		}
		fmt.Printf("%s  %-40s %s\n", status, res.Call, res.Outcome)
		for _, o := range res.Objectives {
			fmt.Printf("      %-20s %-10s %s\n", o.Step.Name, o.State, o.Value)
		}
		for _, m := range res.Mismatches {
			fmt.Printf("      ! %s\n", m)
		}
		if verbose {
			for _, line := range res.Dialogue {
				fmt.Printf("      | %s\n", line)
			}
		}
	}
	fmt.Printf("%d/%d calls passed\n", len(results)-failed, len(results))
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d calls", errScenarioFailed, failed, len(results))
	}
	return nil
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
