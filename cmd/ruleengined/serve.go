package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/r3e-labs/ruleengine/internal/alert"
	"github.com/r3e-labs/ruleengine/internal/alertlog"
	core "github.com/r3e-labs/ruleengine/internal/app/core/service"
	"github.com/r3e-labs/ruleengine/internal/app/system"
	"github.com/r3e-labs/ruleengine/internal/asset"
	"github.com/r3e-labs/ruleengine/internal/configurator"
	"github.com/r3e-labs/ruleengine/internal/evaluator"
	"github.com/r3e-labs/ruleengine/internal/housekeeping"
	"github.com/r3e-labs/ruleengine/internal/httpapi"
	"github.com/r3e-labs/ruleengine/internal/ingest"
	"github.com/r3e-labs/ruleengine/internal/mailbox"
	"github.com/r3e-labs/ruleengine/internal/metric"
	"github.com/r3e-labs/ruleengine/internal/metrics"
	"github.com/r3e-labs/ruleengine/internal/platform/database"
	"github.com/r3e-labs/ruleengine/internal/platform/migrations"
	"github.com/r3e-labs/ruleengine/internal/rule"
	"github.com/r3e-labs/ruleengine/internal/rulestore"
	"github.com/r3e-labs/ruleengine/internal/transport"
	"github.com/r3e-labs/ruleengine/pkg/config"
	"github.com/r3e-labs/ruleengine/pkg/logger"
)

// metricTableTTL is the default active-entry expiry (§3 "Metric table");
// a per-message TTL can still override it via ingest.MetricMessage.
const metricTableTTL = 5 * time.Minute

// Stream names wiring the Bus between the three actors (§1, §3, §4.6).
const (
	alertsStream = "alerts"
	assetsStream = "assets"
	metricStream = "metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the rule engine: evaluator, configurator and mailbox/HTTP surfaces",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if trimmed := strings.TrimSpace(cfgFile); trimmed != "" {
		os.Setenv("CONFIG_FILE", trimmed)
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})

	bus := transport.NewBus()

	store, err := rulestore.Open(cfg.RuleStore.Dir, log)
	if err != nil {
		return err
	}

	assets := asset.NewDatabase()
	metricTable := metric.NewTable(metricTableTTL)

	templates, tmplErrs := configurator.LoadLibrary(cfg.RuleStore.TemplateDir)
	for _, tErr := range tmplErrs {
		log.WithField("error", tErr).Warn("serve: template failed to load, skipped")
	}

	manager := system.NewManager(log)

	// Fan the output stream out to the live transport publisher and
	// (if configured) the Postgres audit log; the websocket tap wraps
	// that fan-out so every destination observes every transition.
	innerEmitters := []alert.Emitter{alert.NewBusEmitter(bus, alertsStream)}
	if dsn := strings.TrimSpace(cfg.AlertLog.DSN); dsn != "" {
		ctx := context.Background()
		db, err := database.Open(ctx, dsn)
		if err != nil {
			return err
		}
		if err := migrations.Apply(ctx, db); err != nil {
			return err
		}
		innerEmitters = append(innerEmitters, alertlog.Open(db))
	}
	streamHub := httpapi.NewStreamHub(alert.NewFanOut(innerEmitters...), log)

	eval := evaluator.New(store, metricTable, assets, streamHub,
		time.Duration(cfg.Evaluator.TickIntervalSeconds)*time.Second, log)

	onRetire := func(ruleName, description string) {
		eval.RetireRule(ruleName, description, time.Now())
	}
	cfgtor := configurator.New(templates, assets, store, onRetire, log)

	store.AddObserver(evaluatorObserver{eval: eval, onRetire: onRetire})

	manager.Register(store)
	manager.Register(ingest.NewMetricIngest(bus, metricStream, metricTable, log))
	manager.Register(ingest.NewAssetIngest(bus, assetsStream, cfgtor, log))
	manager.Register(eval)
	manager.Register(housekeeping.NewMetricSweeper(metricTable, cfg.Housekeeping.MetricSweepSchedule, log))

	mailboxHandler := mailbox.NewHandler(store, log).WithHooks(mailboxMetricsHooks())
	if err := mailboxHandler.Register(context.Background(), bus); err != nil {
		return err
	}
	templateHandler := mailbox.NewTemplateHandler(templates)
	if err := templateHandler.Register(context.Background(), bus); err != nil {
		return err
	}

	httpService := httpapi.NewService(cfg.Server.Addr(), bus, streamHub, manager.Descriptors, log, cfg.RateLimit)
	manager.Register(httpService)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := manager.Start(ctx); err != nil {
		return err
	}
	log.WithField("addr", cfg.Server.Addr()).Info("ruleengined: listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return manager.Stop(shutdownCtx)
}

// evaluatorObserver bridges rulestore.Observer callbacks to the
// Evaluator's compiled-program cache and alert retirement, so a rule
// update/delete/rename always invalidates stale compiled state and
// resolves orphaned alerts (§4.1, §4.4, §9 "Observer callbacks").
type evaluatorObserver struct {
	eval     *evaluator.Evaluator
	onRetire func(ruleName, description string)
}

func (o evaluatorObserver) OnCreate(r *rule.Rule) {}

// OnUpdate invalidates the compiled program for the old name. A rename
// (old.Name != new.Name) additionally retires every alert still attached
// to the old name with "Rule was changed implicitly", matching the
// Configurator's own retraction wording for an asset-driven template swap.
func (o evaluatorObserver) OnUpdate(old, updated *rule.Rule) {
	if old.Name != updated.Name {
		o.onRetire(old.Name, "Rule was changed implicitly")
		return
	}
	o.eval.InvalidateProgram(old.Name)
}

// OnDelete resolves every alert attached to the deleted rule with "Rule
// deleted" (§4.4) and drops its compiled program.
func (o evaluatorObserver) OnDelete(old *rule.Rule) {
	o.onRetire(old.Name, "Rule deleted")
}

// mailboxMetricsHooks records every Trigger-Mailbox dispatch (§4.6) as a
// Prometheus counter and duration histogram, keyed by command.
func mailboxMetricsHooks() core.DispatchHooks {
	return core.DispatchHooks{
		OnComplete: func(_ context.Context, meta map[string]string, err error, d time.Duration) {
			outcome := "ok"
			if err != nil {
				outcome = "error"
			}
			metrics.RecordMailboxDispatch(meta["command"], outcome, d)
		},
	}
}
