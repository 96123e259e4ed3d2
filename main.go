package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	alertapp "facility-cloud/internal/alerts/application"
	alertevents "facility-cloud/internal/alerts/application/events"
	alerts "facility-cloud/internal/alerts/domain"
	alertrepo "facility-cloud/internal/alerts/infrastructure/postgres"
	alertinterfaces "facility-cloud/internal/alerts/interfaces"
	alerthttp "facility-cloud/internal/alerts/interfaces/http"
	alertnotify "facility-cloud/internal/alerts/notify"
	"facility-cloud/internal/audit"
	"facility-cloud/internal/auth"
	automationapp "facility-cloud/internal/automation/application"
	automationevents "facility-cloud/internal/automation/application/events"
	automationrepo "facility-cloud/internal/automation/infrastructure/postgres"
	automationhttp "facility-cloud/internal/automation/interfaces/http"
	"facility-cloud/internal/commandlog"
	"facility-cloud/internal/eventing"
	"facility-cloud/internal/eventing/eventbus"
	eventingrepo "facility-cloud/internal/eventing/infrastructure/postgres"
	inventoryevents "facility-cloud/internal/inventory/application/events"
	inventoryrepo "facility-cloud/internal/inventory/infrastructure/postgres"
	inventoryhttp "facility-cloud/internal/inventory/interfaces/http"
	"facility-cloud/internal/inventory/interfaces/ingest"
	"facility-cloud/internal/observability/metrics"
	"facility-cloud/internal/reports"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)
	auditRepo := audit.NewRepository(db)

	equipmentRepo := inventoryrepo.NewEquipmentRepository(db)
	siteRepo := inventoryrepo.NewSiteRepository(db)
	snapshotRepo := inventoryrepo.NewSnapshotRepository(db)

	baseBus := eventbus.NewInMemoryBus()
	registry := eventing.NewRegistry()
	registry.Register(inventoryevents.SnapshotReceived{})
	registry.Register(automationevents.AutomationTriggered{})
	registry.Register(alertevents.AlertRaised{})
	registry.Register(alertevents.AlertAcknowledged{})
	registry.Register(alertevents.AlertResolved{})
	registry.Register(alertevents.AlertEscalated{})

	outboxStore := eventingrepo.NewOutboxStore(db)
	processedStore := eventingrepo.NewProcessedStore(db)
	dlqStore := eventingrepo.NewDLQStore(db)
	dispatcher := eventing.NewDispatcher(baseBus, outboxStore, registry, dlqStore)
	publisher := eventing.NewPublisher(outboxStore, dispatcher, baseBus)

	alertRuleRepo := alertrepo.NewAlertRuleRepository(db)
	alertRepo := alertrepo.NewAlertRepository(db)
	alertBroker := alerthttp.NewSSEBroker()

	escalator := &lazyEscalator{}
	alertNotifiers := []alertapp.AlertNotifier{
		alertBroker,
		alertinterfaces.NewOutboxPublisher(publisher, logger),
	}
	if cfg.AlertWebhookURL != "" {
		channel, err := alertnotify.NewWebhookChannel(cfg.AlertWebhookURL)
		if err != nil {
			logger.Fatalf("alert webhook error: %v", err)
		}
		tpl, err := alertnotify.NewTemplate(cfg.AlertNotifyTemplate)
		if err != nil {
			logger.Fatalf("alert template error: %v", err)
		}
		opts := []alertnotify.Option{
			alertnotify.WithCooldown(cfg.AlertNotifyCooldown),
			alertnotify.WithDedupeWindow(cfg.AlertNotifyDedupeWindow),
			alertnotify.WithRequestTimeout(cfg.AlertNotifyTimeout),
			alertnotify.WithMaxLevel(cfg.AlertEscalationMaxLevel),
		}
		if cfg.AlertEscalationInterval > 0 {
			opts = append(opts, alertnotify.WithEscalationInterval(cfg.AlertEscalationInterval))
		}
		alertNotifier, err := alertnotify.NewNotifier(escalator, channel, tpl, opts...)
		if err != nil {
			logger.Fatalf("alert notifier error: %v", err)
		}
		alertNotifiers = append(alertNotifiers, alertNotifier)
	}
	alertService, err := alertapp.NewService(alertRuleRepo, alertRepo, equipmentRepo,
		alertapp.WithNotifier(alertnotify.NewMultiNotifier(alertNotifiers...)))
	if err != nil {
		logger.Fatalf("alert service error: %v", err)
	}
	escalator.service = alertService

	alertConsumer, err := alertinterfaces.NewSnapshotReceivedConsumer(alertService)
	if err != nil {
		logger.Fatalf("alert consumer error: %v", err)
	}
	eventing.Subscribe(baseBus, eventbus.EventTypeOf[inventoryevents.SnapshotReceived](), "alerts.snapshots", func(ctx context.Context, event any) error {
		evt, ok := event.(inventoryevents.SnapshotReceived)
		if !ok {
			return eventbus.ErrInvalidEventType
		}
		return alertConsumer.Consume(ctx, evt)
	}, processedStore)

	ingestHandler, err := ingest.NewHandler(snapshotRepo, publisher, logger)
	if err != nil {
		logger.Fatalf("ingest handler error: %v", err)
	}

	engineCfg, err := automationapp.LoadConfig()
	if err != nil {
		logger.Fatalf("engine config error: %v", err)
	}
	commandLogRepo := commandlog.NewRepository(db)
	var engineSender automationapp.NotificationSender
	if engineCfg.NotifyWebhook != "" {
		engineChannel, err := alertnotify.NewWebhookChannel(engineCfg.NotifyWebhook)
		if err != nil {
			logger.Fatalf("engine webhook error: %v", err)
		}
		engineSender = engineChannel
	}
	automationRepo := automationrepo.NewAutomationRepository(db)
	actionDispatcher, err := automationapp.NewDispatcher(equipmentRepo, engineSender, commandLogRepo, engineCfg.DispatchTimeout, logger)
	if err != nil {
		logger.Fatalf("dispatcher error: %v", err)
	}
	engine, err := automationapp.NewEngine(automationRepo, snapshotRepo, actionDispatcher, publisher, logger, engineCfg.Workers)
	if err != nil {
		logger.Fatalf("automation engine error: %v", err)
	}
	go func() {
		ticker := time.NewTicker(engineCfg.TickInterval)
		defer ticker.Stop()
		for tick := range ticker.C {
			if err := engine.Tick(context.Background(), tick.UTC()); err != nil {
				logger.Printf("automation tick error: %v", err)
			}
		}
	}()

	alertHandler, err := alerthttp.NewHandler(alertService, auditRepo)
	if err != nil {
		logger.Fatalf("alert handler error: %v", err)
	}
	alertRulesHandler, err := alerthttp.NewRulesHandler(alertRuleRepo, auditRepo)
	if err != nil {
		logger.Fatalf("alert rules handler error: %v", err)
	}
	automationHandler, err := automationhttp.NewHandler(automationRepo, auditRepo)
	if err != nil {
		logger.Fatalf("automation handler error: %v", err)
	}
	commandLogHandler, err := commandlog.NewHandler(commandLogRepo)
	if err != nil {
		logger.Fatalf("command log handler error: %v", err)
	}
	reportsHandler, err := reports.NewHandler(alertRepo, commandLogRepo, auditRepo)
	if err != nil {
		logger.Fatalf("reports handler error: %v", err)
	}
	inventoryHandler, err := inventoryhttp.NewHandler(siteRepo, equipmentRepo, snapshotRepo)
	if err != nil {
		logger.Fatalf("inventory handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, []string{"/ingest/"})
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)
	ingestAuth := auth.NewIngestAuthMiddleware([]byte(cfg.IngestSecret), time.Duration(cfg.IngestSkewSeconds)*time.Second)

	mux := http.NewServeMux()
	mux.Handle("/ingest/snapshots", ingestAuth.Wrap(ingestHandler))
	mux.Handle("/api/v1/alerts", alertHandler)
	mux.Handle("/api/v1/alerts/", alertHandler)
	mux.Handle("/api/v1/alerts/stream", alerthttp.NewStreamHandler(alertBroker))
	mux.Handle("/api/v1/alert-rules", alertRulesHandler)
	mux.Handle("/api/v1/alert-rules/", alertRulesHandler)
	mux.Handle("/api/v1/automations", automationHandler)
	mux.Handle("/api/v1/automations/", automationHandler)
	mux.Handle("/api/v1/command-log", commandLogHandler)
	mux.Handle("/api/v1/sites", inventoryHandler)
	mux.Handle("/api/v1/sites/", inventoryHandler)
	mux.Handle("/api/v1/equipment", inventoryHandler)
	mux.Handle("/api/v1/equipment/", inventoryHandler)
	mux.Handle("/api/v1/exports/", reportsHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL             string
	HTTPAddr                string
	AlertWebhookURL         string
	AlertNotifyTemplate     string
	AlertNotifyCooldown     time.Duration
	AlertNotifyDedupeWindow time.Duration
	AlertNotifyTimeout      time.Duration
	AlertEscalationInterval time.Duration
	AlertEscalationMaxLevel int
	JWTSecret               string
	IngestSecret            string
	IngestSkewSeconds       int
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:             getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:                getenvDefault("HTTP_ADDR", ":8080"),
		AlertWebhookURL:         getenvDefault("ALERT_WEBHOOK_URL", ""),
		AlertNotifyTemplate:     getenvDefault("ALERT_NOTIFY_TEMPLATE", ""),
		AlertNotifyCooldown:     getenvDuration("ALERT_NOTIFY_COOLDOWN", 0),
		AlertNotifyDedupeWindow: getenvDuration("ALERT_NOTIFY_DEDUP_WINDOW", 0),
		AlertNotifyTimeout:      getenvDuration("ALERT_NOTIFY_TIMEOUT", 5*time.Second),
		AlertEscalationInterval: getenvDuration("ALERT_ESCALATION_INTERVAL", 0),
		AlertEscalationMaxLevel: getenvIntDefault("ALERT_ESCALATION_MAX_LEVEL", 0),
		JWTSecret:               getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		IngestSecret:            getenvDefault("INGEST_HMAC_SECRET", ""),
		IngestSkewSeconds:       getenvIntDefault("INGEST_MAX_SKEW_SECONDS", 300),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Flush keeps the alert SSE stream working through the logging wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// ---- Adapters ----

// lazyEscalator breaks the construction cycle between the alert service and
// the escalating notifier: the notifier needs an Escalator, the service
// needs the notifier.
type lazyEscalator struct {
	service *alertapp.Service
}

func (l *lazyEscalator) Escalate(ctx context.Context, alertID string) (*alerts.Alert, error) {
	if l == nil || l.service == nil {
		return nil, nil
	}
	return l.service.Escalate(ctx, alertID)
}
