package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/cors"

	"github.com/dukerupert/homecal/internal/auth"
	"github.com/dukerupert/homecal/internal/availability"
	"github.com/dukerupert/homecal/internal/birthday"
	"github.com/dukerupert/homecal/internal/config"
	"github.com/dukerupert/homecal/internal/email"
	"github.com/dukerupert/homecal/internal/handler"
	"github.com/dukerupert/homecal/internal/ics"
	"github.com/dukerupert/homecal/internal/jobs"
	"github.com/dukerupert/homecal/internal/middleware"
	"github.com/dukerupert/homecal/internal/push"
	"github.com/dukerupert/homecal/internal/reminder"
	"github.com/dukerupert/homecal/internal/retention"
	"github.com/dukerupert/homecal/internal/store"
	"github.com/dukerupert/homecal/internal/task"
	ws "github.com/dukerupert/homecal/internal/websocket"
)

// importLimit is the number of imports one user may start per minute.
const importLimit = 10

type Server struct {
	db          *sql.DB
	cfg         *config.Config
	hub         *ws.Hub
	tokens      *auth.Tokens
	calendarH   *handler.CalendarHandler
	reminderH   *handler.ReminderHandler
	deviceH     *handler.DeviceHandler
	availH      *handler.AvailabilityHandler
	taskH       *handler.TaskHandler
	birthdayH   *handler.BirthdayHandler
	inviteH     *handler.InviteHandler
	rateLimiter *middleware.RateLimiter
	dispatcher  *reminder.Dispatcher
	dueTasks    *task.DueReminder
	birthdays   *birthday.Updater
	retention   *retention.Job
	pushEnabled bool
	logger      *slog.Logger
}

func New(db *sql.DB, cfg *config.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))
	loc := cfg.Location()

	calendarStore := store.NewCalendarStore(db)
	reminderStore := store.NewReminderStore(db)
	tokenStore := store.NewDeviceTokenStore(db)
	availStore := store.NewAvailabilityStore(db)
	taskStore := store.NewTaskStore(db)
	birthdayStore := store.NewBirthdayStore(db)
	inviteStore := store.NewInviteStore(db)

	pushSvc := push.NewService(push.Config{
		VAPIDPublicKey:  cfg.Push.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.Push.VAPIDPrivateKey,
		Subscriber:      cfg.Push.Subject,
	}, &http.Client{Timeout: 10 * time.Second})
	resolver := push.NewResolver(tokenStore, 0)

	pushEnabled := cfg.Push.VAPIDPublicKey != "" && cfg.Push.VAPIDPrivateKey != ""
	if !pushEnabled {
		logger.Warn("push disabled: VAPID keys not configured")
	}

	mailer := email.NewClient(cfg.Email.PostmarkToken, cfg.Email.From, cfg.Email.BaseURL)
	if !mailer.Configured() {
		logger.Info("invite email disabled: postmark token not configured")
	}

	serializer := ics.NewSerializer(cfg.ICS.ProductID, cfg.ICS.UIDDomain, logger.With("component", "ics"))
	fetcher := ics.NewFetcher(cfg.ICS.FetchTimeout, logger.With("component", "ics"))
	aggregator := availability.NewAggregator(availStore, hub, logger.With("component", "availability"))
	scheduler := reminder.NewScheduler(calendarStore, reminderStore, logger.With("component", "reminder"))

	return &Server{
		db:          db,
		cfg:         cfg,
		hub:         hub,
		tokens:      auth.NewTokens(cfg.JWTSecret, 0),
		calendarH:   handler.NewCalendarHandler(calendarStore, fetcher, serializer, hub, logger.With("component", "calendar")),
		reminderH:   handler.NewReminderHandler(calendarStore, scheduler, logger.With("component", "reminder")),
		deviceH:     handler.NewDeviceHandler(tokenStore, pushSvc.VAPIDPublicKey(), logger.With("component", "device")),
		availH:      handler.NewAvailabilityHandler(availStore, aggregator, logger.With("component", "availability")),
		taskH:       handler.NewTaskHandler(taskStore, hub, logger.With("component", "task")),
		birthdayH:   handler.NewBirthdayHandler(birthdayStore, loc, logger.With("component", "birthday")),
		inviteH:     handler.NewInviteHandler(inviteStore, mailer, logger.With("component", "invite")),
		rateLimiter: middleware.NewRateLimiter(),
		dispatcher: reminder.NewDispatcher(reminderStore, calendarStore, resolver, pushSvc, tokenStore, hub,
			cfg.Jobs.DispatchBatchSize, logger.With("component", "dispatcher")),
		dueTasks: task.NewDueReminder(taskStore, resolver, pushSvc, tokenStore, loc,
			cfg.Jobs.TaskBatchSize, logger.With("component", "task_reminder")),
		birthdays:   birthday.NewUpdater(birthdayStore, loc, logger.With("component", "birthday")),
		retention:   retention.NewJob(store.NewRetentionStore(db), cfg.Jobs.ReminderRetention(), logger.With("component", "retention")),
		pushEnabled: pushEnabled,
		logger:      logger,
	}
}

// Tokens returns the token issuer used to authenticate requests.
func (s *Server) Tokens() *auth.Tokens {
	return s.tokens
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// RegisterJobs adds the periodic jobs to r. Jobs that send push
// notifications are left out while push is disabled.
func (s *Server) RegisterJobs(r *jobs.Runner) error {
	if s.pushEnabled {
		if err := r.Add("dispatch", s.cfg.Jobs.Dispatch, func(ctx context.Context, now time.Time) error {
			_, err := s.dispatcher.Run(ctx, now)
			return err
		}); err != nil {
			return err
		}
		if err := r.Add("tasks", s.cfg.Jobs.Tasks, func(ctx context.Context, now time.Time) error {
			_, err := s.dueTasks.Run(ctx, now)
			return err
		}); err != nil {
			return err
		}
	}
	if err := r.Add("birthdays", s.cfg.Jobs.Birthdays, func(ctx context.Context, now time.Time) error {
		_, err := s.birthdays.Run(ctx, now)
		return err
	}); err != nil {
		return err
	}
	if err := r.Add("retention", s.cfg.Jobs.Retention, func(ctx context.Context, now time.Time) error {
		_, err := s.retention.Run(ctx, now)
		return err
	}); err != nil {
		return err
	}
	return r.Add("ratelimit-cleanup", "@every 1h", func(ctx context.Context, now time.Time) error {
		s.rateLimiter.Cleanup()
		return nil
	})
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.tokens, s.logger.With("component", "websocket")))

	// Protected routes, wrapped with RequireAuth
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.tokens)
	outerMux.Handle("/api/", authMiddleware(protectedMux))

	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	})

	return middleware.RequestLogger(s.logger.With("component", "http"))(c.Handler(outerMux))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check failed", "error", err)
		status = "unavailable"
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{"status": status, "push": s.pushEnabled})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.ByUser, importLimit, time.Minute)
	return rl(h).ServeHTTP
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Calendars and events
	mux.HandleFunc("POST /api/calendars", s.calendarH.CreateCalendar)
	mux.HandleFunc("POST /api/calendars/{calendarId}/events", s.calendarH.CreateEvent)
	mux.HandleFunc("GET /api/calendars/{calendarId}/events/{eventId}", s.calendarH.GetEvent)
	mux.HandleFunc("DELETE /api/calendars/{calendarId}/events/{eventId}", s.calendarH.DeleteEvent)
	mux.HandleFunc("POST /api/calendars/{calendarId}/import", s.rateLimitedHandler(s.calendarH.Import))
	mux.HandleFunc("GET /api/calendars/{calendarId}/export", s.calendarH.Export)

	mux.HandleFunc("POST /api/reminders/schedule", s.reminderH.Schedule)

	// Push devices
	mux.HandleFunc("POST /api/devices", s.deviceH.Register)
	mux.HandleFunc("DELETE /api/devices", s.deviceH.Unregister)
	mux.HandleFunc("GET /api/devices/vapid-key", s.deviceH.VAPIDKey)

	// Availability
	mux.HandleFunc("PUT /api/availability/{dateKey}", s.availH.Put)
	mux.HandleFunc("DELETE /api/availability/{dateKey}", s.availH.Delete)
	mux.HandleFunc("GET /api/availability/{dateKey}/summary", s.availH.Summary)

	mux.HandleFunc("POST /api/tasks", s.taskH.Create)
	mux.HandleFunc("POST /api/tasks/{id}/complete", s.taskH.Complete)
	mux.HandleFunc("POST /api/birthdays", s.birthdayH.Create)
	mux.HandleFunc("POST /api/invites", s.inviteH.Create)
}
