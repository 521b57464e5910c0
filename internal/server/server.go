package server

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/dukerupert/fellowship/internal/auth"
	"github.com/dukerupert/fellowship/internal/authstate"
	"github.com/dukerupert/fellowship/internal/bible"
	"github.com/dukerupert/fellowship/internal/config"
	"github.com/dukerupert/fellowship/internal/email"
	"github.com/dukerupert/fellowship/internal/handler"
	"github.com/dukerupert/fellowship/internal/metrics"
	"github.com/dukerupert/fellowship/internal/middleware"
	"github.com/dukerupert/fellowship/internal/push"
	"github.com/dukerupert/fellowship/internal/service"
	"github.com/dukerupert/fellowship/internal/spotify"
	"github.com/dukerupert/fellowship/internal/store"
	"github.com/dukerupert/fellowship/internal/toast"
	ws "github.com/dukerupert/fellowship/internal/websocket"
)

// Rate limits for credential endpoints and chat posting.
var (
	authLimit = middleware.Limit{Requests: 10, Window: time.Minute}
	chatLimit = middleware.Limit{Requests: 30, Window: time.Minute}
)

type Server struct {
	cfg         *config.Config
	hub         *ws.Hub
	broker      *authstate.Broker
	roles       *auth.RoleCache
	gate        *auth.Gate
	toasts      *toast.Notifier
	metrics     *metrics.Metrics
	events      *service.EventService
	sessions    *store.SessionStore
	rateLimiter *middleware.RateLimiter

	authH         *handler.AuthHandler
	userH         *handler.UserHandler
	eventH        *handler.EventHandler
	questionH     *handler.QuestionHandler
	notificationH *handler.NotificationHandler
	preferenceH   *handler.PreferenceHandler
	readingH      *handler.ReadingHandler
	pushH         *handler.PushHandler
	pageH         *handler.PageHandler

	logger *slog.Logger
}

// New wires stores, services and handlers for db according to cfg.
func New(cfg *config.Config, db *sql.DB, logger *slog.Logger) (*Server, error) {
	m := metrics.New()

	hub := ws.NewHub(logger.With("component", "websocket"))
	hub.TrackClients(m.WSClients)

	broker := authstate.NewBroker(logger.With("component", "authstate"))
	sessions := store.NewSessionStore(db, cfg.Session.TTL)
	accounts := service.NewAccountService(db, sessions, broker, logger.With("component", "accounts"))

	roles := auth.NewRoleCache(accounts.RoleOf, 5*time.Minute)
	broker.Subscribe(roles.HandleAuthState)
	broker.Subscribe(hub.HandleAuthState)

	toasts := toast.NewNotifier(cfg.Toast.DedupeWindow, func(userID int64, t toast.Toast) {
		hub.SendToUser(userID, ws.Message{Type: "toast", Entity: "toast", Payload: t})
	}, logger.With("component", "toast"))
	toasts.OnSuppressed = m.ToastsSuppressed.Inc

	pushStore := store.NewPushStore(db)
	pushSvc := push.NewService(push.Config{
		VAPIDPublicKey:  cfg.Push.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.Push.VAPIDPrivateKey,
		Subscriber:      cfg.Push.Subscriber,
	}, pushStore, logger.With("component", "push"))
	pushSvc.OnResult = func(result string) { m.PushSent.WithLabelValues(result).Inc() }

	mailer := email.NewClient(cfg.Email.PostmarkToken, cfg.Email.FromAddress, cfg.BaseURL)

	notifications := service.NewNotificationService(store.NewNotificationStore(db), hub, pushSvc, logger.With("component", "notifications"))
	events := service.NewEventService(db, notifications, hub, logger.With("component", "events"))
	chat := service.NewChatService(db, events, hub)
	questions := service.NewQuestionService(db, notifications, mailer, logger.With("component", "questions"))
	prefs := service.NewPreferenceService(db)

	bibleClient := bible.NewClient(bible.Config{
		BaseURL:  cfg.Bible.BaseURL,
		APIKey:   cfg.Bible.APIKey,
		CacheTTL: cfg.Bible.CacheTTL,
	})
	playlists := service.NewPlaylistService(nil, cfg.Spotify.PlaylistID)
	if cfg.SpotifyEnabled() {
		sc, err := spotify.NewClient(spotify.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
		})
		if err != nil && !errors.Is(err, spotify.ErrNotConfigured) {
			return nil, err
		}
		if err == nil {
			playlists = service.NewPlaylistService(sc, cfg.Spotify.PlaylistID)
		}
	}

	return &Server{
		cfg:         cfg,
		hub:         hub,
		broker:      broker,
		roles:       roles,
		gate:        auth.NewGate(auth.ContextChecker{Roles: roles}),
		toasts:      toasts,
		metrics:     m,
		events:      events,
		sessions:    sessions,
		rateLimiter: middleware.NewRateLimiter(),

		authH:         handler.NewAuthHandler(accounts, cfg.Session.TTL, cfg.Session.SecureCookie, toasts, logger.With("component", "auth")),
		userH:         handler.NewUserHandler(accounts, toasts, logger.With("component", "users")),
		eventH:        handler.NewEventHandler(events, chat, toasts, logger.With("component", "events")),
		questionH:     handler.NewQuestionHandler(questions, toasts, logger.With("component", "questions")),
		notificationH: handler.NewNotificationHandler(notifications, toasts, logger.With("component", "notifications")),
		preferenceH:   handler.NewPreferenceHandler(prefs, toasts, logger.With("component", "preferences")),
		readingH:      handler.NewReadingHandler(service.NewBibleService(bibleClient, prefs, cfg.Bible.DefaultVersion), playlists, toasts, logger.With("component", "reading")),
		pushH:         handler.NewPushHandler(pushStore, pushSvc, logger.With("component", "push_handler")),
		pageH:         handler.NewPageHandler(logger.With("component", "pages")),

		logger: logger,
	}, nil
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessions
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Toasts returns the toast notifier for cleanup tasks.
func (s *Server) Toasts() *toast.Notifier {
	return s.toasts
}

func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Broker() *authstate.Broker {
	return s.broker
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", handler.Health)
	mux.Handle("GET /metrics", s.metrics.Handler())

	// Credentials
	mux.Handle("POST /api/auth/register", s.limited(middleware.KeyByIP, authLimit, s.authH.Register))
	mux.Handle("POST /api/auth/login", s.limited(middleware.KeyByIP, authLimit, s.authH.Login))
	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/session", s.authH.Session)

	// Signed-in API
	s.handle(mux, "PATCH /api/me", auth.RequireAuthenticated, s.authH.UpdateProfile)

	s.handle(mux, "GET /api/events", auth.RequireAuthenticated, s.eventH.List)
	s.handle(mux, "GET /api/events/{id}", auth.RequireAuthenticated, s.eventH.Get)
	s.handle(mux, "GET /api/events/{id}/attendees", auth.RequireAuthenticated, s.eventH.Attendees)
	s.handle(mux, "PUT /api/events/{id}/rsvp", auth.RequireAuthenticated, s.eventH.RSVP)
	s.handle(mux, "DELETE /api/events/{id}/rsvp", auth.RequireAuthenticated, s.eventH.Withdraw)
	s.handle(mux, "POST /api/events/{id}/items", auth.RequireAuthenticated, s.eventH.AddItem)
	s.handle(mux, "DELETE /api/items/{id}", auth.RequireAuthenticated, s.eventH.DeleteItem)
	s.handle(mux, "GET /api/events/{id}/messages", auth.RequireAuthenticated, s.eventH.Messages)
	mux.Handle("POST /api/events/{id}/messages", s.gated(auth.RequireAuthenticated,
		s.limited(middleware.KeyByUser, chatLimit, s.eventH.PostMessage)))
	s.handle(mux, "DELETE /api/messages/{id}", auth.RequireAuthenticated, s.eventH.DeleteMessage)

	s.handle(mux, "GET /api/questions", auth.RequireAuthenticated, s.questionH.List)
	s.handle(mux, "POST /api/questions", auth.RequireAuthenticated, s.questionH.Ask)
	s.handle(mux, "GET /api/questions/{id}", auth.RequireAuthenticated, s.questionH.Get)
	s.handle(mux, "DELETE /api/questions/{id}", auth.RequireAuthenticated, s.questionH.Delete)

	s.handle(mux, "GET /api/notifications", auth.RequireAuthenticated, s.notificationH.List)
	s.handle(mux, "POST /api/notifications/{id}/read", auth.RequireAuthenticated, s.notificationH.MarkRead)
	s.handle(mux, "POST /api/notifications/read-all", auth.RequireAuthenticated, s.notificationH.MarkAllRead)

	s.handle(mux, "GET /api/preferences", auth.RequireAuthenticated, s.preferenceH.List)
	s.handle(mux, "PUT /api/preferences/{key}", auth.RequireAuthenticated, s.preferenceH.Set)

	s.handle(mux, "GET /api/bible/passage", auth.RequireAuthenticated, s.readingH.Passage)
	s.handle(mux, "GET /api/bible/versions", auth.RequireAuthenticated, s.readingH.Versions)
	s.handle(mux, "GET /api/playlist", auth.RequireAuthenticated, s.readingH.Playlist)
	s.handle(mux, "GET /api/playlists/{id}", auth.RequireAuthenticated, s.readingH.Playlist)

	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
	s.handle(mux, "POST /api/push/subscribe", auth.RequireAuthenticated, s.pushH.Subscribe)
	s.handle(mux, "GET /api/push/subscriptions", auth.RequireAuthenticated, s.pushH.ListSubscriptions)
	s.handle(mux, "DELETE /api/push/subscriptions/{id}", auth.RequireAuthenticated, s.pushH.Unsubscribe)
	s.handle(mux, "POST /api/push/test", auth.RequireAuthenticated, s.pushH.TestNotification)

	// Leader API
	s.handle(mux, "POST /api/events", auth.RequireLeader, s.eventH.Create)
	s.handle(mux, "PUT /api/events/{id}", auth.RequireLeader, s.eventH.Update)
	s.handle(mux, "DELETE /api/events/{id}", auth.RequireLeader, s.eventH.Delete)
	s.handle(mux, "POST /api/events/{id}/publish", auth.RequireLeader, s.eventH.Publish)
	s.handle(mux, "POST /api/events/{id}/unpublish", auth.RequireLeader, s.eventH.Unpublish)
	s.handle(mux, "POST /api/questions/{id}/answer", auth.RequireLeader, s.questionH.Answer)

	// Admin API
	s.handle(mux, "GET /api/users", auth.RequireAdmin, s.userH.List)
	s.handle(mux, "PUT /api/users/{id}/role", auth.RequireAdmin, s.userH.SetRole)

	// Realtime
	mux.Handle("GET /ws", s.gated(auth.RequireAuthenticated,
		ws.HandleWebSocket(s.hub, s.authorizeTopic, allowedOrigins(s.cfg.BaseURL), s.logger.With("component", "websocket"))))

	// Pages
	for _, p := range handler.Pages {
		s.handle(mux, "GET "+p.Path, p.Requirement, s.pageH.Render(p))
	}

	authenticate := middleware.Authenticate(s.sessions, s.roles, s.logger.With("component", "auth"))
	logRequests := middleware.RequestLogger(s.logger.With("component", "http"), s.metrics.ObserveRequest)
	return logRequests(authenticate(mux))
}

func (s *Server) gated(req auth.Requirement, h http.Handler) http.Handler {
	if req == auth.RequireNone {
		return h
	}
	return middleware.Gate(s.gate, req, s.cfg.Session.SecureCookie)(h)
}

func (s *Server) handle(mux *http.ServeMux, pattern string, req auth.Requirement, h http.HandlerFunc) {
	mux.Handle(pattern, s.gated(req, h))
}

func (s *Server) limited(key func(*http.Request) string, l middleware.Limit, h http.HandlerFunc) http.Handler {
	return middleware.RateLimit(s.rateLimiter, key, l)(h)
}

// authorizeTopic allows a chat subscription when the event is visible to
// the user under their current role.
func (s *Server) authorizeTopic(_ context.Context, userID int64, topic string) bool {
	eventID, ok := ws.ParseEventTopic(topic)
	if !ok {
		return false
	}
	role, err := s.roles.Get(userID)
	if err != nil {
		return false
	}
	visible, err := s.events.Visible(eventID, role)
	if err != nil {
		s.logger.Warn("authorize topic", "topic", topic, "error", err)
		return false
	}
	return visible
}

// allowedOrigins lets websocket clients connect from the public host in
// addition to same-origin requests.
func allowedOrigins(baseURL string) []string {
	if baseURL == "" {
		return nil
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return nil
	}
	return []string{u.Host}
}
