// internal/channel/server.go

// Package channel is the page-facing bridge: pages talk to the worker over a
// local HTTP endpoint instead of an in-process message port.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"offline-worker/internal/cache"
	"offline-worker/internal/common/config"
	apperrors "offline-worker/internal/common/errors"
	"offline-worker/internal/common/httpclient"
	"offline-worker/internal/common/logger"
	"offline-worker/internal/models"
	"offline-worker/internal/notification"
	"offline-worker/internal/store"
)

// Message types accepted on POST /channel.
const (
	MessageGetNotifications  = "GET_NOTIFICATIONS"
	MessageMarkAsRead        = "MARK_AS_READ"
	MessageSyncNotifications = "SYNC_NOTIFICATIONS"
)

// ForcedSyncer runs one bounded read-receipt reconciliation.
type ForcedSyncer interface {
	ForceSync(ctx context.Context) error
}

// PushHandler processes inbound push deliveries and clicks.
type PushHandler interface {
	HandlePush(ctx context.Context, raw []byte) error
	HandleClick(ctx context.Context, notificationID, action string) error
}

// FetchProxy serves read fetches cache-first with typed offline fallbacks.
type FetchProxy interface {
	Intercept(ctx context.Context, req cache.FetchRequest) (*models.CachedResponse, error)
}

// ReplayQueue captures a mutating request that failed on the network.
type ReplayQueue interface {
	Enqueue(ctx context.Context, tag models.OperationTag, req models.SerializedRequest) (models.QueuedRequest, error)
}

// ReplayRegistrar schedules a tag for deferred replay once queued.
type ReplayRegistrar interface {
	RegisterReplay(ctx context.Context, tag models.OperationTag) error
}

// SubscriptionRegistrar persists the push subscription and announces its
// lifecycle to the application server.
type SubscriptionRegistrar interface {
	Register(ctx context.Context, sub models.PushSubscription) error
	Unregister(ctx context.Context) error
}

// Server exposes the worker's page-facing API.
type Server struct {
	notifications *notification.NotificationStore
	syncer        ForcedSyncer
	push          PushHandler
	proxy         FetchProxy
	queue         ReplayQueue
	replays       ReplayRegistrar
	subscriptions SubscriptionRegistrar
	client        *httpclient.Client
	origin        string
	cfg           config.ChannelConfig
	log           logger.Logger
	router        *mux.Router
}

func NewServer(cfg config.ChannelConfig, ns *notification.NotificationStore, syncer ForcedSyncer, push PushHandler, proxy FetchProxy, queue ReplayQueue, replays ReplayRegistrar, subscriptions SubscriptionRegistrar, origin string, log logger.Logger) *Server {
	s := &Server{
		notifications: ns,
		syncer:        syncer,
		push:          push,
		proxy:         proxy,
		queue:         queue,
		replays:       replays,
		subscriptions: subscriptions,
		client:        httpclient.NewClient(time.Duration(cfg.FetchTimeout) * time.Millisecond),
		origin:        origin,
		cfg:           cfg,
		log:           log,
	}

	r := mux.NewRouter()
	r.HandleFunc("/channel", s.handleChannel).Methods(http.MethodPost)
	r.HandleFunc("/fetch", s.handleFetch).Methods(http.MethodPost)
	r.HandleFunc("/push", s.handlePush).Methods(http.MethodPost)
	r.HandleFunc("/push/click", s.handleClick).Methods(http.MethodPost)
	r.HandleFunc("/subscription", s.handleSubscribe).Methods(http.MethodPost)
	r.HandleFunc("/subscription", s.handleUnsubscribe).Methods(http.MethodDelete)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	s.router = r
	return s
}

// Handler returns the routing stack with logging and panic recovery.
func (s *Server) Handler() http.Handler {
	return handlers.RecoveryHandler()(handlers.CombinedLoggingHandler(os.Stdout, s.router))
}

// ListenAndServe blocks serving the channel until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.ListenAddress,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

type channelMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type channelReply struct {
	Notifications []models.StoredNotification `json:"notifications,omitempty"`
	Success       *bool                       `json:"success,omitempty"`
	Error         string                      `json:"error,omitempty"`
}

func (s *Server) handleChannel(w http.ResponseWriter, r *http.Request) {
	var msg channelMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		s.reply(w, http.StatusBadRequest, channelReply{Error: "invalid message body"})
		return
	}

	switch msg.Type {
	case MessageGetNotifications:
		s.getNotifications(w, r, msg.Payload)
	case MessageMarkAsRead:
		s.markAsRead(w, r, msg.Payload)
	case MessageSyncNotifications:
		s.syncNotifications(w, r)
	default:
		s.reply(w, http.StatusBadRequest, channelReply{Error: "unknown message type: " + msg.Type})
	}
}

func (s *Server) getNotifications(w http.ResponseWriter, r *http.Request, payload json.RawMessage) {
	var filter struct {
		UserID int64 `json:"userId"`
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &filter); err != nil {
			s.reply(w, http.StatusBadRequest, channelReply{Error: "invalid payload"})
			return
		}
	}

	var (
		list []models.StoredNotification
		err  error
	)
	if filter.UserID != 0 {
		list, err = s.notifications.GetByUser(r.Context(), filter.UserID)
	} else {
		list, err = s.notifications.GetAll(r.Context())
	}
	if err != nil {
		s.reply(w, http.StatusInternalServerError, channelReply{Error: err.Error()})
		return
	}
	if list == nil {
		list = []models.StoredNotification{}
	}
	s.reply(w, http.StatusOK, channelReply{Notifications: list})
}

func (s *Server) markAsRead(w http.ResponseWriter, r *http.Request, payload json.RawMessage) {
	var body struct {
		NotificationID string `json:"notificationId"`
	}
	if err := json.Unmarshal(payload, &body); err != nil || body.NotificationID == "" {
		s.reply(w, http.StatusBadRequest, channelReply{Error: "notificationId is required"})
		return
	}

	if err := s.notifications.MarkRead(r.Context(), body.NotificationID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.reply(w, http.StatusNotFound, channelReply{Error: "unknown notification"})
			return
		}
		s.reply(w, http.StatusInternalServerError, channelReply{Error: err.Error()})
		return
	}
	s.reply(w, http.StatusOK, channelReply{Success: boolPtr(true)})
}

func (s *Server) syncNotifications(w http.ResponseWriter, r *http.Request) {
	if err := s.syncer.ForceSync(r.Context()); err != nil {
		// The page gets a reply either way; hanging is the one thing this
		// endpoint must not do.
		s.reply(w, http.StatusOK, channelReply{Success: boolPtr(false), Error: err.Error()})
		return
	}
	s.reply(w, http.StatusOK, channelReply{Success: boolPtr(true)})
}

type fetchMessage struct {
	URL         string              `json:"url"`
	Method      string              `json:"method,omitempty"`
	Destination models.Destination  `json:"destination,omitempty"`
	Headers     map[string]string   `json:"headers,omitempty"`
	Body        string              `json:"body,omitempty"`
	Tag         models.OperationTag `json:"tag,omitempty"`
}

type fetchReply struct {
	Status    int               `json:"status,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	Body      string            `json:"body,omitempty"`
	Queued    bool              `json:"queued,omitempty"`
	RequestID string            `json:"requestId,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// handleFetch is the page's single fetch entry point. Reads are served
// cache-first; mutating requests go to the network and, when the network is
// down, are queued for replay under their operation tag.
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	var msg fetchMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil || msg.URL == "" {
		s.replyFetch(w, http.StatusBadRequest, fetchReply{Error: "url is required"})
		return
	}
	if msg.Method == "" {
		msg.Method = http.MethodGet
	}
	if msg.Tag != "" && !models.IsKnownTag(msg.Tag) {
		s.replyFetch(w, http.StatusBadRequest, fetchReply{Error: "unknown operation tag: " + string(msg.Tag)})
		return
	}

	if msg.Method == http.MethodGet || msg.Method == http.MethodHead {
		resp, err := s.proxy.Intercept(r.Context(), cache.FetchRequest{URL: msg.URL, Destination: msg.Destination})
		if err != nil {
			s.replyFetch(w, http.StatusBadGateway, fetchReply{Error: err.Error()})
			return
		}
		s.replyFetch(w, http.StatusOK, fetchReply{Status: resp.Status, Headers: resp.Headers, Body: string(resp.Body)})
		return
	}

	s.forwardMutating(w, r, msg)
}

// forwardMutating sends the request to the network once. A network failure
// turns it into a durable queued replay instead of an error, provided the
// page supplied an operation tag.
func (s *Server) forwardMutating(w http.ResponseWriter, r *http.Request, msg fetchMessage) {
	serialized := models.SerializedRequest{
		URL:     msg.URL,
		Method:  msg.Method,
		Headers: msg.Headers,
		Body:    msg.Body,
	}

	target := msg.URL
	if strings.HasPrefix(target, "/") {
		target = strings.TrimSuffix(s.origin, "/") + target
	}

	req, err := http.NewRequest(msg.Method, target, strings.NewReader(msg.Body))
	if err != nil {
		s.replyFetch(w, http.StatusBadRequest, fetchReply{Error: err.Error()})
		return
	}
	for name, value := range msg.Headers {
		req.Header.Set(name, value)
	}

	resp, err := s.client.DoWithContext(r.Context(), req)
	if err == nil {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		s.replyFetch(w, http.StatusOK, fetchReply{Status: resp.StatusCode, Body: string(body)})
		return
	}

	if msg.Tag == "" {
		s.replyFetch(w, http.StatusBadGateway, fetchReply{Error: "network unreachable and no replay tag supplied"})
		return
	}

	rec, qerr := s.queue.Enqueue(r.Context(), msg.Tag, serialized)
	if qerr != nil {
		s.replyFetch(w, http.StatusInternalServerError, fetchReply{Error: qerr.Error()})
		return
	}
	if rerr := s.replays.RegisterReplay(r.Context(), msg.Tag); rerr != nil {
		s.log.Warn("Replay registration failed, record stays queued", map[string]interface{}{
			"tag":   string(msg.Tag),
			"error": rerr.Error(),
		})
	}
	s.replyFetch(w, http.StatusAccepted, fetchReply{Queued: true, RequestID: rec.ID})
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var sub models.PushSubscription
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil || sub.Endpoint == "" {
		s.reply(w, http.StatusBadRequest, channelReply{Error: "subscription endpoint is required"})
		return
	}

	if err := s.subscriptions.Register(r.Context(), sub); err != nil {
		s.reply(w, http.StatusBadGateway, channelReply{Error: err.Error()})
		return
	}
	s.reply(w, http.StatusCreated, channelReply{Success: boolPtr(true)})
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	if err := s.subscriptions.Unregister(r.Context()); err != nil {
		s.reply(w, http.StatusBadGateway, channelReply{Error: err.Error()})
		return
	}
	s.reply(w, http.StatusOK, channelReply{Success: boolPtr(true)})
}

func (s *Server) replyFetch(w http.ResponseWriter, status int, body fetchReply) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error("Failed to encode fetch reply", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		s.reply(w, http.StatusBadRequest, channelReply{Error: "unreadable body"})
		return
	}

	if err := s.push.HandlePush(r.Context(), raw); err != nil {
		if apperrors.CodeOf(err) == apperrors.ErrCodeMalformedPushPayload {
			s.reply(w, http.StatusBadRequest, channelReply{Error: err.Error()})
			return
		}
		s.reply(w, http.StatusInternalServerError, channelReply{Error: err.Error()})
		return
	}
	s.reply(w, http.StatusAccepted, channelReply{Success: boolPtr(true)})
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	var body struct {
		NotificationID string `json:"notificationId"`
		Action         string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.NotificationID == "" {
		s.reply(w, http.StatusBadRequest, channelReply{Error: "notificationId is required"})
		return
	}

	if err := s.push.HandleClick(r.Context(), body.NotificationID, body.Action); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.reply(w, http.StatusNotFound, channelReply{Error: "unknown notification"})
			return
		}
		s.reply(w, http.StatusInternalServerError, channelReply{Error: err.Error()})
		return
	}
	s.reply(w, http.StatusOK, channelReply{Success: boolPtr(true)})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) reply(w http.ResponseWriter, status int, body channelReply) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error("Failed to encode channel reply", map[string]interface{}{"error": err.Error()})
	}
}

func boolPtr(b bool) *bool { return &b }
