package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/webitel/im-realtime-service/infra/auth"
	"github.com/webitel/im-realtime-service/internal/adapter/media"
	"github.com/webitel/im-realtime-service/internal/domain/model"
	wsmarshaller "github.com/webitel/im-realtime-service/internal/handler/marshaller/ws"
	"github.com/webitel/im-realtime-service/internal/service"
)

type HistoryStore interface {
	History(ctx context.Context, userID, peerID string, limit int) ([]*model.Message, error)
	MarkRead(ctx context.Context, readerID, peerID string) (int64, error)
}

type CallLogStore interface {
	SaveCallLog(ctx context.Context, log *model.CallLog) error
	RecentCalls(ctx context.Context, userID string, limit int) ([]*model.CallLog, error)
}

type TokenStore interface {
	AddToken(ctx context.Context, t *model.PushToken) error
	RemoveToken(ctx context.Context, userID, token string) error
}

// TokenCache is invalidated whenever a user's devices change.
type TokenCache interface {
	Forget(userID string)
}

type UploadPresigner interface {
	PresignUpload(ctx context.Context, userID, contentType string, size int64) (*media.Upload, error)
}

type PresenceReader interface {
	OnlineUserIDs() []string
}

type Deps struct {
	Router   service.MessageRouter
	History  HistoryStore
	Calls    CallLogStore
	Tokens   TokenStore
	Cache    TokenCache
	Uploads  UploadPresigner // nil when media uploads are not configured
	Presence PresenceReader
}

// APIHandler serves the authenticated /api/v1 surface.
type APIHandler struct {
	deps   Deps
	logger *slog.Logger
	now    func() time.Time
}

func NewAPIHandler(deps Deps, logger *slog.Logger) *APIHandler {
	return &APIHandler{deps: deps, logger: logger, now: time.Now}
}

// Routes mounts the API on r; every route requires an identity.
func (h *APIHandler) Routes(r chi.Router, resolver *auth.Resolver) {
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(resolver))

		r.Route("/messages/{peerID}", func(r chi.Router) {
			r.Get("/", h.history)
			r.Post("/", h.sendMessage)
			r.Post("/read", h.markRead)
		})

		r.Route("/calls", func(r chi.Router) {
			r.Get("/", h.recentCalls)
			r.Post("/", h.saveCall)
		})

		r.Route("/push/tokens", func(r chi.Router) {
			r.Post("/", h.addToken)
			r.Delete("/", h.removeToken)
		})

		r.Post("/media/uploads", h.presignUpload)
		r.Get("/presence", h.presence)
	})
}

// --- messages ---

type sendMessageRequest struct {
	ClientID string `json:"clientId"`
	Text     string `json:"text"`
	Image    string `json:"image"`
	Audio    string `json:"audio"`
}

func (h *APIHandler) history(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetIdentity(r.Context())
	peerID := chi.URLParam(r, "peerID")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	msgs, err := h.deps.History.History(r.Context(), userID, peerID, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	// opening a conversation reads it
	if _, err := h.deps.History.MarkRead(r.Context(), userID, peerID); err != nil {
		h.logger.Warn("HTTP_MARK_READ_FAILED", "user_id", userID, "peer_id", peerID, "err", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{"messages": wsmarshaller.MapMessages(msgs)})
}

func (h *APIHandler) sendMessage(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetIdentity(r.Context())

	var req sendMessageRequest
	if !decodeBody(w, r, &req) {
		return
	}

	msg, err := h.deps.Router.RouteMessage(r.Context(), &model.Message{
		ClientID:   req.ClientID,
		SenderID:   userID,
		ReceiverID: chi.URLParam(r, "peerID"),
		Text:       req.Text,
		Image:      req.Image,
		Audio:      req.Audio,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, wsmarshaller.MapMessage(msg))
}

func (h *APIHandler) markRead(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetIdentity(r.Context())

	n, err := h.deps.History.MarkRead(r.Context(), userID, chi.URLParam(r, "peerID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

// --- calls ---

type callLogRequest struct {
	ReceiverID string           `json:"receiverId"`
	CallType   model.CallType   `json:"callType"`
	Status     model.CallStatus `json:"status"`
	Duration   int              `json:"duration"`
}

type callLogResponse struct {
	ID         string           `json:"id"`
	CallerID   string           `json:"callerId"`
	ReceiverID string           `json:"receiverId"`
	CallType   model.CallType   `json:"callType"`
	Status     model.CallStatus `json:"status"`
	Duration   int              `json:"duration"`
	CreatedAt  int64            `json:"createdAt"`
}

func mapCallLog(l *model.CallLog) *callLogResponse {
	return &callLogResponse{
		ID:         l.ID.String(),
		CallerID:   l.CallerID,
		ReceiverID: l.ReceiverID,
		CallType:   l.CallType,
		Status:     l.Status,
		Duration:   l.DurationSeconds,
		CreatedAt:  l.CreatedAt,
	}
}

func (h *APIHandler) saveCall(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetIdentity(r.Context())

	var req callLogRequest
	if !decodeBody(w, r, &req) {
		return
	}

	entry := &model.CallLog{
		ID:              uuid.New(),
		CallerID:        userID,
		ReceiverID:      req.ReceiverID,
		CallType:        req.CallType,
		Status:          req.Status,
		DurationSeconds: req.Duration,
		CreatedAt:       h.now().UnixMilli(),
	}
	if entry.CallType == "" {
		entry.CallType = model.CallAudio
	}

	if err := entry.Validate(); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.deps.Calls.SaveCallLog(r.Context(), entry); err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, mapCallLog(entry))
}

func (h *APIHandler) recentCalls(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetIdentity(r.Context())

	logs, err := h.deps.Calls.RecentCalls(r.Context(), userID, 0)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := make([]*callLogResponse, 0, len(logs))
	for _, l := range logs {
		out = append(out, mapCallLog(l))
	}
	writeJSON(w, http.StatusOK, map[string]any{"calls": out})
}

// --- push tokens ---

type tokenRequest struct {
	Token    string         `json:"token"`
	Platform model.Platform `json:"platform"`
}

func (h *APIHandler) addToken(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetIdentity(r.Context())

	var req tokenRequest
	if !decodeBody(w, r, &req) {
		return
	}

	t := &model.PushToken{UserID: userID, Token: req.Token, Platform: req.Platform, CreatedAt: h.now().UnixMilli()}
	if err := t.Validate(); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.deps.Tokens.AddToken(r.Context(), t); err != nil {
		h.fail(w, r, err)
		return
	}

	h.forget(userID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) removeToken(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetIdentity(r.Context())

	var req tokenRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	if err := h.deps.Tokens.RemoveToken(r.Context(), userID, req.Token); err != nil {
		h.fail(w, r, err)
		return
	}

	h.forget(userID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) forget(userID string) {
	if h.deps.Cache != nil {
		h.deps.Cache.Forget(userID)
	}
}

// --- media & presence ---

type uploadRequest struct {
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

func (h *APIHandler) presignUpload(w http.ResponseWriter, r *http.Request) {
	if h.deps.Uploads == nil {
		writeError(w, http.StatusNotImplemented, "media uploads are not configured")
		return
	}

	userID, _ := auth.GetIdentity(r.Context())

	var req uploadRequest
	if !decodeBody(w, r, &req) {
		return
	}

	up, err := h.deps.Uploads.PresignUpload(r.Context(), userID, req.ContentType, req.Size)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, up)
}

func (h *APIHandler) presence(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"online": h.deps.Presence.OnlineUserIDs()})
}

// fail maps domain errors onto HTTP statuses.
func (h *APIHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("HTTP_REQUEST_FAILED", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeError(w, status, err.Error())
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidIdentity):
		return http.StatusUnauthorized
	case errors.Is(err, model.ErrInvalidMessage),
		errors.Is(err, model.ErrInvalidCallLog),
		errors.Is(err, model.ErrInvalidPushToken),
		errors.Is(err, model.ErrMalformedSignal),
		errors.Is(err, media.ErrInvalidUpload):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
