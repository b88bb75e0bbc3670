package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/mail"
	"strconv"
	"strings"

	"stockalert/internal/domain"
	"stockalert/internal/notify"
	"stockalert/internal/storage"

	"github.com/go-chi/chi/v5"
)

type handler struct {
	runner        CycleRunner
	notifications storage.NotificationStore
	settings      storage.SettingsStore
	push          PushRegistrar
	ready         func(ctx context.Context) error
	maxBodyBytes  int64
	logger        *slog.Logger
}

type errorResponse struct {
	Error string `json:"error"`
}

type listResponse struct {
	Notifications []domain.Notification `json:"notifications"`
	UnreadCount   int64                 `json:"unread_count"`
}

type subscribeRequest struct {
	SubscriberID string              `json:"subscriber_id"`
	Subscription notify.Subscription `json:"subscription"`
}

func (h *handler) liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *handler) readiness(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not-ready"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (h *handler) runAll(w http.ResponseWriter, r *http.Request) {
	counts := h.runner.RunAllChecks(r.Context())
	writeJSON(w, http.StatusOK, counts)
}

func (h *handler) runKind(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseConditionKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	counts := h.runner.RunCycle(r.Context(), kind)
	writeJSON(w, http.StatusOK, counts)
}

// listNotifications serves newest-first notifications with global unread count.
func (h *handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	items, unread, err := h.notifications.List(r.Context(), filter)
	if err != nil {
		h.internalError(w, "list notifications failed", err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Notifications: items, UnreadCount: unread})
}

func (h *handler) markRead(w http.ResponseWriter, r *http.Request) {
	h.updateNotification(w, r, h.notifications.MarkRead)
}

func (h *handler) dismiss(w http.ResponseWriter, r *http.Request) {
	h.updateNotification(w, r, h.notifications.Dismiss)
}

func (h *handler) deleteNotification(w http.ResponseWriter, r *http.Request) {
	h.updateNotification(w, r, h.notifications.Delete)
}

func (h *handler) markAllRead(w http.ResponseWriter, r *http.Request) {
	updated, err := h.notifications.MarkAllRead(r.Context())
	if err != nil {
		h.internalError(w, "mark all read failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": updated})
}

// updateNotification applies one id-keyed mutation; unknown ids map to 404.
func (h *handler) updateNotification(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, id string) error) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("notification id is required"))
		return
	}
	if err := apply(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Errorf("notification %s not found", id))
			return
		}
		h.internalError(w, "notification update failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) vapidPublicKey(w http.ResponseWriter, _ *http.Request) {
	key := h.push.VAPIDPublicKey()
	if key == "" {
		writeError(w, http.StatusNotFound, errors.New("web push is not configured"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"publicKey": key})
}

func (h *handler) subscribe(w http.ResponseWriter, r *http.Request) {
	var request subscribeRequest
	if err := h.decodeBody(w, r, &request); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	subscriberID := strings.TrimSpace(request.SubscriberID)
	if subscriberID == "" {
		subscriberID = defaultSubscriberID
	}
	if err := h.push.Subscribe(subscriberID, request.Subscription); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h.logger.Info("push subscription stored", "subscriber_id", subscriberID)
	writeJSON(w, http.StatusCreated, map[string]string{"subscriber_id": subscriberID})
}

// getSettings returns stored settings; an absent record is reported as all channels off.
func (h *handler) getSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.Load(r.Context())
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		h.internalError(w, "load settings failed", err)
		return
	}
	if settings.Email.Addresses == nil {
		settings.Email.Addresses = []string{}
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *handler) putSettings(w http.ResponseWriter, r *http.Request) {
	var settings domain.Settings
	if err := h.decodeBody(w, r, &settings); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	addresses, err := normalizeAddresses(settings.Email.Addresses)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	settings.Email.Addresses = addresses
	if err := h.settings.Save(r.Context(), settings); err != nil {
		h.internalError(w, "save settings failed", err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *handler) decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

func (h *handler) internalError(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, "error", err)
	writeError(w, http.StatusInternalServerError, errors.New(msg))
}

// parseFilter reads notification list query parameters.
// Params: request with optional read, kind, severity, include_dismissed, and limit.
// Returns: filter or validation error.
func parseFilter(r *http.Request) (domain.NotificationFilter, error) {
	query := r.URL.Query()
	var filter domain.NotificationFilter

	if raw := query.Get("read"); raw != "" {
		read, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, fmt.Errorf("read must be a boolean: %q", raw)
		}
		filter.Read = &read
	}
	if raw := query.Get("kind"); raw != "" {
		kind, err := domain.ParseConditionKind(raw)
		if err != nil {
			return filter, err
		}
		filter.Kind = kind
	}
	if raw := query.Get("severity"); raw != "" {
		severity, err := domain.ParseSeverity(raw)
		if err != nil {
			return filter, err
		}
		filter.Severity = severity
	}
	if raw := query.Get("include_dismissed"); raw != "" {
		include, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, fmt.Errorf("include_dismissed must be a boolean: %q", raw)
		}
		filter.IncludeDismissed = include
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return filter, fmt.Errorf("limit must be a positive integer: %q", raw)
		}
		filter.Limit = limit
	}
	return filter, nil
}

func normalizeAddresses(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, value := range raw {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		parsed, err := mail.ParseAddress(value)
		if err != nil {
			return nil, fmt.Errorf("invalid email address %q", value)
		}
		address := strings.ToLower(parsed.Address)
		if _, ok := seen[address]; ok {
			continue
		}
		seen[address] = struct{}{}
		out = append(out, parsed.Address)
	}
	return out, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
