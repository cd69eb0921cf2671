package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/shaharia-lab/cloudcli-push/internal/storage"
)

// subscribeRequest accepts both {subscription, device} and a bare
// PushSubscription JSON object as produced by the browser.
type subscribeRequest struct {
	storage.SubscriptionInput
	Subscription *storage.SubscriptionInput `json:"subscription"`
	Device       storage.DeviceMetadata     `json:"device"`
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

type publishEventRequest struct {
	Type    string            `json:"type"`
	Payload map[string]string `json:"payload"`
}

func (s *Server) handleGetPublicKey(w http.ResponseWriter, r *http.Request) {
	key, err := s.pushSvc.PublicKey(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err, "Failed to fetch public key")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "publicKey": key})
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSONBody)
		return
	}
	sub := req.SubscriptionInput
	if req.Subscription != nil {
		sub = *req.Subscription
	}

	meta := req.Device
	if meta.UserAgent == "" {
		meta.UserAgent = r.UserAgent()
	}

	if _, err := s.pushSvc.Subscribe(r.Context(), userID, sub, meta); err != nil {
		s.writeServiceError(w, r, err, "Failed to save subscription")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req unsubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSONBody)
		return
	}

	deleted, err := s.pushSvc.Unsubscribe(r.Context(), userID, req.Endpoint)
	if err != nil {
		s.writeServiceError(w, r, err, "Failed to remove subscription")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "deleted": deleted})
}

func (s *Server) handleSendTest(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	res, err := s.pushSvc.SendTest(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, r, err, "Failed to send test notification")
		return
	}

	body := map[string]any{"success": true, "delivered": res.Delivered, "total": res.Total}
	if res.Skipped {
		body["skipped"] = true
	}
	writeJSON(w, http.StatusOK, body)
}

// handlePublishEvent queues a session event for the caller. Delivery happens
// asynchronously on the event bus.
func (s *Server) handlePublishEvent(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req publishEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSONBody)
		return
	}

	if err := s.pushSvc.PublishEvent(r.Context(), userID, req.Type, req.Payload); err != nil {
		s.writeServiceError(w, r, err, "Failed to publish event")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"success": true})
}

const (
	defaultDeliveryLimit = 50
	maxDeliveryLimit     = 500
)

// handleListDeliveries returns the caller's recent fan-out results.
// Accepts an optional ?limit=N query parameter (default 50, at most 500).
func (s *Server) handleListDeliveries(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	limit := defaultDeliveryLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = min(n, maxDeliveryLimit)
		}
	}

	entries, err := s.pushSvc.ListDeliveries(r.Context(), userID, limit)
	if err != nil {
		s.writeServiceError(w, r, err, "Failed to list deliveries")
		return
	}
	if entries == nil {
		entries = []storage.DeliveryLogEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "deliveries": entries})
}
