package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"coachsync/internal/service"
	"coachsync/internal/store"
	"coachsync/internal/strava"
)

// handleWebhookVerify answers the provider's subscription handshake:
// echo the challenge when the verify token matches, refuse otherwise.
func (s *Server) handleWebhookVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") != "subscribe" || q.Get("hub.verify_token") != s.verifyToken {
		s.writeError(w, http.StatusForbidden, "verification failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"hub.challenge": q.Get("hub.challenge")})
}

// handleWebhookEvent ingests one provider event. Every outcome answers
// 200: a non-2xx makes the provider retry and eventually disable the
// subscription. A body we cannot decode is logged and acknowledged as
// a no-op; there is nothing to retry.
func (s *Server) handleWebhookEvent(w http.ResponseWriter, r *http.Request) {
	var event strava.WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		s.logger.Warn("undecodable webhook payload", "error", err)
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	if !event.IsActivity() {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	conn, err := s.db.GetConnectionByProviderAthlete(store.SourceStrava, event.OwnerID)
	if err != nil {
		if errors.Is(err, store.ErrConnectionNotFound) {
			// Not ours (stale subscription, deleted athlete). Ack and drop.
			s.logger.Info("webhook for unknown owner", "owner_id", event.OwnerID)
			s.writeJSON(w, http.StatusOK, map[string]string{"status": "unknown owner"})
			return
		}
		s.logger.Error("resolving webhook owner", "owner_id", event.OwnerID, "error", err)
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "deferred"})
		return
	}

	now := time.Now()
	eventAt := time.Unix(event.EventTime, 0)
	if event.EventTime == 0 {
		eventAt = now
	}

	// Deletes carry no fetchable object; the incremental run sorts the
	// calendar out from the watermark.
	var hint *int64
	if event.AspectType == "create" || event.AspectType == "update" {
		hint = &event.ObjectID
	}

	if err := s.db.RecordSyncEvent(conn.AthleteID, eventAt, hint); err != nil {
		s.logger.Error("recording sync event", "athlete_id", conn.AthleteID, "error", err)
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "deferred"})
		return
	}

	opts := service.SyncOptions{}
	if hint != nil {
		opts.SingleActivityID = *hint
	}
	acquired, summary, err := s.sync.RunLeased(r.Context(), conn.AthleteID, opts, now)
	if err != nil {
		s.logger.Error("leased sync run", "athlete_id", conn.AthleteID, "error", err)
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "deferred"})
		return
	}
	if !acquired {
		// Debounced or backed off; the recorded event is picked up by
		// the retry sweep.
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "debounced"})
		return
	}

	if len(summary.Errors) > 0 {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "retry scheduled"})
		return
	}

	s.invalidateAthlete(conn.AthleteID)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "synced",
		"stored":  summary.ActivitiesStored,
		"matched": summary.Matched,
	})
}

func (s *Server) invalidateAthlete(athleteID int64) {
	prefix := fmt.Sprintf("%d/", athleteID)
	s.calendars.InvalidatePrefix(prefix)
	s.summaries.InvalidatePrefix(prefix)
}
