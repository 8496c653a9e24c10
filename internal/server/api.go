package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"coachsync/internal/auth"
	"coachsync/internal/localday"
	"coachsync/internal/service"
	"coachsync/internal/store"
	"coachsync/internal/summary"
)

// CalendarSlot is the API shape of one resolved calendar slot.
type CalendarSlot struct {
	Day       string         `json:"day"`
	Missed    bool           `json:"missed,omitempty"`
	Planned   *PlannedSlot   `json:"planned,omitempty"`
	Completed *CompletedSlot `json:"completed,omitempty"`
}

type PlannedSlot struct {
	ID              string   `json:"id"`
	StartTime       string   `json:"start_time,omitempty"`
	Discipline      string   `json:"discipline"`
	DurationMinutes *int     `json:"duration_minutes,omitempty"`
	DistanceMeters  *float64 `json:"distance_meters,omitempty"`
	Status          string   `json:"status"`
}

type CompletedSlot struct {
	ID               string    `json:"id"`
	Source           string    `json:"source"`
	ExternalID       string    `json:"external_id"`
	Discipline       string    `json:"discipline"`
	StartedAt        time.Time `json:"started_at"`
	DurationMinutes  *int      `json:"duration_minutes,omitempty"`
	DistanceMeters   *float64  `json:"distance_meters,omitempty"`
	AverageHeartrate *float64  `json:"average_heartrate,omitempty"`
	Calories         *float64  `json:"calories,omitempty"`
	PaceSecondsPerKm *float64  `json:"pace_seconds_per_km,omitempty"`
}

func toCalendarSlots(entries []service.ResolvedEntry) []CalendarSlot {
	slots := make([]CalendarSlot, 0, len(entries))
	for _, re := range entries {
		slot := CalendarSlot{Day: re.Day, Missed: re.Missed}
		if re.Planned != nil {
			slot.Planned = &PlannedSlot{
				ID:              re.Planned.ID,
				StartTime:       re.Planned.StartTime,
				Discipline:      re.Planned.Discipline,
				DurationMinutes: re.Planned.DurationMinutes,
				DistanceMeters:  re.Planned.DistanceMeters,
				Status:          string(re.Planned.Status),
			}
		}
		if re.Completed != nil {
			c := re.Completed
			slot.Completed = &CompletedSlot{
				ID:               c.ID,
				Source:           c.Source,
				ExternalID:       c.ExternalID,
				Discipline:       c.Discipline,
				StartedAt:        c.StartedAt,
				DurationMinutes:  c.DurationMinutes,
				DistanceMeters:   c.DistanceMeters,
				AverageHeartrate: c.Metrics.AverageHeartrate(),
				Calories:         c.Metrics.Calories(),
				PaceSecondsPerKm: c.Metrics.PaceSecondsPerKm(),
			}
		}
		slots = append(slots, slot)
	}
	return slots
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	athleteID, err := athleteIDParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	from, to, err := rangeParams(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now()
	key := fmt.Sprintf("%d/calendar/%s/%s", athleteID, from, to)
	slots, err := s.calendars.Get(key, now, func() ([]CalendarSlot, error) {
		entries, err := s.query.ResolveRange(athleteID, from, to, now)
		if err != nil {
			return nil, err
		}
		return toCalendarSlots(entries), nil
	})
	if err != nil {
		s.logger.Error("resolving calendar", "athlete_id", athleteID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "resolving calendar failed")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"athlete_id": athleteID,
		"from":       from,
		"to":         to,
		"slots":      slots,
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	athleteID, err := athleteIDParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var from, to string
	if week := r.URL.Query().Get("week"); week != "" {
		from, to, err = service.WeekRange(week)
	} else {
		from, to, err = rangeParams(r)
	}
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now()
	key := fmt.Sprintf("%d/summary/%s/%s", athleteID, from, to)
	sum, err := s.summaries.Get(key, now, func() (summary.Summary, error) {
		return s.query.RangeSummary(athleteID, from, to, now)
	})
	if err != nil {
		s.logger.Error("summarizing range", "athlete_id", athleteID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "summarizing range failed")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"athlete_id": athleteID,
		"from":       from,
		"to":         to,
		"summary":    sum,
	})
}

// handleResync forces a re-fetch window, bypassing the ledger. Meant
// for operators repairing a calendar after provider-side edits.
func (s *Server) handleResync(w http.ResponseWriter, r *http.Request) {
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil || d < 1 || d > 365 {
			s.writeError(w, http.StatusBadRequest, "days must be 1-365")
			return
		}
		days = d
	}
	opts := service.SyncOptions{ForceWindowDays: days}
	now := time.Now()

	var sum *service.SyncSummary
	if v := r.URL.Query().Get("athlete_id"); v != "" {
		athleteID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid athlete_id")
			return
		}
		sum = s.sync.SyncAthlete(r.Context(), athleteID, opts, now)
		s.invalidateAthlete(athleteID)
	} else {
		sum = s.sync.SyncAll(r.Context(), opts, now)
		s.calendars.InvalidatePrefix("")
		s.summaries.InvalidatePrefix("")
	}

	status := http.StatusOK
	if len(sum.Errors) > 0 {
		status = http.StatusBadGateway
	}
	s.writeJSON(w, status, map[string]interface{}{
		"connections": sum.Connections,
		"fetched":     sum.ActivitiesFetched,
		"stored":      sum.ActivitiesStored,
		"matched":     sum.Matched,
		"errors":      len(sum.Errors),
	})
}

// handleConnect starts the OAuth flow for one athlete. The athlete id
// rides in the state parameter and comes back on the callback.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	athleteID, err := athleteIDParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	url := s.oauth.AuthCodeURL(strconv.FormatInt(athleteID, 10))
	http.Redirect(w, r, url, http.StatusFound)
}

func (s *Server) handleConnectCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	athleteID, err := strconv.ParseInt(q.Get("state"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid state")
		return
	}
	code := q.Get("code")
	if code == "" {
		s.writeError(w, http.StatusBadRequest, "missing code")
		return
	}

	token, err := s.oauth.Exchange(r.Context(), code)
	if err != nil {
		s.logger.Error("oauth exchange", "athlete_id", athleteID, "error", err)
		s.writeError(w, http.StatusBadGateway, "token exchange failed")
		return
	}
	providerAthleteID := auth.ExtractAthleteID(token)
	if providerAthleteID == 0 {
		s.writeError(w, http.StatusBadGateway, "provider athlete missing from token response")
		return
	}

	// Ensure the athlete row exists before the connection references it.
	if _, err := s.db.GetAthlete(athleteID); err != nil {
		if err := s.db.UpsertAthlete(&store.Athlete{ID: athleteID}); err != nil {
			s.logger.Error("creating athlete", "athlete_id", athleteID, "error", err)
			s.writeError(w, http.StatusInternalServerError, "storing athlete failed")
			return
		}
	}

	if err := s.db.UpsertConnection(&store.Connection{
		AthleteID:         athleteID,
		Provider:          store.SourceStrava,
		ProviderAthleteID: providerAthleteID,
		AccessToken:       token.AccessToken,
		RefreshToken:      token.RefreshToken,
		ExpiresAt:         token.Expiry,
	}); err != nil {
		s.logger.Error("storing connection", "athlete_id", athleteID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "storing connection failed")
		return
	}

	s.logger.Info("athlete connected", "athlete_id", athleteID, "provider_athlete_id", providerAthleteID)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "connected"})
}

func athleteIDParam(r *http.Request) (int64, error) {
	v := r.URL.Query().Get("athlete_id")
	if v == "" {
		return 0, fmt.Errorf("athlete_id is required")
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid athlete_id %q", v)
	}
	return id, nil
}

func rangeParams(r *http.Request) (from, to string, err error) {
	q := r.URL.Query()
	from, to = q.Get("from"), q.Get("to")
	if _, _, _, err := localday.ParseKey(from); err != nil {
		return "", "", fmt.Errorf("invalid from day %q", from)
	}
	if _, _, _, err := localday.ParseKey(to); err != nil {
		return "", "", fmt.Errorf("invalid to day %q", to)
	}
	if from > to {
		return "", "", fmt.Errorf("from %s is after to %s", from, to)
	}
	return from, to, nil
}
