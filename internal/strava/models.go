package strava

import "time"

// Activity represents a Strava activity from the API
type Activity struct {
	ID               int64     `json:"id"`
	Athlete          Athlete   `json:"athlete"`
	Name             string    `json:"name"`
	Type             string    `json:"type"`
	SportType        string    `json:"sport_type"`
	StartDate        time.Time `json:"start_date"`
	StartDateLocal   time.Time `json:"start_date_local"`
	Timezone         string    `json:"timezone"`
	Distance         float64   `json:"distance"`    // meters
	MovingTime       int       `json:"moving_time"` // seconds
	ElapsedTime      int       `json:"elapsed_time"`
	AverageSpeed     float64   `json:"average_speed"`     // m/s
	AverageHeartrate float64   `json:"average_heartrate"` // bpm
	MaxHeartrate     float64   `json:"max_heartrate"`     // bpm
	AverageWatts     float64   `json:"average_watts"`
	Calories         float64   `json:"calories"`
	Manual           bool      `json:"manual"`
	Trainer          bool      `json:"trainer"`
}

// Athlete represents a Strava athlete (minimal info in activity response)
type Athlete struct {
	ID int64 `json:"id"`
}

// Discipline maps Strava's sport type onto the calendar's discipline
// vocabulary. Unknown types collapse into "other" so they still bucket
// consistently.
func (a Activity) Discipline() string {
	t := a.SportType
	if t == "" {
		t = a.Type
	}
	switch t {
	case "Run", "TrailRun", "VirtualRun", "Treadmill":
		return "run"
	case "Ride", "VirtualRide", "GravelRide", "MountainBikeRide", "EBikeRide":
		return "bike"
	case "Swim", "OpenWaterSwim":
		return "swim"
	case "Walk", "Hike":
		return "walk"
	case "WeightTraining", "Workout", "Crossfit":
		return "strength"
	default:
		return "other"
	}
}

// WebhookEvent is the payload Strava POSTs on activity/athlete changes.
// https://developers.strava.com/docs/webhooks
type WebhookEvent struct {
	AspectType     string            `json:"aspect_type"` // "create", "update", "delete"
	EventTime      int64             `json:"event_time"`  // unix seconds
	ObjectID       int64             `json:"object_id"`
	ObjectType     string            `json:"object_type"` // "activity" or "athlete"
	OwnerID        int64             `json:"owner_id"`
	SubscriptionID int64             `json:"subscription_id"`
	Updates        map[string]string `json:"updates"`
}

// IsActivity reports whether the event concerns an activity object
func (e *WebhookEvent) IsActivity() bool {
	return e.ObjectType == "activity"
}
