package store

import "encoding/json"

// Metrics kinds. Unknown payloads round-trip without interpretation.
const (
	MetricsKindStrava  = "strava"
	MetricsKindUnknown = "unknown"
)

// Metrics is a tagged union over source-specific derived metrics.
// Extraction goes through the accessor methods, which return nil when
// the field is absent, rather than callers probing raw JSON keys.
type Metrics struct {
	Kind   string         `json:"kind"`
	Strava *StravaMetrics `json:"strava,omitempty"`
}

// StravaMetrics are the derived figures Strava reports per activity.
type StravaMetrics struct {
	AverageHeartrate *float64 `json:"average_heartrate,omitempty"` // bpm
	MaxHeartrate     *float64 `json:"max_heartrate,omitempty"`     // bpm
	AverageWatts     *float64 `json:"average_watts,omitempty"`
	Calories         *float64 `json:"calories,omitempty"`
	AverageSpeed     *float64 `json:"average_speed,omitempty"` // m/s
}

// UnknownMetrics is the zero-information blob.
func UnknownMetrics() Metrics {
	return Metrics{Kind: MetricsKindUnknown}
}

// AverageHeartrate returns the average heart rate if any source
// reported one.
func (m Metrics) AverageHeartrate() *float64 {
	if m.Kind == MetricsKindStrava && m.Strava != nil {
		return m.Strava.AverageHeartrate
	}
	return nil
}

// Calories returns reported energy expenditure, if present.
func (m Metrics) Calories() *float64 {
	if m.Kind == MetricsKindStrava && m.Strava != nil {
		return m.Strava.Calories
	}
	return nil
}

// Power returns average power in watts, if present.
func (m Metrics) Power() *float64 {
	if m.Kind == MetricsKindStrava && m.Strava != nil {
		return m.Strava.AverageWatts
	}
	return nil
}

// PaceSecondsPerKm derives pace from average speed, if present.
func (m Metrics) PaceSecondsPerKm() *float64 {
	if m.Kind == MetricsKindStrava && m.Strava != nil && m.Strava.AverageSpeed != nil && *m.Strava.AverageSpeed > 0 {
		pace := 1000 / *m.Strava.AverageSpeed
		return &pace
	}
	return nil
}

// encodeMetrics serializes a metrics blob for storage. An empty value
// stores as the unknown kind so reads never see a bare zero struct.
func encodeMetrics(m Metrics) (string, error) {
	if m.Kind == "" {
		m.Kind = MetricsKindUnknown
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeMetrics parses a stored blob. Unparseable or empty blobs come
// back as unknown rather than failing the read path.
func decodeMetrics(s string) Metrics {
	if s == "" {
		return UnknownMetrics()
	}
	var m Metrics
	if err := json.Unmarshal([]byte(s), &m); err != nil || m.Kind == "" {
		return UnknownMetrics()
	}
	return m
}
