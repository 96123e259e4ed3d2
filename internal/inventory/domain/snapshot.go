package inventory

import "time"

// Metric names carried by snapshots.
const (
	MetricPowerKw      = "powerKw"
	MetricFuelLevelPct = "fuelLevelPct"
	MetricTemperature  = "temperature"
	MetricHumidity     = "humidity"
	MetricVoltage      = "voltage"
	MetricCurrent      = "current"
	MetricRunHours     = "runHours"
)

// Snapshot is a timestamped read of one equipment unit's metrics and status.
// Produced externally; the engine never mutates it.
type Snapshot struct {
	EquipmentID string             `json:"equipment_id"`
	SiteID      string             `json:"site_id"`
	TowerID     string             `json:"tower_id"`
	Status      Status             `json:"status"`
	Metrics     map[string]float64 `json:"metrics"`
	Alarms      []string           `json:"alarms,omitempty"`
	At          time.Time          `json:"at"`
}

// Metric returns the named metric value and whether it is present. Missing
// data is reported as absent, never as zero.
func (s Snapshot) Metric(name string) (float64, bool) {
	if s.Metrics == nil {
		return 0, false
	}
	value, ok := s.Metrics[name]
	return value, ok
}

// AlarmCount is the number of raised alarms in this snapshot.
func (s Snapshot) AlarmCount() int {
	return len(s.Alarms)
}
