package inventory

import "time"

// Status is the reported operational state of one equipment unit.
type Status string

const (
	StatusOn    Status = "ON"
	StatusOff   Status = "OFF"
	StatusFault Status = "FAULT"
	StatusOK    Status = "OK"
)

// Valid returns true when status is supported.
func (s Status) Valid() bool {
	switch s {
	case StatusOn, StatusOff, StatusFault, StatusOK:
		return true
	default:
		return false
	}
}

// Equipment types, per facility category.
const (
	TypePump            = "pump"
	TypeMeter           = "meter"
	TypeValve           = "valve"
	TypePanel           = "panel"
	TypeLight           = "light"
	TypeSensor          = "sensor"
	TypeDG              = "dg"
	TypeUPS             = "ups"
	TypeTransformer     = "transformer"
	TypeSTPPump         = "stp_pump"
	TypeWTPPump         = "wtp_pump"
	TypeLift            = "lift"
	TypeFirePanel       = "fire_panel"
	TypeWaterFlowMeter  = "water_flow_meter"
	TypeRainWaterMeter  = "rain_water_meter"
	TypeLightingCircuit = "lighting_circuit"
	TypeHVAC            = "hvac"
	TypeBoosterPump     = "booster_pump"
	TypeSumpPump        = "sump_pump"
	TypeOther           = "other"
)

// Equipment is a facility asset reference record. The rule engine references
// equipment by id only; inventory owns the record.
type Equipment struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	SiteID    string    `json:"site_id"`
	TowerID   string    `json:"tower_id"`
	Status    Status    `json:"status"`
	RatedKw   float64   `json:"rated_kw,omitempty"`
	SerialNo  string    `json:"serial_no,omitempty"`
	LastSeen  time.Time `json:"last_seen,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Site groups towers and equipment.
type Site struct {
	ID                    string    `json:"id"`
	Name                  string    `json:"name"`
	City                  string    `json:"city"`
	ContactName           string    `json:"contact_name,omitempty"`
	ContactPhone          string    `json:"contact_phone,omitempty"`
	SubscriptionStartDate time.Time `json:"subscription_start_date,omitempty"`
	SubscriptionEndDate   time.Time `json:"subscription_end_date,omitempty"`
}

// Tower is a building or plant inside a site.
type Tower struct {
	ID     string `json:"id"`
	SiteID string `json:"site_id"`
	Name   string `json:"name"`
	Code   string `json:"code,omitempty"`
	Floors int    `json:"floors,omitempty"`
}
