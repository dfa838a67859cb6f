package dto

import (
	"time"

	"pickupBoard/internal/model"
	"pickupBoard/internal/toggle"
)

type ToggleSlotRequest struct {
	EventID string `json:"event_id" validate:"required,recid"`
	Current bool   `json:"current"`
}

type ToggleAvailabilityRequest struct {
	Current bool `json:"current"`
}

type AssignDriverRequest struct {
	LocationIDs []string `json:"location_ids" validate:"dive,recid"`
}

type SaveScheduleRequest struct {
	Rows []model.ScheduleChange `json:"rows" validate:"required,min=1"`
}

type CreateBlastRequest struct {
	TemplateID   string `json:"template_id" validate:"required"`
	DelayMinutes int    `json:"delay_minutes" validate:"gte=0,lte=1440"`
}

type PredicateResponse struct {
	Index  int    `json:"index"`
	Kind   string `json:"kind"`
	Label  string `json:"label"`
	Active bool   `json:"active"`
}

type RosterResponse struct {
	Event      model.Event         `json:"event"`
	Predicates []PredicateResponse `json:"predicates"`
	Total      int                 `json:"total"`
	Slots      []model.RosterSlot  `json:"slots"`
}

type OverviewResponse struct {
	Event            model.Event             `json:"event"`
	Drivers          []model.Driver          `json:"drivers"`
	DropoffLocations []model.DropoffLocation `json:"dropoff_locations"`
}

type ToggleResponse struct {
	RecordID string          `json:"record_id"`
	Field    string          `json:"field"`
	Toggle   toggle.Snapshot `json:"toggle"`
}

type SaveScheduleResponse struct {
	Saved int `json:"saved"`
}

type BlastResponse struct {
	ID         string    `json:"id"`
	TemplateID string    `json:"template_id"`
	Preview    string    `json:"preview"`
	FireAt     time.Time `json:"fire_at"`
}
