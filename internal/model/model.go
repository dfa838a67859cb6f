package model

import "time"

type Counts struct {
	Drivers            int `json:"num_drivers"`
	Packers            int `json:"num_packers"`
	DriversAndPackers  int `json:"num_drivers_and_packers"`
	OnlyDrivers        int `json:"num_only_drivers"`
	OnlyPackers        int `json:"num_only_packers"`
	TotalParticipants  int `json:"total_participants"`
	SpecialGroupsCount int `json:"special_groups_count"`
}

// Add sums every participant counter of o into c. SpecialGroupsCount is left
// to the caller.
func (c *Counts) Add(o Counts) {
	c.Drivers += o.Drivers
	c.Packers += o.Packers
	c.DriversAndPackers += o.DriversAndPackers
	c.OnlyDrivers += o.OnlyDrivers
	c.OnlyPackers += o.OnlyPackers
	c.TotalParticipants += o.TotalParticipants
}

// RawEvent is an event row as stored upstream, general or special.
type RawEvent struct {
	ID              string
	Start           *time.Time
	PickupLocation  string
	Special         bool
	SpecialGroupIDs []string
	Counts          Counts
	SlotIDs         []string
}

// Event is one physical pickup event: a general event with its special-event
// siblings folded in.
type Event struct {
	ID             string    `json:"id"`
	Start          time.Time `json:"start"`
	DisplayDate    string    `json:"display_date"`
	DisplayTime    string    `json:"display_time"`
	PickupLocation string    `json:"pickup_location"`
	Counts         Counts    `json:"counts"`
	SlotIDs        []string  `json:"slot_ids"`
	AllEventIDs    []string  `json:"all_event_ids"`
}

func (e Event) Contains(rawID string) bool {
	for _, id := range e.AllEventIDs {
		if id == rawID {
			return true
		}
	}
	return false
}

type ParticipationType string

const (
	TypeDriver ParticipationType = "Driver"
	TypePacker ParticipationType = "Packer"
	TypeBoth   ParticipationType = "Driver & Packer"
)

// ParseParticipation reads the role set stored on a roster row.
func ParseParticipation(roles []string) ParticipationType {
	var driver, packer bool
	for _, r := range roles {
		switch r {
		case "Driver":
			driver = true
		case "Packer":
			packer = true
		case "Driver & Packer", "Both":
			driver, packer = true, true
		}
	}
	switch {
	case driver && packer:
		return TypeBoth
	case driver:
		return TypeDriver
	case packer:
		return TypePacker
	}
	return ""
}

type RosterSlot struct {
	ID              string            `json:"id"`
	FirstName       string            `json:"first_name"`
	LastName        string            `json:"last_name"`
	Type            ParticipationType `json:"type"`
	Confirmed       bool              `json:"confirmed"`
	CantCome        bool              `json:"cant_come"`
	TimeSlot        *time.Time        `json:"time_slot,omitempty"`
	SpecialGroup    string            `json:"special_group,omitempty"`
	TotalDeliveries *int              `json:"total_deliveries,omitempty"`
	Email           string            `json:"email"`
}

func (s RosterSlot) Name() string {
	if s.LastName == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

type Driver struct {
	ID                        string     `json:"id"`
	Name                      string     `json:"name"`
	TimeSlot                  *time.Time `json:"time_slot,omitempty"`
	DeliveryCount             int        `json:"delivery_count"`
	ZipCode                   string     `json:"zip_code"`
	VehicleType               string     `json:"vehicle_type"`
	RestrictedNeighborhoodIDs []string   `json:"restricted_neighborhood_ids"`
	RestrictedNeighborhoods   []string   `json:"restricted_neighborhoods"`
	DropoffLocationIDs        []string   `json:"dropoff_location_ids"`
	DropoffLocations          []string   `json:"dropoff_locations"`
}

type DropoffLocation struct {
	ID                 string   `json:"id"`
	SiteName           string   `json:"site_name"`
	Address            string   `json:"address"`
	NeighborhoodIDs    []string `json:"neighborhood_ids"`
	Neighborhoods      []string `json:"neighborhoods"`
	StartTime          string   `json:"start_time"`
	EndTime            string   `json:"end_time"`
	DeliveriesNeeded   int      `json:"deliveries_needed"`
	DeliveriesAssigned int      `json:"deliveries_assigned"`
	Available          bool     `json:"available"`
}

// ScheduleChange is one edited row of the drop-off schedule editor.
type ScheduleChange struct {
	ID               string `json:"id" validate:"required,recid"`
	StartTime        string `json:"start_time" validate:"required,timeofday"`
	EndTime          string `json:"end_time" validate:"required,timeofday"`
	DeliveriesNeeded int    `json:"deliveries_needed" validate:"gte=0"`
}

type SpecialGroup struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	EventIDs []string `json:"event_ids"`
}

type Neighborhood struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Template struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	FetchedAt time.Time `json:"fetched_at"`
}

type BlastStatus string

const (
	BlastQueued BlastStatus = "queued"
	BlastFired  BlastStatus = "fired"
	BlastFailed BlastStatus = "failed"
)

// Blast is a queued recruitment text blast.
type Blast struct {
	ID          string      `json:"id"`
	TemplateID  string      `json:"template_id"`
	Webhook     string      `json:"webhook"`
	RequestedBy string      `json:"requested_by"`
	FireAt      time.Time   `json:"fire_at"`
	Status      BlastStatus `json:"status"`
	Error       string      `json:"error,omitempty"`
}
