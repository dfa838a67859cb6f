package repo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"pickupBoard/internal/auth"
	"pickupBoard/internal/merger"
	"pickupBoard/internal/model"
	"pickupBoard/internal/resolver"
	"pickupBoard/internal/store"
	"pickupBoard/internal/toggle"
	"pickupBoard/pkg/validator"
)

var (
	ErrEventNotFound  = errors.New("event not found")
	ErrUnknownField   = errors.New("field is not toggleable")
	ErrDriverNotFound = errors.New("driver not found")
)

type Store interface {
	FetchRows(ctx context.Context, cred auth.Credential, table string, q store.Query) ([]store.Record, error)
	WriteRows(ctx context.Context, cred auth.Credential, table string, records []store.Record) ([]store.Record, error)
}

type Repository interface {
	GetUpcomingEvents(ctx context.Context, cred auth.Credential, from time.Time) ([]model.Event, error)
	GetEventByID(ctx context.Context, cred auth.Credential, id string) (*model.Event, error)
	GetRoster(ctx context.Context, cred auth.Credential, slotIDs []string) ([]model.RosterSlot, error)
	GetDrivers(ctx context.Context, cred auth.Credential, slotIDs []string) ([]model.Driver, error)
	GetDropoffLocations(ctx context.Context, cred auth.Credential) ([]model.DropoffLocation, error)
	GetSpecialGroups(ctx context.Context, cred auth.Credential) ([]model.SpecialGroup, error)
	GetNeighborhoods(ctx context.Context, cred auth.Credential) ([]model.Neighborhood, error)
	UpdateSlotField(ctx context.Context, cred auth.Credential, slotID, field string, value bool) error
	UpdateDropoffAvailability(ctx context.Context, cred auth.Credential, locationID string, available bool) error
	AssignDriver(ctx context.Context, cred auth.Credential, driverID string, locationIDs []string) (*model.Driver, error)
	SaveDropoffSchedule(ctx context.Context, cred auth.Credential, rows []model.ScheduleChange) (int, error)
}

type repository struct {
	store         Store
	log           *zerolog.Logger
	merger        *merger.Merger
	neighborhoods *resolver.Resolver
	locations     *resolver.Resolver
	batch         *toggle.BatchWriter
}

func NewRepository(st Store, loc *time.Location, log *zerolog.Logger) (Repository, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	return &repository{
		store:         st,
		log:           log,
		merger:        merger.New(loc, log),
		neighborhoods: resolver.New(st, TableNeighborhoods, fieldName, log),
		locations:     resolver.New(st, TableDropoffLocations, fieldSiteName, log),
		batch:         toggle.NewBatchWriter(st, log),
	}, nil
}

func rawEventFrom(rec store.Record) model.RawEvent {
	ev := model.RawEvent{
		ID:              rec.ID,
		PickupLocation:  rec.String(fieldPickupAddress),
		Special:         rec.Bool(fieldSpecialEvent),
		SpecialGroupIDs: rec.Strings(fieldSpecialGroup),
		SlotIDs:         rec.Strings(fieldScheduledSlots),
		Counts: model.Counts{
			Drivers:           rec.Int(fieldNumDrivers),
			Packers:           rec.Int(fieldNumPackers),
			DriversAndPackers: rec.Int(fieldNumBoth),
			OnlyDrivers:       rec.Int(fieldNumOnlyDrivers),
			OnlyPackers:       rec.Int(fieldNumOnlyPackers),
			TotalParticipants: rec.Int(fieldTotalParticipants),
		},
	}
	if t, ok := rec.Time(fieldStart); ok {
		ev.Start = &t
	}
	return ev
}

func (r *repository) fetchRawEvents(ctx context.Context, cred auth.Credential, filter string) ([]model.RawEvent, error) {
	recs, err := r.store.FetchRows(ctx, cred, TableEvents, store.Query{
		Filter: filter,
		Fields: eventFields,
		Sort:   []store.Sort{{Field: fieldStart}},
	})
	if err != nil {
		return nil, err
	}
	raw := make([]model.RawEvent, 0, len(recs))
	for _, rec := range recs {
		raw = append(raw, rawEventFrom(rec))
	}
	return raw, nil
}

func (r *repository) GetUpcomingEvents(ctx context.Context, cred auth.Credential, from time.Time) ([]model.Event, error) {
	raw, err := r.fetchRawEvents(ctx, cred, store.OnOrAfter(fieldStart, from))
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	res := r.merger.Merge(raw)
	r.log.Info().
		Int("raw", len(raw)).
		Int("events", len(res.Events)).
		Int("unmatched_specials", len(res.Unmatched)).
		Msg("events merged")
	return res.Events, nil
}

// GetEventByID returns the aggregate that id belongs to; id may be the
// general event or any special event merged into it.
func (r *repository) GetEventByID(ctx context.Context, cred auth.Credential, id string) (*model.Event, error) {
	self, err := r.fetchRawEvents(ctx, cred, store.RecordIDIn([]string{id}))
	if err != nil {
		return nil, fmt.Errorf("failed to get event %s: %w", id, err)
	}
	if len(self) == 0 || self[0].Start == nil {
		return nil, ErrEventNotFound
	}

	siblings, err := r.fetchRawEvents(ctx, cred, store.SameInstant(fieldStart, *self[0].Start))
	if err != nil {
		return nil, fmt.Errorf("failed to get events sharing %s: %w", id, err)
	}

	for _, e := range r.merger.Merge(siblings).Events {
		if e.Contains(id) {
			return &e, nil
		}
	}
	return nil, ErrEventNotFound
}

func rosterSlotFrom(rec store.Record) model.RosterSlot {
	s := model.RosterSlot{
		ID:              rec.ID,
		FirstName:       rec.String(fieldFirstName),
		LastName:        rec.String(fieldLastName),
		Type:            model.ParseParticipation(rec.Strings(fieldType)),
		Confirmed:       rec.Bool(FieldConfirmed),
		CantCome:        rec.Bool(FieldCantCome),
		SpecialGroup:    rec.String(fieldSpecialGroupName),
		TotalDeliveries: rec.IntPtr(fieldTotalDeliveries),
		Email:           rec.String(fieldEmail),
	}
	if t, ok := rec.Time(fieldTimeSlot); ok {
		s.TimeSlot = &t
	}
	return s
}

func (r *repository) GetRoster(ctx context.Context, cred auth.Credential, slotIDs []string) ([]model.RosterSlot, error) {
	if len(slotIDs) == 0 {
		return []model.RosterSlot{}, nil
	}
	recs, err := r.fetchByIDs(ctx, cred, TableSlots, slotIDs, store.Query{
		Fields: slotFields,
		Sort:   []store.Sort{{Field: fieldTimeSlot}, {Field: fieldLastName}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get roster: %w", err)
	}
	roster := make([]model.RosterSlot, 0, len(recs))
	for _, rec := range recs {
		roster = append(roster, rosterSlotFrom(rec))
	}
	if len(slotIDs) > store.MaxIDsPerQuery {
		sort.SliceStable(roster, func(i, j int) bool {
			a, b := roster[i], roster[j]
			if !sameTime(a.TimeSlot, b.TimeSlot) {
				return before(a.TimeSlot, b.TimeSlot)
			}
			return a.LastName < b.LastName
		})
	}
	return roster, nil
}

// fetchByIDs runs q once per chunk of ids, ANDing the id filter onto
// q.Filter, and concatenates the rows. Each chunk comes back in q.Sort order;
// callers merging several chunks re-sort.
func (r *repository) fetchByIDs(ctx context.Context, cred auth.Credential, table string, ids []string, q store.Query) ([]store.Record, error) {
	extra := q.Filter
	var out []store.Record
	for _, chunk := range store.ChunkIDs(ids) {
		q.Filter = store.And(store.RecordIDIn(chunk), extra)
		recs, err := r.store.FetchRows(ctx, cred, table, q)
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}
	return out, nil
}

// before orders unset times first.
func before(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b != nil
	}
	return a.Before(*b)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func driverFrom(rec store.Record) model.Driver {
	d := model.Driver{
		ID:                        rec.ID,
		Name:                      rosterSlotFrom(rec).Name(),
		DeliveryCount:             rec.Int(fieldDeliveryCount),
		ZipCode:                   rec.String(fieldZipCode),
		VehicleType:               rec.String(fieldVehicleType),
		RestrictedNeighborhoodIDs: rec.Strings(fieldRestrictedHoods),
		DropoffLocationIDs:        rec.Strings(fieldAssignedLocations),
	}
	if t, ok := rec.Time(fieldTimeSlot); ok {
		d.TimeSlot = &t
	}
	return d
}

// GetDrivers loads the driver rows among slotIDs and resolves their
// neighborhood and drop-off references. The two lookups only depend on the
// driver rows, so they run side by side once those arrive.
func (r *repository) GetDrivers(ctx context.Context, cred auth.Credential, slotIDs []string) ([]model.Driver, error) {
	if len(slotIDs) == 0 {
		return []model.Driver{}, nil
	}
	recs, err := r.fetchByIDs(ctx, cred, TableSlots, slotIDs, store.Query{
		Filter: store.HasValue(fieldType, "Driver"),
		Fields: driverFields,
		Sort:   []store.Sort{{Field: fieldTimeSlot}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get drivers: %w", err)
	}

	drivers := make([]model.Driver, 0, len(recs))
	for _, rec := range recs {
		if model.ParseParticipation(rec.Strings(fieldType)) == model.TypePacker {
			continue
		}
		drivers = append(drivers, driverFrom(rec))
	}
	if len(slotIDs) > store.MaxIDsPerQuery {
		sort.SliceStable(drivers, func(i, j int) bool { return before(drivers[i].TimeSlot, drivers[j].TimeSlot) })
	}
	if err := r.enrichDrivers(ctx, cred, drivers); err != nil {
		return nil, err
	}
	return drivers, nil
}

func (r *repository) enrichDrivers(ctx context.Context, cred auth.Credential, drivers []model.Driver) error {
	var hoods, sites map[string]string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ids := resolver.CollectIDs(drivers, func(d model.Driver) []string { return d.RestrictedNeighborhoodIDs })
		m, err := r.neighborhoods.Resolve(gctx, cred, ids)
		hoods = m
		return err
	})
	g.Go(func() error {
		ids := resolver.CollectIDs(drivers, func(d model.Driver) []string { return d.DropoffLocationIDs })
		m, err := r.locations.Resolve(gctx, cred, ids)
		sites = m
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to resolve driver references: %w", err)
	}

	for i := range drivers {
		drivers[i].RestrictedNeighborhoods = resolver.Names(hoods, drivers[i].RestrictedNeighborhoodIDs)
		drivers[i].DropoffLocations = resolver.Names(sites, drivers[i].DropoffLocationIDs)
	}
	return nil
}

func dropoffFrom(rec store.Record) model.DropoffLocation {
	return model.DropoffLocation{
		ID:                 rec.ID,
		SiteName:           rec.String(fieldSiteName),
		Address:            rec.String(fieldAddress),
		NeighborhoodIDs:    rec.Strings(fieldNeighborhoods),
		StartTime:          rec.String(fieldStartTime),
		EndTime:            rec.String(fieldEndTime),
		DeliveriesNeeded:   rec.Int(fieldDeliveriesNeeded),
		DeliveriesAssigned: rec.Int(fieldDeliveriesAssigned),
		Available:          rec.Bool(fieldAvailable),
	}
}

func (r *repository) GetDropoffLocations(ctx context.Context, cred auth.Credential) ([]model.DropoffLocation, error) {
	recs, err := r.store.FetchRows(ctx, cred, TableDropoffLocations, store.Query{
		Fields: dropoffFields,
		Sort:   []store.Sort{{Field: fieldSiteName}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get drop-off locations: %w", err)
	}

	locations := make([]model.DropoffLocation, 0, len(recs))
	for _, rec := range recs {
		locations = append(locations, dropoffFrom(rec))
	}

	ids := resolver.CollectIDs(locations, func(l model.DropoffLocation) []string { return l.NeighborhoodIDs })
	hoods, err := r.neighborhoods.Resolve(ctx, cred, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve drop-off neighborhoods: %w", err)
	}
	for i := range locations {
		locations[i].Neighborhoods = resolver.Names(hoods, locations[i].NeighborhoodIDs)
	}
	return locations, nil
}

func (r *repository) GetSpecialGroups(ctx context.Context, cred auth.Credential) ([]model.SpecialGroup, error) {
	recs, err := r.store.FetchRows(ctx, cred, TableSpecialGroups, store.Query{
		Fields: []string{fieldName, fieldGroupEvents},
		Sort:   []store.Sort{{Field: fieldName}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get special groups: %w", err)
	}
	groups := make([]model.SpecialGroup, 0, len(recs))
	for _, rec := range recs {
		groups = append(groups, model.SpecialGroup{
			ID:       rec.ID,
			Name:     rec.String(fieldName),
			EventIDs: rec.Strings(fieldGroupEvents),
		})
	}
	return groups, nil
}

func (r *repository) GetNeighborhoods(ctx context.Context, cred auth.Credential) ([]model.Neighborhood, error) {
	recs, err := r.store.FetchRows(ctx, cred, TableNeighborhoods, store.Query{
		Fields: []string{fieldName},
		Sort:   []store.Sort{{Field: fieldName}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get neighborhoods: %w", err)
	}
	out := make([]model.Neighborhood, 0, len(recs))
	for _, rec := range recs {
		out = append(out, model.Neighborhood{ID: rec.ID, Name: rec.String(fieldName)})
	}
	return out, nil
}

func (r *repository) UpdateSlotField(ctx context.Context, cred auth.Credential, slotID, field string, value bool) error {
	if field != FieldConfirmed && field != FieldCantCome {
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	_, err := r.store.WriteRows(ctx, cred, TableSlots, []store.Record{
		{ID: slotID, Fields: map[string]any{field: value}},
	})
	if err != nil {
		return fmt.Errorf("failed to update %s on slot %s: %w", field, slotID, err)
	}
	r.log.Info().Str("slot_id", slotID).Str("field", field).Bool("value", value).Msg("slot field updated")
	return nil
}

func (r *repository) UpdateDropoffAvailability(ctx context.Context, cred auth.Credential, locationID string, available bool) error {
	_, err := r.store.WriteRows(ctx, cred, TableDropoffLocations, []store.Record{
		{ID: locationID, Fields: map[string]any{fieldAvailable: available}},
	})
	if err != nil {
		return fmt.Errorf("failed to update availability of %s: %w", locationID, err)
	}
	return nil
}

// AssignDriver replaces the driver's drop-off assignments and returns the
// driver with resolved names.
func (r *repository) AssignDriver(ctx context.Context, cred auth.Credential, driverID string, locationIDs []string) (*model.Driver, error) {
	if locationIDs == nil {
		locationIDs = []string{}
	}
	recs, err := r.store.WriteRows(ctx, cred, TableSlots, []store.Record{
		{ID: driverID, Fields: map[string]any{fieldAssignedLocations: locationIDs}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to assign driver %s: %w", driverID, err)
	}
	if len(recs) == 0 {
		return nil, ErrDriverNotFound
	}

	drivers := []model.Driver{driverFrom(recs[0])}
	if err := r.enrichDrivers(ctx, cred, drivers); err != nil {
		return nil, err
	}
	for i, name := range drivers[0].DropoffLocations {
		if name == resolver.Placeholder {
			r.log.Warn().Str("driver_id", driverID).Str("location_id", drivers[0].DropoffLocationIDs[i]).Msg("assigned to unknown drop-off location")
		}
	}
	return &drivers[0], nil
}

// SaveDropoffSchedule writes the edited schedule rows in store-sized chunks.
// Every row must pass validation before anything is written.
func (r *repository) SaveDropoffSchedule(ctx context.Context, cred auth.Credential, rows []model.ScheduleChange) (int, error) {
	validate := func(row model.ScheduleChange) []toggle.FieldError {
		var out []toggle.FieldError
		for _, is := range validator.Issues(ctx, row) {
			out = append(out, toggle.FieldError{RecordID: row.ID, Field: is.Field, Message: is.Message})
		}
		return out
	}
	encode := func(row model.ScheduleChange) store.Record {
		return store.Record{ID: row.ID, Fields: map[string]any{
			fieldStartTime:        row.StartTime,
			fieldEndTime:          row.EndTime,
			fieldDeliveriesNeeded: row.DeliveriesNeeded,
		}}
	}
	return toggle.Save(ctx, r.batch, cred, TableDropoffLocations, "save drop-off schedule", rows, validate, encode)
}
