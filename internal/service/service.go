package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"
	"golang.org/x/sync/errgroup"

	"pickupBoard/internal/auth"
	"pickupBoard/internal/dto"
	"pickupBoard/internal/filter"
	"pickupBoard/internal/model"
	"pickupBoard/internal/rabbit"
	"pickupBoard/internal/repo"
	"pickupBoard/internal/snapshot"
	"pickupBoard/internal/toggle"
	"pickupBoard/pkg/validator"
)

type Service interface {
	Health(ctx *ginext.Context)

	GetAllEvents(ctx *ginext.Context)
	GetEvent(ctx *ginext.Context)
	GetRoster(ctx *ginext.Context)
	GetOverview(ctx *ginext.Context)
	GetDrivers(ctx *ginext.Context)

	ToggleConfirmed(ctx *ginext.Context)
	ToggleCantCome(ctx *ginext.Context)
	AssignDriver(ctx *ginext.Context)

	GetDropoffLocations(ctx *ginext.Context)
	ToggleDropoffAvailability(ctx *ginext.Context)
	SaveDropoffSchedule(ctx *ginext.Context)

	GetSpecialGroups(ctx *ginext.Context)
	GetNeighborhoods(ctx *ginext.Context)

	GetTemplate(ctx *ginext.Context)
	CreateBlast(ctx *ginext.Context)
	GetBlast(ctx *ginext.Context)
	GetRecentBlasts(ctx *ginext.Context)
}

type Mailer interface {
	SendConfirmation(name, recipient, when, where string) error
}

type TemplateSource interface {
	Get(ctx context.Context, cred auth.Credential, id string) (model.Template, error)
}

type BlastStore interface {
	SaveBlast(b model.Blast) error
	GetBlast(id string) (*model.Blast, error)
	RecentBlasts(limit int) ([]model.Blast, error)
}

// Deps groups what NewService needs. Mailer may be nil.
type Deps struct {
	Repo         repo.Repository
	Log          *zerolog.Logger
	Notifier     toggle.Notifier
	Templates    TemplateSource
	Blasts       BlastStore
	BlastQueue   rabbit.Publisher
	Automation   auth.Provider
	BlastWebhook string
	Mailer       Mailer
}

type service struct {
	repo    repo.Repository
	log     *zerolog.Logger
	toggles *toggle.Registry

	events   *snapshot.Store[model.Event]
	rosters  *snapshot.Store[[]model.RosterSlot]
	dropoffs *snapshot.Store[[]model.DropoffLocation]

	templates  TemplateSource
	blasts     BlastStore
	blastQueue rabbit.Publisher
	automation auth.Provider
	webhook    string
	mail       Mailer

	now func() time.Time
}

const allDropoffs = "all"

func NewService(d Deps) Service {
	return &service{
		repo:       d.Repo,
		log:        d.Log,
		toggles:    toggle.NewRegistry(d.Notifier),
		events:     snapshot.New[model.Event](),
		rosters:    snapshot.New[[]model.RosterSlot](),
		dropoffs:   snapshot.New[[]model.DropoffLocation](),
		templates:  d.Templates,
		blasts:     d.Blasts,
		blastQueue: d.BlastQueue,
		automation: d.Automation,
		webhook:    d.BlastWebhook,
		mail:       d.Mailer,
		now:        time.Now,
	}
}

func credential(ctx *ginext.Context) auth.Credential {
	v, _ := ctx.Get(auth.CredentialKey)
	cred, _ := v.(auth.Credential)
	return cred
}

func staff(ctx *ginext.Context) auth.Staff {
	v, _ := ctx.Get(auth.StaffKey)
	s, _ := v.(auth.Staff)
	return s
}

func (s *service) Health(ctx *ginext.Context) {
	_, cached := s.dropoffs.Get(allDropoffs)
	dto.SuccessResponse(ctx, map[string]any{
		"status":          "ok",
		"in_flight":       s.toggles.InFlight(),
		"dropoffs_cached": cached,
	})
}

func (s *service) GetAllEvents(ctx *ginext.Context) {
	events, err := s.repo.GetUpcomingEvents(ctx.Request.Context(), credential(ctx), s.now())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to get upcoming events")
		dto.FromError(ctx, err)
		return
	}
	dto.SuccessResponse(ctx, events)
}

// loadEvent fetches the aggregate for id and keeps it as the latest snapshot
// unless a newer fetch of the same id already landed.
func (s *service) loadEvent(ctx context.Context, cred auth.Credential, id string) (model.Event, error) {
	t := s.events.Begin(id)
	ev, err := s.repo.GetEventByID(ctx, cred, id)
	if err != nil {
		return model.Event{}, err
	}
	cur, kept := s.events.Commit(t, *ev)
	if !kept {
		s.log.Debug().Str("event_id", id).Msg("dropped stale event response")
	}
	return cur, nil
}

func (s *service) loadRoster(ctx context.Context, cred auth.Credential, ev model.Event) ([]model.RosterSlot, error) {
	t := s.rosters.Begin(ev.ID)
	roster, err := s.repo.GetRoster(ctx, cred, ev.SlotIDs)
	if err != nil {
		return nil, err
	}
	cur, _ := s.rosters.Commit(t, roster)
	return cur, nil
}

func (s *service) GetEvent(ctx *ginext.Context) {
	id := ctx.Param("id")
	ev, err := s.loadEvent(ctx.Request.Context(), credential(ctx), id)
	if err != nil {
		s.log.Error().Err(err).Str("event_id", id).Msg("failed to get event")
		dto.FromError(ctx, err)
		return
	}
	dto.SuccessResponse(ctx, ev)
}

func parseIndices(raw string) ([]int, error) {
	if raw == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(raw, ",") {
		i, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("bad filter index %q", part)
		}
		out = append(out, i)
	}
	return out, nil
}

func (s *service) GetRoster(ctx *ginext.Context) {
	active, err := parseIndices(ctx.Query("active"))
	if err != nil {
		dto.FieldBadFormatError(ctx, "active")
		return
	}

	cred := credential(ctx)
	ev, err := s.loadEvent(ctx.Request.Context(), cred, ctx.Param("id"))
	if err != nil {
		dto.FromError(ctx, err)
		return
	}
	roster, err := s.loadRoster(ctx.Request.Context(), cred, ev)
	if err != nil {
		s.log.Error().Err(err).Str("event_id", ev.ID).Msg("failed to get roster")
		dto.FromError(ctx, err)
		return
	}

	set := filter.Build(roster)
	if err := set.Activate(active...); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, err.Error())
		return
	}

	preds := make([]dto.PredicateResponse, 0, set.Len())
	for i, p := range set.Predicates() {
		preds = append(preds, dto.PredicateResponse{Index: i, Kind: p.Kind.String(), Label: p.Label, Active: p.Active})
	}
	dto.SuccessResponse(ctx, dto.RosterResponse{
		Event:      ev,
		Predicates: preds,
		Total:      len(roster),
		Slots:      set.Apply(roster),
	})
}

// GetOverview loads the drivers and drop-off locations for an event. The two
// passes are independent and run concurrently; either failing fails the page.
func (s *service) GetOverview(ctx *ginext.Context) {
	cred := credential(ctx)
	ev, err := s.loadEvent(ctx.Request.Context(), cred, ctx.Param("id"))
	if err != nil {
		dto.FromError(ctx, err)
		return
	}

	resp := dto.OverviewResponse{Event: ev}
	g, gctx := errgroup.WithContext(ctx.Request.Context())
	g.Go(func() error {
		drivers, err := s.repo.GetDrivers(gctx, cred, ev.SlotIDs)
		resp.Drivers = drivers
		return err
	})
	g.Go(func() error {
		t := s.dropoffs.Begin(allDropoffs)
		locs, err := s.repo.GetDropoffLocations(gctx, cred)
		if err != nil {
			return err
		}
		resp.DropoffLocations, _ = s.dropoffs.Commit(t, locs)
		return nil
	})
	if err := g.Wait(); err != nil {
		s.log.Error().Err(err).Str("event_id", ev.ID).Msg("failed to build overview")
		dto.FromError(ctx, err)
		return
	}
	dto.SuccessResponse(ctx, resp)
}

func (s *service) GetDrivers(ctx *ginext.Context) {
	cred := credential(ctx)
	ev, err := s.loadEvent(ctx.Request.Context(), cred, ctx.Param("id"))
	if err != nil {
		dto.FromError(ctx, err)
		return
	}
	drivers, err := s.repo.GetDrivers(ctx.Request.Context(), cred, ev.SlotIDs)
	if err != nil {
		s.log.Error().Err(err).Str("event_id", ev.ID).Msg("failed to get drivers")
		dto.FromError(ctx, err)
		return
	}
	dto.SuccessResponse(ctx, drivers)
}

func (s *service) GetDropoffLocations(ctx *ginext.Context) {
	t := s.dropoffs.Begin(allDropoffs)
	locs, err := s.repo.GetDropoffLocations(ctx.Request.Context(), credential(ctx))
	if err != nil {
		s.log.Error().Err(err).Msg("failed to get drop-off locations")
		dto.FromError(ctx, err)
		return
	}
	cur, _ := s.dropoffs.Commit(t, locs)
	dto.SuccessResponse(ctx, cur)
}

func (s *service) GetSpecialGroups(ctx *ginext.Context) {
	groups, err := s.repo.GetSpecialGroups(ctx.Request.Context(), credential(ctx))
	if err != nil {
		dto.FromError(ctx, err)
		return
	}
	dto.SuccessResponse(ctx, groups)
}

func (s *service) GetNeighborhoods(ctx *ginext.Context) {
	hoods, err := s.repo.GetNeighborhoods(ctx.Request.Context(), credential(ctx))
	if err != nil {
		dto.FromError(ctx, err)
		return
	}
	dto.SuccessResponse(ctx, hoods)
}

func (s *service) AssignDriver(ctx *ginext.Context) {
	var req dto.AssignDriverRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, verr.Error())
		return
	}

	driver, err := s.repo.AssignDriver(ctx.Request.Context(), credential(ctx), ctx.Param("id"), req.LocationIDs)
	if err != nil {
		s.log.Error().Err(err).Str("driver_id", ctx.Param("id")).Msg("failed to assign driver")
		dto.FromError(ctx, err)
		return
	}
	s.dropoffs.Forget(allDropoffs)
	dto.SuccessResponse(ctx, driver)
}

func (s *service) SaveDropoffSchedule(ctx *ginext.Context) {
	var req dto.SaveScheduleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, verr.Error())
		return
	}

	saved, err := s.repo.SaveDropoffSchedule(ctx.Request.Context(), credential(ctx), req.Rows)
	if saved > 0 {
		s.dropoffs.Forget(allDropoffs)
	}
	if err != nil {
		dto.FromError(ctx, err)
		return
	}
	dto.SuccessResponse(ctx, dto.SaveScheduleResponse{Saved: saved})
}
