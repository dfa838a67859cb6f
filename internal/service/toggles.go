package service

import (
	"context"

	"github.com/wb-go/wbf/ginext"

	"pickupBoard/internal/auth"
	"pickupBoard/internal/dto"
	"pickupBoard/internal/model"
	"pickupBoard/internal/repo"
	"pickupBoard/internal/toggle"
	"pickupBoard/pkg/validator"
)

func (s *service) ToggleConfirmed(ctx *ginext.Context) {
	s.toggleSlot(ctx, repo.FieldConfirmed)
}

func (s *service) ToggleCantCome(ctx *ginext.Context) {
	s.toggleSlot(ctx, repo.FieldCantCome)
}

func (s *service) toggleSlot(ctx *ginext.Context, field string) {
	var req dto.ToggleSlotRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, verr.Error())
		return
	}

	cred := credential(ctx)
	slotID := ctx.Param("id")
	key := toggle.Key{RecordID: slotID, Field: field}

	persist := func(c context.Context, next bool) error {
		return s.repo.UpdateSlotField(c, cred, slotID, field, next)
	}
	refetch := func(c context.Context) {
		s.refreshAfterSlotToggle(c, cred, req.EventID, slotID, field)
	}

	snap, err := s.toggles.Toggle(ctx.Request.Context(), key, req.Current, persist, refetch)
	if err != nil {
		s.log.Warn().Err(err).Str("slot_id", slotID).Str("field", field).Msg("toggle not applied")
		dto.FromError(ctx, err)
		return
	}
	dto.SuccessResponse(ctx, dto.ToggleResponse{RecordID: slotID, Field: field, Toggle: snap})
}

// refreshAfterSlotToggle reloads the event and its roster so the next read
// reflects derived fields recomputed by the store, and mails the volunteer
// when their slot was just confirmed.
func (s *service) refreshAfterSlotToggle(ctx context.Context, cred auth.Credential, eventID, slotID, field string) {
	ev, err := s.loadEvent(ctx, cred, eventID)
	if err != nil {
		s.log.Warn().Err(err).Str("event_id", eventID).Msg("refetch after toggle failed")
		return
	}
	roster, err := s.loadRoster(ctx, cred, ev)
	if err != nil {
		s.log.Warn().Err(err).Str("event_id", eventID).Msg("roster refetch after toggle failed")
		return
	}
	if field != repo.FieldConfirmed || s.mail == nil {
		return
	}

	for _, slot := range roster {
		if slot.ID != slotID || !slot.Confirmed {
			continue
		}
		s.sendConfirmation(ev, slot)
		return
	}
}

func (s *service) sendConfirmation(ev model.Event, slot model.RosterSlot) {
	when := ev.DisplayDate + " at " + ev.DisplayTime
	if err := s.mail.SendConfirmation(slot.Name(), slot.Email, when, ev.PickupLocation); err != nil {
		s.log.Warn().Err(err).Str("slot_id", slot.ID).Msg("failed to send confirmation email")
	}
}

func (s *service) ToggleDropoffAvailability(ctx *ginext.Context) {
	var req dto.ToggleAvailabilityRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}

	cred := credential(ctx)
	locID := ctx.Param("id")
	key := toggle.Key{RecordID: locID, Field: "Available"}

	persist := func(c context.Context, next bool) error {
		return s.repo.UpdateDropoffAvailability(c, cred, locID, next)
	}
	refetch := func(c context.Context) {
		t := s.dropoffs.Begin(allDropoffs)
		locs, err := s.repo.GetDropoffLocations(c, cred)
		if err != nil {
			s.log.Warn().Err(err).Msg("drop-off refetch after toggle failed")
			return
		}
		s.dropoffs.Commit(t, locs)
	}

	snap, err := s.toggles.Toggle(ctx.Request.Context(), key, req.Current, persist, refetch)
	if err != nil {
		dto.FromError(ctx, err)
		return
	}
	dto.SuccessResponse(ctx, dto.ToggleResponse{RecordID: locID, Field: key.Field, Toggle: snap})
}
