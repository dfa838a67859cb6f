package service

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"

	"pickupBoard/internal/dto"
	"pickupBoard/internal/model"
	"pickupBoard/pkg/validator"
)

const recentBlasts = 20

var errBlastsDisabled = errors.New("recruitment blasts are not configured")

func (s *service) GetTemplate(ctx *ginext.Context) {
	cred, err := s.automation.Credential(ctx.Request.Context(), staff(ctx))
	if err != nil {
		dto.FromError(ctx, err)
		return
	}
	tpl, err := s.templates.Get(ctx.Request.Context(), cred, ctx.Param("id"))
	if err != nil {
		s.log.Error().Err(err).Str("template_id", ctx.Param("id")).Msg("failed to get template")
		dto.FromError(ctx, err)
		return
	}
	dto.SuccessResponse(ctx, tpl)
}

// CreateBlast queues a recruitment text blast. The message sits on the
// delayed exchange until it is due; the blast worker then fires the webhook.
func (s *service) CreateBlast(ctx *ginext.Context) {
	if s.webhook == "" || s.blastQueue == nil {
		dto.BadResponseError(ctx, dto.ServiceUnavailable, errBlastsDisabled.Error())
		return
	}

	var req dto.CreateBlastRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, verr.Error())
		return
	}

	who := staff(ctx)
	cred, err := s.automation.Credential(ctx.Request.Context(), who)
	if err != nil {
		dto.FromError(ctx, err)
		return
	}
	tpl, err := s.templates.Get(ctx.Request.Context(), cred, req.TemplateID)
	if err != nil {
		dto.FromError(ctx, err)
		return
	}

	delay := time.Duration(req.DelayMinutes) * time.Minute
	blast := model.Blast{
		ID:          uuid.NewString(),
		TemplateID:  tpl.ID,
		Webhook:     s.webhook,
		RequestedBy: who.ID,
		FireAt:      s.now().Add(delay).UTC(),
		Status:      model.BlastQueued,
	}
	if err := s.blasts.SaveBlast(blast); err != nil {
		s.log.Error().Err(err).Str("blast_id", blast.ID).Msg("failed to record blast")
		dto.InternalServerError(ctx)
		return
	}

	payload, err := json.Marshal(blast)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to marshal blast")
		dto.InternalServerError(ctx)
		return
	}
	if err := s.blastQueue.Publish(ctx.Request.Context(), payload, delay); err != nil {
		s.log.Error().Err(err).Str("blast_id", blast.ID).Msg("failed to queue blast")
		blast.Status = model.BlastFailed
		blast.Error = err.Error()
		if serr := s.blasts.SaveBlast(blast); serr != nil {
			s.log.Warn().Err(serr).Str("blast_id", blast.ID).Msg("failed to record blast failure")
		}
		dto.InternalServerError(ctx)
		return
	}

	s.log.Info().
		Str("blast_id", blast.ID).
		Str("template_id", blast.TemplateID).
		Str("staff_id", who.ID).
		Time("fire_at", blast.FireAt).
		Msg("blast queued")
	dto.SuccessAcceptedResponse(ctx, dto.BlastResponse{
		ID:         blast.ID,
		TemplateID: blast.TemplateID,
		Preview:    tpl.Text,
		FireAt:     blast.FireAt,
	})
}

func (s *service) GetBlast(ctx *ginext.Context) {
	b, err := s.blasts.GetBlast(ctx.Param("id"))
	if err != nil {
		s.log.Error().Err(err).Msg("failed to read blast")
		dto.InternalServerError(ctx)
		return
	}
	if b == nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Blast not found")
		return
	}
	dto.SuccessResponse(ctx, b)
}

func (s *service) GetRecentBlasts(ctx *ginext.Context) {
	blasts, err := s.blasts.RecentBlasts(recentBlasts)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list blasts")
		dto.InternalServerError(ctx)
		return
	}
	if blasts == nil {
		blasts = []model.Blast{}
	}
	dto.SuccessResponse(ctx, blasts)
}
