package automation

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"pickupBoard/internal/auth"
	"pickupBoard/internal/model"
	"pickupBoard/internal/store"
)

type TemplateFetcher interface {
	FetchTemplate(ctx context.Context, cred auth.Credential, templateID string) (model.Template, error)
}

type TemplateCache interface {
	GetTemplate(id string) (*model.Template, error)
	PutTemplate(t model.Template) error
}

// Templates serves templates from the cache while they are younger than ttl.
// When the workflow service is unreachable a stale cached copy is served
// instead; an unauthenticated response is always returned to the caller.
type Templates struct {
	fetcher TemplateFetcher
	cache   TemplateCache
	ttl     time.Duration
	log     *zerolog.Logger
	now     func() time.Time
}

func NewTemplates(fetcher TemplateFetcher, cache TemplateCache, ttl time.Duration, log *zerolog.Logger) *Templates {
	return &Templates{fetcher: fetcher, cache: cache, ttl: ttl, log: log, now: time.Now}
}

func (t *Templates) Get(ctx context.Context, cred auth.Credential, id string) (model.Template, error) {
	cached, err := t.cache.GetTemplate(id)
	if err != nil {
		t.log.Warn().Err(err).Str("template_id", id).Msg("template cache read failed")
		cached = nil
	}
	if cached != nil && t.now().Sub(cached.FetchedAt) < t.ttl {
		return *cached, nil
	}

	fresh, err := t.fetcher.FetchTemplate(ctx, cred, id)
	if err != nil {
		if cached != nil && !errors.Is(err, store.ErrUnauthenticated) {
			t.log.Warn().Err(err).Str("template_id", id).Msg("template fetch failed, using cached copy")
			return *cached, nil
		}
		return model.Template{}, err
	}

	if err := t.cache.PutTemplate(fresh); err != nil {
		t.log.Warn().Err(err).Str("template_id", id).Msg("template cache write failed")
	}
	return fresh, nil
}
