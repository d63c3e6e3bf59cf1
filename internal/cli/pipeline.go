package cli

import (
	"context"
	"time"

	"github.com/ObiAU/airwatch/internal/admission"
	"github.com/ObiAU/airwatch/internal/alertstate"
	"github.com/ObiAU/airwatch/internal/cache"
	"github.com/ObiAU/airwatch/internal/classify"
	"github.com/ObiAU/airwatch/internal/config"
	"github.com/ObiAU/airwatch/internal/keywords"
	"github.com/ObiAU/airwatch/internal/models"
)

// pipeline holds the single-writer components shared by run and replay.
type pipeline struct {
	tables     *keywords.Tables
	tiers      models.Tiers
	dedupe     *cache.Cache
	gate       *admission.Gate
	classifier *classify.Classifier
	machine    *alertstate.Machine
}

func buildPipeline(ctx context.Context, cfg *config.Config, store alertstate.Store, notifier models.Notifier, now func() time.Time) (*pipeline, error) {
	tables, err := keywords.Load(cfg.Keywords.File)
	if err != nil {
		return nil, err
	}
	tiers := cfg.Tiers()

	classifier, err := classify.New(tables, tiers)
	if err != nil {
		return nil, err
	}
	dedupe, err := cache.New(cfg.Admission.DedupCapacity)
	if err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}

	gate := admission.New(tiers, classify.NewPrefilter(tables), dedupe, cfg.Admission.Throttle, admission.WithClock(now))
	machine := alertstate.New(ctx, tables, tiers, store, notifier, alertstate.WithClock(now))

	return &pipeline{
		tables:     tables,
		tiers:      tiers,
		dedupe:     dedupe,
		gate:       gate,
		classifier: classifier,
		machine:    machine,
	}, nil
}
