// Package source gathers schedule events from the local store and the
// subscribed ICS feeds into the single list the layout engine consumes.
package source

import (
	"context"
	"errors"
	"fmt"

	"tmscal/internal/config"
	"tmscal/internal/ics"
	appLog "tmscal/internal/log"
	"tmscal/internal/model"
)

// Store is the read side of the schedule store.
type Store interface {
	List(ctx context.Context) ([]model.ScheduleEvent, error)
}

// Feeds fetches ICS bodies.
type Feeds interface {
	FetchAll(ctx context.Context, sources []ics.Source) ([]ics.FetchResult, error)
}

// Collector merges stored schedules with feed events. Stored schedules win
// when a feed reuses an ID.
type Collector struct {
	store   Store
	feeds   Feeds
	sources []ics.Source
	expand  ics.ExpandConfig
}

// New builds a Collector. store or feeds may be nil.
func New(store Store, feeds Feeds, cfg *config.Config) *Collector {
	sources := make([]ics.Source, 0, len(cfg.ICS))
	for _, s := range cfg.ICS {
		sources = append(sources, ics.Source{ID: s.ID, URL: s.URL})
	}
	return &Collector{
		store:   store,
		feeds:   feeds,
		sources: sources,
		expand: ics.ExpandConfig{
			Location:    cfg.Location(),
			HorizonDays: cfg.ExpandHorizonDays,
		},
	}
}

// Events returns every known schedule event. Partial failures still return
// what could be loaded, together with the joined error.
func (c *Collector) Events(ctx context.Context) ([]model.ScheduleEvent, error) {
	var (
		events []model.ScheduleEvent
		errs   []error
	)
	seen := make(map[string]bool)
	add := func(origin string, list []model.ScheduleEvent) {
		for _, e := range list {
			if seen[e.ID] {
				appLog.Debug("source: duplicate schedule id ignored", "id", e.ID, "origin", origin)
				continue
			}
			seen[e.ID] = true
			events = append(events, e)
		}
	}

	if c.store != nil {
		stored, err := c.store.List(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("source: store: %w", err))
		}
		add("store", stored)
	}

	if c.feeds != nil && len(c.sources) > 0 {
		results, err := c.feeds.FetchAll(ctx, c.sources)
		if err != nil {
			errs = append(errs, err)
		}
		for _, res := range results {
			parsed, err := ics.ParseICS(res.Source, res.Body, c.expand)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			add(res.Source.ID, parsed)
		}
	}

	appLog.Debug("source: events collected", "count", len(events))
	return events, errors.Join(errs...)
}
