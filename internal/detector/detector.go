package detector

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/mr1hm/go-weather-warnings/internal/models"
	"github.com/mr1hm/go-weather-warnings/internal/repository"
)

// Detector compares freshly parsed warnings against the stored state and
// classifies each into an actionable transition or silence. A tuple whose
// status matches the stored one byte for byte produces zero side effects,
// which is the duplicate-suppression guarantee callers rely on.
type Detector struct {
	repo  repository.WarningRepository
	clock clockwork.Clock
}

func New(repo repository.WarningRepository, clock clockwork.Clock) *Detector {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Detector{
		repo:  repo,
		clock: clock,
	}
}

// Diff classifies each parsed warning and upserts accepted transitions.
// If the same (city, kind) pair appears more than once in one pass, the last
// occurrence in document order wins. A store failure aborts the pass;
// transitions already accepted before the failure are still returned so the
// caller can notify for writes that did land.
func (d *Detector) Diff(ctx context.Context, parsed []models.ParsedWarning) ([]models.Transition, error) {
	type key struct {
		city string
		kind string
	}

	// Last occurrence wins for duplicate keys, order of first sight is kept.
	var order []key
	dedup := make(map[key]models.ParsedWarning)
	for _, p := range parsed {
		k := key{city: p.City, kind: p.Kind}
		if _, seen := dedup[k]; !seen {
			order = append(order, k)
		}
		dedup[k] = p
	}

	var transitions []models.Transition
	for _, k := range order {
		p := dedup[k]

		prev, err := d.repo.GetWarning(ctx, p.City, p.Kind)
		if err != nil {
			return transitions, fmt.Errorf("error loading state for %s/%s: %w", p.City, p.Kind, err)
		}

		t, write := classify(prev, p)
		if !write {
			continue
		}

		now := d.clock.Now()
		rec := &models.WarningRecord{
			City:      p.City,
			LMO:       p.LMO,
			Kind:      p.Kind,
			Status:    p.Status,
			XMLFile:   p.XMLFile,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := d.repo.UpsertWarning(ctx, rec); err != nil {
			return transitions, fmt.Errorf("error upserting %s/%s: %w", p.City, p.Kind, err)
		}
		transitions = append(transitions, t)
	}

	return transitions, nil
}

// classify applies the transition table. A soft-deleted or missing record
// counts as absent. Returns the transition and whether state must be written.
func classify(prev *models.WarningRecord, p models.ParsedWarning) (models.Transition, bool) {
	t := models.Transition{
		City:      p.City,
		LMO:       p.LMO,
		Warning:   p.Kind,
		NewStatus: p.Status,
		XMLFile:   p.XMLFile,
	}

	if prev == nil {
		if p.Status == models.StatusCancelled {
			// Nothing to cancel; recording it would only feed retention.
			return models.Transition{}, false
		}
		t.Kind = models.TransitionIssued
		return t, true
	}

	if prev.Status == p.Status {
		return models.Transition{}, false
	}

	t.OldStatus = prev.Status
	if p.Status == models.StatusCancelled {
		t.Kind = models.TransitionCancelled
	} else {
		t.Kind = models.TransitionContinued
	}
	return t, true
}
