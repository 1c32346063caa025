package detector

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mr1hm/go-weather-warnings/internal/models"
	"github.com/mr1hm/go-weather-warnings/internal/repository"
)

func setupDetector(t *testing.T) (*Detector, *repository.SQLiteDB, *clockwork.FakeClock) {
	db, err := repository.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clock := clockwork.NewFakeClockAt(time.Date(2026, 8, 30, 1, 0, 0, 0, time.UTC))
	return New(db, clock), db, clock
}

func parsedWarning(status models.WarningStatus) models.ParsedWarning {
	return models.ParsedWarning{
		City:    "千代田区",
		LMO:     "気象庁",
		Kind:    "大雨警報",
		Status:  status,
		XMLFile: "report1.xml",
	}
}

func TestDiff_FirstSightingEmitsIssued(t *testing.T) {
	d, db, _ := setupDetector(t)
	ctx := context.Background()

	transitions, err := d.Diff(ctx, []models.ParsedWarning{parsedWarning(models.StatusIssued)})
	require.NoError(t, err)
	require.Len(t, transitions, 1)
	assert.Equal(t, models.TransitionIssued, transitions[0].Kind)
	assert.Equal(t, models.WarningStatus(""), transitions[0].OldStatus)
	assert.Equal(t, models.StatusIssued, transitions[0].NewStatus)

	rec, err := db.GetWarning(ctx, "千代田区", "大雨警報")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, models.StatusIssued, rec.Status)
}

func TestDiff_SameStatusIsSilent(t *testing.T) {
	d, db, clock := setupDetector(t)
	ctx := context.Background()

	_, err := d.Diff(ctx, []models.ParsedWarning{parsedWarning(models.StatusIssued)})
	require.NoError(t, err)

	before, err := db.GetWarning(ctx, "千代田区", "大雨警報")
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)
	transitions, err := d.Diff(ctx, []models.ParsedWarning{parsedWarning(models.StatusIssued)})
	require.NoError(t, err)
	assert.Empty(t, transitions, "byte-identical status must produce zero side effects")

	after, err := db.GetWarning(ctx, "千代田区", "大雨警報")
	require.NoError(t, err)
	assert.Equal(t, before.CreatedAt, after.CreatedAt, "created_at must stay stable; retention relies on it")
}

func TestDiff_StatusChangeToCancelled(t *testing.T) {
	d, db, _ := setupDetector(t)
	ctx := context.Background()

	_, err := d.Diff(ctx, []models.ParsedWarning{parsedWarning(models.StatusIssued)})
	require.NoError(t, err)

	transitions, err := d.Diff(ctx, []models.ParsedWarning{parsedWarning(models.StatusCancelled)})
	require.NoError(t, err)
	require.Len(t, transitions, 1)
	assert.Equal(t, models.TransitionCancelled, transitions[0].Kind)
	assert.Equal(t, models.StatusIssued, transitions[0].OldStatus)

	// Cancelled is recorded, not soft-deleted; retention handles that later.
	rec, err := db.GetWarning(ctx, "千代田区", "大雨警報")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, models.StatusCancelled, rec.Status)
}

func TestDiff_StatusChangeEmitsContinued(t *testing.T) {
	d, _, _ := setupDetector(t)
	ctx := context.Background()

	_, err := d.Diff(ctx, []models.ParsedWarning{parsedWarning(models.StatusIssued)})
	require.NoError(t, err)

	transitions, err := d.Diff(ctx, []models.ParsedWarning{parsedWarning(models.StatusContinued)})
	require.NoError(t, err)
	require.Len(t, transitions, 1)
	assert.Equal(t, models.TransitionContinued, transitions[0].Kind)
}

func TestDiff_CancelledWithoutPriorIsIgnored(t *testing.T) {
	d, db, _ := setupDetector(t)
	ctx := context.Background()

	transitions, err := d.Diff(ctx, []models.ParsedWarning{parsedWarning(models.StatusCancelled)})
	require.NoError(t, err)
	assert.Empty(t, transitions)

	rec, err := db.GetWarning(ctx, "千代田区", "大雨警報")
	require.NoError(t, err)
	assert.Nil(t, rec, "cancelling an unseen warning must not create state")
}

func TestDiff_SoftDeletedCountsAsAbsent(t *testing.T) {
	d, db, clock := setupDetector(t)
	ctx := context.Background()

	// Seed a cancelled record, then soft-delete it as retention would.
	_, err := d.Diff(ctx, []models.ParsedWarning{parsedWarning(models.StatusIssued)})
	require.NoError(t, err)
	_, err = d.Diff(ctx, []models.ParsedWarning{parsedWarning(models.StatusCancelled)})
	require.NoError(t, err)
	require.NoError(t, db.SoftDeleteWarning(ctx, "千代田区", "大雨警報", clock.Now()))

	transitions, err := d.Diff(ctx, []models.ParsedWarning{parsedWarning(models.StatusIssued)})
	require.NoError(t, err)
	require.Len(t, transitions, 1)
	assert.Equal(t, models.TransitionIssued, transitions[0].Kind, "re-issue after soft delete starts a fresh cycle")
}

func TestDiff_Idempotent(t *testing.T) {
	d, _, _ := setupDetector(t)
	ctx := context.Background()

	input := []models.ParsedWarning{
		parsedWarning(models.StatusIssued),
		{City: "中央区", LMO: "気象庁", Kind: "洪水注意報", Status: models.StatusContinued, XMLFile: "report1.xml"},
	}

	first, err := d.Diff(ctx, input)
	require.NoError(t, err)
	assert.Len(t, first, 2)

	second, err := d.Diff(ctx, input)
	require.NoError(t, err)
	assert.Empty(t, second, "second diff over unchanged state emits nothing")
}

func TestDiff_DuplicateKeyLastWins(t *testing.T) {
	d, db, _ := setupDetector(t)
	ctx := context.Background()

	transitions, err := d.Diff(ctx, []models.ParsedWarning{
		parsedWarning(models.StatusIssued),
		parsedWarning(models.StatusContinued),
	})
	require.NoError(t, err)
	require.Len(t, transitions, 1)
	assert.Equal(t, models.StatusContinued, transitions[0].NewStatus)

	rec, err := db.GetWarning(ctx, "千代田区", "大雨警報")
	require.NoError(t, err)
	assert.Equal(t, models.StatusContinued, rec.Status)
}

func TestDiff_IndependentKindsAllEmit(t *testing.T) {
	d, _, _ := setupDetector(t)
	ctx := context.Background()

	transitions, err := d.Diff(ctx, []models.ParsedWarning{
		parsedWarning(models.StatusIssued),
		{City: "千代田区", LMO: "気象庁", Kind: "洪水警報", Status: models.StatusIssued, XMLFile: "report1.xml"},
	})
	require.NoError(t, err)
	assert.Len(t, transitions, 2, "distinct warning kinds for one city are independent keys")
}
