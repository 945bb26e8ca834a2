package domain

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"
)

// fakeRepo is a minimal in-memory Repository for service tests.
type fakeRepo struct {
	mu      sync.Mutex
	deeds   map[string]Deed
	entries map[string]Entry
	prefs   *Preferences
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{deeds: make(map[string]Deed), entries: make(map[string]Entry)}
}

func (r *fakeRepo) CreateDeed(_ context.Context, deed Deed) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deeds[deed.ID] = deed
	return nil
}

func (r *fakeRepo) UpdateDeed(_ context.Context, deed Deed) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.deeds[deed.ID]; !ok {
		return false, nil
	}
	r.deeds[deed.ID] = deed
	return true, nil
}

func (r *fakeRepo) GetDeed(_ context.Context, _, _, deedID string) (*Deed, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	deed, ok := r.deeds[deedID]
	if !ok {
		return nil, nil
	}
	return &deed, nil
}

func (r *fakeRepo) ListDeeds(_ context.Context, _, _ string, includeArchived bool) ([]Deed, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Deed, 0, len(r.deeds))
	for _, deed := range r.deeds {
		if deed.Archived && !includeArchived {
			continue
		}
		out = append(out, deed)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (r *fakeRepo) DeleteDeedEntries(_ context.Context, _, _, deedID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, entry := range r.entries {
		if entry.DeedID == deedID {
			delete(r.entries, id)
		}
	}
	return nil
}

func (r *fakeRepo) DeleteDeed(_ context.Context, _, _, deedID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.deeds[deedID]; !ok {
		return false, nil
	}
	delete(r.deeds, deedID)
	return true, nil
}

func (r *fakeRepo) InsertEntry(_ context.Context, _, _ string, entry Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[entry.ID] = entry
	return nil
}

func (r *fakeRepo) DeleteEntry(_ context.Context, _, _, entryID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[entryID]; !ok {
		return false, nil
	}
	delete(r.entries, entryID)
	return true, nil
}

func (r *fakeRepo) QueryEntries(_ context.Context, _, _ string, q EntryQuery) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		if q.DeedID != "" && entry.DeedID != q.DeedID {
			continue
		}
		if q.From != nil && entry.Timestamp.Before(*q.From) {
			continue
		}
		if q.To != nil && !entry.Timestamp.Before(*q.To) {
			continue
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (r *fakeRepo) ListEntriesPage(ctx context.Context, tenantID, userID string, q EntryQuery, cursor *Cursor, limit int) ([]Entry, *Cursor, error) {
	entries, err := r.QueryEntries(ctx, tenantID, userID, q)
	if err != nil {
		return nil, nil, err
	}
	if cursor != nil {
		filtered := entries[:0]
		for _, entry := range entries {
			if entry.Timestamp.After(cursor.Timestamp) {
				filtered = append(filtered, entry)
			}
		}
		entries = filtered
	}
	var next *Cursor
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
		last := entries[len(entries)-1]
		next = &Cursor{Timestamp: last.Timestamp, ID: last.ID}
	}
	return entries, next, nil
}

func (r *fakeRepo) GetPreferences(_ context.Context, _, _ string) (*Preferences, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.prefs == nil {
		return nil, nil
	}
	prefs := *r.prefs
	return &prefs, nil
}

func (r *fakeRepo) UpsertPreferences(_ context.Context, _, _ string, prefs Preferences) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefs = &prefs
	return nil
}

func newTestService(t *testing.T, repo Repository) *Service {
	t.Helper()
	service, err := NewService(repo, 4, time.UTC, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return service
}

func seedDeed(t *testing.T, repo *fakeRepo, deed Deed) Deed {
	t.Helper()
	if deed.Polarity == "" {
		deed.Polarity = PolarityPositive
	}
	if deed.UnitType == "" {
		deed.UnitType = UnitCount
	}
	if err := repo.CreateDeed(context.Background(), deed); err != nil {
		t.Fatalf("seed deed: %v", err)
	}
	return deed
}

func floatPtr(v float64) *float64 { return &v }

func TestAppendEntryUnknownDeed(t *testing.T) {
	service := newTestService(t, newFakeRepo())
	_, err := service.AppendEntry(context.Background(), "t1", "u1", AppendEntryInput{DeedID: "missing", Amount: 1})
	if !errors.Is(err, ErrDeedNotFound) {
		t.Fatalf("expected ErrDeedNotFound got %v", err)
	}
}

func TestAppendEntryCapSequence(t *testing.T) {
	repo := newFakeRepo()
	service := newTestService(t, repo)
	seedDeed(t, repo, Deed{ID: "stretch", Name: "Stretch", UnitType: UnitDuration, PointsPerUnit: 5, DailyCap: floatPtr(10)})

	base := time.Date(2024, time.January, 10, 9, 0, 0, 0, time.UTC)
	steps := []struct {
		amount     float64
		wantPoints float64
		wantCapped bool
	}{
		{1, 5, false},
		{2, 5, true},
		{1, 0, true},
	}
	for i, step := range steps {
		result, err := service.AppendEntry(context.Background(), "t1", "u1", AppendEntryInput{
			DeedID:    "stretch",
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Amount:    step.amount,
		})
		if err != nil {
			t.Fatalf("step %d: unexpected error: %v", i, err)
		}
		if result.Entry.Points != step.wantPoints {
			t.Fatalf("step %d: expected %.0f points got %.0f", i, step.wantPoints, result.Entry.Points)
		}
		if result.WasCapped != step.wantCapped {
			t.Fatalf("step %d: expected capped=%v got %v", i, step.wantCapped, result.WasCapped)
		}
	}
}

func TestAppendEntryBooleanCapOncePerDay(t *testing.T) {
	repo := newFakeRepo()
	service := newTestService(t, repo)
	seedDeed(t, repo, Deed{ID: "floss", Name: "Floss", UnitType: UnitBoolean, PointsPerUnit: 20, DailyCap: floatPtr(1)})

	base := time.Date(2024, time.January, 10, 9, 0, 0, 0, time.UTC)

	first, err := service.AppendEntry(context.Background(), "t1", "u1", AppendEntryInput{DeedID: "floss", Timestamp: base, Amount: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Entry.Points != 20 || first.WasCapped {
		t.Fatalf("expected uncapped 20 got %+v", first)
	}

	second, err := service.AppendEntry(context.Background(), "t1", "u1", AppendEntryInput{DeedID: "floss", Timestamp: base.Add(time.Hour), Amount: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Entry.Points != 0 || !second.WasCapped {
		t.Fatalf("expected capped 0 got %+v", second)
	}

	nextDay, err := service.AppendEntry(context.Background(), "t1", "u1", AppendEntryInput{DeedID: "floss", Timestamp: base.AddDate(0, 0, 1), Amount: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if nextDay.Entry.Points != 20 || nextDay.WasCapped {
		t.Fatalf("expected fresh app-day to reset the cap, got %+v", nextDay)
	}
}

func TestAppendEntryNegativePointsNeverCapped(t *testing.T) {
	repo := newFakeRepo()
	service := newTestService(t, repo)
	seedDeed(t, repo, Deed{ID: "junk", Name: "Junk Food", Polarity: PolarityNegative, PointsPerUnit: -5, DailyCap: floatPtr(10)})

	base := time.Date(2024, time.January, 10, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		result, err := service.AppendEntry(context.Background(), "t1", "u1", AppendEntryInput{DeedID: "junk", Timestamp: base.Add(time.Duration(i) * time.Hour), Amount: 1})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Entry.Points != -5 || result.WasCapped {
			t.Fatalf("negative points must pass through, got %+v", result)
		}
	}
}

func TestAppendEntryCapIgnoresNegativeSiblings(t *testing.T) {
	repo := newFakeRepo()
	service := newTestService(t, repo)
	seedDeed(t, repo, Deed{ID: "mixed", Name: "Mixed", PointsPerUnit: 5, DailyCap: floatPtr(10)})

	base := time.Date(2024, time.January, 10, 9, 0, 0, 0, time.UTC)
	repo.entries["neg"] = Entry{ID: "neg", DeedID: "mixed", Timestamp: base, Amount: -2, Points: -10}
	repo.entries["pos"] = Entry{ID: "pos", DeedID: "mixed", Timestamp: base.Add(time.Minute), Amount: 1, Points: 5}

	// Positive sum is 5; the -10 sibling must not free extra headroom.
	result, err := service.AppendEntry(context.Background(), "t1", "u1", AppendEntryInput{DeedID: "mixed", Timestamp: base.Add(time.Hour), Amount: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Entry.Points != 5 || !result.WasCapped {
		t.Fatalf("expected clamp to 5 got %+v", result)
	}
}

func TestAppendEntryCapUnderConcurrency(t *testing.T) {
	repo := newFakeRepo()
	service := newTestService(t, repo)
	seedDeed(t, repo, Deed{ID: "water", Name: "Water", PointsPerUnit: 5, DailyCap: floatPtr(20)})

	base := time.Date(2024, time.January, 10, 9, 0, 0, 0, time.UTC)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := service.AppendEntry(context.Background(), "t1", "u1", AppendEntryInput{
				DeedID:    "water",
				Timestamp: base.Add(time.Duration(i) * time.Minute),
				Amount:    1,
			})
			if err != nil {
				t.Errorf("append %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	entries, err := repo.QueryEntries(context.Background(), "t1", "u1", EntryQuery{DeedID: "water"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	var positiveSum float64
	for _, entry := range entries {
		if entry.Points > 0 {
			positiveSum += entry.Points
		}
	}
	if positiveSum != 20 {
		t.Fatalf("cap invariant violated: positive sum %.0f, want 20", positiveSum)
	}
}

func TestDeleteEntryFreesHeadroomWithoutRewrites(t *testing.T) {
	repo := newFakeRepo()
	service := newTestService(t, repo)
	seedDeed(t, repo, Deed{ID: "stretch", Name: "Stretch", UnitType: UnitDuration, PointsPerUnit: 5, DailyCap: floatPtr(10)})

	base := time.Date(2024, time.January, 10, 9, 0, 0, 0, time.UTC)
	first, err := service.AppendEntry(context.Background(), "t1", "u1", AppendEntryInput{DeedID: "stretch", Timestamp: base, Amount: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := service.AppendEntry(context.Background(), "t1", "u1", AppendEntryInput{DeedID: "stretch", Timestamp: base.Add(time.Hour), Amount: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Entry.Points != 5 || !second.WasCapped {
		t.Fatalf("expected clamped second entry got %+v", second)
	}

	if err := service.DeleteEntry(context.Background(), "t1", "u1", first.Entry.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// The surviving entry keeps its clamped 5 points; only new appends see
	// the freed headroom.
	remaining, err := repo.QueryEntries(context.Background(), "t1", "u1", EntryQuery{DeedID: "stretch"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Points != 5 {
		t.Fatalf("expected surviving entry unchanged, got %+v", remaining)
	}

	third, err := service.AppendEntry(context.Background(), "t1", "u1", AppendEntryInput{DeedID: "stretch", Timestamp: base.Add(2 * time.Hour), Amount: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if third.Entry.Points != 5 || third.WasCapped {
		t.Fatalf("expected freed headroom for new append, got %+v", third)
	}
}

func TestDeleteEntryNotFound(t *testing.T) {
	service := newTestService(t, newFakeRepo())
	err := service.DeleteEntry(context.Background(), "t1", "u1", "missing")
	if !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound got %v", err)
	}
}

func TestDeleteDeedCascadesEntries(t *testing.T) {
	repo := newFakeRepo()
	service := newTestService(t, repo)
	seedDeed(t, repo, Deed{ID: "run", Name: "Run", PointsPerUnit: 1})
	seedDeed(t, repo, Deed{ID: "read", Name: "Read", PointsPerUnit: 1})

	base := time.Date(2024, time.January, 10, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if _, err := service.AppendEntry(context.Background(), "t1", "u1", AppendEntryInput{DeedID: "run", Timestamp: base.Add(time.Duration(i) * time.Hour), Amount: 1}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if _, err := service.AppendEntry(context.Background(), "t1", "u1", AppendEntryInput{DeedID: "read", Timestamp: base, Amount: 1}); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := service.DeleteDeed(context.Background(), "t1", "u1", "run"); err != nil {
		t.Fatalf("delete deed: %v", err)
	}

	entries, err := repo.QueryEntries(context.Background(), "t1", "u1", EntryQuery{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(entries) != 1 || entries[0].DeedID != "read" {
		t.Fatalf("expected only the read entry to survive, got %+v", entries)
	}
	if deed, _ := repo.GetDeed(context.Background(), "t1", "u1", "run"); deed != nil {
		t.Fatal("expected deed removed")
	}
}

func TestDailyTotalsUsesStoredCutoff(t *testing.T) {
	repo := newFakeRepo()
	service := newTestService(t, repo)
	seedDeed(t, repo, Deed{ID: "run", Name: "Run", PointsPerUnit: 10})

	if _, err := service.UpdatePreferences(context.Background(), "t1", "u1", 6); err != nil {
		t.Fatalf("update prefs: %v", err)
	}

	// 05:00 is before the 6am cutoff, so it lands on January 9.
	early := time.Date(2024, time.January, 10, 5, 0, 0, 0, time.UTC)
	if _, err := service.AppendEntry(context.Background(), "t1", "u1", AppendEntryInput{DeedID: "run", Timestamp: early, Amount: 1}); err != nil {
		t.Fatalf("append: %v", err)
	}

	from := time.Date(2024, time.January, 8, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, time.January, 12, 0, 0, 0, 0, time.UTC)
	totals, err := service.DailyTotals(context.Background(), "t1", "u1", from, to)
	if err != nil {
		t.Fatalf("daily totals: %v", err)
	}
	if len(totals) != 1 {
		t.Fatalf("expected 1 bucket got %d", len(totals))
	}
	want := time.Date(2024, time.January, 9, 6, 0, 0, 0, time.UTC)
	if !totals[0].DayStart.Equal(want) {
		t.Fatalf("expected bucket at %v got %v", want, totals[0].DayStart)
	}
}

func TestUpdatePreferencesRejectsInvalidCutoff(t *testing.T) {
	repo := newFakeRepo()
	service := newTestService(t, repo)
	if _, err := service.UpdatePreferences(context.Background(), "t1", "u1", 24); !errors.Is(err, ErrInvalidCutoffHour) {
		t.Fatalf("expected ErrInvalidCutoffHour got %v", err)
	}
	if repo.prefs != nil {
		t.Fatal("invalid cutoff must not be persisted")
	}
}

func TestGetPreferencesFallsBackToDefault(t *testing.T) {
	service := newTestService(t, newFakeRepo())
	prefs, err := service.GetPreferences(context.Background(), "t1", "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prefs.CutoffHour != 4 {
		t.Fatalf("expected default cutoff 4 got %d", prefs.CutoffHour)
	}
}

func TestUpdateDeedPatchesInPlace(t *testing.T) {
	repo := newFakeRepo()
	service := newTestService(t, repo)
	seedDeed(t, repo, Deed{ID: "run", Name: "Run", PointsPerUnit: 10, DailyCap: floatPtr(30)})

	name := "Morning Run"
	updated, err := service.UpdateDeed(context.Background(), "t1", "u1", "run", UpdateDeedInput{Name: &name, ClearDailyCap: true})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Morning Run" || updated.DailyCap != nil {
		t.Fatalf("unexpected deed %+v", updated)
	}
	if updated.PointsPerUnit != 10 {
		t.Fatalf("untouched fields must survive, got %+v", updated)
	}
}

func TestServiceBestImprovement(t *testing.T) {
	repo := newFakeRepo()
	service := newTestService(t, repo)
	seedDeed(t, repo, Deed{ID: "focus", Name: "Deep Work", Category: "Focus", PointsPerUnit: 1})
	seedDeed(t, repo, Deed{ID: "gym", Name: "Gym", Category: "Health", PointsPerUnit: 1})

	now := time.Date(2024, time.June, 20, 15, 0, 0, 0, time.UTC)
	// Previous week: Focus 6 points. Current week: Focus 12, Health 4.
	previous := now.AddDate(0, 0, -9)
	repo.entries["p1"] = Entry{ID: "p1", DeedID: "focus", Timestamp: previous, Amount: 6, Points: 6}
	repo.entries["c1"] = Entry{ID: "c1", DeedID: "focus", Timestamp: now.Add(-2 * time.Hour), Amount: 12, Points: 12}
	repo.entries["c2"] = Entry{ID: "c2", DeedID: "gym", Timestamp: now.Add(-time.Hour), Amount: 4, Points: 4}

	best, err := service.BestImprovement(context.Background(), "t1", "u1", 7, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if best == nil {
		t.Fatal("expected an improvement")
	}
	if best.Category != "Focus" || best.Percent != 1.0 {
		t.Fatalf("unexpected improvement %+v", best)
	}
}
