// Package domain defines the scoring engine for the deeds service.
package domain

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EntryQuery filters entry lookups. From is inclusive, To exclusive.
type EntryQuery struct {
	DeedID string
	From   *time.Time
	To     *time.Time
}

// Cursor models the entry-list pagination token.
type Cursor struct {
	Timestamp time.Time
	ID        string
}

// Repository captures the persistence operations the engine depends on.
// Implementations keep entries ordered by timestamp on read and scope every
// call to the supplied tenant and user.
type Repository interface {
	CreateDeed(ctx context.Context, deed Deed) error
	UpdateDeed(ctx context.Context, deed Deed) (bool, error)
	GetDeed(ctx context.Context, tenantID, userID, deedID string) (*Deed, error)
	ListDeeds(ctx context.Context, tenantID, userID string, includeArchived bool) ([]Deed, error)
	DeleteDeedEntries(ctx context.Context, tenantID, userID, deedID string) error
	DeleteDeed(ctx context.Context, tenantID, userID, deedID string) (bool, error)

	InsertEntry(ctx context.Context, tenantID, userID string, entry Entry) error
	DeleteEntry(ctx context.Context, tenantID, userID, entryID string) (bool, error)
	QueryEntries(ctx context.Context, tenantID, userID string, q EntryQuery) ([]Entry, error)
	ListEntriesPage(ctx context.Context, tenantID, userID string, q EntryQuery, cursor *Cursor, limit int) ([]Entry, *Cursor, error)

	GetPreferences(ctx context.Context, tenantID, userID string) (*Preferences, error)
	UpsertPreferences(ctx context.Context, tenantID, userID string, prefs Preferences) error
}

// appendLockCount is the size of the stripe pool serializing cap checks.
const appendLockCount = 64

// Service orchestrates deed and entry workflows.
type Service struct {
	repo          Repository
	defaultCutoff int
	loc           *time.Location
	sink          InsightSink

	// appendLocks serializes the read-sum-then-insert sequence per deed so
	// concurrent appends cannot jointly exceed a daily cap.
	appendLocks [appendLockCount]sync.Mutex
}

// NewService constructs a Service. The default cutoff hour applies to users
// without stored preferences; loc is the calendar timezone for app-day
// boundaries (UTC when nil).
func NewService(repo Repository, defaultCutoff int, loc *time.Location, sink InsightSink) (*Service, error) {
	if err := ValidateCutoffHour(defaultCutoff); err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}
	if sink == nil {
		sink = NopInsightSink{}
	}
	return &Service{repo: repo, defaultCutoff: defaultCutoff, loc: loc, sink: sink}, nil
}

// CreateDeedInput captures the payload from the API layer.
type CreateDeedInput struct {
	Name          string
	Emoji         string
	Color         string
	Category      string
	Polarity      Polarity
	UnitType      UnitType
	UnitLabel     string
	PointsPerUnit float64
	DailyCap      *float64
	Private       bool
	ShowOnStats   bool
	SortOrder     int
}

// CreateDeed validates and persists a new deed.
func (s *Service) CreateDeed(ctx context.Context, tenantID, userID string, input CreateDeedInput) (*Deed, error) {
	deed := Deed{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		UserID:        userID,
		Name:          input.Name,
		Emoji:         input.Emoji,
		Color:         input.Color,
		Category:      input.Category,
		Polarity:      input.Polarity,
		UnitType:      input.UnitType,
		UnitLabel:     input.UnitLabel,
		PointsPerUnit: input.PointsPerUnit,
		DailyCap:      input.DailyCap,
		Private:       input.Private,
		ShowOnStats:   input.ShowOnStats,
		SortOrder:     input.SortOrder,
		CreatedAt:     time.Now().UTC(),
	}
	if err := deed.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.CreateDeed(ctx, deed); err != nil {
		return nil, err
	}
	return &deed, nil
}

// UpdateDeedInput mutates an existing deed in place. Nil fields are left
// unchanged; DailyCap uses ClearDailyCap to distinguish "remove" from "keep".
type UpdateDeedInput struct {
	Name          *string
	Emoji         *string
	Color         *string
	Category      *string
	UnitLabel     *string
	PointsPerUnit *float64
	DailyCap      *float64
	ClearDailyCap bool
	Archived      *bool
	Private       *bool
	ShowOnStats   *bool
	SortOrder     *int
}

// UpdateDeed applies the patch and persists the result.
func (s *Service) UpdateDeed(ctx context.Context, tenantID, userID, deedID string, input UpdateDeedInput) (*Deed, error) {
	deed, err := s.repo.GetDeed(ctx, tenantID, userID, deedID)
	if err != nil {
		return nil, err
	}
	if deed == nil {
		return nil, ErrDeedNotFound
	}

	if input.Name != nil {
		deed.Name = *input.Name
	}
	if input.Emoji != nil {
		deed.Emoji = *input.Emoji
	}
	if input.Color != nil {
		deed.Color = *input.Color
	}
	if input.Category != nil {
		deed.Category = *input.Category
	}
	if input.UnitLabel != nil {
		deed.UnitLabel = *input.UnitLabel
	}
	if input.PointsPerUnit != nil {
		deed.PointsPerUnit = *input.PointsPerUnit
	}
	if input.ClearDailyCap {
		deed.DailyCap = nil
	} else if input.DailyCap != nil {
		deed.DailyCap = input.DailyCap
	}
	if input.Archived != nil {
		deed.Archived = *input.Archived
	}
	if input.Private != nil {
		deed.Private = *input.Private
	}
	if input.ShowOnStats != nil {
		deed.ShowOnStats = *input.ShowOnStats
	}
	if input.SortOrder != nil {
		deed.SortOrder = *input.SortOrder
	}

	if err := deed.Validate(); err != nil {
		return nil, err
	}
	found, err := s.repo.UpdateDeed(ctx, *deed)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrDeedNotFound
	}
	return deed, nil
}

// ListDeeds returns the catalog in sort order.
func (s *Service) ListDeeds(ctx context.Context, tenantID, userID string, includeArchived bool) ([]Deed, error) {
	return s.repo.ListDeeds(ctx, tenantID, userID, includeArchived)
}

// DeleteDeed removes a deed and all of its entries. The cascade is an
// explicit two-step delete: entries first, then the deed itself.
func (s *Service) DeleteDeed(ctx context.Context, tenantID, userID, deedID string) error {
	deed, err := s.repo.GetDeed(ctx, tenantID, userID, deedID)
	if err != nil {
		return err
	}
	if deed == nil {
		return ErrDeedNotFound
	}
	if err := s.repo.DeleteDeedEntries(ctx, tenantID, userID, deedID); err != nil {
		return err
	}
	found, err := s.repo.DeleteDeed(ctx, tenantID, userID, deedID)
	if err != nil {
		return err
	}
	if !found {
		return ErrDeedNotFound
	}
	return nil
}

// AppendEntryInput captures one logged occurrence.
type AppendEntryInput struct {
	DeedID    string
	Timestamp time.Time
	Amount    float64
	Note      string
}

// AppendResult pairs the persisted entry with the cap outcome.
type AppendResult struct {
	Entry     Entry
	WasCapped bool
}

// AppendEntry computes the entry's points, enforcing the deed's daily cap
// within the app-day containing the timestamp, and persists it. The cap
// applies only to positive raw points; negative points pass through
// unclamped. Each entry's computed value is final: deleting an earlier
// entry frees headroom for future appends but never rewrites points already
// recorded.
func (s *Service) AppendEntry(ctx context.Context, tenantID, userID string, input AppendEntryInput) (*AppendResult, error) {
	deed, err := s.repo.GetDeed(ctx, tenantID, userID, input.DeedID)
	if err != nil {
		return nil, err
	}
	if deed == nil {
		return nil, fmt.Errorf("%w: %s", ErrDeedNotFound, input.DeedID)
	}

	timestamp := input.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}
	rawPoints := input.Amount * deed.PointsPerUnit
	points := rawPoints
	wasCapped := false

	if deed.DailyCap != nil && rawPoints > 0 {
		// For boolean deeds the cap counts occurrences per day, so the
		// point ceiling is cap * pointsPerUnit. Everything else caps
		// points directly.
		pointCap := *deed.DailyCap
		if deed.UnitType == UnitBoolean {
			pointCap = *deed.DailyCap * deed.PointsPerUnit
		}

		cutoff, err := s.cutoffHour(ctx, tenantID, userID)
		if err != nil {
			return nil, err
		}
		dayStart, dayEnd, err := DayRange(timestamp, cutoff, s.loc)
		if err != nil {
			return nil, err
		}

		lock := s.lockFor(tenantID, userID, deed.ID)
		lock.Lock()
		defer lock.Unlock()

		existing, err := s.repo.QueryEntries(ctx, tenantID, userID, EntryQuery{
			DeedID: deed.ID,
			From:   &dayStart,
			To:     &dayEnd,
		})
		if err != nil {
			return nil, err
		}
		var positiveSum float64
		for _, e := range existing {
			if e.Points > 0 {
				positiveSum += e.Points
			}
		}
		remaining := pointCap - positiveSum
		if remaining < 0 {
			remaining = 0
		}
		if points > remaining {
			points = remaining
			wasCapped = true
		}
	}

	entry := Entry{
		ID:        uuid.NewString(),
		DeedID:    deed.ID,
		Timestamp: timestamp,
		Amount:    input.Amount,
		Points:    points,
		Note:      input.Note,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.InsertEntry(ctx, tenantID, userID, entry); err != nil {
		return nil, err
	}
	return &AppendResult{Entry: entry, WasCapped: wasCapped}, nil
}

// DeleteEntry removes one entry. Sibling entries in the same app-day keep
// their computed points unchanged.
func (s *Service) DeleteEntry(ctx context.Context, tenantID, userID, entryID string) error {
	found, err := s.repo.DeleteEntry(ctx, tenantID, userID, entryID)
	if err != nil {
		return err
	}
	if !found {
		return ErrEntryNotFound
	}
	return nil
}

// ListEntries fetches entries with cursor pagination, ordered by timestamp.
func (s *Service) ListEntries(ctx context.Context, tenantID, userID string, q EntryQuery, cursor *Cursor, limit int) ([]Entry, *Cursor, error) {
	return s.repo.ListEntriesPage(ctx, tenantID, userID, q, cursor, limit)
}

// DailyTotals aggregates computed points into sparse per-app-day totals over
// [from, to). Days without entries are omitted.
func (s *Service) DailyTotals(ctx context.Context, tenantID, userID string, from, to time.Time) ([]DayTotal, error) {
	cutoff, err := s.cutoffHour(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	entries, err := s.repo.QueryEntries(ctx, tenantID, userID, EntryQuery{From: &from, To: &to})
	if err != nil {
		return nil, err
	}
	return AggregateDaily(entries, cutoff, s.loc)
}

// Suggestions derives up to two next-action suggestions from today's state.
func (s *Service) Suggestions(ctx context.Context, tenantID, userID string, now time.Time) ([]Suggestion, error) {
	cutoff, err := s.cutoffHour(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	deeds, err := s.repo.ListDeeds(ctx, tenantID, userID, false)
	if err != nil {
		return nil, err
	}
	dayStart, dayEnd, err := DayRange(now, cutoff, s.loc)
	if err != nil {
		return nil, err
	}
	entries, err := s.repo.QueryEntries(ctx, tenantID, userID, EntryQuery{From: &dayStart, To: &dayEnd})
	if err != nil {
		return nil, err
	}
	return Suggest(deeds, entries, cutoff, s.loc, now)
}

// CorrelationInsight relates a deed's daily engagement to the daily net
// score over the trailing window, returning nil when the sample or strength
// floors are unmet.
func (s *Service) CorrelationInsight(ctx context.Context, tenantID, userID, deedID string, windowDays int, now time.Time) (*Insight, error) {
	deed, err := s.repo.GetDeed(ctx, tenantID, userID, deedID)
	if err != nil {
		return nil, err
	}
	if deed == nil {
		return nil, fmt.Errorf("%w: %s", ErrDeedNotFound, deedID)
	}
	cutoff, err := s.cutoffHour(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	todayStart, _, err := DayRange(now, cutoff, s.loc)
	if err != nil {
		return nil, err
	}
	from := todayStart.AddDate(0, 0, -(windowDays - 1))
	to := now
	entries, err := s.repo.QueryEntries(ctx, tenantID, userID, EntryQuery{From: &from, To: &to})
	if err != nil {
		return nil, err
	}

	engagement, err := DailyEngagement(entries, deed.ID, cutoff, s.loc)
	if err != nil {
		return nil, err
	}
	totals, err := AggregateDaily(entries, cutoff, s.loc)
	if err != nil {
		return nil, err
	}
	net := make([]DailyPoint, 0, len(totals))
	for _, t := range totals {
		net = append(net, DailyPoint{Day: t.DayStart, Value: t.TotalPoints})
	}

	analyzer := CorrelationAnalyzer{Sink: s.sink}
	insight := analyzer.Insight(*deed, engagement, net, windowDays)
	return insight, nil
}

// BestImprovement compares per-category point totals for the last `days`
// app-days against the preceding period of the same length.
func (s *Service) BestImprovement(ctx context.Context, tenantID, userID string, days int, now time.Time) (*Improvement, error) {
	cutoff, err := s.cutoffHour(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	todayStart, todayEnd, err := DayRange(now, cutoff, s.loc)
	if err != nil {
		return nil, err
	}
	currentFrom := todayStart.AddDate(0, 0, -(days - 1))
	previousFrom := currentFrom.AddDate(0, 0, -days)

	deeds, err := s.repo.ListDeeds(ctx, tenantID, userID, true)
	if err != nil {
		return nil, err
	}
	entries, err := s.repo.QueryEntries(ctx, tenantID, userID, EntryQuery{From: &previousFrom, To: &todayEnd})
	if err != nil {
		return nil, err
	}

	comparisons := CategoryComparisons(deeds, entries, previousFrom, currentFrom, todayEnd)
	best := BestImprovement(comparisons)
	return best, nil
}

// DayRangeFor resolves the user's cutoff hour and returns the app-day
// interval containing the instant.
func (s *Service) DayRangeFor(ctx context.Context, tenantID, userID string, at time.Time) (time.Time, time.Time, error) {
	cutoff, err := s.cutoffHour(ctx, tenantID, userID)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return DayRange(at, cutoff, s.loc)
}

// GetPreferences returns stored preferences, falling back to defaults.
func (s *Service) GetPreferences(ctx context.Context, tenantID, userID string) (Preferences, error) {
	prefs, err := s.repo.GetPreferences(ctx, tenantID, userID)
	if err != nil {
		return Preferences{}, err
	}
	if prefs == nil {
		return Preferences{CutoffHour: s.defaultCutoff}, nil
	}
	return *prefs, nil
}

// UpdatePreferences validates and synchronously persists new preferences.
func (s *Service) UpdatePreferences(ctx context.Context, tenantID, userID string, cutoffHour int) (Preferences, error) {
	if err := ValidateCutoffHour(cutoffHour); err != nil {
		return Preferences{}, err
	}
	prefs := Preferences{CutoffHour: cutoffHour, UpdatedAt: time.Now().UTC()}
	if err := s.repo.UpsertPreferences(ctx, tenantID, userID, prefs); err != nil {
		return Preferences{}, err
	}
	return prefs, nil
}

func (s *Service) cutoffHour(ctx context.Context, tenantID, userID string) (int, error) {
	prefs, err := s.repo.GetPreferences(ctx, tenantID, userID)
	if err != nil {
		return 0, err
	}
	if prefs == nil {
		return s.defaultCutoff, nil
	}
	if err := ValidateCutoffHour(prefs.CutoffHour); err != nil {
		return 0, err
	}
	return prefs.CutoffHour, nil
}

func (s *Service) lockFor(tenantID, userID, deedID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(tenantID))
	h.Write([]byte{0})
	h.Write([]byte(userID))
	h.Write([]byte{0})
	h.Write([]byte(deedID))
	return &s.appendLocks[h.Sum32()%appendLockCount]
}
