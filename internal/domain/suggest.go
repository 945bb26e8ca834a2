package domain

import (
	"strings"
	"time"
)

// SuggestionKind names the heuristic that produced a suggestion.
type SuggestionKind string

const (
	SuggestionHydration   SuggestionKind = "hydration"
	SuggestionMindfulness SuggestionKind = "mindfulness"
	SuggestionPositivity  SuggestionKind = "positivity"
)

// Suggestion points the user at a deed worth logging next.
type Suggestion struct {
	Kind   SuggestionKind
	DeedID string
}

// Tuning for the suggestion rules. Raw-amount target and spacing gate the
// hydration nudge; the recency window bounds how long a negative entry keeps
// prompting a positive counterweight.
const (
	hydrationTargetUnits  = 8.0
	hydrationMinSpacing   = 90 * time.Minute
	negativeRecencyWindow = 2 * time.Hour
	maxSuggestions        = 2
)

var hydrationKeywords = []string{"water", "hydrat", "drink"}

var mindfulnessKeywords = []string{"medit", "breath", "calm", "mindful"}

// Suggest derives up to two suggestions from today's entries, evaluating the
// hydration, mindfulness and positivity rules in that order. A deed claimed
// by an earlier rule is skipped by later ones; ties within a rule resolve by
// catalog order. Total over any input: empty catalogs or entry sets yield an
// empty result, never an error.
func Suggest(deeds []Deed, entries []Entry, cutoffHour int, loc *time.Location, now time.Time) ([]Suggestion, error) {
	dayStart, dayEnd, err := DayRange(now, cutoffHour, loc)
	if err != nil {
		return nil, err
	}

	today := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if !entry.Timestamp.Before(dayStart) && entry.Timestamp.Before(dayEnd) {
			today = append(today, entry)
		}
	}

	suggestions := make([]Suggestion, 0, maxSuggestions)
	used := make(map[string]bool)
	add := func(kind SuggestionKind, deedID string) {
		suggestions = append(suggestions, Suggestion{Kind: kind, DeedID: deedID})
		used[deedID] = true
	}

	if deed := hydrationCandidate(deeds, today, used, now); deed != nil {
		add(SuggestionHydration, deed.ID)
	}
	if len(suggestions) < maxSuggestions {
		if deed := mindfulnessCandidate(deeds, today, used); deed != nil {
			add(SuggestionMindfulness, deed.ID)
		}
	}
	if len(suggestions) < maxSuggestions {
		if deed := positivityCandidate(deeds, today, used, now); deed != nil {
			add(SuggestionPositivity, deed.ID)
		}
	}
	return suggestions, nil
}

func hydrationCandidate(deeds []Deed, today []Entry, used map[string]bool, now time.Time) *Deed {
	for i := range deeds {
		deed := &deeds[i]
		if used[deed.ID] || deed.Archived || deed.Polarity != PolarityPositive {
			continue
		}
		if !matchesHydration(*deed) {
			continue
		}

		var amountToday float64
		var lastLog time.Time
		for _, entry := range today {
			if entry.DeedID != deed.ID {
				continue
			}
			amountToday += entry.Amount
			if entry.Timestamp.After(lastLog) {
				lastLog = entry.Timestamp
			}
		}
		if amountToday >= hydrationTargetUnits {
			continue
		}
		if !lastLog.IsZero() && now.Sub(lastLog) < hydrationMinSpacing {
			continue
		}
		return deed
	}
	return nil
}

func mindfulnessCandidate(deeds []Deed, today []Entry, used map[string]bool) *Deed {
	for i := range deeds {
		deed := &deeds[i]
		if used[deed.ID] || deed.Archived || deed.Polarity != PolarityPositive {
			continue
		}
		if deed.UnitType != UnitDuration || !matchesKeywords(*deed, mindfulnessKeywords) {
			continue
		}
		logged := false
		for _, entry := range today {
			if entry.DeedID == deed.ID {
				logged = true
				break
			}
		}
		if logged {
			continue
		}
		return deed
	}
	return nil
}

func positivityCandidate(deeds []Deed, today []Entry, used map[string]bool, now time.Time) *Deed {
	var lastNegative time.Time
	positiveAfter := false
	for _, entry := range today {
		if entry.Points < 0 && entry.Timestamp.After(lastNegative) {
			lastNegative = entry.Timestamp
		}
	}
	if lastNegative.IsZero() || now.Sub(lastNegative) > negativeRecencyWindow {
		return nil
	}
	for _, entry := range today {
		if entry.Points > 0 && entry.Timestamp.After(lastNegative) {
			positiveAfter = true
			break
		}
	}
	if positiveAfter {
		return nil
	}

	for i := range deeds {
		deed := &deeds[i]
		if used[deed.ID] || deed.Archived || deed.Polarity != PolarityPositive {
			continue
		}
		return deed
	}
	return nil
}

func matchesHydration(deed Deed) bool {
	if strings.Contains(deed.Emoji, "\U0001F4A7") {
		return true
	}
	return matchesKeywords(deed, hydrationKeywords)
}

func matchesKeywords(deed Deed, keywords []string) bool {
	haystacks := []string{deed.Name, deed.UnitLabel, deed.Category}
	for _, haystack := range haystacks {
		lowered := strings.ToLower(haystack)
		for _, keyword := range keywords {
			if strings.Contains(lowered, keyword) {
				return true
			}
		}
	}
	return false
}
