package itinerary

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/voyplan/go-itinerary-agents/internal/types"
)

// detectDuplicates scans the generated days for landmarks that are the same
// attraction under different spellings. Only cross-day repeats count; two
// stops at related places on the same day are the model's business.
func (l *ServiceImpl) detectDuplicates(ctx context.Context, st *AgentState) {
	_, span := otel.Tracer("ItineraryService").Start(ctx, "detectDuplicates")
	defer span.End()
	stageStart := time.Now()

	type seenEntry struct {
		normalized string
		display    string
		days       []int
	}
	var seen []*seenEntry

	days := make([]int, 0, len(st.GeneratedDays))
	for day := range st.GeneratedDays {
		days = append(days, day)
	}
	sort.Ints(days)

	for _, day := range days {
		for _, block := range st.GeneratedDays[day] {
			if block.Type != types.BlockLandmark {
				continue
			}
			normalized := normalizeName(block.Name)
			if normalized == "" {
				continue
			}
			matched := false
			for _, entry := range seen {
				if namesSimilar(entry.normalized, normalized, l.cfg.SimilarityThreshold) {
					if entry.days[len(entry.days)-1] != day {
						entry.days = append(entry.days, day)
					}
					matched = true
					break
				}
			}
			if !matched {
				seen = append(seen, &seenEntry{normalized: normalized, display: block.Name, days: []int{day}})
			}
		}
	}

	var report types.ConflictReport
	for _, entry := range seen {
		if len(entry.days) > 1 {
			report.Conflicts = append(report.Conflicts, types.Conflict{
				NormalizedName: entry.normalized,
				Days:           entry.days,
			})
		}
	}
	st.Conflicts = report

	span.SetAttributes(attribute.Int("conflicts", len(report.Conflicts)))
	span.SetStatus(codes.Ok, "duplicate detection completed")
	st.logTiming("duplicate_detection", time.Since(stageStart), map[string]int{
		"conflicts": len(report.Conflicts),
	})
}

// resolveDuplicates regenerates the later occurrence of each conflict. The
// first day that used an attraction keeps it; every other conflicting day is
// regenerated with an exclusion list built from all the names kept elsewhere.
// A day whose regeneration still conflicts after the configured attempts
// keeps its original content flagged rather than losing the day.
func (l *ServiceImpl) resolveDuplicates(ctx context.Context, st *AgentState) {
	ctx, span := otel.Tracer("ItineraryService").Start(ctx, "resolveDuplicates", trace.WithAttributes(
		attribute.Int("conflicts", len(st.Conflicts.Conflicts)),
	))
	defer span.End()
	stageStart := time.Now()

	if st.Conflicts.Empty() {
		span.SetStatus(codes.Ok, "no conflicts to resolve")
		st.logTiming("duplicate_resolution", time.Since(stageStart), map[string]int{"regenerated_days": 0})
		return
	}

	daysToRegen := st.Conflicts.DaysToRegenerate()
	l.logger.InfoContext(ctx, "Regenerating conflicting days",
		"days", daysToRegen, "conflicts", len(st.Conflicts.Conflicts))

	type regenResult struct {
		Day      int
		Blocks   []types.ItineraryBlock
		Resolved bool
	}
	results := make([]regenResult, len(daysToRegen))

	g, gCtx := errgroup.WithContext(ctx)
	for i, day := range daysToRegen {
		g.Go(func() error {
			exclusions := l.exclusionNamesFor(st, day, daysToRegen)
			original := st.GeneratedDays[day]

			var blocks []types.ItineraryBlock
			resolved := false
			attempts := l.cfg.MaxRegenAttempts
			if attempts < 1 {
				attempts = 1
			}
			for attempt := 0; attempt < attempts; attempt++ {
				regenerated, err := l.regenerateDayLandmarks(gCtx, st, day, exclusions)
				if err != nil {
					l.logger.WarnContext(gCtx, "Day regeneration attempt failed",
						"day", day, "attempt", attempt+1, "error", err)
					continue
				}
				if !l.conflictsWithExclusions(regenerated, exclusions, st.Request, day) {
					blocks = regenerated
					resolved = true
					break
				}
				l.logger.WarnContext(gCtx, "Regenerated day still conflicts",
					"day", day, "attempt", attempt+1)
			}
			if !resolved {
				blocks = markConflictsKept(original)
			}
			results[i] = regenResult{Day: day, Blocks: blocks, Resolved: resolved}
			return nil
		})
	}
	// Workers only report; errgroup is used for the fan-out and ctx plumbing.
	_ = g.Wait()

	regenerated := 0
	for _, r := range results {
		if r.Day == 0 {
			continue
		}
		st.GeneratedDays[r.Day] = r.Blocks
		st.ThemeParkDays[r.Day] = isThemeParkDay(r.Blocks)
		if r.Resolved {
			regenerated++
		} else {
			for _, c := range st.Conflicts.Conflicts {
				for _, d := range c.Days {
					if d == r.Day {
						st.mu.Lock()
						st.Metrics.UnresolvedConflicts = append(st.Metrics.UnresolvedConflicts,
							fmt.Sprintf("day %d: %s", r.Day, c.NormalizedName))
						st.mu.Unlock()
						break
					}
				}
			}
		}
	}

	span.SetAttributes(attribute.Int("regenerated_days", regenerated))
	span.SetStatus(codes.Ok, "duplicate resolution completed")
	st.logTiming("duplicate_resolution", time.Since(stageStart), map[string]int{
		"regenerated_days": regenerated,
		"unresolved":       len(daysToRegen) - regenerated,
	})
}

// exclusionNamesFor collects the landmark names every other day is keeping,
// so the regeneration prompt can steer clear of them. Days that are
// themselves being regenerated contribute only when they come earlier, since
// their first-occurrence content survives.
func (l *ServiceImpl) exclusionNamesFor(st *AgentState, day int, regenDays []int) []string {
	regenSet := make(map[int]bool, len(regenDays))
	for _, d := range regenDays {
		regenSet[d] = true
	}

	var names []string
	seen := make(map[string]bool)
	for otherDay, blocks := range st.GeneratedDays {
		if otherDay == day {
			continue
		}
		if regenSet[otherDay] && otherDay > day {
			continue
		}
		for _, b := range blocks {
			if b.Type != types.BlockLandmark {
				continue
			}
			key := normalizeName(b.Name)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			names = append(names, b.Name)
		}
	}
	sort.Strings(names)
	return names
}

// conflictsWithExclusions checks a regenerated day against the exclusion
// list. Attractions the traveler explicitly selected for this day are allowed
// to repeat.
func (l *ServiceImpl) conflictsWithExclusions(blocks []types.ItineraryBlock, exclusions []string, req types.TripRequest, day int) bool {
	selectedNorms := make(map[string]bool)
	for _, a := range req.Selected[day] {
		selectedNorms[normalizeName(a.Name)] = true
	}

	for _, b := range blocks {
		normalized := normalizeName(b.Name)
		if selectedNorms[normalized] {
			continue
		}
		for _, excluded := range exclusions {
			if namesSimilar(normalized, normalizeName(excluded), l.cfg.SimilarityThreshold) {
				return true
			}
		}
	}
	return false
}

func markConflictsKept(blocks []types.ItineraryBlock) []types.ItineraryBlock {
	kept := make([]types.ItineraryBlock, len(blocks))
	copy(kept, blocks)
	for i := range kept {
		kept[i].ConflictKept = true
	}
	return kept
}
