package itinerary

import (
	"sort"

	"github.com/voyplan/go-itinerary-agents/internal/types"
)

const minLandmarkMinutes = 30

// timedBlock is the working form used during schedule validation: minutes
// since midnight instead of clock strings.
type timedBlock struct {
	block types.ItineraryBlock
	start int
	end   int
}

// validateDaySchedule merges a day's landmarks and meals into one
// chronological schedule, repairs overlaps and oversized gaps, and reports
// the gaps it could not close. Meals sit at fixed times, so every repair
// moves or resizes landmarks only.
func (l *ServiceImpl) validateDaySchedule(day int, blocks []types.ItineraryBlock) ([]types.ItineraryBlock, []types.GapFlag) {
	timed := make([]timedBlock, 0, len(blocks))
	for _, b := range blocks {
		start := parseTimeToMinutes(b.StartTime)
		timed = append(timed, timedBlock{
			block: b,
			start: start,
			end:   start + parseDurationToMinutes(b.Duration),
		})
	}
	sortSchedule(timed)

	// A theme-park day is one fixed all-day block with meals eaten inside the
	// park; overlap and gap rules do not apply to it.
	if isThemeParkDay(blocks) {
		result := make([]types.ItineraryBlock, len(timed))
		for i, t := range timed {
			result[i] = t.block
		}
		return result, nil
	}

	repairOverlaps(timed)
	sortSchedule(timed)

	gapThresholdMinutes := int(l.cfg.GapThreshold.Minutes())
	repairGaps(timed, gapThresholdMinutes)
	sortSchedule(timed)

	var flags []types.GapFlag
	for i := 1; i < len(timed); i++ {
		gap := timed[i].start - timed[i-1].end
		if gap > gapThresholdMinutes && withinWakingHours(timed[i-1].end, timed[i].start) {
			flags = append(flags, types.GapFlag{
				Day:        day,
				After:      timed[i-1].block.Name,
				Before:     timed[i].block.Name,
				GapMinutes: gap,
			})
		}
	}

	result := make([]types.ItineraryBlock, len(timed))
	for i, t := range timed {
		b := t.block
		b.StartTime = minutesToTime(t.start)
		b.Duration = minutesToDuration(t.end - t.start)
		result[i] = b
	}
	return result, flags
}

func sortSchedule(timed []timedBlock) {
	sort.SliceStable(timed, func(i, j int) bool {
		if timed[i].start != timed[j].start {
			return timed[i].start < timed[j].start
		}
		// Meals win ties so a landmark never sits on top of a meal slot.
		return timed[i].block.Type == types.BlockRestaurant &&
			timed[j].block.Type != types.BlockRestaurant
	})
}

// repairOverlaps walks the sorted schedule and resolves collisions. A
// landmark overlapping into a meal is shortened to end when the meal starts;
// a landmark starting inside an earlier block is pushed to begin at that
// block's end.
func repairOverlaps(timed []timedBlock) {
	for i := 1; i < len(timed); i++ {
		prev := &timed[i-1]
		cur := &timed[i]
		if cur.start >= prev.end {
			continue
		}

		if cur.block.Type == types.BlockRestaurant && prev.block.Type == types.BlockLandmark {
			shortened := cur.start - prev.start
			if shortened >= minLandmarkMinutes {
				prev.end = cur.start
				continue
			}
			// Too short to keep before the meal; move it after instead.
			duration := prev.end - prev.start
			prev.start = cur.end
			prev.end = prev.start + duration
			continue
		}

		if cur.block.Type == types.BlockLandmark {
			duration := cur.end - cur.start
			cur.start = prev.end
			cur.end = cur.start + duration
		}
	}
}

// repairGaps closes gaps above the threshold during waking hours: first by
// pulling the next landmark earlier, then by stretching the previous
// landmark. Gaps bounded by meals on both sides cannot be repaired and are
// left for the caller to flag.
func repairGaps(timed []timedBlock, thresholdMinutes int) {
	for i := 1; i < len(timed); i++ {
		prev := &timed[i-1]
		cur := &timed[i]
		gap := cur.start - prev.end
		if gap <= thresholdMinutes || !withinWakingHours(prev.end, cur.start) {
			continue
		}

		if cur.block.Type == types.BlockLandmark {
			duration := cur.end - cur.start
			cur.start = prev.end + thresholdMinutes
			cur.end = cur.start + duration
			continue
		}
		if prev.block.Type == types.BlockLandmark {
			prev.end = cur.start - thresholdMinutes
			if prev.end < prev.start+minLandmarkMinutes {
				prev.end = prev.start + minLandmarkMinutes
			}
		}
	}
}

// withinWakingHours reports whether a gap overlaps the 08:00-22:00 window.
// Overnight stretches between dinner and the next morning are normal rest,
// not dead time.
func withinWakingHours(gapStart, gapEnd int) bool {
	if gapStart < wakingStartMinutes {
		gapStart = wakingStartMinutes
	}
	if gapEnd > wakingEndMinutes {
		gapEnd = wakingEndMinutes
	}
	return gapEnd > gapStart
}
