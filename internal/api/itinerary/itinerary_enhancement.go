package itinerary

import (
	"context"
	"sort"
	"strings"

	"github.com/voyplan/go-itinerary-agents/internal/api/places"
	"github.com/voyplan/go-itinerary-agents/internal/types"
)

// enhanceDayLandmarks fills in place IDs, addresses, ratings and photo
// references for landmarks that lack them. Landmarks that already carry full
// place data are skipped; each skip is an external call avoided. A failed
// lookup leaves the landmark as generated, never degrades it.
func (l *ServiceImpl) enhanceDayLandmarks(ctx context.Context, st *AgentState, landmarks []types.ItineraryBlock) []types.ItineraryBlock {
	enhanced := make([]types.ItineraryBlock, len(landmarks))
	copy(enhanced, landmarks)

	for i := range enhanced {
		b := &enhanced[i]
		if b.Type != types.BlockLandmark {
			continue
		}
		if b.PlaceID != "" && b.Address != "" && b.PhotoURL != "" {
			st.addCallsSaved(1)
			continue
		}

		if b.PlaceID == "" {
			summary := l.findPlaceForLandmark(ctx, st, *b)
			if summary == nil {
				continue
			}
			b.PlaceID = summary.PlaceID
			if b.Address == "" {
				b.Address = summary.Address
			}
			if b.Rating == 0 {
				b.Rating = summary.Rating
			}
			if b.Location == nil && summary.Location != (types.Location{}) {
				loc := summary.Location
				b.Location = &loc
			}
			if b.PhotoURL == "" && summary.PhotoRef != "" {
				b.PhotoURL = photoProxyURL(summary.PhotoRef)
			}
		}

		if b.PlaceID != "" && (b.Address == "" || b.PhotoURL == "") {
			st.addExternalCalls(1)
			details, err := l.places.GetDetails(ctx, b.PlaceID)
			if err != nil {
				l.logger.WarnContext(ctx, "Place details lookup failed",
					"landmark", b.Name, "place_id", b.PlaceID, "error", err)
				continue
			}
			if b.Address == "" {
				b.Address = details.Address
			}
			if b.Rating == 0 {
				b.Rating = details.Rating
			}
			if b.PhotoURL == "" && details.PhotoRef != "" {
				b.PhotoURL = photoProxyURL(details.PhotoRef)
			}
		}
	}
	return enhanced
}

// findPlaceForLandmark resolves a generated landmark name to a real place by
// searching near its coordinates, preferring the result whose name matches
// best. Without coordinates there is nothing to search around.
func (l *ServiceImpl) findPlaceForLandmark(ctx context.Context, st *AgentState, b types.ItineraryBlock) *places.PlaceSummary {
	if b.Location == nil {
		return nil
	}

	st.addExternalCalls(1)
	results, err := l.places.SearchNearby(ctx, *b.Location, l.cfg.SearchRadiusMeters, "", b.Name)
	if err != nil {
		l.logger.WarnContext(ctx, "Landmark place search failed",
			"landmark", b.Name, "error", err)
		return nil
	}
	if len(results) == 0 {
		return nil
	}

	target := normalizeName(b.Name)
	sort.SliceStable(results, func(i, j int) bool {
		return nameMatchScore(target, normalizeName(results[i].Name)) >
			nameMatchScore(target, normalizeName(results[j].Name))
	})
	best := results[0]
	if nameMatchScore(target, normalizeName(best.Name)) == 0 {
		return nil
	}
	return &best
}

// nameMatchScore counts shared tokens between two normalized names; zero
// means no overlap at all.
func nameMatchScore(a, b string) int {
	if a == b && a != "" {
		return 1000
	}
	setA := make(map[string]bool)
	for _, t := range strings.Fields(a) {
		setA[t] = true
	}
	score := 0
	for _, t := range strings.Fields(b) {
		if setA[t] {
			score++
		}
	}
	return score
}
