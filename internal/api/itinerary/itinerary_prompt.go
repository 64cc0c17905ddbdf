package itinerary

import (
	"fmt"
	"strings"

	"github.com/voyplan/go-itinerary-agents/internal/types"
)

// getUnifiedLandmarkPrompt builds the single prompt that generates landmark
// candidates for every day of the trip at once. Generating all days in one
// call is the anti-duplicate strategy: the model sees the whole trip and is
// told to keep days disjoint.
func getUnifiedLandmarkPrompt(req types.TripRequest, themeParkDays []int) string {
	var daySections strings.Builder
	for day := 1; day <= req.TravelDays; day++ {
		attractions := req.Selected[day]
		if len(attractions) > 0 {
			daySections.WriteString(fmt.Sprintf("\nDAY %d MANDATORY ATTRACTIONS:\n", day))
			for _, a := range attractions {
				daySections.WriteString(fmt.Sprintf("- %s", a.Name))
				if a.Description != "" {
					daySections.WriteString(" - " + a.Description)
				}
				daySections.WriteString("\n")
			}
		} else {
			daySections.WriteString(fmt.Sprintf("\nDAY %d: no pre-selected attractions - suggest appropriate landmarks\n", day))
		}
	}

	var wishlist strings.Builder
	if len(req.Wishlist) > 0 {
		wishlist.WriteString("\nWISHLIST ITEMS (add where suitable):\n")
		for _, item := range req.Wishlist {
			wishlist.WriteString(fmt.Sprintf("- %s (%s)\n", item.Name, item.Type))
		}
	}

	themeParkSection := ""
	if len(themeParkDays) > 0 {
		themeParkSection = fmt.Sprintf(`
CRITICAL THEME PARK RULES:
Days %v have theme parks - for these days ONLY:
- Generate EXACTLY 1 landmark: the theme park itself
- Duration: exactly "%s", start_time: exactly "%s"
- Do NOT add other landmarks - theme parks are full-day experiences
`, themeParkDays, themeParkDuration, themeParkStartTime)
	}

	return fmt.Sprintf(`Generate ALL landmarks for a %d-day trip to %s.

ABSOLUTELY FORBIDDEN: any type="restaurant" activities.
NO meals, no dining - restaurants are scheduled separately.

TRAVELER PROFILE: kids ages (%s), elderly (%t) | REQUESTS: %s
%s%s%s
LANDMARK GENERATION RULES:
- ONLY type="landmark" activities (museums, parks, monuments, tours, etc.)
- ENSURE DIVERSITY: no duplicate landmarks across ALL days
- Non-theme-park days: EXACTLY 2-3 landmarks per day
- Theme-park days: EXACTLY 1 landmark (the theme park only)
- Include ALL mandatory attractions listed above

TIMING REQUIREMENTS:
- No more than 3-hour gaps between landmark activities
- Non-theme-park days, distribute landmarks as:
  morning 09:00-11:00 (2h), afternoon 13:00-15:00 (2h),
  late afternoon 16:00-17:30 (1.5h) when a third landmark fits
- Leave meal slots free: breakfast (08:00), lunch (12:30), dinner (19:00)

REQUIRED JSON FORMAT:
{
  "day_1": [
    {"name": "Attraction Name", "type": "landmark", "description": "Brief description",
     "start_time": "09:00", "duration": "2h", "location": {"lat": 0.0, "lng": 0.0}}
  ],
  "day_2": [...]
}

Use real place names in %s. Return only the JSON object.`,
		req.TravelDays, req.Destination,
		formatKidsAges(req.KidsAges), req.WithElders, orNone(req.SpecialRequests),
		daySections.String(), wishlist.String(), themeParkSection,
		req.Destination)
}

// getRegenerationPrompt builds the prompt used to regenerate a single
// conflicting day, carrying an explicit exclusion list of names kept on
// other days.
func getRegenerationPrompt(req types.TripRequest, day int, exclusions []string) string {
	var selected strings.Builder
	if attractions := req.Selected[day]; len(attractions) > 0 {
		selected.WriteString("KEEP THESE SELECTED ATTRACTIONS:\n")
		for _, a := range attractions {
			selected.WriteString(fmt.Sprintf("- %s (%s)\n", a.Name, a.Type))
		}
	}

	var excluded strings.Builder
	if len(exclusions) > 0 {
		excluded.WriteString("\nAVOID THESE (already used on other days):\n")
		limit := len(exclusions)
		if limit > 25 {
			limit = 25
		}
		for _, name := range exclusions[:limit] {
			excluded.WriteString("- " + name + "\n")
		}
		if len(exclusions) > limit {
			excluded.WriteString(fmt.Sprintf("... and %d more attractions\n", len(exclusions)-limit))
		}
		excluded.WriteString("Find creative ALTERNATIVES in the same categories.\n")
	}

	return fmt.Sprintf(`Regenerate landmarks ONLY for day %d in %s with creative alternatives.

ABSOLUTELY FORBIDDEN: any type="restaurant" activities.

TRAVELER PROFILE: kids ages (%s), elderly (%t) | REQUESTS: %s

%s%s
REGENERATION STRATEGY:
- Keep any selected attractions listed above (these may repeat)
- Replace conflicting landmarks with alternatives in the same categories
- Same structure as before: 2-3 landmarks, 09:00-18:00, no >3h gaps
- Theme-park days keep exactly 1 landmark (the park, "%s" from %s)
- Leave meal slots free: breakfast (08:00), lunch (12:30), dinner (19:00)

REQUIRED JSON FORMAT:
{"day_%d": [{"name": "...", "type": "landmark", "description": "...",
  "start_time": "09:00", "duration": "2h", "location": {"lat": 0.0, "lng": 0.0}}]}

Use real place names in %s. Return only the JSON object.`,
		day, req.Destination,
		formatKidsAges(req.KidsAges), req.WithElders, orNone(req.SpecialRequests),
		selected.String(), excluded.String(),
		themeParkDuration, themeParkStartTime,
		day, req.Destination)
}

func formatKidsAges(ages []int) string {
	if len(ages) == 0 {
		return "none"
	}
	parts := make([]string, len(ages))
	for i, a := range ages {
		parts[i] = fmt.Sprintf("%d", a)
	}
	return strings.Join(parts, ", ")
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "none"
	}
	return s
}
