package types

import "github.com/google/uuid"

// Block types for itinerary entries.
const (
	BlockLandmark   = "landmark"
	BlockRestaurant = "restaurant"
)

// Meal slots. Every day carries exactly one restaurant block per slot.
const (
	MealBreakfast = "breakfast"
	MealLunch     = "lunch"
	MealDinner    = "dinner"
)

// MealSlots in schedule order.
var MealSlots = []string{MealBreakfast, MealLunch, MealDinner}

type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Attraction is a user-selected or wishlisted place attached to a TripRequest.
type Attraction struct {
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Description string    `json:"description,omitempty"`
	Location    *Location `json:"location,omitempty"`
}

// TripRequest is the immutable pipeline input.
type TripRequest struct {
	Destination     string               `json:"destination"`
	TravelDays      int                  `json:"travel_days"`
	StartDate       string               `json:"start_date,omitempty"`
	EndDate         string               `json:"end_date,omitempty"`
	KidsAges        []int                `json:"kids_ages,omitempty"`
	WithElders      bool                 `json:"with_elders,omitempty"`
	SpecialRequests string               `json:"special_requests,omitempty"`
	Wishlist        []Attraction         `json:"wishlist,omitempty"`
	Selected        map[int][]Attraction `json:"selected,omitempty"` // day index -> pre-selected attractions
}

// ItineraryBlock is a single timed entry in a day plan. Landmarks and
// restaurants share the shape; restaurants additionally carry Mealtime.
type ItineraryBlock struct {
	ID          uuid.UUID `json:"id,omitempty"`
	Type        string    `json:"type"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	StartTime   string    `json:"start_time"` // "HH:MM", 24-hour
	Duration    string    `json:"duration"`   // e.g. "2h", "45m"
	Mealtime    string    `json:"mealtime,omitempty"`
	PlaceID     string    `json:"place_id,omitempty"`
	Rating      float64   `json:"rating,omitempty"`
	Address     string    `json:"address,omitempty"`
	PhotoURL    string    `json:"photo_url,omitempty"`
	Location    *Location `json:"location,omitempty"`
	ThemePark   bool      `json:"theme_park,omitempty"`

	// Quality flags surfaced in Metrics. Fallback marks deterministic
	// substitute content; ConflictKept marks a duplicate that survived
	// regeneration and was kept rather than dropped.
	Fallback     bool `json:"fallback,omitempty"`
	ConflictKept bool `json:"conflict_kept,omitempty"`
}

// DayPlan is one day's merged, time-sorted block sequence.
type DayPlan struct {
	Day       int              `json:"day"`
	Blocks    []ItineraryBlock `json:"blocks"`
	ThemePark bool             `json:"theme_park,omitempty"`
}

// Landmarks returns the landmark blocks in plan order.
func (d DayPlan) Landmarks() []ItineraryBlock {
	var out []ItineraryBlock
	for _, b := range d.Blocks {
		if b.Type == BlockLandmark {
			out = append(out, b)
		}
	}
	return out
}

// Restaurants returns the restaurant blocks in plan order.
func (d DayPlan) Restaurants() []ItineraryBlock {
	var out []ItineraryBlock
	for _, b := range d.Blocks {
		if b.Type == BlockRestaurant {
			out = append(out, b)
		}
	}
	return out
}

// Itinerary is the externally visible result: day plans in day order.
type Itinerary struct {
	Destination string    `json:"destination"`
	Days        []DayPlan `json:"itinerary"`
}

// Conflict records one normalized landmark name colliding across days.
type Conflict struct {
	NormalizedName string `json:"normalized_name"`
	Days           []int  `json:"days"` // ascending; first day keeps the landmark
}

// ConflictReport is the duplicate-detection output consumed by selective
// regeneration.
type ConflictReport struct {
	Conflicts []Conflict `json:"conflicts"`
}

func (r ConflictReport) Empty() bool { return len(r.Conflicts) == 0 }

// DaysToRegenerate returns the minimal day set that clears every conflict:
// the first occurrence of each name is kept, later occurrences regenerate.
func (r ConflictReport) DaysToRegenerate() []int {
	seen := make(map[int]bool)
	var out []int
	for _, c := range r.Conflicts {
		for _, day := range c.Days[1:] {
			if !seen[day] {
				seen[day] = true
				out = append(out, day)
			}
		}
	}
	return out
}
