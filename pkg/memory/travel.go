package memory

import (
	"regexp"
	"strconv"
	"strings"
)

// keywordSet maps a bucket label to the phrases that select it. Slices keep
// evaluation order stable so first-inserted tie-breaking is reproducible.
type keywordSet struct {
	bucket   string
	keywords []string
}

var travelKeywords = []string{
	"destination", "trip", "travel", "visit", "tour", "vacation",
	"hotel", "flight", "accommodation", "budget", "itinerary",
	"culture", "food", "restaurant", "attraction", "museum",
	"beach", "mountain", "city", "country", "passport", "visa",
}

var destinationSets = []keywordSet{
	{"paris", []string{"paris", "france", "eiffel", "louvre"}},
	{"rome", []string{"rome", "italy", "colosseum", "vatican"}},
	{"tokyo", []string{"tokyo", "japan", "shibuya", "mount fuji"}},
	{"london", []string{"london", "uk", "big ben", "tower bridge"}},
	{"dubai", []string{"dubai", "uae", "burj khalifa", "emirates"}},
	{"cairo", []string{"cairo", "egypt", "pyramids", "sphinx"}},
	{"new_york", []string{"new york", "nyc", "manhattan", "statue of liberty"}},
	{"barcelona", []string{"barcelona", "spain", "sagrada familia", "gaudi"}},
	{"istanbul", []string{"istanbul", "turkey", "hagia sophia", "bosphorus"}},
	{"bali", []string{"bali", "indonesia", "ubud", "temple"}},
}

var seasonSets = []keywordSet{
	{"summer", []string{"summer", "june", "july", "august", "hot", "beach"}},
	{"winter", []string{"winter", "december", "january", "february", "snow", "ski"}},
	{"spring", []string{"spring", "march", "april", "may", "flowers", "mild"}},
	{"fall", []string{"fall", "autumn", "september", "october", "november"}},
}

var culturalSets = []keywordSet{
	{"history", []string{"history", "historical", "ancient", "museum", "heritage"}},
	{"food", []string{"food", "cuisine", "restaurant", "culinary", "dish"}},
	{"art", []string{"art", "gallery", "painting", "sculpture", "exhibition"}},
	{"music", []string{"music", "concert", "festival", "performance"}},
	{"local", []string{"local", "authentic", "traditional", "cultural", "customs"}},
	{"architecture", []string{"architecture", "building", "cathedral", "temple"}},
	{"nature", []string{"nature", "landscape", "scenic", "park", "wildlife"}},
}

var accommodationSets = []keywordSet{
	{"luxury_hotel", []string{"luxury", "five star", "5 star", "upscale", "premium"}},
	{"mid_hotel", []string{"hotel", "comfortable", "clean", "good"}},
	{"hostel", []string{"hostel", "budget accommodation", "shared"}},
	{"airbnb", []string{"airbnb", "apartment", "rental", "home stay"}},
	{"resort", []string{"resort", "all inclusive", "beach resort"}},
}

var activitySets = []keywordSet{
	{"adventure", []string{"adventure", "hiking", "climbing", "extreme", "safari"}},
	{"relaxation", []string{"relax", "spa", "beach", "peaceful", "calm"}},
	{"sightseeing", []string{"sightseeing", "tour", "attractions", "landmarks"}},
	{"shopping", []string{"shopping", "market", "mall", "souvenirs"}},
	{"nightlife", []string{"nightlife", "bars", "clubs", "party"}},
	{"nature", []string{"nature", "park", "wildlife", "scenic", "outdoors"}},
}

var amountPattern = regexp.MustCompile(`\$?\d+(?:,\d{3})*(?:\.\d{2})?`)

const (
	budgetCeiling   = 1000.0
	midRangeCeiling = 5000.0
	flexibilityStep = 0.1
)

// IsTravelRelated reports whether a message mentions any travel keyword.
func IsTravelRelated(message string) bool {
	if message == "" {
		return false
	}
	lower := strings.ToLower(message)
	for _, kw := range travelKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// matchBuckets returns every bucket of sets with at least one keyword in
// the lowercased message.
func matchBuckets(lower string, sets []keywordSet) []string {
	var out []string
	for _, set := range sets {
		for _, kw := range set.keywords {
			if strings.Contains(lower, kw) {
				out = append(out, set.bucket)
				break
			}
		}
	}
	return out
}

// parseAmounts extracts money-like numbers such as "$1,200" or "800.50".
func parseAmounts(lower string) []float64 {
	matches := amountPattern.FindAllString(lower, -1)
	out := make([]float64, 0, len(matches))
	for _, m := range matches {
		v, err := strconv.ParseFloat(strings.NewReplacer("$", "", ",", "").Replace(m), 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

// budgetCategory buckets an average amount.
func budgetCategory(avg float64) string {
	switch {
	case avg < budgetCeiling:
		return "budget"
	case avg < midRangeCeiling:
		return "mid-range"
	default:
		return "luxury"
	}
}

// travelDelta is what one message contributes to an entity's travel
// counters. Computing it is pure; applying it happens under the profile lock.
type travelDelta struct {
	buckets map[SubCategory][]string
	amounts []float64
	budget  string
	tighten bool
	loosen  bool
}

func analyzeTravel(message string) travelDelta {
	lower := strings.ToLower(message)
	delta := travelDelta{buckets: map[SubCategory][]string{
		SubDestination:   matchBuckets(lower, destinationSets),
		SubSeason:        matchBuckets(lower, seasonSets),
		SubCultural:      matchBuckets(lower, culturalSets),
		SubAccommodation: matchBuckets(lower, accommodationSets),
		SubActivity:      matchBuckets(lower, activitySets),
	}}

	delta.amounts = parseAmounts(lower)
	if len(delta.amounts) == 0 {
		return delta
	}
	sum := 0.0
	for _, a := range delta.amounts {
		sum += a
	}
	delta.budget = budgetCategory(sum / float64(len(delta.amounts)))
	delta.buckets[SubBudget] = []string{delta.budget}
	delta.tighten = strings.Contains(lower, "cheap") || strings.Contains(lower, "affordable")
	delta.loosen = strings.Contains(lower, "flexible") || strings.Contains(lower, "around")
	return delta
}
