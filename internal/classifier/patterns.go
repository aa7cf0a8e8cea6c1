package classifier

import (
	"strings"

	"github.com/parkpulse/parkpulse/internal/model"
)

// patternRule maps name substrings to a tier and category. Rules are
// checked in order; the first hit wins.
type patternRule struct {
	substrings []string
	tier       int
	category   model.RideCategory
	reason     string
}

var patternRules = []patternRule{
	// Headliner coasters and flagship dark rides.
	{
		substrings: []string{"coaster", "mountain", "tower of terror", "guardians", "velocicoaster", "rise of the resistance", "flight of passage", "hagrid"},
		tier:       1,
		category:   model.CategoryAttraction,
		reason:     "headliner name pattern",
	},
	// Shows and entertainment.
	{
		substrings: []string{"show", "theater", "theatre", "parade", "fireworks", "spectacular", "sing along", "musical"},
		tier:       3,
		category:   model.CategoryShow,
		reason:     "show name pattern",
	},
	// Character meets.
	{
		substrings: []string{"meet", "greet", "character spot", "princess fairytale hall"},
		tier:       3,
		category:   model.CategoryMeetAndGreet,
		reason:     "meet and greet name pattern",
	},
	// Kiddie and carnival flats.
	{
		substrings: []string{"carousel", "carrousel", "teacups", "tea party", "playground", "play area", "train station", "railway", "railroad"},
		tier:       3,
		category:   model.CategoryAttraction,
		reason:     "minor attraction name pattern",
	},
	// Walkthroughs and exhibits.
	{
		substrings: []string{"walkthrough", "walk through", "exhibit", "gallery", "treehouse"},
		tier:       3,
		category:   model.CategoryExperience,
		reason:     "walkthrough name pattern",
	},
}

// matchPattern classifies by name substring. The input must already be
// normalized.
func matchPattern(normName string) (*Result, bool) {
	for _, rule := range patternRules {
		for _, sub := range rule.substrings {
			if strings.Contains(normName, sub) {
				return &Result{
					Tier:       rule.tier,
					Category:   rule.category,
					Method:     model.MethodPattern,
					Confidence: 0.75,
					Reasoning:  rule.reason + ": " + sub,
				}, true
			}
		}
	}
	return nil, false
}
