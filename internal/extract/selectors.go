package extract

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
)

// SelectorVersion names the built-in selector set.
const SelectorVersion = "v1"

// Selectors holds every structural marker of the target directory. The
// semantic rules ("value under the Industry label") are code; these strings
// are the part expected to drift when the site's markup changes.
type Selectors struct {
	Version string `mapstructure:"version"`

	// Listing pages.
	ListingLink     string `mapstructure:"listing_link"`
	ListingLinkText string `mapstructure:"listing_link_text"`
	NextPage        string `mapstructure:"next_page"`

	// Profile pages.
	ProfileReady       string   `mapstructure:"profile_ready"`
	NameCandidates     []string `mapstructure:"name_candidates"`
	NameStoplist       []string `mapstructure:"name_stoplist"`
	NameLabel          string   `mapstructure:"name_label"`
	LabeledValue       string   `mapstructure:"labeled_value"`
	EmailBlock         string   `mapstructure:"email_block"`
	PhoneBlocks        string   `mapstructure:"phone_blocks"`
	LinkedInAnchor     string   `mapstructure:"linkedin_anchor"`
	ClassYearLabel     string   `mapstructure:"class_year_label"`
	ClassYearContainer string   `mapstructure:"class_year_container"`
	ClassPhraseBlocks  string   `mapstructure:"class_phrase_blocks"`
	ExperienceEntry    string   `mapstructure:"experience_entry"`
	IndustryLabel      string   `mapstructure:"industry_label"`
	LocationLabel      string   `mapstructure:"location_label"`
	LocationContainer  string   `mapstructure:"location_container"`
}

// DefaultSelectors returns the v1 selector set.
func DefaultSelectors() Selectors {
	return Selectors{
		Version:         SelectorVersion,
		ListingLink:     "a[href*='/users/']",
		ListingLinkText: "Go to profile",
		NextPage:        "a[rel='next'], button[aria-label='Next page'], [data-testid='pagination-next']",

		ProfileReady: "[data-testid='display-attribute-email']",
		NameCandidates: []string{
			"h1[data-testid='profile-name']",
			"[data-testid='profile-name']",
			"[data-testid='member-name']",
			"h3.sc-braxZu.DwTMa",
			"header h1",
			"main h1",
			"h1",
			"h2",
		},
		NameStoplist: []string{
			"princeton information",
			"contact",
			"experience",
			"education",
			"about",
		},
		NameLabel:          "full name",
		LabeledValue:       "[data-testid='display-attribute-simple-string']",
		EmailBlock:         "[data-testid='display-attribute-email']",
		PhoneBlocks:        "[data-testid*='phone'], a[href^='tel:']",
		LinkedInAnchor:     "a[href*='linkedin.com/in/']",
		ClassYearLabel:     "class year",
		ClassYearContainer: "[data-testid='display-attribute-class-year']",
		ClassPhraseBlocks:  "header, main p, main span, [data-testid='profile-summary']",
		ExperienceEntry:    "[data-testid='experience-entry'] span",
		IndustryLabel:      "industry",
		LocationLabel:      "location",
		LocationContainer:  "[data-testid='display-attribute-location']",
	}
}

// WithDefaults fills every empty field from DefaultSelectors so a partial
// override in configuration only replaces what it names.
func (s Selectors) WithDefaults() Selectors {
	d := DefaultSelectors()
	fill := func(dst *string, def string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = def
		}
	}
	fill(&s.Version, d.Version)
	fill(&s.ListingLink, d.ListingLink)
	fill(&s.ListingLinkText, d.ListingLinkText)
	fill(&s.NextPage, d.NextPage)
	fill(&s.ProfileReady, d.ProfileReady)
	fill(&s.NameLabel, d.NameLabel)
	fill(&s.LabeledValue, d.LabeledValue)
	fill(&s.EmailBlock, d.EmailBlock)
	fill(&s.PhoneBlocks, d.PhoneBlocks)
	fill(&s.LinkedInAnchor, d.LinkedInAnchor)
	fill(&s.ClassYearLabel, d.ClassYearLabel)
	fill(&s.ClassYearContainer, d.ClassYearContainer)
	fill(&s.ClassPhraseBlocks, d.ClassPhraseBlocks)
	fill(&s.ExperienceEntry, d.ExperienceEntry)
	fill(&s.IndustryLabel, d.IndustryLabel)
	fill(&s.LocationLabel, d.LocationLabel)
	fill(&s.LocationContainer, d.LocationContainer)
	if len(s.NameCandidates) == 0 {
		s.NameCandidates = d.NameCandidates
	}
	if len(s.NameStoplist) == 0 {
		s.NameStoplist = d.NameStoplist
	}
	return s
}

// Validate compiles every CSS selector.
func (s Selectors) Validate() error {
	named := map[string]string{
		"listing_link":         s.ListingLink,
		"next_page":            s.NextPage,
		"profile_ready":        s.ProfileReady,
		"labeled_value":        s.LabeledValue,
		"email_block":          s.EmailBlock,
		"phone_blocks":         s.PhoneBlocks,
		"linkedin_anchor":      s.LinkedInAnchor,
		"class_year_container": s.ClassYearContainer,
		"class_phrase_blocks":  s.ClassPhraseBlocks,
		"experience_entry":     s.ExperienceEntry,
		"location_container":   s.LocationContainer,
	}
	for i, sel := range s.NameCandidates {
		named[fmt.Sprintf("name_candidates[%d]", i)] = sel
	}
	for key, sel := range named {
		if _, err := cascadia.ParseGroup(sel); err != nil {
			return fmt.Errorf("selectors.%s %q: %w", key, sel, err)
		}
	}
	return nil
}
