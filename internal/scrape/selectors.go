package scrape

// Selector tables for the freelancer profile page. Each logical field lists
// its candidate selectors in preference order; the first strategy with a
// non-empty text match wins. The tables are data, not control flow, so a
// page tweak only ever touches this file.

// AnchorSelector confirms the profile page has rendered enough to extract.
// Its absence within the long deadline means this is not the expected page.
const AnchorSelector = `h2[itemprop="name"]`

// fieldSpec is one scalar field with its ordered fallback selectors.
type fieldSpec struct {
	name      string
	selectors []string
}

var scalarFields = []fieldSpec{
	{name: "name", selectors: []string{`h2[itemprop="name"]`}},
	{name: "location", selectors: []string{`span.d-inline-block.vertical-align-middle.ellipsis`}},
	{name: "role", selectors: []string{`h2.mb-0.h4`}},
	{name: "hourlyRate", selectors: []string{`h3.my-6x.h5`}},
	{name: "about", selectors: []string{`span.text-pre-line.break`}},
}

const (
	skillsRootSelector = `ul.d-flex.list-unstyled.flex-wrap-wrap.mb-0.air3-token-wrap`
	skillsItemSelector = skillsRootSelector + ` li .skill-name`

	certificationsSelector = `div[data-testid="certificate-wrapper"]`

	workHistorySelector = `.assignments-item.air3-card-section.py-0.legacy`

	experienceSelector = `section.air3-card-section, .air3-card-section.px-0`
)

var certificationNameSelectors = []string{`h4`, `strong`, `span`}

var (
	workHistoryTitleSelectors = []string{
		`h4`,
		`h3`,
		`.text-base.mb-2x`,
		`.job-title-selector`,
	}
	workHistoryRatingSelectors = []string{`.air3-rating-value-text`}
	workHistoryFeedbackSelectors = []string{
		`[id^="air3-truncation-"]`,
		`.break`,
	}
)

var (
	experienceTitleSelectors = []string{
		`h4[role="presentation"]`,
		`h4.my-0`,
	}
	experienceDescriptionSelectors = []string{
		`.air3-line-clamp-wrapper`,
		`[data-ev-sublocation="line_clamp"]`,
	}
)

// JobDetailsSelectors locate the job-posting block on an opening page, in
// preference order.
var JobDetailsSelectors = []string{
	`section[data-test="job-details"]`,
	`.job-details-content`,
	`.air3-card-section.job-details`,
}
