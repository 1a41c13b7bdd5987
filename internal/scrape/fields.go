package scrape

import (
	"strings"

	"github.com/tebita/sidekick/internal/domain"
)

// firstText evaluates the candidate selectors in order under root and
// returns the first non-empty trimmed text match, or nil when every
// strategy misses. Missing optional data is never an error.
func firstText(root Node, selectors []string) *string {
	for _, sel := range selectors {
		n, ok := root.First(sel)
		if !ok {
			continue
		}
		if text := strings.TrimSpace(n.Text()); text != "" {
			return &text
		}
	}
	return nil
}

// textOrEmpty is firstText degraded to "" for list-entry sub-fields.
func textOrEmpty(root Node, selectors []string) string {
	if s := firstText(root, selectors); s != nil {
		return *s
	}
	return ""
}

// assignScalar routes one extracted value to its field. A nil value lands
// as-is: missing scalars stay null.
func assignScalar(p *domain.Profile, name string, v *string) {
	switch name {
	case "name":
		p.Name = v
	case "location":
		p.Location = v
	case "role":
		p.Role = v
	case "hourlyRate":
		p.HourlyRate = v
	case "about":
		p.About = v
	}
}

func extractSkills(doc Document) []string {
	var skills []string
	for _, n := range doc.All(skillsItemSelector) {
		if s := strings.TrimSpace(n.Text()); s != "" {
			skills = append(skills, s)
		}
	}
	if skills == nil {
		return []string{}
	}
	return skills
}

func extractCertifications(doc Document) []string {
	var certs []string
	for _, wrapper := range doc.All(certificationsSelector) {
		if name := textOrEmpty(wrapper, certificationNameSelectors); name != "" {
			certs = append(certs, name)
		}
	}
	if certs == nil {
		return []string{}
	}
	return certs
}

func extractWorkHistory(doc Document) []domain.WorkHistoryEntry {
	entries := []domain.WorkHistoryEntry{}
	for _, card := range doc.All(workHistorySelector) {
		entries = append(entries, domain.WorkHistoryEntry{
			Title:    textOrEmpty(card, workHistoryTitleSelectors),
			Rating:   textOrEmpty(card, workHistoryRatingSelectors),
			Feedback: textOrEmpty(card, workHistoryFeedbackSelectors),
		})
	}
	return entries
}

// extractExperience drops entries missing both title and description: a
// card with neither is layout noise, not data.
func extractExperience(doc Document) []domain.ExperienceEntry {
	entries := []domain.ExperienceEntry{}
	for _, card := range doc.All(experienceSelector) {
		e := domain.ExperienceEntry{
			Title:       textOrEmpty(card, experienceTitleSelectors),
			Description: textOrEmpty(card, experienceDescriptionSelectors),
		}
		if e.Title == "" && e.Description == "" {
			continue
		}
		entries = append(entries, e)
	}
	return entries
}
