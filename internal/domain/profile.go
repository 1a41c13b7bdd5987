// Package domain contains core domain types for the Sidekick application.
package domain

// WorkHistoryEntry is one completed contract card from the freelancer profile.
type WorkHistoryEntry struct {
	Title    string `json:"projectTitle"`
	Rating   string `json:"rating"`
	Feedback string `json:"feedback"`
}

// ExperienceEntry is one employment-history card from the freelancer profile.
type ExperienceEntry struct {
	Title       string `json:"titleCompany"`
	Description string `json:"description"`
}

// Profile is one harvested snapshot of a freelancer profile page.
//
// Every field is independently nullable: a nil scalar or nil list means the
// section was missing (or timed out) on the page, and never invalidates the
// rest of the record. A non-nil empty list means the section rendered but
// held no usable entries.
type Profile struct {
	Name           *string            `json:"name"`
	Location       *string            `json:"location"`
	About          *string            `json:"about"`
	HourlyRate     *string            `json:"hourlyRate"`
	Role           *string            `json:"role"`
	Skills         []string           `json:"skills"`
	Certifications []string           `json:"certifications"`
	WorkHistory    []WorkHistoryEntry `json:"workHistory"`
	Experience     []ExperienceEntry  `json:"experience"`
}

// Clone returns a deep copy of the profile. Nil receiver yields nil.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := &Profile{
		Name:       cloneString(p.Name),
		Location:   cloneString(p.Location),
		About:      cloneString(p.About),
		HourlyRate: cloneString(p.HourlyRate),
		Role:       cloneString(p.Role),
	}
	if p.Skills != nil {
		c.Skills = append([]string(nil), p.Skills...)
	}
	if p.Certifications != nil {
		c.Certifications = append([]string(nil), p.Certifications...)
	}
	if p.WorkHistory != nil {
		c.WorkHistory = append([]WorkHistoryEntry(nil), p.WorkHistory...)
	}
	if p.Experience != nil {
		c.Experience = append([]ExperienceEntry(nil), p.Experience...)
	}
	return c
}

// Merge combines a freshly extracted record into an existing profile.
// Non-nil fields of next win; nil fields of next retain the prior value.
// Neither argument is mutated.
func Merge(prev, next *Profile) *Profile {
	if next == nil {
		return prev.Clone()
	}
	if prev == nil {
		return next.Clone()
	}
	merged := prev.Clone()
	n := next.Clone()
	if n.Name != nil {
		merged.Name = n.Name
	}
	if n.Location != nil {
		merged.Location = n.Location
	}
	if n.About != nil {
		merged.About = n.About
	}
	if n.HourlyRate != nil {
		merged.HourlyRate = n.HourlyRate
	}
	if n.Role != nil {
		merged.Role = n.Role
	}
	if n.Skills != nil {
		merged.Skills = n.Skills
	}
	if n.Certifications != nil {
		merged.Certifications = n.Certifications
	}
	if n.WorkHistory != nil {
		merged.WorkHistory = n.WorkHistory
	}
	if n.Experience != nil {
		merged.Experience = n.Experience
	}
	return merged
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// JobDetails is the captured job-posting block used for letter generation.
type JobDetails struct {
	HTML      string `json:"jobDetailsHtml"`
	URL       string `json:"url"`
	Timestamp string `json:"timestamp"`
}
