package projects

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
)

// Plan is the pricing tier a project runs under.
type Plan string

const (
	PlanPersonal Plan = "personal"
	PlanCreator  Plan = "creator"
	PlanBusiness Plan = "business"
)

// Project is a row of the hosted projects table, always scoped to the user
// that owns the current session.
type Project struct {
	ID          uuid.UUID         `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Plan        Plan              `json:"plan"`
	SocialLinks map[string]string `json:"social_links,omitempty"`
	UserID      uuid.UUID         `json:"user_id"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Input is the caller-supplied portion of a project. Normalize before
// validating: trimming and social-link stripping happen there.
type Input struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Plan        Plan              `json:"plan"`
	SocialLinks map[string]string `json:"social_links"`
}

func (i Input) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.Name, validation.Required, validation.RuneLength(1, 120)),
		validation.Field(&i.Description, validation.RuneLength(0, 2000)),
		validation.Field(&i.Plan, validation.Required, validation.In(PlanPersonal, PlanCreator, PlanBusiness)),
	)
}

// normalized trims the text fields and strips empty social-link values. An
// all-empty link map collapses to nil so it is stored as NULL, not {}.
func (i Input) normalized() Input {
	i.Name = strings.TrimSpace(i.Name)
	i.Description = strings.TrimSpace(i.Description)
	i.SocialLinks = cleanSocialLinks(i.SocialLinks)
	return i
}

func cleanSocialLinks(links map[string]string) map[string]string {
	if len(links) == 0 {
		return nil
	}

	out := make(map[string]string, len(links))
	for name, url := range links {
		url = strings.TrimSpace(url)
		if url == "" {
			continue
		}
		out[name] = url
	}

	if len(out) == 0 {
		return nil
	}
	return out
}
