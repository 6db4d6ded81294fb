package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/folio/internal/common"
	"github.com/dmitrijs2005/folio/internal/server/models"
	"github.com/dmitrijs2005/folio/internal/server/services"
)

type identityJSON struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	Provider    string    `json:"provider"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toIdentityJSON(i *models.Identity) identityJSON {
	return identityJSON{
		ID:          i.ID,
		Email:       i.Email,
		DisplayName: i.DisplayName,
		Provider:    i.Provider,
		CreatedAt:   i.CreatedAt,
	}
}

type sessionJSON struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	Identity     identityJSON `json:"identity"`
}

func toSessionJSON(s *services.Session) sessionJSON {
	return sessionJSON{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		Identity:     toIdentityJSON(s.Identity),
	}
}

type profileJSON struct {
	UID         string    `json:"uid"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toProfileJSON(p *models.Profile) profileJSON {
	return profileJSON{UID: p.UID, Email: p.Email, DisplayName: p.DisplayName, Role: p.Role, CreatedAt: p.CreatedAt}
}

type recordJSON struct {
	ID          string    `json:"id"`
	Collection  string    `json:"collection"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
	Category    string    `json:"category,omitempty"`
	TechStack   string    `json:"techStack,omitempty"`
	Link        string    `json:"link,omitempty"`
	LiveLink    string    `json:"liveLink,omitempty"`
	RepoLink    string    `json:"repoLink,omitempty"`
	ImageURL    string    `json:"imageUrl"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Version     int64     `json:"version"`
}

func toRecordJSON(r *models.ContentRecord) recordJSON {
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	return recordJSON{
		ID:          r.ID,
		Collection:  string(r.Collection),
		Title:       r.Title,
		Description: r.Description,
		Tags:        tags,
		Category:    r.Category,
		TechStack:   r.TechStack,
		Link:        r.Link,
		LiveLink:    r.LiveLink,
		RepoLink:    r.RepoLink,
		ImageURL:    r.ImageURL,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		Version:     r.Version,
	}
}

// tagList accepts either the raw form string "a, b" or a JSON array and
// keeps the comma-delimited form the content service normalizes.
type tagList string

func (t *tagList) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = tagList(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return fmt.Errorf("tags must be a string or an array of strings")
	}
	*t = tagList(strings.Join(list, ","))
	return nil
}

type recordRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Tags        *tagList `json:"tags"`
	Category    *string  `json:"category"`
	TechStack   *string  `json:"techStack"`
	Link        *string  `json:"link"`
	LiveLink    *string  `json:"liveLink"`
	RepoLink    *string  `json:"repoLink"`
	ImageURL    *string  `json:"imageUrl"`

	ExpectedVersion *int64 `json:"expectedVersion"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (r *recordRequest) fields() services.Fields {
	f := services.Fields{
		Title:       deref(r.Title),
		Description: deref(r.Description),
		Category:    deref(r.Category),
		TechStack:   deref(r.TechStack),
		Link:        deref(r.Link),
		LiveLink:    deref(r.LiveLink),
		RepoLink:    deref(r.RepoLink),
		ImageURL:    deref(r.ImageURL),
	}
	if r.Tags != nil {
		f.Tags = string(*r.Tags)
	}
	return f
}

func (r *recordRequest) patch() services.Patch {
	p := services.Patch{
		Title:           r.Title,
		Description:     r.Description,
		Category:        r.Category,
		TechStack:       r.TechStack,
		Link:            r.Link,
		LiveLink:        r.LiveLink,
		RepoLink:        r.RepoLink,
		ImageURL:        r.ImageURL,
		ExpectedVersion: r.ExpectedVersion,
	}
	if r.Tags != nil {
		tags := string(*r.Tags)
		p.Tags = &tags
	}
	return p
}

// decodeJSON reads a bounded JSON body into v. Malformed bodies are
// reported as validation errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return err
		}
		return fmt.Errorf("%w: malformed JSON body: %v", common.ErrorValidation, err)
	}
	return nil
}
