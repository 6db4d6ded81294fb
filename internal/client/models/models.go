// Package models defines the client-side view of folio API resources.
package models

import "time"

const RoleAdmin = "admin"

// Collection names as used in API paths.
const (
	CaseStudies = "case_studies"
	LatestWorks = "latest_works"
	Projects    = "projects"
)

// Collections lists every collection in display order.
var Collections = []string{CaseStudies, LatestWorks, Projects}

type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

type Profile struct {
	UID         string    `json:"uid"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"createdAt"`
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type Session struct {
	TokenPair
	Identity Identity `json:"identity"`
}

type Record struct {
	ID          string    `json:"id"`
	Collection  string    `json:"collection"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
	Category    string    `json:"category"`
	ImageURL    string    `json:"imageUrl"`
	Link        string    `json:"link"`
	LiveLink    string    `json:"liveLink"`
	RepoLink    string    `json:"repoLink"`
	TechStack   string    `json:"techStack"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// RecordInput is the body of create and update requests. Nil fields are
// left out of updates.
type RecordInput struct {
	Title           *string `json:"title,omitempty"`
	Description     *string `json:"description,omitempty"`
	Tags            *string `json:"tags,omitempty"`
	ImageURL        *string `json:"imageUrl,omitempty"`
	Link            *string `json:"link,omitempty"`
	LiveLink        *string `json:"liveLink,omitempty"`
	RepoLink        *string `json:"repoLink,omitempty"`
	TechStack       *string `json:"techStack,omitempty"`
	ExpectedVersion *int64  `json:"expectedVersion,omitempty"`
}

type NamedValue struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

type Report struct {
	ActiveUsers        int64        `json:"activeUsers"`
	PageViews          int64        `json:"pageViews"`
	AvgSessionDuration int64        `json:"avgSessionDuration"`
	TopLocations       []NamedValue `json:"topLocations"`
	DeviceUsage        []NamedValue `json:"deviceUsage"`
	TrafficSources     []NamedValue `json:"trafficSources"`
}
