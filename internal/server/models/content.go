package models

import "time"

// Collection names one of the content collections.
type Collection string

const (
	CaseStudies Collection = "case_studies"
	LatestWorks Collection = "latest_works"
	Projects    Collection = "projects"
)

// Collections lists every known collection.
var Collections = []Collection{CaseStudies, LatestWorks, Projects}

// ParseCollection returns the collection named s, if it exists.
func ParseCollection(s string) (Collection, bool) {
	for _, c := range Collections {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// HasTags reports whether records of c carry a tag list.
func (c Collection) HasTags() bool { return c == CaseStudies || c == Projects }

// RequiresImage reports whether records of c must reference an image.
func (c Collection) RequiresImage() bool { return c == Projects }

// ContentRecord is a single item in one of the collections. At most one
// image object belongs to a record and it is referenced by URL only.
type ContentRecord struct {
	ID          string
	Collection  Collection
	Title       string
	Description string
	Tags        []string
	Category    string
	TechStack   string
	Link        string
	LiveLink    string
	RepoLink    string
	ImageURL    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Version     int64
}

// Orphan is a stored object scheduled for removal, typically an image
// replaced by a record update.
type Orphan struct {
	ID        int64
	URL       string
	Attempts  int
	LastError string
	CreatedAt time.Time
}

// PageView is a single beacon from the public site.
type PageView struct {
	Path       string
	SessionID  string
	Country    string
	Device     string
	Source     string
	DurationMS int64
	CreatedAt  time.Time
}
