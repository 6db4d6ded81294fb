package cli

import (
	"net/url"
	"strings"

	"github.com/dmitrijs2005/folio/internal/client/models"
)

// form is the editable state of a record before it is submitted.
type form struct {
	Title, Description, Tags     string
	Link, LiveLink, RepoLink     string
	TechStack, ImageURL, ImgPath string
}

func formFromRecord(r models.Record) form {
	return form{
		Title:       r.Title,
		Description: r.Description,
		Tags:        strings.Join(r.Tags, ", "),
		Link:        r.Link,
		LiveLink:    r.LiveLink,
		RepoLink:    r.RepoLink,
		TechStack:   r.TechStack,
		ImageURL:    r.ImageURL,
	}
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// validate checks f for collection the same way the server will, so a bad
// form never costs an upload or a round trip.
func (f form) validate(collection string) error {
	errs := fieldErrors{}
	if strings.TrimSpace(f.Title) == "" {
		errs["title"] = "Title is required"
	}
	if strings.TrimSpace(f.Description) == "" {
		errs["description"] = "Description is required"
	}

	switch collection {
	case models.LatestWorks:
		if strings.TrimSpace(f.Link) == "" {
			errs["link"] = "Link is required"
		}
	case models.Projects:
		if f.ImageURL == "" && f.ImgPath == "" {
			errs["image"] = "Please upload an image"
		}
	}

	for field, v := range map[string]string{
		"link":     f.Link,
		"liveLink": f.LiveLink,
		"repoLink": f.RepoLink,
		"imageUrl": f.ImageURL,
	} {
		if v != "" && !isHTTPURL(v) {
			if _, dup := errs[field]; !dup {
				errs[field] = "Must be a full http(s) URL"
			}
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// fields lists what the collection's form asks for after the common ones.
func extraFields(collection string) []string {
	switch collection {
	case models.LatestWorks:
		return []string{"link"}
	case models.Projects:
		return []string{"liveLink", "repoLink", "techStack"}
	}
	return nil
}

func (f *form) field(name string) *string {
	switch name {
	case "link":
		return &f.Link
	case "liveLink":
		return &f.LiveLink
	case "repoLink":
		return &f.RepoLink
	case "techStack":
		return &f.TechStack
	}
	return nil
}

// input builds the request body. Only fields that differ from base are set,
// so an edit sends a minimal patch; a create passes an empty base.
func (f form) input(collection string, base form) models.RecordInput {
	var in models.RecordInput
	set := func(dst **string, v, old string) {
		if v != old {
			v := v
			*dst = &v
		}
	}
	set(&in.Title, f.Title, base.Title)
	set(&in.Description, f.Description, base.Description)
	set(&in.Tags, f.Tags, base.Tags)
	set(&in.ImageURL, f.ImageURL, base.ImageURL)
	for _, name := range extraFields(collection) {
		switch name {
		case "link":
			set(&in.Link, f.Link, base.Link)
		case "liveLink":
			set(&in.LiveLink, f.LiveLink, base.LiveLink)
		case "repoLink":
			set(&in.RepoLink, f.RepoLink, base.RepoLink)
		case "techStack":
			set(&in.TechStack, f.TechStack, base.TechStack)
		}
	}
	return in
}

var fieldLabels = map[string]string{
	"link":      "Link",
	"liveLink":  "Live demo URL",
	"repoLink":  "Repository URL",
	"techStack": "Tech stack",
}
