package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/folio/internal/client/client"
	"github.com/dmitrijs2005/folio/internal/client/models"
)

// readFile is a test seam for os.ReadFile.
var readFile = os.ReadFile

func parseCollection(s string) (string, error) {
	c := strings.ReplaceAll(strings.ToLower(s), "-", "_")
	for _, known := range models.Collections {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown collection %q (case-studies, latest-works, projects)", s)
}

func (a *App) List(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("list <collection>")
	}
	c, err := parseCollection(args[0])
	if err != nil {
		return err
	}
	return a.printList(ctx, c)
}

func (a *App) printList(ctx context.Context, collection string) error {
	records, err := a.content.List(ctx, collection)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(a.out, "No records yet.")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tTAGS\tIMAGE")
	for _, r := range records {
		img := "-"
		if r.ImageURL != "" {
			img = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Title, strings.Join(r.Tags, ", "), img)
	}
	return tw.Flush()
}

// clearValue typed at a prompt empties the field instead of keeping it.
const clearValue = "-"

func (a *App) prompt(label, current string) (string, error) {
	if current != "" {
		label = fmt.Sprintf("%s [%s] (%s to clear)", label, current, clearValue)
	}
	v, err := getSimpleText(a.reader, label, a.out)
	if err != nil {
		return "", err
	}
	switch v {
	case "":
		return current, nil
	case clearValue:
		return "", nil
	}
	return v, nil
}

// fill prompts for every field of collection, starting from f.
func (a *App) fill(collection string, f form) (form, error) {
	var err error
	if f.Title, err = a.prompt("Title", f.Title); err != nil {
		return f, err
	}
	if f.Description, err = a.prompt("Description", f.Description); err != nil {
		return f, err
	}
	if f.Tags, err = a.prompt("Tags (comma separated)", f.Tags); err != nil {
		return f, err
	}
	for _, name := range extraFields(collection) {
		p := f.field(name)
		if *p, err = a.prompt(fieldLabels[name], *p); err != nil {
			return f, err
		}
	}
	label := "Image file (empty to keep)"
	if f.ImageURL != "" {
		label = fmt.Sprintf("Image file (empty to keep, %s to remove)", clearValue)
	}
	path, err := getSimpleText(a.reader, label, a.out)
	if err != nil {
		return f, err
	}
	switch path {
	case "":
	case clearValue:
		f.ImageURL = ""
	default:
		f.ImgPath = path
	}
	return f, nil
}

// uploadIfNeeded compresses and stores the chosen image. The session is
// marked as uploading until it finishes and nothing is submitted meanwhile.
func (a *App) uploadIfNeeded(ctx context.Context, collection string, f *form) error {
	if f.ImgPath == "" {
		return nil
	}
	data, err := readFile(f.ImgPath)
	if err != nil {
		return fieldErrors{"image": err.Error()}
	}

	a.uploading = true
	fmt.Fprintln(a.out, "Uploading…")
	url, err := a.content.UploadImage(ctx, collection, filepath.Base(f.ImgPath), data)
	a.uploading = false
	if err != nil {
		return err
	}

	f.ImageURL = url
	f.ImgPath = ""
	return nil
}

func (a *App) Add(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("add <collection>")
	}
	c, err := parseCollection(args[0])
	if err != nil {
		return err
	}

	return a.gate.Guard(func() error {
		f, err := a.fill(c, form{})
		if err != nil {
			return err
		}
		if err := f.validate(c); err != nil {
			return err
		}
		if err := a.uploadIfNeeded(ctx, c, &f); err != nil {
			return err
		}

		rec, err := a.content.Create(ctx, c, f.input(c, form{}))
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Created %s.\n", rec.ID)
		return a.printList(ctx, c)
	})
}

func (a *App) find(ctx context.Context, collection, id string) (models.Record, error) {
	records, err := a.content.List(ctx, collection)
	if err != nil {
		return models.Record{}, err
	}
	for _, r := range records {
		if r.ID == id {
			return r, nil
		}
	}
	return models.Record{}, fmt.Errorf("no record %s in %s", id, collection)
}

func (a *App) Edit(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usageError("edit <collection> <id>")
	}
	c, err := parseCollection(args[0])
	if err != nil {
		return err
	}

	return a.gate.Guard(func() error {
		rec, err := a.find(ctx, c, args[1])
		if err != nil {
			return err
		}
		base := formFromRecord(rec)

		f, err := a.fill(c, base)
		if err != nil {
			return err
		}
		if err := f.validate(c); err != nil {
			return err
		}
		if err := a.uploadIfNeeded(ctx, c, &f); err != nil {
			return err
		}

		in := f.input(c, base)
		version := rec.Version
		in.ExpectedVersion = &version

		if _, err := a.content.Update(ctx, c, rec.ID, in); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Saved.")
		return a.printList(ctx, c)
	})
}

func (a *App) Delete(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usageError("delete <collection> <id>")
	}
	c, err := parseCollection(args[0])
	if err != nil {
		return err
	}

	return a.gate.Guard(func() error {
		answer, err := getSimpleText(a.reader, fmt.Sprintf("Delete %s? (y/N)", args[1]), a.out)
		if err != nil {
			return err
		}
		if !strings.EqualFold(answer, "y") {
			fmt.Fprintln(a.out, "Cancelled.")
			return nil
		}

		if err := a.content.Delete(ctx, c, args[1]); err != nil {
			var apiErr *client.APIError
			if errors.As(err, &apiErr) && apiErr.Code == "image_cleanup_failed" {
				fmt.Fprintln(a.out, "The image could not be removed, so the record was kept. Try deleting again.")
				return nil
			}
			return err
		}
		fmt.Fprintln(a.out, "Deleted.")
		return a.printList(ctx, c)
	})
}

func (a *App) Upload(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usageError("upload <collection> <file>")
	}
	c, err := parseCollection(args[0])
	if err != nil {
		return err
	}

	return a.gate.Guard(func() error {
		f := form{ImgPath: args[1]}
		if err := a.uploadIfNeeded(ctx, c, &f); err != nil {
			return err
		}
		fmt.Fprintln(a.out, f.ImageURL)
		return nil
	})
}
