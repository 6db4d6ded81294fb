package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/dmitrijs2005/folio/internal/client/models"
)

func (a *App) Stats(ctx context.Context) error {
	return a.gate.Guard(func() error {
		r, err := a.content.Analytics(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintln(a.out, "Last 30 days")
		tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "Active users\t%d\n", r.ActiveUsers)
		fmt.Fprintf(tw, "Page views\t%d\n", r.PageViews)
		fmt.Fprintf(tw, "Avg. session\t%d min\n", r.AvgSessionDuration)
		if err := tw.Flush(); err != nil {
			return err
		}

		a.printValues("Top locations", r.TopLocations)
		a.printValues("Devices", r.DeviceUsage)
		a.printValues("Traffic sources", r.TrafficSources)
		return nil
	})
}

func (a *App) printValues(title string, vs []models.NamedValue) {
	fmt.Fprintf(a.out, "\n%s\n", title)
	if len(vs) == 0 {
		fmt.Fprintln(a.out, "  (no data)")
		return
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, v := range vs {
		fmt.Fprintf(tw, "  %s\t%d\n", v.Name, v.Value)
	}
	_ = tw.Flush()
}
