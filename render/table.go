package render

import (
	"fmt"
	"io"

	"github.com/czerwonk/delay_tracker/sampler"
	"github.com/jedib0t/go-pretty/v6/table"
)

// Table writes the newest sample of every target as a console table.
func Table(w io.Writer, snap sampler.Snapshot) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.SetTitle(fmt.Sprintf("tick %d, scale %dms", snap.Epoch, snap.Max))

	t.AppendHeader(table.Row{"#", "Host", "Last", "Samples", "Failures"})
	for i, target := range snap.Targets {
		last := "-"
		if v, ok := snap.Last(i); ok {
			last = fmt.Sprintf("%dms", v)
		}

		var failures uint64
		if i < len(snap.Failures) {
			failures = snap.Failures[i]
		}

		t.AppendRow(table.Row{
			i,
			target,
			last,
			fmt.Sprintf("%d/%d", len(snap.Series[i]), snap.Capacity),
			failures,
		})
	}

	t.Render()
}
