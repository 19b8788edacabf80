// Package render draws the delay windows of a sampler snapshot.
package render

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/czerwonk/delay_tracker/sampler"
	"github.com/samber/lo"
	chart "github.com/wcharczuk/go-chart/v2"
)

// ErrNoData is returned as long as there are not enough samples to draw lines.
var ErrNoData = errors.New("not enough samples to draw")

const (
	xLabels = 15
	yLabels = 5
)

// Chart renders snapshots as PNG line charts.
type Chart struct {
	Title  string
	Width  int
	Height int
}

// NewChart returns a chart with the default size.
func NewChart() *Chart {
	return &Chart{
		Title:  "Network Delay",
		Width:  450,
		Height: 300,
	}
}

// Render writes a PNG showing one line per target, oldest sample left.
func (c *Chart) Render(w io.Writer, snap sampler.Snapshot) error {
	for _, s := range snap.Series {
		if len(s) < 2 {
			return ErrNoData
		}
	}
	if len(snap.Series) == 0 {
		return ErrNoData
	}

	ch := chart.Chart{
		Title:      c.Title,
		Width:      c.Width,
		Height:     c.Height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 10, Right: 10, Bottom: 10}},
		XAxis: chart.XAxis{
			Name:  "t",
			Range: &chart.ContinuousRange{Min: 0, Max: math.Max(1, float64(snap.Capacity-1))},
			Ticks: timeTicks(snap),
		},
		YAxis: chart.YAxis{
			Name:  "Delay [ms]",
			Range: &chart.ContinuousRange{Min: 0, Max: float64(snap.Max)},
			Ticks: delayTicks(snap.Max),
		},
		Series: make([]chart.Series, 0, len(snap.Series)),
	}

	for i, s := range snap.Series {
		ch.Series = append(ch.Series, chart.ContinuousSeries{
			Name: fmt.Sprintf("Host %s", snap.Targets[i]),
			Style: chart.Style{
				StrokeColor: chart.GetDefaultColor(i),
				StrokeWidth: 2,
			},
			XValues: lo.Map(s, func(_ uint32, idx int) float64 { return float64(idx) }),
			YValues: lo.Map(s, func(v uint32, _ int) float64 { return float64(v) }),
		})
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("could not render chart: %w", err)
	}

	return nil
}

// timeTicks labels the x axis in seconds relative to now, the oldest
// position of a full window is -(window duration).
func timeTicks(snap sampler.Snapshot) []chart.Tick {
	capacity := max(snap.Capacity, 1)
	step := max(1, int(math.Ceil(float64(capacity)/xLabels)))
	length := snap.Duration().Seconds()

	ticks := make([]chart.Tick, 0, xLabels+1)
	for i := 0; i < capacity; i += step {
		v := -length + float64(i)*snap.Interval.Seconds()
		ticks = append(ticks, chart.Tick{Value: float64(i), Label: fmt.Sprintf("%g", v)})
	}

	return ticks
}

func delayTicks(maxMs uint32) []chart.Tick {
	ticks := make([]chart.Tick, 0, yLabels+1)
	for i := 0; i <= yLabels; i++ {
		v := float64(maxMs) * float64(i) / yLabels
		ticks = append(ticks, chart.Tick{Value: v, Label: fmt.Sprintf("%dms", uint32(v))})
	}

	return ticks
}
