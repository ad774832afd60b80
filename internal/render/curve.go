package render

import (
	"errors"
	"fmt"
	"io"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"epigrid/internal/sim"
)

// Curve renders the per-state counts over time as a PNG line chart. States
// that never hold an agent are left out.
func Curve(w io.Writer, snaps []sim.Snapshot) error {
	if len(snaps) < 2 {
		return errors.New("epidemic curve needs at least two snapshots")
	}

	steps := make([]float64, len(snaps))
	for i, snap := range snaps {
		steps[i] = float64(snap.Step)
	}

	var series []chart.Series
	for _, state := range sim.HealthStates() {
		values := make([]float64, len(snaps))
		seen := false
		for i, snap := range snaps {
			n := snap.Counts.Get(state)
			values[i] = float64(n)
			seen = seen || n > 0
		}
		if !seen {
			continue
		}
		c := ColorOf(state.Color())
		series = append(series, chart.ContinuousSeries{
			Name:    state.String(),
			XValues: steps,
			YValues: values,
			Style: chart.Style{
				StrokeColor: drawing.Color{R: c.R, G: c.G, B: c.B, A: c.A},
				StrokeWidth: 2.0,
			},
		})
	}

	graph := chart.Chart{
		Title:  "Epidemic curve",
		Width:  900,
		Height: 400,
		XAxis: chart.XAxis{
			Name:  "step",
			Style: chart.Style{FontSize: 10.0},
			ValueFormatter: func(v interface{}) string {
				return fmt.Sprintf("%d", int(v.(float64)))
			},
		},
		YAxis: chart.YAxis{
			Name:  "agents",
			Style: chart.Style{FontSize: 10.0},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render epidemic curve: %w", err)
	}
	return nil
}
