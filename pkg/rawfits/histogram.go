package rawfits

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const histogramBins = 256

// seriesColour picks a stroke colour from a series name.
func seriesColour(name string) drawing.Color {
	switch name {
	case "R":
		return chart.ColorRed
	case "G", "G1":
		return chart.ColorAlternateGreen
	case "G2":
		return drawing.ColorFromHex("2e7d32")
	case "B":
		return chart.ColorBlue
	default:
		return chart.ColorAlternateGray
	}
}

// binnedHistogram folds the full sample histogram of channel c into
// histogramBins buckets spanning [0, g.MaxValue()].
func binnedHistogram(g *PixelGrid, c int) (xvalues, yvalues []float64) {
	full := SampleHistogram(g, c)
	maxVal := int(g.MaxValue())
	width := (maxVal + 1) / histogramBins
	if width < 1 {
		width = 1
	}
	for start := 0; start <= maxVal; start += width {
		var n uint64
		for v := start; v < start+width && v <= maxVal; v++ {
			n += full[v]
		}
		xvalues = append(xvalues, float64(start))
		yvalues = append(yvalues, float64(n))
	}
	return xvalues, yvalues
}

// histogramSeries returns one named series per displayed channel.
func histogramSeries(c *Container) []chart.Series {
	var series []chart.Series
	add := func(name string, g *PixelGrid, channel int) {
		x, y := binnedHistogram(g, channel)
		series = append(series, chart.ContinuousSeries{
			Name:    name,
			XValues: x,
			YValues: y,
			Style: chart.Style{
				StrokeColor: seriesColour(name),
			},
		})
	}

	for i, h := range c.HDUs {
		switch {
		case h.Grid.Channels == 3:
			for ch, name := range []string{"R", "G", "B"} {
				add(name, h.Grid, ch)
			}
		case h.Filter() != "":
			add(h.Filter(), h.Grid, 0)
		default:
			add(fmt.Sprintf("unit %d", i), h.Grid, 0)
		}
	}
	return series
}

// RenderHistogram draws the sample histogram of every unit as a PNG.
func RenderHistogram(c *Container, w io.Writer) error {
	primary := c.Primary()
	if primary == nil {
		return errors.New("no image units to chart")
	}

	graph := chart.Chart{
		Title:  fmt.Sprintf("%s %s (%s)", primary.CameraName(), primary.GetString(KeyObsTime), c.Mode),
		Width:  1600,
		Height: 900,
		XAxis: chart.XAxis{
			Name: "Sample value",
			Range: &chart.ContinuousRange{
				Min: 0.0,
				Max: float64(primary.Grid.MaxValue()),
			},
		},
		YAxis: chart.YAxis{
			Name: "Count",
		},
		Series: histogramSeries(c),
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return graph.Render(chart.PNG, w)
}

// WriteHistogram renders the histogram chart into a PNG file.
func WriteHistogram(c *Container, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create histogram file: %w", err)
	}
	defer f.Close()
	if err := RenderHistogram(c, f); err != nil {
		return fmt.Errorf("rendering histogram: %w", err)
	}
	return nil
}
