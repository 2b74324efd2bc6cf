// Package report renders iteration-count distributions as go-echarts HTML.
package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/backkem/dragonfly-go/sidechannel"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// Series is one named distribution in a chart
type Series struct {
	Name string
	Dist *sidechannel.Distribution
}

// axis returns every iteration count between the smallest and largest
// observed value, so gaps show as empty bars.
func axis(series []Series) []int {
	var lo, hi int
	empty := true
	for _, s := range series {
		for _, v := range s.Dist.Values() {
			if empty || v < lo {
				lo = v
			}
			if empty || v > hi {
				hi = v
			}
			empty = false
		}
	}
	if empty {
		return nil
	}
	var out []int
	for v := lo; v <= hi; v++ {
		out = append(out, v)
	}
	return out
}

func toBarItems(dist *sidechannel.Distribution, xs []int) []opts.BarData {
	out := make([]opts.BarData, len(xs))
	for i, x := range xs {
		out[i] = opts.BarData{Value: dist.Count(x)}
	}
	return out
}

// NewHistogram builds a grouped bar chart of iteration counts
func NewHistogram(title string, series []Series) *charts.Bar {
	xs := axis(series)
	labels := make([]string, len(xs))
	for i, x := range xs {
		labels[i] = strconv.Itoa(x)
	}

	subtitle := ""
	for i, s := range series {
		if i > 0 {
			subtitle += "; "
		}
		subtitle += fmt.Sprintf("%s: n=%d, mean=%.2f", s.Name, s.Dist.Total(), s.Dist.Mean())
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "1200px", Height: "600px"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "iterations"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "count"}),
	)
	bar.SetXAxis(labels)
	for _, s := range series {
		bar.AddSeries(s.Name, toBarItems(s.Dist, xs))
	}
	bar.SetSeriesOptions(charts.WithLabelOpts(opts.Label{Show: opts.Bool(false)}))
	return bar
}

// Render writes a page holding the given charts
func Render(w io.Writer, pageTitle string, bars ...*charts.Bar) error {
	page := components.NewPage().SetPageTitle(pageTitle)
	for _, bar := range bars {
		page.AddCharts(bar)
	}
	return page.Render(w)
}
