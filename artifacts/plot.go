package artifacts

import (
	"fmt"
	"time"

	"github.com/TheCacophonyProject/pump-monitor/ledger"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const (
	plotWidth  = 8 * vg.Inch
	plotHeight = 4 * vg.Inch
)

// PlotAmperage draws the converted current against the sample index.
func (w *Writer) PlotAmperage(stamp string, amps []float64) error {
	p := plot.New()
	p.Title.Text = "Septic Pump Run - " + stamp
	p.X.Label.Text = "Samples"
	p.Y.Label.Text = "Amps"
	if err := addLine(p, indexed(amps)); err != nil {
		return err
	}
	return p.Save(plotWidth, plotHeight, w.path(AmperagePlot(stamp)))
}

// PlotSampleTimes draws the gap between successive samples with the target
// interval as a reference line.
func (w *Writer) PlotSampleTimes(stamp string, diffs []float64, target time.Duration) error {
	p := plot.New()
	p.Title.Text = "Time Between Samples - " + stamp
	p.X.Label.Text = "Samples"
	p.Y.Label.Text = "ns"
	if err := addLine(p, indexed(diffs)); err != nil {
		return err
	}
	if len(diffs) > 0 {
		ref := plotter.XYs{{X: 0, Y: float64(target)}, {X: float64(len(diffs) - 1), Y: float64(target)}}
		line, err := plotter.NewLine(ref)
		if err != nil {
			return err
		}
		line.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
		p.Add(line)
	}
	return p.Save(plotWidth, plotHeight, w.path(SampleTimesPlot(stamp)))
}

// PlotWaterUsage draws cumulative gallons pumped across the whole recorded
// history.
func (w *Writer) PlotWaterUsage(stamp string, series []ledger.Point) error {
	return w.PlotWaterUsageFile(WaterUsagePlot(stamp), series)
}

func (w *Writer) PlotWaterUsageFile(name string, series []ledger.Point) error {
	p := plot.New()
	p.Title.Text = "Water Usage"
	p.Y.Label.Text = "Gallons"
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}
	xys := make(plotter.XYs, len(series))
	for i, pt := range series {
		xys[i] = plotter.XY{X: float64(pt.Time.Unix()), Y: pt.Total}
	}
	if err := addLine(p, xys); err != nil {
		return err
	}
	if len(series) > 0 {
		p.X.Min = float64(series[0].Time.Unix())
		p.X.Max = float64(series[len(series)-1].Time.Unix())
	}
	return p.Save(plotWidth, plotHeight, w.path(name))
}

func addLine(p *plot.Plot, xys plotter.XYs) error {
	if len(xys) == 0 {
		return nil
	}
	line, err := plotter.NewLine(xys)
	if err != nil {
		return fmt.Errorf("plot line: %w", err)
	}
	p.Add(line)
	return nil
}

func indexed(values []float64) plotter.XYs {
	xys := make(plotter.XYs, len(values))
	for i, v := range values {
		xys[i] = plotter.XY{X: float64(i), Y: v}
	}
	return xys
}
