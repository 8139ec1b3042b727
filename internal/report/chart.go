package report

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"mazeq/internal/atomicfile"
	"mazeq/internal/engine"
)

// MovingAverageWindow is the trailing window used to smooth chart series.
const MovingAverageWindow = 20

// MovingAverage returns the trailing mean of xs over up to window points.
// NaN entries are skipped; a window of only NaNs averages to NaN.
func MovingAverage(xs []float64, window int) []float64 {
	if window <= 0 {
		window = 1
	}
	out := make([]float64, len(xs))
	buf := make([]float64, 0, window)
	for i := range xs {
		buf = buf[:0]
		for _, v := range xs[max(0, i-window+1) : i+1] {
			if !math.IsNaN(v) {
				buf = append(buf, v)
			}
		}
		if len(buf) == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = stat.Mean(buf, nil)
	}
	return out
}

// FirstSuccess is the 1-based episode number of the first goal, or 0.
func FirstSuccess(metrics []engine.EpisodeMetrics) int {
	for i, m := range metrics {
		if m.GoalReached || m.CumulativeGoals > 0 {
			return i + 1
		}
	}
	return 0
}

func lineItems(xs []float64) []opts.LineData {
	items := make([]opts.LineData, len(xs))
	for i, v := range xs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			items[i] = opts.LineData{Value: "-"}
			continue
		}
		items[i] = opts.LineData{Value: v}
	}
	return items
}

func newLine(title, yName string, episodes []string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithInitializationOpts(opts.Initialization{Theme: "shine"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "episode"}),
		charts.WithYAxisOpts(opts.YAxis{Name: yName}),
	)
	line.SetXAxis(episodes)
	return line
}

// MetricsPage builds the chart page for a run: reward, success rate,
// cumulative goals, loss, episode length and per-episode goals.
func MetricsPage(metrics []engine.EpisodeMetrics, title string) *components.Page {
	n := len(metrics)
	episodes := make([]string, n)
	reward := make([]float64, n)
	success := make([]float64, n)
	goals := make([]float64, n)
	loss := make([]float64, n)
	steps := make([]float64, n)
	hit := make([]float64, n)
	for i, m := range metrics {
		episodes[i] = fmt.Sprintf("%d", i+1)
		reward[i] = m.Reward
		success[i] = m.SuccessRate
		goals[i] = float64(m.CumulativeGoals)
		loss[i] = m.Loss
		steps[i] = float64(m.Steps)
		if m.GoalReached {
			hit[i] = 1
		}
	}

	subtitle := "no goal reached"
	if first := FirstSuccess(metrics); first > 0 {
		subtitle = fmt.Sprintf("first success at episode %d", first)
	}

	rewardLine := newLine("Reward per episode", "reward", episodes)
	rewardLine.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}))
	rewardLine.AddSeries("reward", lineItems(reward)).
		AddSeries("reward (MA)", lineItems(MovingAverage(reward, MovingAverageWindow)))

	successLine := newLine("Success rate (rolling window)", "success %", episodes)
	successLine.AddSeries("success rate (MA)", lineItems(MovingAverage(success, MovingAverageWindow)))

	goalsLine := newLine("Cumulative goals", "goals", episodes)
	goalsLine.AddSeries("cumulative goals", lineItems(goals))

	lossLine := newLine("Training loss", "huber TD loss", episodes)
	lossLine.SetGlobalOptions(charts.WithYAxisOpts(opts.YAxis{Name: "huber TD loss", Type: "log"}))
	lossLine.AddSeries("loss (MA)", lineItems(positive(MovingAverage(loss, MovingAverageWindow))))

	stepsLine := newLine("Episode length", "steps", episodes)
	stepsLine.AddSeries("steps (MA)", lineItems(MovingAverage(steps, MovingAverageWindow)))

	hitLine := newLine("Goal per episode", "goal (0/1)", episodes)
	hitLine.AddSeries("goal", lineItems(hit))

	page := components.NewPage()
	page.AddCharts(rewardLine, successLine, goalsLine, lossLine, stepsLine, hitLine)
	return page
}

// positive blanks out non-positive values, which a log axis cannot show.
func positive(xs []float64) []float64 {
	for i, v := range xs {
		if v <= 0 {
			xs[i] = math.NaN()
		}
	}
	return xs
}

func RenderMetricsHTML(w io.Writer, metrics []engine.EpisodeMetrics, title string) error {
	return errors.Wrap(MetricsPage(metrics, title).Render(w), "render metrics page")
}

func SaveMetricsHTML(path string, metrics []engine.EpisodeMetrics, title string) error {
	err := atomicfile.Write(path, func(w io.Writer) error { return RenderMetricsHTML(w, metrics, title) })
	return errors.Wrapf(err, "save metrics chart %s", path)
}
