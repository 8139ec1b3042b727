/*
Package report turns training output into files and text: the per-episode
metrics CSV, an HTML chart page, a run summary and a terminal rendering of
the maze with the greedy policy laid over it.
*/
package report

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"mazeq/internal/atomicfile"
	"mazeq/internal/engine"
)

// MetricsHeader is the first line of every metrics CSV.
const MetricsHeader = "episode,reward,cumulative_goals,success_rate,training_loss,steps"

var metricsColumns = []string{"episode", "reward", "cumulative_goals", "success_rate", "training_loss", "steps"}

// WriteMetricsCSV writes one line per episode after the header.
func WriteMetricsCSV(w io.Writer, metrics []engine.EpisodeMetrics) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintln(bw, MetricsHeader); err != nil {
		return errors.Wrap(err, "write metrics header")
	}
	for _, m := range metrics {
		_, err := fmt.Fprintf(bw, "%d,%.6f,%d,%.4f,%.6e,%d\n",
			m.Episode, m.Reward, m.CumulativeGoals, m.SuccessRate, m.Loss, m.Steps)
		if err != nil {
			return errors.Wrapf(err, "write metrics for episode %d", m.Episode)
		}
	}
	return errors.Wrap(bw.Flush(), "flush metrics")
}

func SaveMetricsCSV(path string, metrics []engine.EpisodeMetrics) error {
	err := atomicfile.Write(path, func(w io.Writer) error { return WriteMetricsCSV(w, metrics) })
	return errors.Wrapf(err, "save metrics %s", path)
}

// ReadMetricsCSV parses a file written by WriteMetricsCSV. Columns are
// matched by header name; GoalReached is derived from cumulative goals.
func ReadMetricsCSV(r io.Reader) ([]engine.EpisodeMetrics, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, "read metrics header")
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	for _, name := range metricsColumns {
		if _, ok := index[name]; !ok {
			return nil, errors.Errorf("metrics header is missing %q", name)
		}
	}

	var out []engine.EpisodeMetrics
	prevGoals := 0
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read metrics line %d", line)
		}
		var m engine.EpisodeMetrics
		var perr error
		parseInt := func(col string) int {
			v, err := strconv.Atoi(rec[index[col]])
			if err != nil && perr == nil {
				perr = errors.Wrapf(err, "line %d column %s", line, col)
			}
			return v
		}
		parseFloat := func(col string) float64 {
			v, err := strconv.ParseFloat(rec[index[col]], 64)
			if err != nil && perr == nil {
				perr = errors.Wrapf(err, "line %d column %s", line, col)
			}
			return v
		}
		m.Episode = parseInt("episode")
		m.Reward = parseFloat("reward")
		m.CumulativeGoals = parseInt("cumulative_goals")
		m.SuccessRate = parseFloat("success_rate")
		m.Loss = parseFloat("training_loss")
		m.Steps = parseInt("steps")
		if perr != nil {
			return nil, perr
		}
		m.GoalReached = m.CumulativeGoals > prevGoals
		prevGoals = m.CumulativeGoals
		out = append(out, m)
	}
	return out, nil
}

func LoadMetricsCSV(path string) ([]engine.EpisodeMetrics, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open metrics")
	}
	defer f.Close()
	metrics, err := ReadMetricsCSV(f)
	return metrics, errors.Wrapf(err, "load %s", path)
}
