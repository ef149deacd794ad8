package sgmcmc

import (
	"encoding/csv"
	"os"
	"strconv"
)

// History records the progress of one training run: the batch cost and
// every configured metric, at each logged iteration.
type History struct {
	Iteration []int
	Loss      []float64
	Names     []string
	Metrics   [][]float64 // one row per logged iteration, aligned with Names
}

func makeHistory(metrics []Metric) History {
	names := make([]string, 0, len(metrics))
	for _, m := range metrics {
		names = append(names, m.Name)
	}
	return History{
		Iteration: make([]int, 0, 64),
		Loss:      make([]float64, 0, 64),
		Names:     names,
	}
}

func (h *History) update(iter int, loss float64, values []float64) {
	h.Iteration = append(h.Iteration, iter)
	h.Loss = append(h.Loss, loss)
	h.Metrics = append(h.Metrics, values)
}

// Dump writes the history as CSV: iteration, loss, then one column per
// metric.
func (h *History) Dump(filename string) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	header := make([]string, 0, 2+len(h.Names))
	header = append(header, "iteration", "loss")
	header = append(header, h.Names...)
	if err := w.Write(header); err != nil {
		return err
	}
	var records [][]string
	for i, iter := range h.Iteration {
		record := make([]string, 0, len(header))
		record = append(record, strconv.Itoa(iter))
		record = append(record, strconv.FormatFloat(h.Loss[i], 'f', 6, 64))
		for _, v := range h.Metrics[i] {
			record = append(record, strconv.FormatFloat(v, 'f', 6, 64))
		}
		records = append(records, record)
	}
	if err := w.WriteAll(records); err != nil {
		return err
	}
	w.Flush()
	return nil
}
