package verify

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary aggregates a problem's benchmark history.
type Summary struct {
	Attempts      int     `json:"attempts"`
	MeanSpeedup   float64 `json:"mean_speedup"`
	StdDevSpeedup float64 `json:"stddev_speedup"`
	BestSpeedup   float64 `json:"best_speedup"`
	// BestAttempt is the Attempt number of the fastest candidate, 0 when
	// there is no history.
	BestAttempt int `json:"best_attempt"`
}

// Summarize computes speedup statistics over records.
func Summarize(records []Record) Summary {
	if len(records) == 0 {
		return Summary{}
	}
	speedups := make([]float64, len(records))
	for i, r := range records {
		speedups[i] = r.Speedup()
	}
	best := floats.MaxIdx(speedups)
	s := Summary{
		Attempts:    len(records),
		BestSpeedup: speedups[best],
		BestAttempt: records[best].Attempt,
	}
	if len(speedups) == 1 {
		s.MeanSpeedup = speedups[0]
		return s
	}
	s.MeanSpeedup, s.StdDevSpeedup = stat.MeanStdDev(speedups, nil)
	return s
}
