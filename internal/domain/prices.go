package domain

import "time"

// PriceMatrix is the per-bar USD price table driving a run: one PriceRow per
// timestamp, aligned with every market's minute data.
type PriceMatrix struct {
	Timestamps []time.Time
	Rows       []PriceRow
}

// Len returns the number of bars.
func (m PriceMatrix) Len() int { return len(m.Timestamps) }

// Interval returns the bar spacing, zero for fewer than two bars.
func (m PriceMatrix) Interval() time.Duration {
	if len(m.Timestamps) < 2 {
		return 0
	}
	return m.Timestamps[1].Sub(m.Timestamps[0])
}

// Window returns the sub-matrix of bars inside [start, end).
func (m PriceMatrix) Window(start, end time.Time) PriceMatrix {
	var out PriceMatrix
	for i, ts := range m.Timestamps {
		if ts.Before(start) || !ts.Before(end) {
			continue
		}
		out.Timestamps = append(out.Timestamps, ts)
		out.Rows = append(out.Rows, m.Rows[i])
	}
	return out
}
