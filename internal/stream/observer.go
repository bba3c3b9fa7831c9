package stream

import (
	"time"

	"defi-backtest-lab/internal/backtest"
	"defi-backtest-lab/internal/domain"
)

// RunObserver forwards engine events for one run to the hub. TotalBars, when
// known, lets clients render a progress fraction.
type RunObserver struct {
	hub       *Hub
	runID     string
	totalBars int
	bar       int
}

// NewRunObserver creates an observer broadcasting under the given run ID.
func NewRunObserver(hub *Hub, runID string, totalBars int) *RunObserver {
	return &RunObserver{hub: hub, runID: runID, totalBars: totalBars}
}

var _ backtest.Observer = (*RunObserver)(nil)

// OnStatus broadcasts the end-of-bar account status.
func (o *RunObserver) OnStatus(s domain.AccountStatus) {
	o.bar++
	msg := Message{
		Type:      MessageStatus,
		RunID:     o.runID,
		Timestamp: s.Timestamp.UTC().Format(time.RFC3339),
		NetValue:  s.NetValue.String(),
		Bar:       o.bar,
	}
	if o.totalBars > 0 {
		msg.Progress = float64(o.bar) / float64(o.totalBars)
	}
	o.hub.Broadcast(msg)
}

// OnAction broadcasts one recorded action.
func (o *RunObserver) OnAction(a domain.Action) {
	o.hub.Broadcast(Message{
		Type:       MessageAction,
		RunID:      o.runID,
		Timestamp:  a.Timestamp.UTC().Format(time.RFC3339),
		Market:     a.Market.Name,
		ActionType: string(a.Type),
	})
}

// Finish broadcasts run completion.
func (o *RunObserver) Finish() {
	o.hub.Broadcast(Message{
		Type:      MessageFinished,
		RunID:     o.runID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Bar:       o.bar,
		Progress:  1,
	})
}
