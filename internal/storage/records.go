package storage

import (
	"encoding/json"
	"fmt"

	"defi-backtest-lab/internal/domain"
)

// BacktestRun is the persisted summary of one finished run.
type BacktestRun struct {
	RunID    string
	Name     string
	Strategy string

	StartTimeMs int64
	EndTimeMs   int64
	Bars        int

	InitialNetValue  float64
	FinalNetValue    float64
	TotalReturn      float64
	AnnualizedReturn float64
	MaxDrawdown      float64
	ActionCount      int

	CreatedAtMs int64
}

// ActionRecord is one engine action flattened for persistence. Seq preserves
// the order actions were recorded within the run; Detail holds the full
// action JSON including the typed detail payload.
type ActionRecord struct {
	RunID       string
	Seq         int
	TimestampMs int64
	Market      string
	ActionType  string
	Detail      string
	Comment     string
}

// AccountStatusRecord is one bar of the account status series. Fields holds
// the flattened balance breakdown keyed the same way the account CSV names
// its columns: "tokens:<SYMBOL>", "<market>:net_value", "<market>:<field>".
type AccountStatusRecord struct {
	RunID       string
	TimestampMs int64
	NetValue    float64
	Fields      map[string]float64
}

// ActionRecords flattens the run's action list into storable records.
func ActionRecords(runID string, actions []domain.Action) ([]*ActionRecord, error) {
	records := make([]*ActionRecord, 0, len(actions))
	for i, a := range actions {
		raw, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("marshal action %d: %w", i, err)
		}
		records = append(records, &ActionRecord{
			RunID:       runID,
			Seq:         i,
			TimestampMs: a.Timestamp.UnixMilli(),
			Market:      a.Market.Name,
			ActionType:  string(a.Type),
			Detail:      string(raw),
			Comment:     a.Comment,
		})
	}
	return records, nil
}

// AccountStatusRecords flattens the run's status series into storable records.
func AccountStatusRecords(runID string, statuses []domain.AccountStatus) []*AccountStatusRecord {
	records := make([]*AccountStatusRecord, 0, len(statuses))
	for _, s := range statuses {
		fields := make(map[string]float64, len(s.Tokens)+len(s.Markets)*2)
		for _, tok := range s.Tokens {
			fields["tokens:"+tok.Name] = tok.Value.InexactFloat64()
		}
		for _, me := range s.Markets {
			fields[me.Market.Name+":net_value"] = me.Balance.NetValue.InexactFloat64()
			for _, f := range me.Balance.Fields {
				fields[me.Market.Name+":"+f.Name] = f.Value.InexactFloat64()
			}
		}
		records = append(records, &AccountStatusRecord{
			RunID:       runID,
			TimestampMs: s.Timestamp.UnixMilli(),
			NetValue:    s.NetValue.InexactFloat64(),
			Fields:      fields,
		})
	}
	return records
}
