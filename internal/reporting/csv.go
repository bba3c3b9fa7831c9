package reporting

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"defi-backtest-lab/internal/domain"
)

// accountColumn addresses one value inside an AccountStatus.
type accountColumn struct {
	scope string // "" for the top level, "tokens", or a market name
	field string
}

func (c accountColumn) header() string {
	if c.scope == "" {
		return c.field
	}
	return c.scope + ":" + c.field
}

// accountColumns derives the column set from the first status. The schema is
// data-dependent: whatever fields the attached markets report become columns.
func accountColumns(first domain.AccountStatus) []accountColumn {
	cols := []accountColumn{{field: "timestamp"}, {field: "net_value"}}
	for _, tok := range first.Tokens {
		cols = append(cols, accountColumn{scope: "tokens", field: tok.Name})
	}
	for _, me := range first.Markets {
		cols = append(cols, accountColumn{scope: me.Market.Name, field: "net_value"})
		for _, f := range me.Balance.Fields {
			cols = append(cols, accountColumn{scope: me.Market.Name, field: f.Name})
		}
	}
	return cols
}

func accountCell(s domain.AccountStatus, col accountColumn) string {
	switch col.scope {
	case "":
		if col.field == "timestamp" {
			return s.Timestamp.UTC().Format(time.RFC3339)
		}
		return s.NetValue.String()
	case "tokens":
		for _, tok := range s.Tokens {
			if tok.Name == col.field {
				return tok.Value.String()
			}
		}
	default:
		for _, me := range s.Markets {
			if me.Market.Name != col.scope {
				continue
			}
			if col.field == "net_value" {
				return me.Balance.NetValue.String()
			}
			for _, f := range me.Balance.Fields {
				if f.Name == col.field {
					return f.Value.String()
				}
			}
		}
	}
	return ""
}

// WriteAccountCSV streams the status series as CSV with scope-prefixed
// columns.
func WriteAccountCSV(w io.Writer, statuses []domain.AccountStatus) error {
	if len(statuses) == 0 {
		return fmt.Errorf("%w: no account statuses to write", domain.ErrConfiguration)
	}
	cols := accountColumns(statuses[0])

	cw := csv.NewWriter(w)
	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.header()
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write account header: %w", err)
	}
	row := make([]string, len(cols))
	for _, s := range statuses {
		for i, c := range cols {
			row[i] = accountCell(s, c)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write account row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
