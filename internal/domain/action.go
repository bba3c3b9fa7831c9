package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ActionType tags the kind of operation a market recorded.
type ActionType string

// Action type constants. The tag strings are part of the serialized output
// format and must not change.
const (
	ActionUniLPAddLiquidity    ActionType = "uni_lp_add_liquidity"
	ActionUniLPRemoveLiquidity ActionType = "uni_lp_remove_liquidity"
	ActionUniLPCollect         ActionType = "uni_lp_collect"
	ActionUniLPBuy             ActionType = "uni_lp_buy"
	ActionUniLPSell            ActionType = "uni_lp_sell"
	ActionUniLPSwap            ActionType = "uni_lp_swap"

	ActionAaveSupply      ActionType = "aave_supply"
	ActionAaveWithdraw    ActionType = "aave_withdraw"
	ActionAaveBorrow      ActionType = "aave_borrow"
	ActionAaveRepay       ActionType = "aave_repay"
	ActionAaveLiquidation ActionType = "aave_liquidation"

	ActionSqueethOpenVault        ActionType = "squeeth_open_vault"
	ActionSqueethUpdateCollateral ActionType = "squeeth_update_collateral"
	ActionSqueethUpdateShort      ActionType = "squeeth_update_short"
	ActionSqueethDepositUniLP     ActionType = "squeeth_deposit_uni_lp"
	ActionSqueethWithdrawUniLP    ActionType = "squeeth_withdraw_uni_lp"
	ActionSqueethReduceDebt       ActionType = "squeeth_reduce_debt"
	ActionSqueethLiquidation      ActionType = "squeeth_liquidation"
)

// ActionDetail is the market-specific payload of an Action. Implementations
// live next to the market that emits them.
type ActionDetail interface {
	// Kind returns the action type tag of this payload.
	Kind() ActionType
}

// Action is one append-only record of a market operation.
type Action struct {
	Timestamp time.Time    `json:"timestamp"`
	Market    MarketInfo   `json:"market"`
	Type      ActionType   `json:"action_type"`
	Comment   string       `json:"comment,omitempty"`
	Detail    ActionDetail `json:"detail,omitempty"`
}

// NewAction builds an Action from a payload, taking the type tag from it.
func NewAction(ts time.Time, market MarketInfo, detail ActionDetail) Action {
	return Action{Timestamp: ts, Market: market, Type: detail.Kind(), Detail: detail}
}

// MarshalJSON flattens the payload next to the envelope fields.
func (a Action) MarshalJSON() ([]byte, error) {
	env := struct {
		Timestamp string          `json:"timestamp"`
		Market    string          `json:"market"`
		Type      ActionType      `json:"action_type"`
		Comment   string          `json:"comment,omitempty"`
		Detail    json.RawMessage `json:"detail,omitempty"`
	}{
		Timestamp: a.Timestamp.UTC().Format(time.RFC3339),
		Market:    a.Market.Name,
		Type:      a.Type,
		Comment:   a.Comment,
	}
	if a.Detail != nil {
		raw, err := json.Marshal(a.Detail)
		if err != nil {
			return nil, fmt.Errorf("marshal action detail: %w", err)
		}
		env.Detail = raw
	}
	return json.Marshal(env)
}
