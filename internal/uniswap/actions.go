package uniswap

import "defi-backtest-lab/internal/domain"

// AddLiquidityDetail records a mint.
type AddLiquidityDetail struct {
	LowerTick  int              `json:"lower_tick"`
	UpperTick  int              `json:"upper_tick"`
	BaseUsed   domain.UnitValue `json:"base_amount"`
	QuoteUsed  domain.UnitValue `json:"quote_amount"`
	LowerPrice domain.UnitValue `json:"lower_price"`
	UpperPrice domain.UnitValue `json:"upper_price"`
	Liquidity  string           `json:"liquidity"`
}

func (AddLiquidityDetail) Kind() domain.ActionType { return domain.ActionUniLPAddLiquidity }

// RemoveLiquidityDetail records a burn. Removed amounts go to the position's
// pending balance, not the wallet.
type RemoveLiquidityDetail struct {
	LowerTick        int              `json:"lower_tick"`
	UpperTick        int              `json:"upper_tick"`
	BaseRemoved      domain.UnitValue `json:"base_amount"`
	QuoteRemoved     domain.UnitValue `json:"quote_amount"`
	RemovedLiquidity string           `json:"removed_liquidity"`
}

func (RemoveLiquidityDetail) Kind() domain.ActionType { return domain.ActionUniLPRemoveLiquidity }

// CollectDetail records pending amounts moving into the wallet.
type CollectDetail struct {
	LowerTick      int              `json:"lower_tick"`
	UpperTick      int              `json:"upper_tick"`
	BaseCollected  domain.UnitValue `json:"base_amount"`
	QuoteCollected domain.UnitValue `json:"quote_amount"`
}

func (CollectDetail) Kind() domain.ActionType { return domain.ActionUniLPCollect }

// BuyDetail records a purchase of the base token.
type BuyDetail struct {
	Amount domain.UnitValue `json:"amount"`
	Price  domain.UnitValue `json:"price"`
	Fee    domain.UnitValue `json:"fee"`
	Spent  domain.UnitValue `json:"spent"`
}

func (BuyDetail) Kind() domain.ActionType { return domain.ActionUniLPBuy }

// SellDetail records a sale of the base token.
type SellDetail struct {
	Amount   domain.UnitValue `json:"amount"`
	Price    domain.UnitValue `json:"price"`
	Fee      domain.UnitValue `json:"fee"`
	Received domain.UnitValue `json:"received"`
}

func (SellDetail) Kind() domain.ActionType { return domain.ActionUniLPSell }

// SwapDetail records an in-wallet conversion done on behalf of another
// operation, such as sizing the two sides of a value-targeted mint.
type SwapDetail struct {
	FromAmount domain.UnitValue `json:"from_amount"`
	ToAmount   domain.UnitValue `json:"to_amount"`
	Fee        domain.UnitValue `json:"fee"`
}

func (SwapDetail) Kind() domain.ActionType { return domain.ActionUniLPSwap }
