package domain

// OrderSide represents the side of an order (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// OrderStatus is the terminal outcome recorded for an order attempt.
type OrderStatus string

const (
	OrderAccepted OrderStatus = "accepted" // broker accepted, fill not confirmed
	OrderExecuted OrderStatus = "executed"
	OrderFailed   OrderStatus = "failed"
	OrderDryRun   OrderStatus = "dry_run" // full decision path ran, submission skipped
)

// SellPriority orders sell decisions; a lower value always wins.
type SellPriority int

const (
	PriorityStopLoss     SellPriority = 1
	PriorityTrailingStop SellPriority = 2
	PriorityTakeProfit   SellPriority = 3
	PriorityTechnical    SellPriority = 4
)

func (p SellPriority) String() string {
	switch p {
	case PriorityStopLoss:
		return "stop_loss"
	case PriorityTrailingStop:
		return "trailing_stop"
	case PriorityTakeProfit:
		return "take_profit"
	case PriorityTechnical:
		return "technical"
	default:
		return "unknown"
	}
}

// SellKind is the concrete sell action behind a priority bucket.
type SellKind string

const (
	SellStopLossUrgent SellKind = "stop_loss_urgent"
	SellStopLoss       SellKind = "stop_loss"
	SellTrailingStop   SellKind = "trailing_stop"
	SellPartialProfit  SellKind = "partial_profit"
	SellTakeProfit     SellKind = "take_profit"
	SellTechnical      SellKind = "technical"
)

// Exchange is the overseas exchange code as stored (NASD, NYSE, AMEX).
type Exchange string

const (
	ExchangeNASD Exchange = "NASD"
	ExchangeNYSE Exchange = "NYSE"
	ExchangeAMEX Exchange = "AMEX"
)

// apiExchangeCodes maps stored exchange codes to the shorter codes the
// quotation API expects.
var apiExchangeCodes = map[Exchange]string{
	ExchangeNASD: "NAS",
	ExchangeNYSE: "NYS",
	ExchangeAMEX: "AMS",
}

// APICode returns the quotation-API alias for the exchange (NAS, NYS, AMS).
// Unknown codes pass through unchanged.
func (e Exchange) APICode() string {
	if code, ok := apiExchangeCodes[e]; ok {
		return code
	}
	return string(e)
}
