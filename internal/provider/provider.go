package provider

import (
	"context"
	"time"
)

// Provider ids. Referenced by phase wiring and health tracking; keep stable.
const (
	IDBinanceFutures = "binance_futures"
	IDCoinGecko      = "coingecko"
	IDAlternativeMe  = "alternative_me"
	IDCoinglass      = "coinglass"
)

type Status string

const (
	StatusOK          Status = "ok"
	StatusDegraded    Status = "degraded"
	StatusUnavailable Status = "unavailable"
	StatusError       Status = "error"
)

type Candle struct {
	OpenTime  int64
	CloseTime int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

type OpenInterestPoint struct {
	Value     float64
	Notional  float64
	Timestamp int64
}

type FundingInfo struct {
	Rate            float64
	MarkPrice       float64
	NextFundingTime int64
}

type LongShortRatioPoint struct {
	Ratio     float64
	Timestamp int64
}

// LiquidationStats aggregates forced-liquidation flow over a trailing window.
type LiquidationStats struct {
	LongNotional  float64
	ShortNotional float64
	Events        int
	Window        time.Duration
}

type SentimentIndex struct {
	Value          int
	Classification string
	Timestamp      time.Time
}

type MarketStats struct {
	Price          float64
	Volume24h      float64
	PriceChange24h float64
	ListedAt       time.Time
}

// Payload is a tagged union of everything a provider can return. Only the
// fields a given provider fills are non-zero; scorers must check, never guess.
type Payload struct {
	Candles        []Candle
	OpenInterest   []OpenInterestPoint
	Funding        *FundingInfo
	TopTraderRatio []LongShortRatioPoint
	Liquidations   *LiquidationStats
	Sentiment      *SentimentIndex
	Market         *MarketStats
}

// Result is the uniform outcome of one provider call. Immutable once produced.
// Adapters never return Go errors to callers; faults are folded into Status
// and Err so the coordinator can treat every call identically.
type Result struct {
	Provider  string
	Symbol    string
	FetchedAt time.Time
	Status    Status
	Payload   Payload
	Err       string
}

// Usable reports whether the payload carries real data a scorer may consume.
func (r Result) Usable() bool {
	return r.Status == StatusOK || r.Status == StatusDegraded
}

// Adapter is the single contract every external data source is reached
// through. Implementations are stateless; health bookkeeping belongs to the
// caller. Fetch must honor ctx deadlines and must not panic.
type Adapter interface {
	ID() string
	Fetch(ctx context.Context, symbol string) Result
}

func okResult(id, symbol string, payload Payload) Result {
	return Result{Provider: id, Symbol: symbol, FetchedAt: time.Now(), Status: StatusOK, Payload: payload}
}

func degradedResult(id, symbol string, payload Payload, reason string) Result {
	return Result{Provider: id, Symbol: symbol, FetchedAt: time.Now(), Status: StatusDegraded, Payload: payload, Err: reason}
}

func errorResult(id, symbol string, err error) Result {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return Result{Provider: id, Symbol: symbol, FetchedAt: time.Now(), Status: StatusError, Err: msg}
}

func unavailableResult(id, symbol, reason string) Result {
	return Result{Provider: id, Symbol: symbol, FetchedAt: time.Now(), Status: StatusUnavailable, Err: reason}
}
