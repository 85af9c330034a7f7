package provider

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/futures"

	"sigfuse/internal/pkg/symbol"
)

const (
	binanceKlineInterval = "1h"
	binanceKlineLimit    = 100
	binanceOIPeriod      = "1h"
	binanceOILimit       = 24
	binanceRatioPeriod   = "1h"
	binanceRatioLimit    = 6
)

// BinanceFutures serves price/volume candles, funding, open interest history
// and top-trader positioning from the Binance USD-M futures REST API.
type BinanceFutures struct {
	client  *futures.Client
	timeout time.Duration
}

func NewBinanceFutures(apiKey, secretKey string, timeout time.Duration) *BinanceFutures {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &BinanceFutures{
		client:  futures.NewClient(apiKey, secretKey),
		timeout: timeout,
	}
}

// SetBaseURL overrides the REST endpoint, e.g. to route through a proxy.
func (b *BinanceFutures) SetBaseURL(url string) {
	if trimmed := strings.TrimSpace(url); trimmed != "" {
		b.client.BaseURL = trimmed
	}
}

func (b *BinanceFutures) ID() string { return IDBinanceFutures }

func (b *BinanceFutures) Fetch(ctx context.Context, sym string) Result {
	binanceSymbol := symbol.Parse(sym).Binance()
	if binanceSymbol == "" {
		return errorResult(b.ID(), sym, fmt.Errorf("invalid symbol: %s", sym))
	}
	ctx, cancel := boundCtx(ctx, b.timeout)
	defer cancel()

	candles, err := b.fetchCandles(ctx, binanceSymbol)
	if err != nil {
		// Candles are the backbone of this provider; without them nothing else matters.
		return errorResult(b.ID(), sym, err)
	}

	payload := Payload{Candles: candles}
	var partial []string

	if funding, err := b.fetchFunding(ctx, binanceSymbol); err == nil {
		payload.Funding = funding
	} else {
		partial = append(partial, "funding: "+err.Error())
	}
	if oi, err := b.fetchOpenInterest(ctx, binanceSymbol); err == nil {
		payload.OpenInterest = oi
	} else {
		partial = append(partial, "open_interest: "+err.Error())
	}
	if ratios, err := b.fetchTopAccountRatio(ctx, binanceSymbol); err == nil {
		payload.TopTraderRatio = ratios
	} else {
		partial = append(partial, "top_ratio: "+err.Error())
	}

	if len(partial) > 0 {
		return degradedResult(b.ID(), sym, payload, strings.Join(partial, "; "))
	}
	return okResult(b.ID(), sym, payload)
}

// LastPrice returns the latest mark price; used by the outcome evaluator.
func (b *BinanceFutures) LastPrice(ctx context.Context, sym string) (float64, error) {
	binanceSymbol := symbol.Parse(sym).Binance()
	if binanceSymbol == "" {
		return 0, fmt.Errorf("invalid symbol: %s", sym)
	}
	ctx, cancel := boundCtx(ctx, b.timeout)
	defer cancel()
	funding, err := b.fetchFunding(ctx, binanceSymbol)
	if err != nil {
		return 0, err
	}
	if funding.MarkPrice <= 0 {
		return 0, fmt.Errorf("mark price not available for %s", sym)
	}
	return funding.MarkPrice, nil
}

func (b *BinanceFutures) fetchCandles(ctx context.Context, binanceSymbol string) ([]Candle, error) {
	kls, err := b.client.NewKlinesService().
		Symbol(binanceSymbol).
		Interval(binanceKlineInterval).
		Limit(binanceKlineLimit).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no candles for %s", binanceSymbol)
	}
	return out, nil
}

func (b *BinanceFutures) fetchFunding(ctx context.Context, binanceSymbol string) (*FundingInfo, error) {
	res, err := b.client.NewPremiumIndexService().Symbol(binanceSymbol).Do(ctx)
	if err != nil {
		return nil, err
	}
	for _, entry := range res {
		if entry == nil {
			continue
		}
		if strings.EqualFold(entry.Symbol, binanceSymbol) {
			return &FundingInfo{
				Rate:            parseFloat(entry.LastFundingRate),
				MarkPrice:       parseFloat(entry.MarkPrice),
				NextFundingTime: entry.NextFundingTime,
			}, nil
		}
	}
	return nil, fmt.Errorf("funding rate not available for %s", binanceSymbol)
}

func (b *BinanceFutures) fetchOpenInterest(ctx context.Context, binanceSymbol string) ([]OpenInterestPoint, error) {
	stats, err := b.client.NewOpenInterestStatisticsService().
		Symbol(binanceSymbol).
		Period(binanceOIPeriod).
		Limit(binanceOILimit).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	points := make([]OpenInterestPoint, 0, len(stats))
	for _, item := range stats {
		if item == nil {
			continue
		}
		points = append(points, OpenInterestPoint{
			Value:     parseFloat(item.SumOpenInterest),
			Notional:  parseFloat(item.SumOpenInterestValue),
			Timestamp: int64(item.Timestamp),
		})
	}
	return points, nil
}

func (b *BinanceFutures) fetchTopAccountRatio(ctx context.Context, binanceSymbol string) ([]LongShortRatioPoint, error) {
	raw, err := b.client.NewTopLongShortAccountRatioService().
		Symbol(binanceSymbol).
		Period(binanceRatioPeriod).
		Limit(binanceRatioLimit).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	points := make([]LongShortRatioPoint, 0, len(raw))
	for _, item := range raw {
		if item == nil {
			continue
		}
		points = append(points, LongShortRatioPoint{
			Ratio:     parseFloat(item.LongShortRatio),
			Timestamp: int64(item.Timestamp),
		})
	}
	return points, nil
}

func boundCtx(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		// Caller already bounded the call; keep the tighter deadline.
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func parseFloat(s string) float64 {
	val, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return val
}
