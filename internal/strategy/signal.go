package strategy

import (
	"fmt"

	"github.com/rxtech-lab/argo-backtest/internal/indicator"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

const (
	multiBuyRSI  = 40.0
	multiSellRSI = 65.0
	multiQuorum  = 2
)

// Generate returns the signal for bars[index]. The first bar is never traded
// and always yields hold.
func Generate(id ID, set indicator.Set, params Params, bars []types.PriceBar, index int) (types.Signal, error) {
	if index < 0 || index >= len(bars) {
		return types.Signal{}, errors.Newf(errors.ErrCodeInvalidParameter,
			"bar index %d out of range [0, %d)", index, len(bars))
	}

	var (
		signalType types.SignalType
		reason     string
	)

	switch id {
	case SMAGoldenCross:
		signalType = crossover(set.SMAShort, set.SMALong, index)
		reason = fmt.Sprintf("SMA%d/%d cross", params.SMAShortPeriod, params.SMALongPeriod)
	case RSIOversoldOverbought:
		signalType = rsiThreshold(set.RSI, params, index)
		if value := set.RSI.At(index); value.IsSome() {
			reason = fmt.Sprintf("RSI %.2f", value.Unwrap())
		}
	case BollingerBreakout:
		signalType = bollingerBreakout(set.Bollinger, bars[index].Close, index)
		reason = "Bollinger Band breakout"
	case MACDSignalCross:
		signalType = crossover(set.MACD.MACD, set.MACD.Signal, index)
		reason = "MACD signal cross"
	case MultiIndicatorCombo:
		signalType = consensus(set, index)
		reason = "Multi-indicator consensus"
	default:
		return types.Signal{}, errors.Newf(errors.ErrCodeStrategyNotFound, "strategy not found: %s", id)
	}

	if index == 0 || signalType == types.SignalTypeHold {
		signalType = types.SignalTypeHold
		reason = ""
	}

	return types.Signal{
		Time:   bars[index].Date,
		Type:   signalType,
		Reason: reason,
		Index:  index,
	}, nil
}

// GenerateAll returns one signal per bar from index 1 to len(bars)-1.
func GenerateAll(id ID, set indicator.Set, params Params, bars []types.PriceBar) ([]types.Signal, error) {
	if _, err := Lookup(id); err != nil {
		return nil, err
	}

	if len(bars) < 2 {
		return []types.Signal{}, nil
	}

	signals := make([]types.Signal, 0, len(bars)-1)

	for i := 1; i < len(bars); i++ {
		signal, err := Generate(id, set, params, bars, i)
		if err != nil {
			return nil, err
		}

		signals = append(signals, signal)
	}

	return signals, nil
}

// crossover detects fast crossing slow between index-1 and index.
func crossover(fast, slow indicator.Series, index int) types.SignalType {
	if index < 1 || !fast.Defined(index-1, index) || !slow.Defined(index-1, index) {
		return types.SignalTypeHold
	}

	prevFast, prevSlow := fast[index-1].Unwrap(), slow[index-1].Unwrap()
	curFast, curSlow := fast[index].Unwrap(), slow[index].Unwrap()

	if prevFast <= prevSlow && curFast > curSlow {
		return types.SignalTypeBuy
	}

	if prevFast >= prevSlow && curFast < curSlow {
		return types.SignalTypeSell
	}

	return types.SignalTypeHold
}

func rsiThreshold(rsi indicator.Series, params Params, index int) types.SignalType {
	value := rsi.At(index)
	if value.IsNone() {
		return types.SignalTypeHold
	}

	switch v := value.Unwrap(); {
	case v < params.OversoldThreshold:
		return types.SignalTypeBuy
	case v > params.OverboughtThreshold:
		return types.SignalTypeSell
	default:
		return types.SignalTypeHold
	}
}

func bollingerBreakout(bands indicator.BollingerBandsResult, price float64, index int) types.SignalType {
	if !bands.Lower.Defined(index) || !bands.Upper.Defined(index) {
		return types.SignalTypeHold
	}

	if price < bands.Lower[index].Unwrap() {
		return types.SignalTypeBuy
	}

	if price > bands.Upper[index].Unwrap() {
		return types.SignalTypeSell
	}

	return types.SignalTypeHold
}

// consensus votes on trend, RSI momentum and MACD. Buy is checked first.
func consensus(set indicator.Set, index int) types.SignalType {
	if !set.SMAShort.Defined(index) || !set.SMALong.Defined(index) || !set.RSI.Defined(index) ||
		!set.MACD.MACD.Defined(index) || !set.MACD.Signal.Defined(index) {
		return types.SignalTypeHold
	}

	short, long := set.SMAShort[index].Unwrap(), set.SMALong[index].Unwrap()
	rsi := set.RSI[index].Unwrap()
	macd, signal := set.MACD.MACD[index].Unwrap(), set.MACD.Signal[index].Unwrap()

	buyVotes := votes(short > long, rsi < multiBuyRSI, macd > signal)
	if buyVotes >= multiQuorum {
		return types.SignalTypeBuy
	}

	sellVotes := votes(short < long, rsi > multiSellRSI, macd < signal)
	if sellVotes >= multiQuorum {
		return types.SignalTypeSell
	}

	return types.SignalTypeHold
}

func votes(conditions ...bool) int {
	count := 0

	for _, c := range conditions {
		if c {
			count++
		}
	}

	return count
}
