package utils

import (
	"math"

	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine/commission_fee"
)

// CalculateMaxQuantity calculates the maximum number of whole shares that can be bought with the given balance, fees included.
func CalculateMaxQuantity(balance float64, price float64, commissionFee commission_fee.CommissionFee) float64 {
	if price <= 0 || balance <= 0 {
		return 0
	}

	// Initial rough estimate (ignoring fees)
	maxQty := balance / price

	// Iteratively refine by accounting for fees
	for i := 0; i < 10; i++ {
		totalCost := maxQty*price + commissionFee.Calculate(maxQty, price)
		if totalCost <= balance {
			break
		}

		maxQty *= balance / totalCost
	}

	qty := RoundToDecimalPrecision(maxQty, 0)
	for qty > 0 && qty*price+commissionFee.Calculate(qty, price) > balance {
		qty--
	}

	return qty
}

// RoundToDecimalPrecision rounds the quantity down to the specified decimal precision.
func RoundToDecimalPrecision(quantity float64, decimalPrecision int) float64 {
	multiplier := math.Pow10(decimalPrecision)

	return math.Floor(quantity*multiplier) / multiplier
}

// CalculateOrderQuantityByPercentage returns the whole shares bought by investing percentage of balance at price.
// The quantity ignores fees unless the fees would overdraw the balance, in which case it falls back to CalculateMaxQuantity.
func CalculateOrderQuantityByPercentage(balance float64, price float64, commissionFee commission_fee.CommissionFee, percentage float64) float64 {
	if price <= 0 || balance <= 0 || percentage <= 0 {
		return 0
	}

	qty := RoundToDecimalPrecision(balance*percentage/price, 0)
	if qty*price+commissionFee.Calculate(qty, price) > balance {
		return CalculateMaxQuantity(balance, price, commissionFee)
	}

	return qty
}
