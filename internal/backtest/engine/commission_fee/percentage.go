package commission_fee

import "math"

// PercentageCommissionFee charges Rate times the trade value.
type PercentageCommissionFee struct {
	Rate float64
}

func NewPercentageCommissionFee(rate float64) CommissionFee {
	return &PercentageCommissionFee{Rate: rate}
}

func (c *PercentageCommissionFee) Calculate(quantity float64, price float64) float64 {
	return math.Abs(quantity*price) * c.Rate
}
