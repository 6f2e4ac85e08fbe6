package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

// PriceBar is one trading day of a single security.
type PriceBar struct {
	Symbol   string    `json:"symbol" yaml:"symbol" csv:"symbol"`
	Date     time.Time `json:"trading_date" yaml:"trading_date" csv:"trading_date" validate:"required"`
	Open     float64   `json:"open_price" yaml:"open_price" csv:"open_price" validate:"gt=0"`
	High     float64   `json:"high_price" yaml:"high_price" csv:"high_price" validate:"gt=0"`
	Low      float64   `json:"low_price" yaml:"low_price" csv:"low_price" validate:"gt=0"`
	Close    float64   `json:"close_price" yaml:"close_price" csv:"close_price" validate:"gt=0"`
	AdjClose float64   `json:"adjusted_close" yaml:"adjusted_close" csv:"adjusted_close"`
	Volume   float64   `json:"volume" yaml:"volume" csv:"volume" validate:"gte=0"`
}

var barValidator = validator.New()

// Validate checks that every price is positive and that open and close lie
// inside the [low, high] range.
func (b PriceBar) Validate() error {
	if err := barValidator.Struct(b); err != nil {
		return errors.Wrapf(errors.ErrCodeDataIntegrity, err, "invalid price bar on %s", b.Date.Format(time.DateOnly))
	}

	if b.High < b.Low {
		return errors.Newf(errors.ErrCodeDataIntegrity, "price bar on %s has high %.4f below low %.4f",
			b.Date.Format(time.DateOnly), b.High, b.Low)
	}

	if b.Open > b.High || b.Open < b.Low {
		return errors.Newf(errors.ErrCodeDataIntegrity, "price bar on %s has open %.4f outside [%.4f, %.4f]",
			b.Date.Format(time.DateOnly), b.Open, b.Low, b.High)
	}

	if b.Close > b.High || b.Close < b.Low {
		return errors.Newf(errors.ErrCodeDataIntegrity, "price bar on %s has close %.4f outside [%.4f, %.4f]",
			b.Date.Format(time.DateOnly), b.Close, b.Low, b.High)
	}

	return nil
}
