package commission_fee

type CommissionFee interface {
	// Calculate the commission fee for a trade of quantity shares filled at price
	Calculate(quantity float64, price float64) float64
}

type Broker string

const (
	// BrokerPercentage charges a fixed fraction of the trade value
	BrokerPercentage        Broker = "percentage"
	BrokerInteractiveBroker Broker = "interactive_broker"
	BrokerZero              Broker = "zero_commission"
)

// DefaultCommissionRate is the fraction of trade value charged by BrokerPercentage.
const DefaultCommissionRate = 0.001

var AllBrokers = []any{
	BrokerPercentage,
	BrokerInteractiveBroker,
	BrokerZero,
}

// GetCommissionFeeHandler returns the fee model for broker. rate is only used by BrokerPercentage.
func GetCommissionFeeHandler(broker Broker, rate float64) CommissionFee {
	switch broker {
	case BrokerPercentage:
		return NewPercentageCommissionFee(rate)
	case BrokerInteractiveBroker:
		return NewInteractiveBrokerCommissionFee()
	case BrokerZero:
		return NewZeroCommissionFee()
	default:
		return NewZeroCommissionFee()
	}
}
