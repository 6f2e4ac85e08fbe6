package errors

// ErrorCode identifies the kind of failure independent of its message.
type ErrorCode int

const (
	ErrCodeUnknown ErrorCode = 1

	// Validation
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInsufficientData     ErrorCode = 106
	ErrCodeInvalidPeriod        ErrorCode = 108
	ErrCodeMissingParameter     ErrorCode = 109
	ErrCodeInvalidVersion       ErrorCode = 110
	ErrCodeDataIntegrity        ErrorCode = 120

	// Data and storage
	ErrCodeDataNotFound          ErrorCode = 200
	ErrCodeDataSourceUnavailable ErrorCode = 201
	ErrCodeQueryFailed           ErrorCode = 202
	ErrCodeNoDataFound           ErrorCode = 204
	ErrCodeResultWriteFailed     ErrorCode = 206

	// Strategy
	ErrCodeStrategyNotFound    ErrorCode = 400
	ErrCodeStrategyConfigError ErrorCode = 401
	ErrCodeVersionMismatch     ErrorCode = 404

	// Backtest
	ErrCodeBacktestConfigError ErrorCode = 602

	// Market data
	ErrCodeMarketDataFetchFailed ErrorCode = 700
	ErrCodeMarketDataWriteFailed ErrorCode = 701
	ErrCodeMarketDataParseFailed ErrorCode = 702
	ErrCodeInvalidProvider       ErrorCode = 704
)

// Category names the group a code belongs to.
func (c ErrorCode) Category() string {
	switch c / 100 {
	case 1:
		return "validation"
	case 2:
		return "data"
	case 4:
		return "strategy"
	case 6:
		return "backtest"
	case 7:
		return "market_data"
	default:
		return "unknown"
	}
}
