package types

import "time"

type SignalType string

const (
	// SignalTypeBuy opens a long position when flat
	SignalTypeBuy SignalType = "buy"
	// SignalTypeSell liquidates the long position when holding one
	SignalTypeSell SignalType = "sell"
	// SignalTypeHold takes no action
	SignalTypeHold SignalType = "hold"
)

type Signal struct {
	// Time is the date of the bar the signal was generated for
	Time time.Time `json:"time" yaml:"time"`
	// Type is the type of the signal
	Type SignalType `json:"signal" yaml:"signal"`
	// Reason is a human readable explanation. Empty for hold signals.
	Reason string `json:"reason" yaml:"reason"`
	// Index is the bar index the signal applies to
	Index int `json:"index" yaml:"index"`
}
