package alert

import "time"

// Channel identifies a delivery channel for the dedup key.
type Channel string

const (
	ChannelEmail Channel = "EMAIL"
	ChannelPush  Channel = "PUSH"
)

// ThresholdKind discriminates the two ways a reminder window is identified.
type ThresholdKind int

const (
	// ThresholdInstallment pertains to a specific installment index.
	ThresholdInstallment ThresholdKind = iota
	// ThresholdDaysBefore pertains to a fixed offset before a deadline.
	ThresholdDaysBefore
)

// Threshold is the tagged union identifying which reminder window a dispatch
// belongs to: Installment(k) for rental payments, DaysBefore(n) for deadline
// offsets. Exactly one of the two values is meaningful, selected by Kind.
type Threshold struct {
	Kind  ThresholdKind
	Value int
}

// Installment builds a threshold for installment k.
func Installment(k int) Threshold {
	return Threshold{Kind: ThresholdInstallment, Value: k}
}

// DaysBefore builds a threshold for a dispatch n days ahead of a deadline.
func DaysBefore(n int) Threshold {
	return Threshold{Kind: ThresholdDaysBefore, Value: n}
}

// DispatchLog is the persisted dedup marker: at most one row may exist for a
// given (alert, channel, dispatch date, threshold) tuple, enforced by a
// uniqueness constraint. Rows are written once, after a successful send to at
// least one recipient, and never updated or deleted.
type DispatchLog struct {
	ID           int64
	AlertID      int64
	Channel      Channel
	DispatchDate time.Time // calendar date, no time component
	Threshold    Threshold
	SentCount    int // successful sends recorded for the channel on this run
	CreatedAt    time.Time
}
