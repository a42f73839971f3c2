package enums

import "slices"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateRemittance OutboxAggregateType = "remittance"
	AggregateSeedFund   OutboxAggregateType = "seed_fund"
	AggregateCycle      OutboxAggregateType = "cycle"
)

func (a OutboxAggregateType) IsValid() bool {
	return slices.Contains([]OutboxAggregateType{AggregateRemittance, AggregateSeedFund, AggregateCycle}, a)
}

// OutboxEventType maps to the event_type enum in Postgres. Each event type
// belongs to exactly one aggregate type.
type OutboxEventType string

const (
	EventRemittanceConfirmed OutboxEventType = "remittance_confirmed"
	EventRemittanceRejected  OutboxEventType = "remittance_rejected"
	EventFundDistributed     OutboxEventType = "fund_distributed"
	EventCycleReset          OutboxEventType = "cycle_reset"
	EventSeasonReset         OutboxEventType = "season_reset"
)

func (e OutboxEventType) IsValid() bool {
	return slices.Contains([]OutboxEventType{
		EventRemittanceConfirmed,
		EventRemittanceRejected,
		EventFundDistributed,
		EventCycleReset,
		EventSeasonReset,
	}, e)
}

// OutboxDLQErrorReason records why the relay parked a row.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	return r == OutboxDLQReasonMaxAttempts || r == OutboxDLQReasonNonRetryable
}
