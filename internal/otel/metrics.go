package otel

import "go.opentelemetry.io/otel/metric"

// Metrics holds all Friday metrics instruments.
type Metrics struct {
	MessageAppends   metric.Int64Counter
	FactObservations metric.Int64Counter
	FactReplacements metric.Int64Counter
	ToolCallDuration metric.Float64Histogram
	ToolCallErrors   metric.Int64Counter
	TaskClaims       metric.Int64Counter
	ClaimConflicts   metric.Int64Counter
	TaskRunDuration  metric.Float64Histogram
	TaskRunErrors    metric.Int64Counter
	TickDuration     metric.Float64Histogram
	StoreRetries     metric.Int64Counter
}

// NewMetrics creates all metric instruments from the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.MessageAppends, err = meter.Int64Counter("friday.messages.appended",
		metric.WithDescription("Conversation messages appended"),
	)
	if err != nil {
		return nil, err
	}

	m.FactObservations, err = meter.Int64Counter("friday.facts.observed",
		metric.WithDescription("Memory fact observations, applied or not"),
	)
	if err != nil {
		return nil, err
	}

	m.FactReplacements, err = meter.Int64Counter("friday.facts.replaced",
		metric.WithDescription("Memory facts replaced by a stronger observation"),
	)
	if err != nil {
		return nil, err
	}

	m.ToolCallDuration, err = meter.Float64Histogram("friday.tool.duration",
		metric.WithDescription("Tool call duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.ToolCallErrors, err = meter.Int64Counter("friday.tool.errors",
		metric.WithDescription("Tool calls completed with failure"),
	)
	if err != nil {
		return nil, err
	}

	m.TaskClaims, err = meter.Int64Counter("friday.tasks.claims",
		metric.WithDescription("Successful task claims"),
	)
	if err != nil {
		return nil, err
	}

	m.ClaimConflicts, err = meter.Int64Counter("friday.tasks.claim_conflicts",
		metric.WithDescription("Task claims lost to a concurrent poller"),
	)
	if err != nil {
		return nil, err
	}

	m.TaskRunDuration, err = meter.Float64Histogram("friday.tasks.run_duration",
		metric.WithDescription("Task execution duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.TaskRunErrors, err = meter.Int64Counter("friday.tasks.run_errors",
		metric.WithDescription("Task executions that reported failure"),
	)
	if err != nil {
		return nil, err
	}

	m.TickDuration, err = meter.Float64Histogram("friday.scheduler.tick_duration",
		metric.WithDescription("Scheduler poll tick duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.StoreRetries, err = meter.Int64Counter("friday.store.busy_retries",
		metric.WithDescription("SQLite busy retries performed by the store"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}
