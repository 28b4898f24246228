package model

// MetricKey is the canonical name of one observed quantity within an instance.
type MetricKey string

const (
	MetricBTCPrice          MetricKey = "btcPrice"
	MetricNDXPrice          MetricKey = "ndxPrice"
	MetricBalance           MetricKey = "balance"
	MetricUnrealizedBalance MetricKey = "unrealizedBalance"
	MetricBTCAmount         MetricKey = "btcAmount"
	MetricNDXAmount         MetricKey = "ndxAmount"
	MetricBTCSignal         MetricKey = "btcSignal"
	MetricNDXSignal         MetricKey = "ndxSignal"
	MetricBTCAction         MetricKey = "btcAction"
	MetricNDXAction         MetricKey = "ndxAction"
)

// Event is a single timestamped observation. Time is the upstream-reported
// timestamp in epoch millis; ServerTime is local receipt time used only for
// incremental-poll cursoring. Immutable once created.
type Event struct {
	Value      any   `json:"value"`
	Time       int64 `json:"time"`
	ServerTime int64 `json:"serverTime"`
}

// Series is the time-ordered event history of one (instance, metric) pair.
type Series []Event

// InstanceSnapshot maps metric keys to their series for one instance.
type InstanceSnapshot map[MetricKey]Series

// EventMap is the full instance → metric → series mapping.
type EventMap map[string]InstanceSnapshot
