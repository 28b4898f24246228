package ingest

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"TradePulse/internal/eventstore"
	"TradePulse/internal/model"
	"TradePulse/internal/storage"
)

// Stream identifiers reported by the upstream trading bot.
const (
	StreamTradeSignal = "trade_signal"
	StreamPrice       = "price"
	StreamBalance     = "balance"
	StreamBuyBTC      = "buy_btc"
	StreamSellBTC     = "sell_btc"
	StreamBuyNDX      = "buy_ndx"
	StreamSellNDX     = "sell_ndx"
	StreamInitialInfo = "initial_info"
)

const (
	topicStream     = "stream"
	eventExtraction = "extraction"
)

// Envelope is the inbound notification wrapper. Notification is a
// JSON-encoded string, decoded separately.
type Envelope struct {
	Topic        string `json:"topic"`
	Event        string `json:"event"`
	Notification string `json:"notification"`
}

type notification struct {
	Content struct {
		Attributes struct {
			ModelUUID string `json:"model_uuid"`
		} `json:"attributes"`
	} `json:"content"`
	Instance   string       `json:"instance"`
	Datastream []streamItem `json:"datastream"`
}

type streamItem struct {
	Point struct {
		ID        string          `json:"stream:id"`
		Value     json.RawMessage `json:"stream:value"`
		Timestamp string          `json:"stream:timestamp"`
		Source    string          `json:"stream:source"`
	} `json:"stream:point"`
}

type signalValue struct {
	BTCSignal string `json:"btcSignal"`
	NDXSignal string `json:"ndxSignal"`
}

type priceValue struct {
	BTCPrice float64 `json:"btcPrice"`
	NDXPrice float64 `json:"ndxPrice"`
}

type balanceValue struct {
	Balance           float64 `json:"balance"`
	UnrealizedBalance float64 `json:"unrealizedBalance"`
}

type initialInfoValue struct {
	Balance           float64 `json:"balance"`
	UnrealizedBalance float64 `json:"unrealizedBalance"`
	BTCPrice          float64 `json:"btcPrice"`
	NDXPrice          float64 `json:"ndxPrice"`
	BTCSignal         string  `json:"btcSignal"`
	NDXSignal         string  `json:"ndxSignal"`
	BTCAmount         float64 `json:"btcAmount"`
	NDXAmount         float64 `json:"ndxAmount"`
}

type rawEnvelope struct {
	receivedAt int64
	body       []byte
}

// Ingestor maps inbound notification envelopes into canonical metric events.
// Raw bodies go through a bounded write-behind queue drained by Close, so a
// slow disk backs up into drops rather than goroutines.
type Ingestor struct {
	store     *eventstore.Store
	rawLog    storage.EventLog
	modelUUID string
	log       zerolog.Logger

	rawCh     chan rawEnvelope
	drained   chan struct{}
	closeOnce sync.Once
}

// New creates an Ingestor that accepts only envelopes carrying the given
// model UUID, and starts its raw-envelope writer.
func New(store *eventstore.Store, rawLog storage.EventLog, modelUUID string, logger zerolog.Logger) *Ingestor {
	i := &Ingestor{
		store:     store,
		rawLog:    rawLog,
		modelUUID: modelUUID,
		log:       logger.With().Str("component", "ingest").Logger(),
		rawCh:     make(chan rawEnvelope, 256),
		drained:   make(chan struct{}),
	}
	go i.persistLoop()
	return i
}

func (i *Ingestor) persistLoop() {
	defer close(i.drained)
	for env := range i.rawCh {
		if err := i.rawLog.AppendRawEnvelope(env.receivedAt, env.body); err != nil {
			i.log.Error().Err(err).Msg("persist raw envelope failed")
		}
	}
}

// Close stops the raw-envelope writer after draining queued bodies.
func (i *Ingestor) Close() {
	i.closeOnce.Do(func() {
		close(i.rawCh)
		<-i.drained
	})
}

// Handle processes one inbound envelope. Unrecognized or malformed input is
// logged and skipped; it is never an error to the transport caller. The raw
// body is persisted regardless of whether the envelope is accepted.
func (i *Ingestor) Handle(body []byte) {
	select {
	case i.rawCh <- rawEnvelope{receivedAt: time.Now().UnixMilli(), body: body}:
	default:
		i.log.Warn().Msg("raw envelope queue full, dropping from durable log")
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		i.log.Info().Err(err).Msg("not a parseable envelope")
		return
	}
	if env.Topic != topicStream || env.Event != eventExtraction {
		i.log.Info().Str("topic", env.Topic).Str("event", env.Event).Msg("not a stream event")
		return
	}

	var note notification
	if err := json.Unmarshal([]byte(env.Notification), &note); err != nil {
		i.log.Info().Err(err).Msg("not a valid notification")
		return
	}
	if note.Content.Attributes.ModelUUID != i.modelUUID {
		i.log.Info().Str("model_uuid", note.Content.Attributes.ModelUUID).Msg("not the right model uuid")
		return
	}

	for _, item := range note.Datastream {
		i.handlePoint(note.Instance, item)
	}
}

// handlePoint resolves one datastream point to canonical metric appends.
// One bad point must not drop the rest of the batch.
func (i *Ingestor) handlePoint(instanceID string, item streamItem) {
	point := item.Point
	ts, err := parseTimestamp(point.Timestamp)
	if err != nil {
		i.log.Info().Err(err).Str("stream", point.ID).Msg("skipping point with bad timestamp")
		return
	}

	switch point.ID {
	case StreamTradeSignal:
		var v signalValue
		if err := json.Unmarshal(point.Value, &v); err != nil {
			i.log.Info().Err(err).Str("stream", point.ID).Msg("skipping undecodable point")
			return
		}
		i.store.Append(instanceID, model.MetricBTCSignal, v.BTCSignal, ts)
		i.store.Append(instanceID, model.MetricNDXSignal, v.NDXSignal, ts)

	case StreamPrice:
		var v priceValue
		if err := json.Unmarshal(point.Value, &v); err != nil {
			i.log.Info().Err(err).Str("stream", point.ID).Msg("skipping undecodable point")
			return
		}
		i.store.Append(instanceID, model.MetricBTCPrice, v.BTCPrice, ts)
		i.store.Append(instanceID, model.MetricNDXPrice, v.NDXPrice, ts)

	case StreamBalance:
		var v balanceValue
		if err := json.Unmarshal(point.Value, &v); err != nil {
			i.log.Info().Err(err).Str("stream", point.ID).Msg("skipping undecodable point")
			return
		}
		i.store.Append(instanceID, model.MetricBalance, v.Balance, ts)
		i.store.Append(instanceID, model.MetricUnrealizedBalance, v.UnrealizedBalance, ts)

	case StreamBuyBTC, StreamSellBTC, StreamBuyNDX, StreamSellNDX:
		var amount float64
		if err := json.Unmarshal(point.Value, &amount); err != nil {
			i.log.Info().Err(err).Str("stream", point.ID).Msg("skipping undecodable point")
			return
		}
		i.handleTransaction(instanceID, point.ID, point.Source, amount, ts)

	case StreamInitialInfo:
		var v initialInfoValue
		if err := json.Unmarshal(point.Value, &v); err != nil {
			i.log.Info().Err(err).Str("stream", point.ID).Msg("skipping undecodable point")
			return
		}
		i.store.Append(instanceID, model.MetricBalance, v.Balance, ts)
		i.store.Append(instanceID, model.MetricUnrealizedBalance, v.UnrealizedBalance, ts)
		i.store.Append(instanceID, model.MetricBTCPrice, v.BTCPrice, ts)
		i.store.Append(instanceID, model.MetricNDXPrice, v.NDXPrice, ts)
		i.store.Append(instanceID, model.MetricBTCSignal, v.BTCSignal, ts)
		i.store.Append(instanceID, model.MetricNDXSignal, v.NDXSignal, ts)
		i.store.Append(instanceID, model.MetricBTCAmount, v.BTCAmount, ts)
		i.store.Append(instanceID, model.MetricNDXAmount, v.NDXAmount, ts)

	default:
		i.log.Info().Str("stream", point.ID).Msg("unknown stream id")
	}
}

// handleTransaction reflects an executed bot trade into the series. On buy
// the balance is fully deployed into the position; on sell the position is
// flat and the balance holds the proceeds. The ledger stays authoritative
// for actual balances; this is for charting only.
func (i *Ingestor) handleTransaction(instanceID, streamID, source string, amount float64, ts int64) {
	actionKey, amountKey := model.MetricNDXAction, model.MetricNDXAmount
	if strings.Contains(streamID, "btc") {
		actionKey, amountKey = model.MetricBTCAction, model.MetricBTCAmount
	}

	if source == "buy" {
		i.store.Append(instanceID, actionKey, string(model.SignalBuy), ts)
		i.store.Append(instanceID, amountKey, amount, ts)
		i.store.Append(instanceID, model.MetricBalance, 0.0, ts)
	} else {
		i.store.Append(instanceID, actionKey, string(model.SignalSell), ts)
		i.store.Append(instanceID, amountKey, 0.0, ts)
		i.store.Append(instanceID, model.MetricBalance, amount, ts)
	}
}

func parseTimestamp(s string) (int64, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}
