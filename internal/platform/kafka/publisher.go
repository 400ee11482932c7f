// Package kafka publishes committed audit entries to a Kafka-compatible
// broker using franz-go.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"donation-ledger/internal/audit"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// DefaultTopic receives one record per audit entry.
const DefaultTopic = "ledger.audit"

// eventNamespace derives stable event ids from audit sequence numbers so a
// re-delivered entry carries the same id.
var eventNamespace = uuid.MustParse("5b0c3a0e-8d1f-4f57-9a61-2f1d7c4e9b10")

// Config holds producer settings.
type Config struct {
	Brokers           []string
	Topic             string
	ClientID          string
	Partitions        int32
	ReplicationFactor int16
}

// Publisher writes audit entries to a single topic.
type Publisher struct {
	client *kgo.Client
	topic  string
	cfg    Config
	logger *slog.Logger
}

func NewPublisher(cfg Config, logger *slog.Logger, opts ...kgo.Opt) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "donation-ledger"
	}
	if cfg.Partitions <= 0 {
		cfg.Partitions = 1
	}
	if cfg.ReplicationFactor <= 0 {
		cfg.ReplicationFactor = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	base := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}
	client, err := kgo.NewClient(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("kafka: create client: %w", err)
	}
	return &Publisher{client: client, topic: cfg.Topic, cfg: cfg, logger: logger}, nil
}

// EnsureTopic creates the audit topic if it does not exist yet.
func (p *Publisher) EnsureTopic(ctx context.Context) error {
	adm := kadm.NewClient(p.client)
	resp, err := adm.CreateTopics(ctx, p.cfg.Partitions, p.cfg.ReplicationFactor, nil, p.topic)
	if err != nil {
		return fmt.Errorf("kafka: create topic %s: %w", p.topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("kafka: create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

// Publish produces one record per entry and waits for every ack. Records are
// keyed by entity so a consumer sees one entity's history in order.
func (p *Publisher) Publish(ctx context.Context, entries []audit.Entry) error {
	records := make([]*kgo.Record, 0, len(entries))
	for i := range entries {
		rec, err := p.record(&entries[i])
		if err != nil {
			return err
		}
		records = append(records, rec)
	}
	if err := p.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("kafka: produce %d audit entries: %w", len(records), err)
	}
	return nil
}

func (p *Publisher) record(e *audit.Entry) (*kgo.Record, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("kafka: encode audit entry %d: %w", e.Seq, err)
	}
	seq := strconv.FormatInt(e.Seq, 10)
	return &kgo.Record{
		Topic: p.topic,
		Key:   []byte(string(e.EntityType) + ":" + e.EntityID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_id", Value: []byte(EventID(e.Seq).String())},
			{Key: "seq", Value: []byte(seq)},
			{Key: "action", Value: []byte(e.Action)},
		},
		Timestamp: e.OccurredAt,
	}, nil
}

// EventID is the deterministic id attached to the record for entry seq.
func EventID(seq int64) uuid.UUID {
	return uuid.NewSHA1(eventNamespace, []byte(strconv.FormatInt(seq, 10)))
}

func (p *Publisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

func (p *Publisher) Close() {
	p.client.Close()
	p.logger.Info("kafka publisher closed", "topic", p.topic)
}
