package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/collabcore/realtime-platform/internal/model"
	"github.com/collabcore/realtime-platform/pkg/metrics"
)

const (
	// StreamName is the name of the collaboration updates stream.
	StreamName = "COLLAB"

	// SubjectPrefix is the prefix for all collaboration subjects.
	SubjectPrefix = "collab"
)

// StreamManager persists realtime updates to JetStream and fans
// presence envelopes out over core NATS. It implements
// collab.UpdateStore and collab.Broadcaster.
type StreamManager struct {
	client *Client
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{client: client}
}

// EnsureStream ensures the collaboration stream exists with proper
// configuration. Updates are the audit trail, so deletes and purges are
// denied.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	// Check if stream exists
	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      365 * 24 * time.Hour,
		MaxBytes:    10 * 1024 * 1024 * 1024,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		DenyDelete:  true,
		DenyPurge:   true,
		Description: "Realtime collaboration updates and presence events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// RecordStreamDepth samples the stream's message count into the
// nats_stream_messages gauge.
func (m *StreamManager) RecordStreamDepth(ctx context.Context) error {
	stream, err := m.client.JetStream().Stream(ctx, StreamName)
	if err != nil {
		return err
	}
	info, err := stream.Info(ctx)
	if err != nil {
		return err
	}
	metrics.StreamMessages.WithLabelValues(StreamName).Set(float64(info.State.Msgs))
	return nil
}

// UpdateSubject returns the subject an update is persisted under.
func UpdateSubject(companyID, roomID string, changeType model.ChangeType) string {
	return fmt.Sprintf("%s.%s.%s.update.%s", SubjectPrefix, companyID, roomID, changeType)
}

// PresenceSubject returns the subject a presence envelope fans out on.
// Envelope types carry a slash (presence/user_joined); the subject
// token keeps only the event name.
func PresenceSubject(companyID, roomID string, msgType model.MessageType) string {
	kind := string(msgType)
	if i := strings.LastIndex(kind, "/"); i >= 0 {
		kind = kind[i+1:]
	}
	return fmt.Sprintf("%s.%s.%s.presence.%s", SubjectPrefix, companyID, roomID, kind)
}

// RoomFilter returns the filter subject for a room's update history.
func RoomFilter(companyID, roomID string) string {
	return fmt.Sprintf("%s.%s.%s.update.>", SubjectPrefix, companyID, roomID)
}

// Persist appends an update to the stream and returns its sequence.
func (m *StreamManager) Persist(ctx context.Context, update *model.Update) (uint64, error) {
	subject := UpdateSubject(update.CompanyID, update.RoomID, update.ChangeType)

	data, err := json.Marshal(update)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal update: %w", err)
	}

	ack, err := m.client.JetStream().Publish(ctx, subject, data)
	if err != nil {
		return 0, fmt.Errorf("failed to publish update: %w", err)
	}

	return ack.Sequence, nil
}

// Broadcast publishes an envelope for the room's fanout consumers.
// Core NATS, not JetStream: presence traffic is fire-and-forget.
func (m *StreamManager) Broadcast(ctx context.Context, roomID string, env *model.Envelope) error {
	subject := PresenceSubject(env.CompanyID, roomID, env.Type)

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	if err := m.client.Conn().Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish envelope: %w", err)
	}
	return nil
}

// GetUpdates replays a room's persisted update history starting after a
// stream sequence.
func (m *StreamManager) GetUpdates(ctx context.Context, companyID, roomID string, afterSequence uint64, limit int) ([]model.Update, uint64, bool, error) {
	js := m.client.JetStream()

	consumerConfig := jetstream.ConsumerConfig{
		FilterSubject: RoomFilter(companyID, roomID),
		AckPolicy:     jetstream.AckNonePolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	}
	if afterSequence > 0 {
		consumerConfig.DeliverPolicy = jetstream.DeliverByStartSequencePolicy
		consumerConfig.OptStartSeq = afterSequence + 1
	}

	consumer, err := js.CreateConsumer(ctx, StreamName, consumerConfig)
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to create consumer: %w", err)
	}

	var updates []model.Update
	var lastSequence uint64

	batch, err := consumer.Fetch(limit, jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to fetch updates: %w", err)
	}

	for msg := range batch.Messages() {
		var update model.Update
		if err := json.Unmarshal(msg.Data(), &update); err != nil {
			continue
		}

		if meta, err := msg.Metadata(); err == nil {
			update.Sequence = meta.Sequence.Stream
			lastSequence = meta.Sequence.Stream
		}

		updates = append(updates, update)
	}

	if batch.Error() != nil && batch.Error() != context.DeadlineExceeded {
		return nil, 0, false, fmt.Errorf("batch error: %w", batch.Error())
	}

	hasMore := len(updates) == limit

	return updates, lastSequence, hasMore, nil
}
