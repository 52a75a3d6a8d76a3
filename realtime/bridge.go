package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mmdatafocus/teller_backend/config"
	"github.com/mmdatafocus/teller_backend/models"
	"github.com/mmdatafocus/teller_backend/utils"
	"github.com/sirupsen/logrus"
)

var ErrMalformedPush = errors.New("malformed push message")

// PushEnvelope is the body Pub/Sub posts to a push subscription endpoint.
type PushEnvelope struct {
	Message struct {
		Data []byte `json:"data,omitempty"`
		ID   string `json:"id"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// Bridge feeds broker deliveries into the hub, either by pulling a
// subscription or by accepting push requests.
type Bridge struct {
	Hub    *Hub
	Logger *logrus.Logger
}

func validTopic(msg config.BatchEventMessage) error {
	if msg.Topic == models.TopicCatalogUpdate {
		return nil
	}
	_, batchId, _, err := models.ParseBatchTopic(msg.Topic)
	if err != nil {
		return err
	}
	if msg.BatchId != 0 && msg.BatchId != batchId {
		return fmt.Errorf("topic %q does not match batch %d", msg.Topic, msg.BatchId)
	}
	return nil
}

func (b *Bridge) forward(ctx context.Context, msg config.BatchEventMessage) {
	if msg.CorrelationId != "" {
		ctx = utils.SetCorrelationIdInContext(ctx, msg.CorrelationId)
	}
	b.Hub.Publish(ctx, msg)
}

// Run pulls PUBSUB_SUBSCRIPTION until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	return config.ReceiveBatchEvents(ctx, func(ctx context.Context, msg config.BatchEventMessage) error {
		if err := validTopic(msg); err != nil {
			// acked: a bad topic never becomes valid on redelivery
			config.LogError(b.Logger, "bridge.go", "Run", "invalid topic", msg.Topic, err)
			return nil
		}
		b.forward(ctx, msg)
		return nil
	})
}

// HandlePush decodes one push request body and forwards it.
// It returns ErrMalformedPush for bodies that must be acked and dropped.
func (b *Bridge) HandlePush(ctx context.Context, body []byte) error {
	var envelope PushEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		config.LogError(b.Logger, "bridge.go", "HandlePush", "Unmarshal body", string(body), err)
		return ErrMalformedPush
	}
	var msg config.BatchEventMessage
	if err := json.Unmarshal(envelope.Message.Data, &msg); err != nil {
		config.LogError(b.Logger, "bridge.go", "HandlePush", "Unmarshal pubsub message", envelope.Message.ID, err)
		return ErrMalformedPush
	}
	if err := validTopic(msg); err != nil {
		config.LogError(b.Logger, "bridge.go", "HandlePush", "invalid topic", msg.Topic, err)
		return ErrMalformedPush
	}
	if msg.CorrelationId == "" {
		msg.CorrelationId = envelope.Message.ID
	}
	b.forward(ctx, msg)
	return nil
}
