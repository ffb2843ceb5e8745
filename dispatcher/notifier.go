package dispatcher

import (
	"context"
	"fmt"

	"github.com/absmach/fedcoord/pkg/mqtt"
)

// Notifier announces new model versions outside the client event channel.
type Notifier interface {
	NotifyModel(ctx context.Context, a Announcement) error
}

type mqttNotifier struct {
	pubsub mqtt.PubSub
	topic  string
}

func NewMQTTNotifier(pubsub mqtt.PubSub, baseTopic string) Notifier {
	return &mqttNotifier{
		pubsub: pubsub,
		topic:  fmt.Sprintf(mqtt.ModelsTopicTemplate, baseTopic),
	}
}

func (n *mqttNotifier) NotifyModel(ctx context.Context, a Announcement) error {
	return n.pubsub.Publish(ctx, n.topic, a)
}

// SubscribeControl applies hyperparameters published on the control topic of
// baseTopic. The returned func unsubscribes.
func (d *Dispatcher) SubscribeControl(ctx context.Context, pubsub mqtt.PubSub, baseTopic string) (func(context.Context) error, error) {
	topic := fmt.Sprintf(mqtt.ControlTopicTemplate, baseTopic)
	handler := func(_ string, msg map[string]any) error {
		return d.SetHyperparams(ctx, msg)
	}
	if err := pubsub.Subscribe(ctx, topic, handler); err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	return func(ctx context.Context) error {
		return pubsub.Unsubscribe(ctx, topic)
	}, nil
}
