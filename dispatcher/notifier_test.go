package dispatcher_test

import (
	"context"
	"errors"
	"testing"

	"github.com/absmach/fedcoord/dispatcher"
	"github.com/absmach/fedcoord/pkg/fl"
	"github.com/absmach/fedcoord/pkg/mqtt"
	"github.com/absmach/fedcoord/pkg/mqtt/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMQTTNotifier(t *testing.T) {
	errBroker := errors.New("broker unavailable")
	a := dispatcher.Announcement{ModelVersion: 4, Clients: 2, Timestamp: 1700000000000}

	cases := []struct {
		desc string
		err  error
	}{
		{desc: "published", err: nil},
		{desc: "broker error", err: errBroker},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			ps := new(mocks.MockPubSub)
			ps.On("Publish", context.Background(), "lab/fl/models/next", a).Return(tc.err)

			n := dispatcher.NewMQTTNotifier(ps, "lab")
			err := n.NotifyModel(context.Background(), a)
			assert.ErrorIs(t, err, tc.err)
			ps.AssertExpectations(t)
		})
	}
}

func TestSubscribeControl(t *testing.T) {
	errBroker := errors.New("broker unavailable")
	const topic = "lab/fl/control/hyperparams"

	cases := []struct {
		desc   string
		subErr error
		err    error
	}{
		{desc: "applies published hyperparams", subErr: nil, err: nil},
		{desc: "subscribe fails", subErr: errBroker, err: errBroker},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			ctx := context.Background()
			svc := newCoordinator(t, 1, fl.WeightSet{vec(t, 1)})
			d := dispatcher.New(ctx, dispatcher.Config{QueueSize: 1}, svc, logger)
			defer d.Close()

			c := newConn("a")
			require.NoError(t, d.Connect(ctx, c))
			c.next(t)

			var handler mqtt.Handler
			ps := new(mocks.MockPubSub)
			ps.On("Subscribe", ctx, topic, mock.Anything).Run(func(args mock.Arguments) {
				handler = args.Get(2).(mqtt.Handler)
			}).Return(tc.subErr)

			unsubscribe, err := d.SubscribeControl(ctx, ps, "lab")
			assert.ErrorIs(t, err, tc.err)
			if tc.err != nil {
				assert.Nil(t, unsubscribe)
				ps.AssertExpectations(t)

				return
			}

			require.NotNil(t, handler)
			require.NoError(t, handler(topic, map[string]any{"lr": 0.1}))
			msg := c.next(t)
			assert.Equal(t, map[string]any{"lr": 0.1}, msg.Hyperparams)
			assert.Equal(t, map[string]any{"lr": 0.1}, svc.Hyperparams(ctx))

			ps.On("Unsubscribe", ctx, topic).Return(nil)
			require.NoError(t, unsubscribe(ctx))
			ps.AssertExpectations(t)
		})
	}
}
