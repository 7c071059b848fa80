// Package push maintains the long-lived websocket connection over which the
// backend streams extraction, training, and deployment events. Messages are
// JSON envelopes {"event": name, "data": payload}; the decoded payload is
// re-emitted on the channel's local bus under the event name.
package push

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/geo-workbench/client/internal/eventbus"
	"github.com/geo-workbench/client/internal/metrics"
	"github.com/geo-workbench/client/pkg/logger"
	"github.com/geo-workbench/client/pkg/retry"
)

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type Channel struct {
	url string
	bus *eventbus.Bus

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}
}

func NewChannel(url string) *Channel {
	return &Channel{
		url: url,
		bus: eventbus.New(),
	}
}

// On subscribes to a named event; returns an unsubscribe function.
func (c *Channel) On(name string, handler eventbus.Handler) func() {
	return c.bus.On(name, handler)
}

func (c *Channel) Once(name string, handler eventbus.Handler) func() {
	return c.bus.Once(name, handler)
}

func (c *Channel) Off(name string, handler eventbus.Handler) {
	c.bus.Off(name, handler)
}

// Connect starts the connection loop. The channel dials, reads until the
// connection drops, then redials with backoff until Close is called.
func (c *Channel) Connect(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	c.cancel = cancel
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	go func() {
		defer close(done)
		c.run(ctx)
	}()
}

func (c *Channel) run(ctx context.Context) {
	backoff := retry.Config{
		MaxAttempts:    0,
		InitialDelay:   time.Second,
		MaxDelay:       30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.2,
		Logger:         logger.GetLogger(),
	}

	for {
		var conn *websocket.Conn

		err := retry.Do(ctx, backoff, func() error {
			metrics.PushReconnects.Inc()

			dialed, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
			if err != nil {
				c.bus.Emit(EventError, &ConnectionError{Err: err})
				return err
			}
			conn = dialed
			return nil
		})
		if err != nil {
			// Only a cancelled context exits the dial loop.
			return
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()

		logger.Info("Push channel connected", zap.String("url", c.url))
		c.bus.Emit(EventConnected, nil)

		c.readLoop(conn)

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()

		c.bus.Emit(EventDisconnected, nil)

		select {
		case <-ctx.Done():
			return
		default:
		}

		logger.Warn("Push channel disconnected, reconnecting")
	}
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			logger.Debug("Push channel read ended", zap.Error(err))
			c.bus.Emit(EventError, &ConnectionError{Err: err})
			return
		}

		c.dispatch(data)
	}
}

func (c *Channel) dispatch(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		logger.Warn("Failed to decode push message", zap.Error(err))
		return
	}

	payload, err := decodeEvent(env.Event, env.Data)
	if err != nil {
		logger.Warn("Failed to decode push event payload",
			zap.String("event", env.Event),
			zap.Error(err),
		)
		return
	}

	metrics.PushEventsReceived.WithLabelValues(env.Event).Inc()
	c.bus.Emit(env.Event, payload)
}

func decodeEvent(event string, data json.RawMessage) (any, error) {
	switch event {
	case EventExtractionProgress:
		return decode[ExtractionProgress](data)
	case EventExtractionComplete:
		return decode[ExtractionComplete](data)
	case EventExtractionError:
		return decode[ExtractionError](data)
	case EventTrainingProgress:
		return decode[TrainingProgress](data)
	case EventTrainingComplete:
		return decode[TrainingComplete](data)
	case EventTrainingError:
		return decode[TrainingError](data)
	case EventDeploymentProgress:
		return decode[DeploymentProgress](data)
	case EventDeploymentComplete:
		return decode[DeploymentComplete](data)
	case EventDeploymentLog:
		return decode[DeploymentLog](data)
	case EventDeploymentError:
		return decode[DeploymentError](data)
	default:
		return data, nil
	}
}

func decode[T any](data json.RawMessage) (*T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Send writes an event envelope back to the server.
func (c *Channel) Send(event string, payload any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return websocket.ErrCloseSent
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return conn.WriteJSON(envelope{Event: event, Data: data})
}

// Close stops the connection loop and waits for it to exit.
func (c *Channel) Close() {
	c.mu.Lock()
	cancel := c.cancel
	conn := c.conn
	done := c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
	if done != nil {
		<-done
	}
}
