package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/parking-sensor/internal/logic"
)

const (
	clientID       = "parking-sensor"
	publishTimeout = 5 * time.Second
	bufferSize     = 100
)

// client is the subset of paho.Client used by RealPublisher.
type client interface {
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are held in a bounded buffer and replayed, oldest
// first, once the client reconnects.
type RealPublisher struct {
	client client
	log    *zap.SugaredLogger
	now    func() time.Time

	mu        sync.Mutex
	buf       *ringBuffer
	connected bool // at least one successful connect
}

// NewRealPublisher starts connecting to broker in the background and returns
// immediately; the broker does not have to be reachable at startup.
// The broker retains a SHUTDOWN/MQTT_DISCONNECT will if the connection drops.
func NewRealPublisher(broker string, log *zap.SugaredLogger) (*RealPublisher, error) {
	p := &RealPublisher{
		log: log,
		now: time.Now,
		buf: newRingBuffer(bufferSize),
	}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetWill(TopicSystem, string(will), 1, true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(paho.Client) { p.onConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warnf("mqtt: connection lost: %v", err)
		})

	c := paho.NewClient(opts)
	p.client = c
	c.Connect()

	return p, nil
}

// onConnect replays buffered messages and announces reconnection.
// paho calls it on its own goroutine; publishing happens on a new one so the
// handler returns promptly.
func (p *RealPublisher) onConnect() {
	p.mu.Lock()
	msgs, dropped := p.buf.drainAll()
	reconnect := p.connected
	p.connected = true
	p.mu.Unlock()

	p.log.Infof("mqtt: connected (replaying %d buffered, %d dropped)", len(msgs), dropped)

	go func() {
		for _, m := range msgs {
			if err := p.send(m); err != nil {
				p.log.Warnf("mqtt: replay %s: %v", m.topic, err)
			}
		}
		if reconnect {
			if err := p.announceReconnect(); err != nil {
				p.log.Warnf("mqtt: announce reconnect: %v", err)
			}
		}
	}()
}

// announceReconnect sends the RECONNECTED system event directly, bypassing
// the buffer.
func (p *RealPublisher) announceReconnect() error {
	payload, err := FormatSystemPayload(SystemEvent{Timestamp: p.now(), Event: "RECONNECTED"})
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return p.send(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1})
}

// Publish sends a zone event to the MQTT broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	return p.publish(bufferedMsg{topic: Topic, payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) - lifecycle events should be delivered
	return p.publish(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) publish(m bufferedMsg) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		dropped := p.buf.push(m)
		p.mu.Unlock()
		if dropped {
			p.log.Debugf("mqtt: buffer full (%d messages), dropping oldest", bufferSize)
		}
		return nil
	}
	return p.send(m)
}

func (p *RealPublisher) send(m bufferedMsg) error {
	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", m.topic, err)
	}
	return nil
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// IsConnected reports whether the broker connection is currently up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
