package rabbitmq

import (
	"context"
	"log"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// IConsumer is the view services get of a topic subscription.
// SetHandler must be called before ConsumeMessage.
type IConsumer[T any] interface {
	ConsumeMessage(ctx context.Context)
	SetHandler(handler func(queue string, message mqtt.Message) error)
}

// qosFor sceglie la QoS per topic: gli eventi che alimentano decisioni e
// sink persistenti viaggiano a QoS 1, la telemetria grezza a QoS 0.
func qosFor(topic string) byte {
	t := strings.TrimSpace(topic)
	switch {
	case strings.HasPrefix(t, "sensor/aggregated"),
		strings.HasPrefix(t, "command/irrigation"),
		strings.HasPrefix(t, "event/irrigationResult"),
		strings.HasPrefix(t, "event/irrigationDecision"),
		strings.HasPrefix(t, "event/waterBalance"),
		strings.HasPrefix(t, "event/StateChange"):
		return 1
	}
	return 0
}

// subscribe registra la callback sul topic e attende l'esito della Subscribe.
func subscribe(client mqtt.Client, topic string, dispatch func(string, mqtt.Message) error) bool {
	token := client.Subscribe(topic, qosFor(topic), func(_ mqtt.Client, m mqtt.Message) {
		if err := dispatch(topic, m); err != nil {
			log.Printf("rabbitmq: handler error on %s: %v", topic, err)
		}
	})
	token.Wait()
	if err := token.Error(); err != nil {
		log.Printf("rabbitmq: subscribe %s: %v", topic, err)
		return false
	}
	log.Printf("rabbitmq: subscribed to %s (qos=%d)", topic, qosFor(topic))
	return true
}

// Consumer holds a single subscription on the shared MQTT client.
type Consumer struct {
	client  mqtt.Client
	topic   string
	handler func(queue string, message mqtt.Message) error
}

// NewConsumer creates a Consumer for one topic; handler may be nil and set later.
func NewConsumer(client mqtt.Client, topic string, handler func(queue string, message mqtt.Message) error) *Consumer {
	return &Consumer{client: client, topic: topic, handler: handler}
}

func (c *Consumer) SetHandler(handler func(queue string, message mqtt.Message) error) {
	c.handler = handler
}

// ConsumeMessage subscribes to the topic and blocks until the context is
// cancelled, then drops the subscription.
func (c *Consumer) ConsumeMessage(ctx context.Context) {
	if !subscribe(c.client, c.topic, c.dispatch) {
		return
	}
	<-ctx.Done()
	c.client.Unsubscribe(c.topic).Wait()
}

func (c *Consumer) dispatch(topic string, m mqtt.Message) error {
	if c.handler == nil {
		log.Printf("rabbitmq: no handler for %s, message dropped", topic)
		return nil
	}
	return c.handler(topic, m)
}

// MultiConsumer subscribes a set of topics with one lifecycle.
type MultiConsumer struct {
	client  mqtt.Client
	topics  []string
	handler func(queue string, message mqtt.Message) error
}

func NewMultiConsumer(client mqtt.Client, topics []string, handler func(queue string, message mqtt.Message) error) *MultiConsumer {
	return &MultiConsumer{client: client, topics: topics, handler: handler}
}

func (m *MultiConsumer) SetHandler(handler func(queue string, message mqtt.Message) error) {
	m.handler = handler
}

// ConsumeMessage subscribes every topic, blocks until the context is
// cancelled, then unsubscribes what was actually subscribed.
func (m *MultiConsumer) ConsumeMessage(ctx context.Context) {
	subscribed := make([]string, 0, len(m.topics))
	for _, topic := range m.topics {
		if subscribe(m.client, topic, m.dispatch) {
			subscribed = append(subscribed, topic)
		}
	}

	<-ctx.Done()

	for _, topic := range subscribed {
		m.client.Unsubscribe(topic)
	}
}

func (m *MultiConsumer) dispatch(topic string, msg mqtt.Message) error {
	if m.handler == nil {
		log.Printf("rabbitmq: no handler for %s, message dropped", topic)
		return nil
	}
	return m.handler(topic, msg)
}
