package rabbitmq

import (
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// IPublisher interface defines the methods to publish a message
type IPublisher interface {
	PublishMessage(message interface{}) error
	PublishToQos(topic string, qos byte, retained bool, payload string) error
	Close()
}

// Publisher holds the client, default topic, and exchange for publishing messages
type Publisher struct {
	client   mqtt.Client
	topic    string
	exchange string
}

var _ IPublisher = (*Publisher)(nil)

// NewPublisher creates a new Publisher instance using the shared MQTT client and topic
func NewPublisher(client mqtt.Client, topic string, exchange string) *Publisher {
	return &Publisher{
		client:   client,
		topic:    topic,
		exchange: exchange,
	}
}

// PublishMessage publishes a message to the default MQTT topic at QoS 0
func (p *Publisher) PublishMessage(message interface{}) error {
	messageStr, ok := message.(string)
	if !ok {
		return fmt.Errorf("invalid message format, expected string")
	}
	return p.PublishToQos(p.topic, 0, false, messageStr)
}

// PublishToQos publishes a payload to an arbitrary topic with the given QoS.
// Usato per gli eventi che i sink a valle devono ricevere almeno una volta.
func (p *Publisher) PublishToQos(topic string, qos byte, retained bool, payload string) error {
	token := p.client.Publish(topic, qos, retained, payload)
	token.Wait()

	if token.Error() != nil {
		return fmt.Errorf("failed to publish message: %v", token.Error())
	}
	log.Printf("Message published to topic '%s' (qos=%d, %d bytes)", topic, qos, len(payload))
	return nil
}

// Close gracefully closes the MQTT connection for the publisher
func (p *Publisher) Close() {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
		log.Println("MQTT client disconnected")
	}
}
