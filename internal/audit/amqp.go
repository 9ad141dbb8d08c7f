package audit

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/streadway/amqp"
)

// AMQPSink publishes audit events as JSON messages to a RabbitMQ queue so an
// external consumer can archive them. Each publish dials a fresh connection;
// audit volume is one message per state-changing action, so connection churn
// is not a concern here.
type AMQPSink struct {
	URL   string
	Queue string
}

// NewAMQPSink builds a sink for the given broker URL and queue name.
func NewAMQPSink(url, queue string) *AMQPSink {
	return &AMQPSink{URL: url, Queue: queue}
}

func (s *AMQPSink) Record(action, resourceType, resourceID string, details map[string]any) {
	event := Event{
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
		At:           time.Now().UTC(),
	}
	if err := s.publish(event); err != nil {
		slog.Warn("audit publish failed", "action", action, "queue", s.Queue, "error", err)
	}
}

func (s *AMQPSink) publish(event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	conn, err := amqp.Dial(s.URL)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(
		s.Queue, // name
		false,   // durable
		false,   // auto-delete
		false,   // exclusive
		false,   // no-wait
		nil,     // arguments
	)
	if err != nil {
		return err
	}

	return ch.Publish(
		"",     // exchange
		q.Name, // routing key
		false,  // mandatory
		false,  // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
}
