package queue

import (
	"errors"

	amqp "github.com/rabbitmq/amqp091-go"
)

var errNoAcker = errors.New("message has no acknowledger")

// Message is one delivered job. Exactly one of Ack or Nack should be called.
type Message struct {
	Job         *Job
	DeliveryTag uint64
	// Acker is the consuming channel; *amqp.Channel satisfies it
	Acker amqp.Acknowledger
}

// Ack acknowledges the message
func (m *Message) Ack() error {
	if m.Acker == nil {
		return errNoAcker
	}
	return m.Acker.Ack(m.DeliveryTag, false)
}

// Nack rejects the message. requeue=false routes it to the dead-letter queue.
func (m *Message) Nack(requeue bool) error {
	if m.Acker == nil {
		return errNoAcker
	}
	return m.Acker.Nack(m.DeliveryTag, false, requeue)
}

// GetJob returns the job carried by the message
func (m *Message) GetJob() *Job {
	return m.Job
}

var _ MessageInterface = (*Message)(nil)
