package rabbitmq

/*
Storage section expected in the config:

host = "localhost"
port = "5672"
user = "guest"
password = "guest"
exchange = "receiver"
routing_key = "location"
*/

import (
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"

	"github.com/alitagps/tk103/libs/tk103"
)

type Connector struct {
	connection *amqp.Connection
	channel    *amqp.Channel
	config     map[string]string
}

func (c *Connector) Init(cfg map[string]string) error {
	var err error
	if cfg == nil {
		return fmt.Errorf("invalid configuration reference")
	}
	c.config = cfg

	connStr := fmt.Sprintf("amqp://%s:%s@%s:%s/",
		c.config["user"], c.config["password"], c.config["host"], c.config["port"])
	if c.connection, err = amqp.Dial(connStr); err != nil {
		return fmt.Errorf("RabbitMQ connection failed: %v", err)
	}

	if c.channel, err = c.connection.Channel(); err != nil {
		return fmt.Errorf("failed to open a channel: %v", err)
	}

	if err = c.channel.ExchangeDeclare(
		c.config["exchange"],
		"topic",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("failed to declare exchange: %v", err)
	}
	return nil
}

func (c *Connector) Save(loc *tk103.Location) error {
	if loc == nil {
		return fmt.Errorf("invalid location reference")
	}

	payload, err := json.Marshal(loc)
	if err != nil {
		return fmt.Errorf("failed to serialize location: %v", err)
	}

	if err := c.channel.Publish(
		c.config["exchange"],
		c.config["routing_key"],
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        payload,
		},
	); err != nil {
		return fmt.Errorf("failed to publish location: %v", err)
	}
	return nil
}

func (c *Connector) Close() error {
	if err := c.channel.Close(); err != nil {
		return err
	}
	return c.connection.Close()
}
