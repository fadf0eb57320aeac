// Package command validates valve commands and publishes them to the
// device control topic.
package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
)

var (
	ErrInvalidCommand = errors.New("invalid command")
	ErrPublish        = errors.New("publish failed")
)

const (
	OpenValve = "open_valve"

	// QoS 1: the broker acknowledges delivery at least once.
	controlQoS byte = 1
)

// Command is the payload sent to the controller firmware.
type Command struct {
	Name            string `json:"command"`
	DurationSeconds int    `json:"duration_seconds"`
}

// Publisher is satisfied by *mqttclient.Client.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte, qos byte, retained bool) error
}

type Service struct {
	pub   Publisher
	topic string
}

func NewService(pub Publisher, topic string) *Service {
	return &Service{pub: pub, topic: topic}
}

// Decode parses a request body into a Command. duration_seconds must be
// present and a non-negative JSON integer.
func Decode(body []byte) (Command, error) {
	var raw struct {
		Command         *string          `json:"command"`
		DurationSeconds *json.RawMessage `json:"duration_seconds"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return Command{}, err
	}

	var cmd Command
	if raw.Command != nil {
		cmd.Name = *raw.Command
	}
	if raw.DurationSeconds == nil {
		return Command{}, fmt.Errorf("%w: duration_seconds (int) is required", ErrInvalidCommand)
	}
	if err := json.Unmarshal(*raw.DurationSeconds, &cmd.DurationSeconds); err != nil {
		return Command{}, fmt.Errorf("%w: duration_seconds must be an integer", ErrInvalidCommand)
	}
	return cmd, cmd.Validate()
}

func (c Command) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: command (string) is required", ErrInvalidCommand)
	}
	if c.DurationSeconds < 0 {
		return fmt.Errorf("%w: duration_seconds must be >= 0", ErrInvalidCommand)
	}
	return nil
}

// Send validates cmd and publishes it to the control topic.
func (s *Service) Send(ctx context.Context, cmd Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}

	log.Printf("publishing to %s: %s", s.topic, payload)
	if err := s.pub.Publish(ctx, s.topic, payload, controlQoS, false); err != nil {
		observePublish("error")
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}
	observePublish("ok")
	return nil
}
