// Package observer implements the per-event publish/subscribe channel used to
// fan notifications out to enrolled participants.
package observer

import (
	"errors"
	"fmt"
)

// Subscriber receives broadcast messages from a Channel.
type Subscriber interface {
	SubscriberID() string
	Receive(message string) error
}

// DeliveryError records a single subscriber that failed to take a message.
type DeliveryError struct {
	SubscriberID string
	Err          error
}

func (e DeliveryError) Error() string {
	return fmt.Sprintf("deliver to subscriber %s: %v", e.SubscriberID, e.Err)
}

func (e DeliveryError) Unwrap() error {
	return e.Err
}

// Channel is an ordered set of subscribers keyed by SubscriberID.
// The zero value is ready to use. Channel is not safe for concurrent use;
// callers serialize access through the owning entity.
type Channel struct {
	subscribers []Subscriber
}

// Subscribe appends s unless a subscriber with the same id is already present.
func (c *Channel) Subscribe(s Subscriber) bool {
	if s == nil || c.indexOf(s.SubscriberID()) >= 0 {
		return false
	}
	c.subscribers = append(c.subscribers, s)
	return true
}

// Unsubscribe removes the subscriber with the same id as s.
func (c *Channel) Unsubscribe(s Subscriber) bool {
	if s == nil {
		return false
	}
	i := c.indexOf(s.SubscriberID())
	if i < 0 {
		return false
	}
	c.subscribers = append(c.subscribers[:i:i], c.subscribers[i+1:]...)
	return true
}

// Contains reports whether a subscriber with the given id is registered.
func (c *Channel) Contains(id string) bool {
	return c.indexOf(id) >= 0
}

// Len returns the number of subscribers.
func (c *Channel) Len() int {
	return len(c.subscribers)
}

// Subscribers returns a copy of the subscriber list in subscription order.
func (c *Channel) Subscribers() []Subscriber {
	out := make([]Subscriber, len(c.subscribers))
	copy(out, c.subscribers)
	return out
}

// Broadcast delivers message to every subscriber in subscription order.
//
// A subscriber that returns an error or panics does not stop delivery to the
// rest; every failure is reported in the joined error as a DeliveryError.
func (c *Channel) Broadcast(message string) error {
	var errs []error
	for _, s := range c.Subscribers() {
		if err := deliver(s, message); err != nil {
			errs = append(errs, DeliveryError{SubscriberID: s.SubscriberID(), Err: err})
		}
	}
	return errors.Join(errs...)
}

func deliver(s Subscriber, message string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber panicked: %v", r)
		}
	}()
	return s.Receive(message)
}

func (c *Channel) indexOf(id string) int {
	for i, s := range c.subscribers {
		if s.SubscriberID() == id {
			return i
		}
	}
	return -1
}
