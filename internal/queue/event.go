// Package queue carries floor change events over RabbitMQ.  Events go to
// one topic exchange; the routing key is the entity type, so each
// observer binds only the aggregates it follows.
package queue

import (
	"encoding/json"
	"fmt"

	"github.com/iliyamo/restaurant-floor/internal/model"
)

// DefaultExchange is the topic exchange change events are published to.
const DefaultExchange = "floor.changes"

// RoutingKey returns the routing key for events about entity.
func RoutingKey(entity model.EntityType) string { return string(entity) }

// Encode serialises ev for the wire.
func Encode(ev model.ChangeEvent) ([]byte, error) {
	if !ev.Entity.Valid() {
		return nil, fmt.Errorf("encode: unknown entity %q", ev.Entity)
	}
	return json.Marshal(ev)
}

// Decode parses a message body.  When routingKey is set it must agree
// with the entity named in the body.
func Decode(body []byte, routingKey string) (model.ChangeEvent, error) {
	var ev model.ChangeEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return model.ChangeEvent{}, fmt.Errorf("unmarshal: %w", err)
	}
	if !ev.Entity.Valid() {
		return model.ChangeEvent{}, fmt.Errorf("unknown entity %q", ev.Entity)
	}
	if ev.Kind != model.ChangeUpsert && ev.Kind != model.ChangeDelete {
		return model.ChangeEvent{}, fmt.Errorf("unknown change kind %q", ev.Kind)
	}
	if routingKey != "" && routingKey != RoutingKey(ev.Entity) {
		return model.ChangeEvent{}, fmt.Errorf("routing key %q does not match entity %q", routingKey, ev.Entity)
	}
	return ev, nil
}
