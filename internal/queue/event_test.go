package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/restaurant-floor/internal/model"
)

func TestEncodeDecode(t *testing.T) {
	at := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	ev := model.LineItemUpserted(model.LineItem{ID: 7, OrderID: 2, State: model.ItemInPreparation, Quantity: 1, Version: 3}, at)

	body, err := Encode(ev)
	require.NoError(t, err)

	got, err := Decode(body, RoutingKey(model.EntityLineItem))
	require.NoError(t, err)
	assert.Equal(t, ev.ID, got.ID)
	assert.Equal(t, model.EntityLineItem, got.Entity)
	assert.Equal(t, uint64(3), got.Version)
	assert.JSONEq(t, string(ev.Snapshot), string(got.Snapshot))
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		key  string
	}{
		{"not json", `{`, ""},
		{"unknown entity", `{"kind":"UPSERT","entity":"menu","entity_id":1}`, ""},
		{"unknown kind", `{"kind":"PATCH","entity":"table","entity_id":1}`, ""},
		{"routing key mismatch", `{"kind":"DELETE","entity":"table","entity_id":1,"version":2}`, "order"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.body), tt.key)
			assert.Error(t, err)
		})
	}
}

func TestEncodeRejectsUnknownEntity(t *testing.T) {
	_, err := Encode(model.ChangeEvent{Entity: "menu"})
	assert.Error(t, err)
}
