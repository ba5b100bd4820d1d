package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/iliyamo/restaurant-floor/internal/feed"
	"github.com/iliyamo/restaurant-floor/internal/model"
	"github.com/iliyamo/restaurant-floor/internal/utils"
)

func sampleQueue() []feed.KitchenEntry {
	table := uint64(5)
	return []feed.KitchenEntry{
		{
			Item:  model.LineItem{ID: 11, OrderID: 1, Product: model.ProductRef{Kind: model.ProductSingle, ID: 3}, Quantity: 2, State: model.ItemPending},
			Order: feed.OrderSummary{ID: 1, Channel: model.ChannelDineIn, TableID: &table, State: model.OrderPending},
		},
		{
			Item:  model.LineItem{ID: 21, OrderID: 2, Product: model.ProductRef{Kind: model.ProductCombo, ID: 8}, Quantity: 1, State: model.ItemInPreparation},
			Order: feed.OrderSummary{ID: 2, Channel: model.ChannelDelivery, State: model.OrderEnRoute},
		},
	}
}

func TestRenderKitchenText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderKitchen(&buf, sampleQueue(), "text"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "STATE"))
	assert.Contains(t, lines[1], "table 5")
	assert.Contains(t, lines[1], "product 3")
	assert.Contains(t, lines[2], "delivery")
	assert.Contains(t, lines[2], "combo 8")
	assert.Equal(t, "-- 2 items", lines[3])
}

func TestRenderKitchenGolden(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderKitchen(&buf, sampleQueue(), "text"))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "kitchen_text", buf.Bytes())
}

func TestRenderKitchenYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderKitchen(&buf, sampleQueue(), "yaml"))

	var rows []map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "PENDING", rows[0]["state"])
	assert.Equal(t, 5, rows[0]["table"])
	assert.Equal(t, "combo 8", rows[1]["product"])
	assert.NotContains(t, rows[1], "table", "delivery orders have no table")
}

func TestRenderKitchenJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderKitchen(&buf, nil, "json"))
	assert.Equal(t, "[]\n", buf.String())

	buf.Reset()
	require.NoError(t, RenderKitchen(&buf, sampleQueue(), "json"))
	var got []feed.KitchenEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Len(t, got, 2)
}

func TestParseEntities(t *testing.T) {
	got, err := parseEntities([]string{"table", " line_item"})
	require.NoError(t, err)
	assert.Equal(t, []model.EntityType{model.EntityTable, model.EntityLineItem}, got)

	_, err = parseEntities([]string{"menu"})
	assert.Error(t, err)
}

func TestTokenCommand(t *testing.T) {
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"token", "--secret", "dev", "--staff", "9", "--role", utils.RoleKitchen})
	require.NoError(t, cmd.Execute())

	claims, err := utils.ParseAccessToken("dev", strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "9", claims.Subject)
	assert.Equal(t, utils.RoleKitchen, claims.Role)
}

func TestTokenCommandNeedsSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"token"})
	assert.Error(t, cmd.Execute())
}

func TestInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"token", "--secret", "dev", "--format", "xml"})
	assert.Error(t, cmd.Execute())
}
