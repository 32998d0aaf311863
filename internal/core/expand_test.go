package core

import (
	"fmt"
	"testing"

	"github.com/JonMunkholm/shipimport/internal/sheet"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shipmentTable(rows ...[]string) *sheet.Table {
	return &sheet.Table{
		Name:   "shipping_data_2.xlsx",
		Header: []string{"shipment_identifier", "origin", "destination", "driver_identifier"},
		Rows:   rows,
	}
}

func productTable(rows ...[]string) *sheet.Table {
	return &sheet.Table{
		Name:   "shipping_data_1.xlsx",
		Header: []string{"shipment_identifier", "product", "on_time", "quantity"},
		Rows:   rows,
	}
}

func expandTables(t *testing.T, ships, lines *sheet.Table, policy Policy) ([]ShipmentGroup, []ExpandedRow, error) {
	t.Helper()
	s, err := ParseShipments(ships)
	require.NoError(t, err)
	l, err := ParseProductLines(lines)
	require.NoError(t, err)
	groups := GroupByShipment(Join(s, l))
	rows, err := Expand(groups, policy)
	return groups, rows, err
}

func qty(n int64) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.NewFromInt(n), Valid: true}
}

func TestExpand_SingleShipmentTwoProducts(t *testing.T) {
	_, rows, err := expandTables(t,
		shipmentTable([]string{"S1", "NYC", "LA", "D1"}),
		productTable(
			[]string{"S1", "Widget", "true", "5"},
			[]string{"S1", "Gadget", "false", "2"},
		),
		PolicyAssertUniform,
	)
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assertExpanded(t, ExpandedRow{ShipmentID: "S1", Origin: "NYC", Destination: "LA", Product: "Widget", Quantity: qty(5)}, rows[0])
	assertExpanded(t, ExpandedRow{ShipmentID: "S1", Origin: "NYC", Destination: "LA", Product: "Gadget", Quantity: qty(2)}, rows[1])
}

func assertExpanded(t *testing.T, want, got ExpandedRow) {
	t.Helper()
	assert.Equal(t, want.ShipmentID, got.ShipmentID)
	assert.Equal(t, want.Origin, got.Origin)
	assert.Equal(t, want.Destination, got.Destination)
	assert.Equal(t, want.Product, got.Product)
	assert.Equal(t, want.Quantity.Valid, got.Quantity.Valid)
	assert.True(t, want.Quantity.Decimal.Equal(got.Quantity.Decimal), "quantity %s, want %s", got.Quantity.Decimal, want.Quantity.Decimal)
}

func TestExpand_UnmatchedIdentifiersProduceNothing(t *testing.T) {
	_, rows, err := expandTables(t,
		shipmentTable([]string{"S2", "NYC", "LA", "D1"}),
		productTable([]string{"S1", "Widget", "true", "5"}),
		PolicyAssertUniform,
	)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestExpand_DuplicateShipmentMultipliesRows(t *testing.T) {
	ships := shipmentTable(
		[]string{"S1", "NYC", "LA", "D1"},
		[]string{"S1", "NYC", "LA", "D2"},
	)
	lines := productTable(
		[]string{"S1", "Widget", "true", "5"},
		[]string{"S1", "Gadget", "true", "1"},
		[]string{"S1", "Gizmo", "true", "3"},
	)

	groups, rows, err := expandTables(t, ships, lines, PolicyAssertUniform)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Len(t, rows, 6, "3 product lines x 2 shipment rows")

	_, _, err = expandTables(t, ships, lines, PolicyErrorOnConflict)
	assert.ErrorIs(t, err, ErrRepresentativeConflict)
}

func TestExpand_RowCountEqualsJoinCardinality(t *testing.T) {
	var shipRows, lineRows [][]string
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("S%02d", i)
		shipRows = append(shipRows, []string{id, "WH" + id, "ST" + id, "D"})
		for j := 0; j <= i%4; j++ {
			lineRows = append(lineRows, []string{id, fmt.Sprintf("P%d", j), "true", "1"})
		}
	}
	lineRows = append(lineRows, []string{"S99", "Orphan", "true", "1"})

	s, err := ParseShipments(shipmentTable(shipRows...))
	require.NoError(t, err)
	l, err := ParseProductLines(productTable(lineRows...))
	require.NoError(t, err)

	joined := Join(s, l)
	groups := GroupByShipment(joined)
	rows, err := Expand(groups, PolicyAssertUniform)
	require.NoError(t, err)

	assert.Len(t, groups, 20)
	assert.Len(t, rows, len(joined))
	assert.Len(t, rows, len(lineRows)-1)
	for _, r := range rows {
		assert.Equal(t, "WH"+r.ShipmentID, r.Origin)
		assert.Equal(t, "ST"+r.ShipmentID, r.Destination)
	}
}

func TestGroupByShipment_FirstAppearanceOrder(t *testing.T) {
	joined := []JoinedRow{
		{Shipment: Shipment{ShipmentID: "B"}},
		{Shipment: Shipment{ShipmentID: "A"}},
		{Shipment: Shipment{ShipmentID: "B"}},
	}
	groups := GroupByShipment(joined)
	require.Len(t, groups, 2)
	assert.Equal(t, "B", groups[0].ShipmentID)
	assert.Len(t, groups[0].Rows, 2)
	assert.Equal(t, "A", groups[1].ShipmentID)
}

func TestJoin_BlankIdentifiersNeverMatch(t *testing.T) {
	joined := Join(
		[]Shipment{{ShipmentID: "", Origin: "X"}},
		[]ProductLine{{ShipmentID: "", Product: "Y"}},
	)
	assert.Empty(t, joined)
}

func TestSelectRepresentative(t *testing.T) {
	uniform := ShipmentGroup{ShipmentID: "S1", Rows: []JoinedRow{
		{Shipment: Shipment{"S1", "NYC", "LA"}, ShipmentIndex: 0},
		{Shipment: Shipment{"S1", "NYC", "LA"}, ShipmentIndex: 0},
	}}
	conflicting := ShipmentGroup{ShipmentID: "S1", Rows: []JoinedRow{
		{Shipment: Shipment{"S1", "NYC", "LA"}, ShipmentIndex: 0},
		{Shipment: Shipment{"S1", "BOS", "LA"}, ShipmentIndex: 1},
	}}
	duplicated := ShipmentGroup{ShipmentID: "S1", Rows: []JoinedRow{
		{Shipment: Shipment{"S1", "NYC", "LA"}, ShipmentIndex: 0},
		{Shipment: Shipment{"S1", "NYC", "LA"}, ShipmentIndex: 3},
	}}

	tests := []struct {
		name    string
		group   ShipmentGroup
		policy  Policy
		want    string
		wantErr error
	}{
		{"first-wins uniform", uniform, PolicyFirstWins, "NYC", nil},
		{"first-wins conflicting takes first", conflicting, PolicyFirstWins, "NYC", nil},
		{"assert-uniform uniform", uniform, PolicyAssertUniform, "NYC", nil},
		{"assert-uniform conflicting", conflicting, PolicyAssertUniform, "", ErrRepresentativeConflict},
		{"assert-uniform duplicated but equal", duplicated, PolicyAssertUniform, "NYC", nil},
		{"error-on-conflict uniform", uniform, PolicyErrorOnConflict, "NYC", nil},
		{"error-on-conflict duplicated", duplicated, PolicyErrorOnConflict, "", ErrRepresentativeConflict},
		{"error-on-conflict conflicting", conflicting, PolicyErrorOnConflict, "", ErrRepresentativeConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep, err := SelectRepresentative(tt.group, tt.policy)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, rep.Origin)
			assert.Equal(t, "LA", rep.Destination)
		})
	}
}

func TestSelectRepresentative_EmptyGroup(t *testing.T) {
	_, err := SelectRepresentative(ShipmentGroup{ShipmentID: "S1"}, PolicyFirstWins)
	assert.Error(t, err)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy(" Assert-Uniform ")
	require.NoError(t, err)
	assert.Equal(t, PolicyAssertUniform, p)

	_, err = ParsePolicy("last-wins")
	assert.Error(t, err)
}

func TestParseProductLines(t *testing.T) {
	lines, err := ParseProductLines(productTable(
		[]string{"S1", "Widget", "true", "1,200"},
		[]string{"S1", "Gadget", "true", ""},
	))
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.True(t, lines[0].Quantity.Decimal.Equal(decimal.NewFromInt(1200)))
	assert.False(t, lines[1].Quantity.Valid)

	_, err = ParseProductLines(productTable([]string{"S1", "Widget", "true", "lots"}))
	assert.ErrorIs(t, err, ErrInvalidCell)
}

func TestParse_MissingColumns(t *testing.T) {
	_, err := ParseShipments(&sheet.Table{Name: "s.csv", Header: []string{"shipment_identifier", "origin"}})
	require.ErrorIs(t, err, ErrSchemaMismatch)
	assert.Contains(t, err.Error(), "destination")

	_, err = ParseProductLines(&sheet.Table{Name: "p.csv", Header: []string{"Shipment_Identifier", "PRODUCT"}})
	require.ErrorIs(t, err, ErrSchemaMismatch)
	assert.Contains(t, err.Error(), "quantity")
}
