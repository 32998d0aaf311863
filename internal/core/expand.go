package core

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/shipimport/internal/sheet"
	"github.com/shopspring/decimal"
)

// Policy decides how a shipment group's origin and destination are chosen.
type Policy string

const (
	// PolicyFirstWins takes the first row of the group without checks.
	PolicyFirstWins Policy = "first-wins"

	// PolicyAssertUniform requires every row of the group to agree.
	PolicyAssertUniform Policy = "assert-uniform"

	// PolicyErrorOnConflict also rejects a shipment identifier listed more
	// than once in the shipment source, even when the copies agree.
	PolicyErrorOnConflict Policy = "error-on-conflict"
)

// ParsePolicy validates a policy name, case-insensitively.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyFirstWins, PolicyAssertUniform, PolicyErrorOnConflict:
		return p, nil
	}
	return "", fmt.Errorf("unknown representative policy %q", s)
}

// Columns each join-and-expand source must provide.
var (
	ShipmentFields = []FieldSpec{
		{Name: "shipment_identifier", Type: FieldText, Required: true},
		{Name: "origin", Type: FieldText, Required: true},
		{Name: "destination", Type: FieldText, Required: true},
	}

	ProductLineFields = []FieldSpec{
		{Name: "shipment_identifier", Type: FieldText, Required: true},
		{Name: "product", Type: FieldText, Required: true},
		{Name: "quantity", Type: FieldNumeric, Required: true},
	}
)

// ParseShipments reads the shipment source.
func ParseShipments(t *sheet.Table) ([]Shipment, error) {
	idx, err := requireColumns(t.Name, t.Header, ShipmentFields)
	if err != nil {
		return nil, err
	}

	id, origin, dest := idx["shipment_identifier"], idx["origin"], idx["destination"]
	out := make([]Shipment, 0, t.Len())
	for _, row := range t.Rows {
		out = append(out, Shipment{
			ShipmentID:  row[id],
			Origin:      row[origin],
			Destination: row[dest],
		})
	}
	return out, nil
}

// ParseProductLines reads the product-line source.
// Quantities accept the same formats as ToPgNumeric; a blank quantity is NULL.
func ParseProductLines(t *sheet.Table) ([]ProductLine, error) {
	idx, err := requireColumns(t.Name, t.Header, ProductLineFields)
	if err != nil {
		return nil, err
	}

	id, product, qty := idx["shipment_identifier"], idx["product"], idx["quantity"]
	out := make([]ProductLine, 0, t.Len())
	for i, row := range t.Rows {
		line := ProductLine{ShipmentID: row[id], Product: row[product]}

		if raw := row[qty]; strings.TrimSpace(raw) != "" {
			d, ok := ToDecimal(raw)
			if !ok {
				return nil, fmt.Errorf("%s row %d column %q: %w: %q is not a valid %s",
					t.Name, i+1, "quantity", ErrInvalidCell, raw, FieldNumeric)
			}
			line.Quantity = decimal.NullDecimal{Decimal: d, Valid: true}
		}

		out = append(out, line)
	}
	return out, nil
}

// Join inner-joins product lines with shipments on the shipment identifier.
// Output follows product-line order; a line matching k shipments yields k
// rows. Blank identifiers never match.
func Join(shipments []Shipment, lines []ProductLine) []JoinedRow {
	byID := make(map[string][]int, len(shipments))
	for i, s := range shipments {
		if s.ShipmentID == "" {
			continue
		}
		byID[s.ShipmentID] = append(byID[s.ShipmentID], i)
	}

	var out []JoinedRow
	for _, line := range lines {
		if line.ShipmentID == "" {
			continue
		}
		for _, si := range byID[line.ShipmentID] {
			out = append(out, JoinedRow{
				Shipment:      shipments[si],
				Line:          line,
				ShipmentIndex: si,
			})
		}
	}
	return out
}

// GroupByShipment partitions joined rows by shipment identifier.
// Groups are ordered by first appearance; rows keep their joined order.
func GroupByShipment(joined []JoinedRow) []ShipmentGroup {
	pos := make(map[string]int)
	var groups []ShipmentGroup
	for _, r := range joined {
		i, ok := pos[r.Shipment.ShipmentID]
		if !ok {
			i = len(groups)
			pos[r.Shipment.ShipmentID] = i
			groups = append(groups, ShipmentGroup{ShipmentID: r.Shipment.ShipmentID})
		}
		groups[i].Rows = append(groups[i].Rows, r)
	}
	return groups
}

// SelectRepresentative chooses the origin and destination for a group.
func SelectRepresentative(g ShipmentGroup, policy Policy) (Shipment, error) {
	if len(g.Rows) == 0 {
		return Shipment{}, fmt.Errorf("shipment %q has no rows", g.ShipmentID)
	}
	first := g.Rows[0]

	switch policy {
	case PolicyFirstWins:
		return first.Shipment, nil

	case PolicyAssertUniform, PolicyErrorOnConflict:
		for _, r := range g.Rows[1:] {
			if policy == PolicyErrorOnConflict && r.ShipmentIndex != first.ShipmentIndex {
				return Shipment{}, fmt.Errorf("%w: shipment %q is listed more than once in the shipment source",
					ErrRepresentativeConflict, g.ShipmentID)
			}
			if r.Shipment.Origin != first.Shipment.Origin || r.Shipment.Destination != first.Shipment.Destination {
				return Shipment{}, fmt.Errorf("%w: shipment %q has origin/destination %q/%q and %q/%q",
					ErrRepresentativeConflict, g.ShipmentID,
					first.Shipment.Origin, first.Shipment.Destination,
					r.Shipment.Origin, r.Shipment.Destination)
			}
		}
		return first.Shipment, nil
	}

	return Shipment{}, fmt.Errorf("unknown representative policy %q", policy)
}

// Expand resolves each group's representative and emits one row per joined
// row, so the output length equals the inner-join cardinality.
func Expand(groups []ShipmentGroup, policy Policy) ([]ExpandedRow, error) {
	var out []ExpandedRow
	for i := range groups {
		g := &groups[i]
		rep, err := SelectRepresentative(*g, policy)
		if err != nil {
			return nil, err
		}
		g.Origin, g.Destination = rep.Origin, rep.Destination

		for _, r := range g.Rows {
			out = append(out, ExpandedRow{
				ShipmentID:  g.ShipmentID,
				Origin:      g.Origin,
				Destination: g.Destination,
				Product:     r.Line.Product,
				Quantity:    r.Line.Quantity,
			})
		}
	}
	return out, nil
}
