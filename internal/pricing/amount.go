package pricing

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Amount is a numeric form value. It decodes from a JSON number or a string; empty, null and
// non-numeric values decode to zero instead of failing.
type Amount float64

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")):
		*a = 0
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*a = 0
			return nil
		}
		*a = Amount(ParseAmount(s))
	default:
		v, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			v = 0
		}
		*a = Amount(v)
	}
	return nil
}

// UnmarshalJSON accepts quantity and price as numbers or form strings.
func (it *LineItem) UnmarshalJSON(data []byte) error {
	type fields LineItem
	aux := struct {
		*fields
		Quantity  Amount `json:"quantity"`
		UnitPrice Amount `json:"price"`
	}{fields: (*fields)(it), Quantity: Amount(it.Quantity), UnitPrice: Amount(it.UnitPrice)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	it.Quantity = float64(aux.Quantity)
	it.UnitPrice = float64(aux.UnitPrice)
	return nil
}

// UnmarshalJSON accepts the discount value as a number or a form string.
func (d *DiscountSpec) UnmarshalJSON(data []byte) error {
	type fields DiscountSpec
	aux := struct {
		*fields
		Value Amount `json:"value"`
	}{fields: (*fields)(d), Value: Amount(d.Value)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	d.Value = float64(aux.Value)
	return nil
}
