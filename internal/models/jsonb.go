package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// scanJSON decodes a JSONB column into dst. NULL leaves dst untouched.
func scanJSON(src interface{}, dst interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONB", src)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func valueJSON(v interface{}) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Value implements driver.Valuer.
func (v Variants) Value() (driver.Value, error) {
	if v == nil {
		return []byte("[]"), nil
	}
	return valueJSON([]Variant(v))
}

// Scan implements sql.Scanner.
func (v *Variants) Scan(src interface{}) error { return scanJSON(src, (*[]Variant)(v)) }

func (im Images) Value() (driver.Value, error) {
	if im == nil {
		return []byte("[]"), nil
	}
	return valueJSON([]Image(im))
}

func (im *Images) Scan(src interface{}) error { return scanJSON(src, (*[]Image)(im)) }

func (d Dimensions) Value() (driver.Value, error) { return valueJSON(d) }

func (d *Dimensions) Scan(src interface{}) error { return scanJSON(src, d) }

func (it OrderItems) Value() (driver.Value, error) {
	if it == nil {
		return []byte("[]"), nil
	}
	return valueJSON([]OrderItem(it))
}

func (it *OrderItems) Scan(src interface{}) error { return scanJSON(src, (*[]OrderItem)(it)) }

func (a ShippingAddress) Value() (driver.Value, error) { return valueJSON(a) }

func (a *ShippingAddress) Scan(src interface{}) error { return scanJSON(src, a) }

func (a Address) Value() (driver.Value, error) { return valueJSON(a) }

func (a *Address) Scan(src interface{}) error { return scanJSON(src, a) }
