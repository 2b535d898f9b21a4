// internal/models/common.go
package models

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Money is a decimal amount. It is stored in BSON as a string so no precision is lost,
// and serialised to JSON as a quoted decimal ("150.00").
type Money struct {
	decimal.Decimal
}

// NewMoney parses a decimal string such as "150" or "99.95".
func NewMoney(raw string) (Money, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return Money{d}, nil
}

// MoneyFrom wraps an existing decimal.
func MoneyFrom(d decimal.Decimal) Money { return Money{d} }

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool { return m.Decimal.GreaterThan(decimal.Zero) }

func (m Money) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(m.Decimal.StringFixed(2))
}

func (m *Money) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.String:
		d, err := decimal.NewFromString(raw.StringValue())
		if err != nil {
			return err
		}
		m.Decimal = d
	case bsontype.Double:
		m.Decimal = decimal.NewFromFloat(raw.Double())
	case bsontype.Int32:
		m.Decimal = decimal.NewFromInt32(raw.Int32())
	case bsontype.Int64:
		m.Decimal = decimal.NewFromInt(raw.Int64())
	case bsontype.Null, bsontype.Undefined:
		m.Decimal = decimal.Zero
	default:
		return fmt.Errorf("cannot decode %s into Money", t)
	}
	return nil
}

// Location is a coarse postal location for an HCP practice.
type Location struct {
	Institution string `bson:"institution,omitempty" json:"institution"`
	City        string `bson:"city,omitempty" json:"city"`
	Country     string `bson:"country,omitempty" json:"country"`
}
