package store

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vyrodovalexey/productstore/internal/model"
)

// DefaultHeader is the first line of a record file. It is never parsed as data.
const DefaultHeader = "name,price,quantity"

const (
	fieldDelimiter = ","
	minColumns     = 3
	priceDecimals  = 2
)

// FormatLine serializes a product as name,price,quantity with the price
// rendered to two decimal places. The returned line has no line terminator.
func FormatLine(p model.Product) (string, error) {
	if math.IsNaN(p.Price) || math.IsInf(p.Price, 0) {
		return "", fmt.Errorf("format record %q: %w", p.Name, model.ErrInvalidPrice)
	}

	price := decimal.NewFromFloat(p.Price).StringFixed(priceDecimals)

	return p.Name + fieldDelimiter + price + fieldDelimiter + strconv.Itoa(p.Quantity), nil
}

// ParseLine parses a record line. Columns are trimmed; columns past the
// third are ignored. Any failure wraps ErrMalformedLine.
func ParseLine(line string) (model.Product, error) {
	cols := strings.Split(line, fieldDelimiter)
	if len(cols) < minColumns {
		return model.Product{}, fmt.Errorf(
			"%w: expected %d columns, got %d", ErrMalformedLine, minColumns, len(cols),
		)
	}

	price, err := decimal.NewFromString(strings.TrimSpace(cols[1]))
	if err != nil {
		return model.Product{}, fmt.Errorf("%w: price %q: %w", ErrMalformedLine, cols[1], err)
	}

	quantity, err := strconv.Atoi(strings.TrimSpace(cols[2]))
	if err != nil {
		return model.Product{}, fmt.Errorf("%w: quantity %q: %w", ErrMalformedLine, cols[2], err)
	}

	return model.Product{
		Name:     strings.TrimSpace(cols[0]),
		Price:    price.InexactFloat64(),
		Quantity: quantity,
	}, nil
}
