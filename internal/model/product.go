// Package model defines data structures used throughout the application.
package model

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validation errors for Product.
var (
	ErrEmptyName             = errors.New("name cannot be empty")
	ErrNameTooLong           = errors.New("name cannot exceed 255 characters")
	ErrInvalidName           = errors.New("name cannot contain commas or line breaks")
	ErrNegativePrice         = errors.New("price cannot be negative")
	ErrInvalidPrice          = errors.New("price must be a finite number")
	ErrNegativeQuantity      = errors.New("quantity cannot be negative")
	ErrInvalidPriceFormat    = errors.New("price must be a valid number")
	ErrInvalidQuantityFormat = errors.New("quantity must be a valid integer")
	ErrEmptyPriceInput       = errors.New("price is required")
	ErrEmptyQuantityInput    = errors.New("quantity is required")
)

// Validation constants.
const (
	MaxNameLength = 255

	// PriceTolerance is the absolute difference under which two prices
	// are considered equal when matching products by value.
	PriceTolerance = 0.01
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Names end up in a comma-delimited, line-oriented file without quoting.
	_ = v.RegisterValidation("delimsafe", func(fl validator.FieldLevel) bool {
		return !strings.ContainsAny(fl.Field().String(), ",\r\n")
	})
	return v
}

// Product is an inventory item: a name, a unit price and a stock quantity.
// It carries no identity of its own; see StoredProduct for the id-bearing form.
type Product struct {
	Name     string  `json:"name" validate:"required,max=255,delimsafe"`
	Price    float64 `json:"price" validate:"min=0"`
	Quantity int     `json:"quantity" validate:"min=0"`
}

// Validate checks if the Product has valid field values.
func (p *Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}

	if math.IsNaN(p.Price) || math.IsInf(p.Price, 0) {
		return ErrInvalidPrice
	}

	err := validate.Struct(p)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("validate product: %w", err)
	}

	fe := fieldErrs[0]
	switch fe.StructField() + "." + fe.Tag() {
	case "Name.required":
		return ErrEmptyName
	case "Name.max":
		return ErrNameTooLong
	case "Name.delimsafe":
		return ErrInvalidName
	case "Price.min":
		return ErrNegativePrice
	case "Quantity.min":
		return ErrNegativeQuantity
	default:
		return fmt.Errorf("validate product: %w", err)
	}
}

// Matches reports whether p and other describe the same product by value:
// equal names, prices within PriceTolerance and equal quantities.
func (p Product) Matches(other Product) bool {
	return p.Name == other.Name &&
		math.Abs(p.Price-other.Price) < PriceTolerance &&
		p.Quantity == other.Quantity
}

// Normalized returns a copy of p with surrounding whitespace removed from
// the name, matching how names read back from the record file.
func (p Product) Normalized() Product {
	p.Name = strings.TrimSpace(p.Name)
	return p
}

// String renders the product the way it appears in listings.
func (p Product) String() string {
	return fmt.Sprintf("%s (%.2f x %d)", p.Name, p.Price, p.Quantity)
}

// ParseProduct builds a Product from raw form input and validates it.
// Empty and non-numeric price or quantity are reported with their own errors.
func ParseProduct(name, price, quantity string) (Product, error) {
	if strings.TrimSpace(name) == "" {
		return Product{}, ErrEmptyName
	}

	p, err := ParseValues(name, price, quantity)
	if err != nil {
		return Product{}, err
	}
	if err := p.Validate(); err != nil {
		return Product{}, err
	}

	return p, nil
}

// ParseValues converts raw input to a Product without range or name checks.
// It is used to address existing records, which may hold values Validate
// would reject.
func ParseValues(name, price, quantity string) (Product, error) {
	price = strings.TrimSpace(price)
	if price == "" {
		return Product{}, ErrEmptyPriceInput
	}

	quantity = strings.TrimSpace(quantity)
	if quantity == "" {
		return Product{}, ErrEmptyQuantityInput
	}

	priceVal, err := strconv.ParseFloat(price, 64)
	if err != nil {
		return Product{}, ErrInvalidPriceFormat
	}

	qtyVal, err := strconv.Atoi(quantity)
	if err != nil {
		return Product{}, ErrInvalidQuantityFormat
	}

	return Product{
		Name:     strings.TrimSpace(name),
		Price:    priceVal,
		Quantity: qtyVal,
	}, nil
}

// StoredProduct is a Product persisted in the relational catalog,
// addressed by an auto-increment integer ID.
type StoredProduct struct {
	ID int64 `json:"id"`
	Product
}
