package rental

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/warp/fleet-rental/fleet"
)

// =============================================================================
// GUARD - Field validation and uniqueness checks
// =============================================================================

// Guard checks candidate records before they are written. Uniqueness is
// checked against the store handed in, which must be the transactional view
// of the write that follows.
type Guard struct {
	validate *validator.Validate
}

func NewGuard() *Guard {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	if err := registerTags(v, fieldTags); err != nil {
		panic(err)
	}
	return &Guard{validate: v}
}

// fieldTags are the validation tags fleet records use beyond the built-ins.
var fieldTags = map[string]validator.Func{
	"notblank": func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	},
}

func registerTags(v *validator.Validate, tags map[string]validator.Func) error {
	for tag, fn := range tags {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("register validation %q: %w", tag, err)
		}
	}
	return nil
}

// CheckCar validates car and makes sure no other car holds its plate.
func (g *Guard) CheckCar(ctx context.Context, st fleet.Store, car fleet.Car) error {
	if err := g.fields(fleet.KindCar, car); err != nil {
		return err
	}
	existing, err := st.FindCarByPlate(ctx, car.LicensePlate)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != car.ID {
		return &fleet.DuplicateError{
			Kind:       fleet.KindCar,
			Field:      "license_plate",
			Value:      car.LicensePlate,
			ExistingID: string(existing.ID),
		}
	}
	return nil
}

// CheckCustomer validates customer and makes sure no other customer holds
// its driver's license.
func (g *Guard) CheckCustomer(ctx context.Context, st fleet.Store, customer fleet.Customer) error {
	if err := g.fields(fleet.KindCustomer, customer); err != nil {
		return err
	}
	existing, err := st.FindCustomerByLicense(ctx, customer.DriversLicense)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != customer.ID {
		return &fleet.DuplicateError{
			Kind:       fleet.KindCustomer,
			Field:      "drivers_license",
			Value:      customer.DriversLicense,
			ExistingID: string(existing.ID),
		}
	}
	return nil
}

// CheckRent validates the shape of a rent without touching a store.
func (g *Guard) CheckRent(rent fleet.Rent) error {
	if err := g.fields(fleet.KindRent, rent); err != nil {
		return err
	}
	return rent.Period().Validate()
}

// fields runs the struct tags and reports the first failing field.
func (g *Guard) fields(kind fleet.Kind, record any) error {
	err := g.validate.Struct(record)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &fleet.ValidationError{Kind: kind, Reason: err.Error()}
	}
	fe := verrs[0]
	return &fleet.ValidationError{Kind: kind, Field: fe.Field(), Reason: reason(fe)}
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "notblank", "required":
		return "is required"
	case "gte":
		return "must be at least " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}
