package task

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Param declares one task parameter read from the shared context bag:
// presence, an optional default, an optional coercion, and ozzo validation
// rules applied to the (coerced) value.
type Param struct {
	Name     string
	Required bool
	// Default is stored into the context when the parameter is absent.
	Default any
	// Coerce converts the raw value before rules run; the coerced value is
	// written back to the context so business logic sees it.
	Coerce func(any) (any, error)
	Rules  []validation.Rule
}

// Params is the built-in Verifier: a declarative parameter set validated
// with ozzo-validation rules.
type Params []Param

// DefineAndVerify implements Verifier.
func (ps Params) DefineAndVerify(ex *Execution) Errors {
	errs := Errors{}
	bag := ex.Context()

	for _, p := range ps {
		value, ok := bag.Fetch(p.Name)
		if !ok {
			if p.Default != nil {
				if err := bag.Set(p.Name, p.Default); err != nil {
					errs.Add(p.Name, err.Error())
				}
				value = p.Default
			} else if p.Required {
				errs.Add(p.Name, "is a required parameter")
				continue
			} else {
				continue
			}
		}

		if p.Coerce != nil {
			coerced, err := p.Coerce(value)
			if err != nil {
				errs.Add(p.Name, err.Error())
				continue
			}
			if err := bag.Set(p.Name, coerced); err != nil {
				errs.Add(p.Name, err.Error())
				continue
			}
			value = coerced
		}

		if len(p.Rules) > 0 {
			if err := validation.Validate(value, p.Rules...); err != nil {
				errs.Add(p.Name, err.Error())
			}
		}
	}

	return errs
}
