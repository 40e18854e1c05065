package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	id "intake/pkg/domain"
)

var catalogValidate = validator.New(validator.WithRequiredStructEnabled())

// Catalog is the set of services loaded from the catalog file.
type Catalog struct {
	Services []Service `yaml:"services" validate:"dive"`
}

// Validate checks structural rules and cross references. Errors make the catalog
// unusable; warnings describe references the evaluator will treat as visible.
func (c *Catalog) Validate() (warnings []string, err error) {
	if err := catalogValidate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return nil, fmt.Errorf("invalid catalog: %s", strings.Join(msgs, "; "))
		}
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}

	seen := make(map[id.ServiceID]bool, len(c.Services))
	for _, svc := range c.Services {
		if _, err := id.ParseServiceID(string(svc.ID)); err != nil {
			return nil, fmt.Errorf("service %q: %w", svc.ID, err)
		}
		if seen[svc.ID] {
			return nil, fmt.Errorf("duplicate service id %q", svc.ID)
		}
		seen[svc.ID] = true
		warnings = append(warnings, svc.referenceWarnings()...)
	}
	return warnings, nil
}

func (s Service) referenceWarnings() []string {
	var out []string
	groups := make(map[string]bool, len(s.ConditionGroups))
	for _, g := range s.ConditionGroups {
		if groups[g.ID] {
			out = append(out, fmt.Sprintf("service %s: condition group %q is defined more than once; the first definition is used", s.ID, g.ID))
		}
		groups[g.ID] = true
		for i, c := range g.Conditions {
			if !c.Operator.IsKnown() {
				out = append(out, fmt.Sprintf("service %s: condition group %q condition %d uses unknown operator %q and always passes", s.ID, g.ID, i, c.Operator))
			}
		}
	}

	apiNames := make(map[string]bool)
	for _, sec := range s.Sections {
		for _, f := range sec.Fields {
			if apiNames[f.APIName] {
				out = append(out, fmt.Sprintf("service %s: api name %q is used by more than one field", s.ID, f.APIName))
			}
			apiNames[f.APIName] = true
			if f.ConditionGroupID != "" && !groups[f.ConditionGroupID] {
				out = append(out, fmt.Sprintf("service %s: field %q references unknown condition group %q and is always visible", s.ID, f.APIName, f.ConditionGroupID))
			}
			if f.EffectiveType() == FieldTypePicklist && len(f.PicklistOptions()) == 0 {
				out = append(out, fmt.Sprintf("service %s: picklist field %q has no values", s.ID, f.APIName))
			}
		}
	}
	return out
}

// Find returns the service with the given id.
func (c *Catalog) Find(serviceID id.ServiceID) (Service, bool) {
	for _, s := range c.Services {
		if s.ID == serviceID {
			return s, true
		}
	}
	return Service{}, false
}
