package models

import (
	"intake/internal/visibility"
	id "intake/pkg/domain"
)

// Form is the full definition the intake UI needs to draw a service's form.
type Form struct {
	ServiceID       id.ServiceID                `json:"service_id"`
	ServiceName     string                      `json:"service_name"`
	Sections        []Section                   `json:"sections"`
	Statuses        []Status                    `json:"statuses"`
	Documents       []DocumentRequirement       `json:"documents"`
	ConditionGroups []visibility.ConditionGroup `json:"condition_groups"`
}

// Fields returns every field of the form in section then field order.
func (f *Form) Fields() []FormField {
	var out []FormField
	for _, s := range f.Sections {
		out = append(out, s.Fields...)
	}
	return out
}

// RenderedForm is a Form evaluated against one set of field values.
type RenderedForm struct {
	ServiceID id.ServiceID      `json:"service_id"`
	Sections  []RenderedSection `json:"sections"`
	Hidden    []string          `json:"hidden_fields"`
}

// RenderedSection carries only the fields that are currently visible.
type RenderedSection struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Collapsible bool            `json:"collapsible"`
	HasFields   bool            `json:"has_fields"`
	Fields      []RenderedField `json:"fields"`
}

// RenderedField is a visible field with its current value.
type RenderedField struct {
	ID       string           `json:"id"`
	APIName  string           `json:"api_name"`
	Label    string           `json:"label"`
	Type     FieldType        `json:"type"`
	Value    visibility.Value `json:"value"`
	Options  []string         `json:"options,omitempty"`
	Selected []string         `json:"selected,omitempty"`
}

// NewRenderedField builds the rendered view of f holding value.
func NewRenderedField(f FormField, value visibility.Value) RenderedField {
	rf := RenderedField{
		ID:      f.ID,
		APIName: f.APIName,
		Label:   f.DisplayLabel(),
		Type:    f.EffectiveType(),
		Value:   value,
	}
	switch rf.Type {
	case FieldTypePicklist:
		rf.Options = f.PicklistOptions()
	case FieldTypeMultipicklist:
		rf.Options = f.PicklistOptions()
		rf.Selected = MultipicklistSelection(value)
	}
	return rf
}
