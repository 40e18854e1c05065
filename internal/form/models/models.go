package models

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"intake/internal/visibility"
	id "intake/pkg/domain"
)

// FieldType selects how a field is rendered and how its raw input is normalized.
type FieldType string

const (
	FieldTypeText          FieldType = "Text"
	FieldTypeNumber        FieldType = "Number"
	FieldTypeDecimal       FieldType = "Decimal"
	FieldTypeCurrency      FieldType = "Currency"
	FieldTypeDate          FieldType = "Date"
	FieldTypePicklist      FieldType = "Picklist"
	FieldTypeMultipicklist FieldType = "Multipicklist"
)

// IsNumeric reports whether input for this type is stored as a number.
func (t FieldType) IsNumeric() bool {
	return t == FieldTypeNumber || t == FieldTypeDecimal || t == FieldTypeCurrency
}

// Service is a catalog entry: one intake form plus its statuses and document requirements.
type Service struct {
	ID              id.ServiceID                `json:"id" yaml:"id" validate:"required,max=64"`
	Name            string                      `json:"name" yaml:"name" validate:"required,max=128"`
	SLADays         int                         `json:"sla_days,omitempty" yaml:"sla_days,omitempty" validate:"gte=0"`
	Active          bool                        `json:"active" yaml:"active"`
	Sections        []Section                   `json:"sections" yaml:"sections" validate:"dive"`
	Statuses        []Status                    `json:"statuses" yaml:"statuses" validate:"dive"`
	Documents       []DocumentRequirement       `json:"documents" yaml:"documents" validate:"dive"`
	ConditionGroups []visibility.ConditionGroup `json:"condition_groups" yaml:"condition_groups"`
	ApprovalSteps   []ApprovalStepTemplate      `json:"approval_steps,omitempty" yaml:"approval_steps,omitempty" validate:"dive"`
}

// OptionLabel is the label shown in the service picker.
func (s Service) OptionLabel() string {
	if s.SLADays > 0 {
		return fmt.Sprintf("%s (SLA: %d days)", s.Name, s.SLADays)
	}
	return s.Name
}

// DefaultStatus returns the first status in sequence order, if any.
func (s Service) DefaultStatus() (Status, bool) {
	statuses := SortStatuses(s.Statuses)
	if len(statuses) == 0 {
		return Status{}, false
	}
	return statuses[0], true
}

// HasStatus reports whether statusID belongs to the service.
func (s Service) HasStatus(statusID string) bool {
	return slices.ContainsFunc(s.Statuses, func(st Status) bool { return st.ID == statusID })
}

// FieldByAPIName finds a field anywhere in the form.
func (s Service) FieldByAPIName(apiName string) (FormField, bool) {
	for _, sec := range s.Sections {
		for _, f := range sec.Fields {
			if f.APIName == apiName {
				return f, true
			}
		}
	}
	return FormField{}, false
}

// Section groups fields under a heading.
type Section struct {
	ID          string      `json:"id" yaml:"id" validate:"required"`
	Name        string      `json:"name" yaml:"name" validate:"required"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Collapsible bool        `json:"collapsible" yaml:"collapsible"`
	Sequence    int         `json:"sequence" yaml:"sequence"`
	Fields      []FormField `json:"fields" yaml:"fields" validate:"dive"`
}

// FormField is a single input on the form.
type FormField struct {
	ID               string    `json:"id" yaml:"id" validate:"required"`
	APIName          string    `json:"api_name" yaml:"api_name" validate:"required"`
	Label            string    `json:"label,omitempty" yaml:"label,omitempty"`
	Type             FieldType `json:"type,omitempty" yaml:"type,omitempty" validate:"omitempty,oneof=Text Number Decimal Currency Date Picklist Multipicklist"`
	Sequence         int       `json:"sequence" yaml:"sequence"`
	PicklistValues   string    `json:"picklist_values,omitempty" yaml:"picklist_values,omitempty"`
	ConditionGroupID string    `json:"condition_group_id,omitempty" yaml:"condition_group_id,omitempty"`
}

// DisplayLabel falls back to the API name when no label is configured.
func (f FormField) DisplayLabel() string {
	if f.Label != "" {
		return f.Label
	}
	return f.APIName
}

// EffectiveType defaults to Text.
func (f FormField) EffectiveType() FieldType {
	if f.Type == "" {
		return FieldTypeText
	}
	return f.Type
}

// PicklistOptions splits the configured values on commas, dropping blanks.
func (f FormField) PicklistOptions() []string {
	var out []string
	for _, v := range strings.Split(f.PicklistValues, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Visibility returns the evaluator view of the field. Values are keyed by API name.
func (f FormField) Visibility() visibility.Field {
	return visibility.Field{ID: f.APIName, ConditionGroupID: f.ConditionGroupID}
}

// Status is a request lifecycle state offered on the form.
type Status struct {
	ID       string `json:"id" yaml:"id" validate:"required"`
	Name     string `json:"name" yaml:"name" validate:"required"`
	Sequence int    `json:"sequence" yaml:"sequence"`
}

// ApprovalStepTemplate is copied onto every new request of the service.
type ApprovalStepTemplate struct {
	Name     string `json:"name" yaml:"name" validate:"required"`
	Approver string `json:"approver,omitempty" yaml:"approver,omitempty"`
	Sequence int    `json:"sequence" yaml:"sequence"`
}

// DefaultAllowedTypes applies when a requirement does not restrict file types.
var DefaultAllowedTypes = []string{".pdf", ".jpg", ".jpeg"}

// DocumentRequirement describes a document the requester is asked to upload.
type DocumentRequirement struct {
	ID           string `json:"id" yaml:"id" validate:"required"`
	Name         string `json:"name" yaml:"name"`
	Label        string `json:"label,omitempty" yaml:"label,omitempty"`
	Mandatory    bool   `json:"mandatory" yaml:"mandatory"`
	Sequence     int    `json:"sequence" yaml:"sequence"`
	AllowedTypes string `json:"allowed_types,omitempty" yaml:"allowed_types,omitempty"`
}

// DisplayLabel falls back to the name, then to "Document".
func (d DocumentRequirement) DisplayLabel() string {
	switch {
	case d.Label != "":
		return d.Label
	case d.Name != "":
		return d.Name
	default:
		return "Document"
	}
}

// AllowedTypeList splits AllowedTypes on ';' or ',' into lower-cased, unique
// extensions. An empty configuration yields DefaultAllowedTypes.
func (d DocumentRequirement) AllowedTypeList() []string {
	if strings.TrimSpace(d.AllowedTypes) == "" {
		return slices.Clone(DefaultAllowedTypes)
	}
	var out []string
	for _, t := range strings.FieldsFunc(d.AllowedTypes, func(r rune) bool { return r == ';' || r == ',' }) {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return slices.Clone(DefaultAllowedTypes)
	}
	return out
}

// SortSections returns a copy ordered by sequence; equal sequences keep catalog order.
func SortSections(in []Section) []Section {
	return sortBySequence(in, func(s Section) int { return s.Sequence })
}

// SortFields returns a copy ordered by sequence.
func SortFields(in []FormField) []FormField {
	return sortBySequence(in, func(f FormField) int { return f.Sequence })
}

// SortStatuses returns a copy ordered by sequence.
func SortStatuses(in []Status) []Status {
	return sortBySequence(in, func(s Status) int { return s.Sequence })
}

// SortDocuments returns a copy ordered by sequence.
func SortDocuments(in []DocumentRequirement) []DocumentRequirement {
	return sortBySequence(in, func(d DocumentRequirement) int { return d.Sequence })
}

func sortBySequence[T any](in []T, seq func(T) int) []T {
	out := slices.Clone(in)
	slices.SortStableFunc(out, func(a, b T) int { return cmp.Compare(seq(a), seq(b)) })
	return out
}
