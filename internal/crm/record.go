package crm

import "strings"

// Canonical contact field names. Every provider's wire format is
// normalized onto this set; a provider that has no equivalent for a
// field simply leaves it absent.
const (
	FieldFirstName    = "firstname"
	FieldLastName     = "lastname"
	FieldEmail        = "email"
	FieldPhone        = "phone"
	FieldMobilePhone  = "mobilephone"
	FieldJobTitle     = "jobtitle"
	FieldDepartment   = "department"
	FieldCompany      = "company"
	FieldAddress      = "address"
	FieldCity         = "city"
	FieldState        = "state"
	FieldZip          = "zip"
	FieldCountry      = "country"
	FieldOtherStreet  = "otherstreet"
	FieldOtherCity    = "othercity"
	FieldOtherState   = "otherstate"
	FieldOtherZip     = "otherzip"
	FieldOtherCountry = "othercountry"
	FieldDescription  = "description"
	FieldLeadSource   = "leadsource"
)

// CanonicalFields lists every canonical field name
var CanonicalFields = []string{
	FieldFirstName, FieldLastName, FieldEmail,
	FieldPhone, FieldMobilePhone,
	FieldJobTitle, FieldDepartment, FieldCompany,
	FieldAddress, FieldCity, FieldState, FieldZip, FieldCountry,
	FieldOtherStreet, FieldOtherCity, FieldOtherState, FieldOtherZip, FieldOtherCountry,
	FieldDescription, FieldLeadSource,
}

// ContactRecord is the canonical, provider-agnostic contact
// representation. A missing key in Fields means the provider returned
// no value for that field, not that the field is unsupported. Records
// are constructed fresh on every successful fetch and never mutated in
// place; updates go through the provider and are re-fetched.
type ContactRecord struct {
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields"`
}

// Value returns the value of a canonical field and whether the provider
// returned one at all
func (r *ContactRecord) Value(field string) (string, bool) {
	v, ok := r.Fields[field]
	return v, ok
}

// DisplayName derives a human-readable name from the record: first and
// last name joined and trimmed, falling back to email when both name
// parts are empty
func (r *ContactRecord) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(r.Fields[FieldFirstName]) + " " + strings.TrimSpace(r.Fields[FieldLastName]))
	if name == "" {
		return r.Fields[FieldEmail]
	}
	return name
}

// FieldUpdate is a single proposed change to one canonical field.
// CurrentValue is filled in by the reconciler from the live record and
// is never trusted from the proposer. After reconciliation every
// surviving update has HasChange and Apply set.
type FieldUpdate struct {
	Field        string  `json:"field"`
	Label        string  `json:"label"`
	CurrentValue *string `json:"current_value"`
	NewValue     string  `json:"new_value"`
	Context      string  `json:"context,omitempty"`
	Apply        bool    `json:"apply"`
	HasChange    bool    `json:"has_change"`
}
