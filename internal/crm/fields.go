package crm

// FieldMapper is a pure, stateless two-way mapping between canonical
// field names and one provider's wire field names. Unmapped canonical
// fields are silently dropped on write; unmapped provider fields are
// simply absent from the canonical record on read. Fields that exist
// only as read-only relationships on the provider are present in the
// read direction only.
type FieldMapper struct {
	toWire  map[string]string // canonical -> wire, write direction
	toCanon map[string]string // wire -> canonical, read direction
}

// NewFieldMapper builds a mapper from a writable canonical->wire map
// and an optional read-only wire->canonical map for relationship fields
// that can be read but never written directly.
func NewFieldMapper(writable map[string]string, readOnly map[string]string) *FieldMapper {
	m := &FieldMapper{
		toWire:  make(map[string]string, len(writable)),
		toCanon: make(map[string]string, len(writable)+len(readOnly)),
	}
	for canonical, wire := range writable {
		m.toWire[canonical] = wire
		m.toCanon[wire] = canonical
	}
	for wire, canonical := range readOnly {
		m.toCanon[wire] = canonical
	}
	return m
}

// Wire translates a canonical field to the provider's wire name.
// Returns false for unmapped or read-only fields.
func (m *FieldMapper) Wire(canonical string) (string, bool) {
	wire, ok := m.toWire[canonical]
	return wire, ok
}

// Canonical translates a provider wire field back to its canonical name
func (m *FieldMapper) Canonical(wire string) (string, bool) {
	canonical, ok := m.toCanon[wire]
	return canonical, ok
}

// WireFields returns every wire field name the provider can return,
// including read-only relationship fields. Used to build property
// selections on fetch.
func (m *FieldMapper) WireFields() []string {
	fields := make([]string, 0, len(m.toCanon))
	for wire := range m.toCanon {
		fields = append(fields, wire)
	}
	return fields
}

// ToProvider translates a canonical field->value map into the
// provider's wire format, dropping any field with no writable mapping
func (m *FieldMapper) ToProvider(updates map[string]string) map[string]string {
	out := make(map[string]string, len(updates))
	for canonical, value := range updates {
		if wire, ok := m.toWire[canonical]; ok {
			out[wire] = value
		}
	}
	return out
}

// RecordFromWire builds a canonical ContactRecord from a provider's raw
// property map, skipping wire fields with no canonical mapping
func (m *FieldMapper) RecordFromWire(id string, props map[string]string) *ContactRecord {
	record := &ContactRecord{
		ID:     id,
		Fields: make(map[string]string, len(props)),
	}
	for wire, value := range props {
		if canonical, ok := m.toCanon[wire]; ok {
			record.Fields[canonical] = value
		}
	}
	return record
}

// HubSpotFields maps canonical names onto HubSpot contact properties.
// HubSpot's property names follow the same lowercase convention as the
// canonical set, so the writable map is an identity mapping; the "other
// address" block has no HubSpot equivalent and stays unmapped.
var HubSpotFields = NewFieldMapper(map[string]string{
	FieldFirstName:   "firstname",
	FieldLastName:    "lastname",
	FieldEmail:       "email",
	FieldPhone:       "phone",
	FieldMobilePhone: "mobilephone",
	FieldJobTitle:    "jobtitle",
	FieldDepartment:  "department",
	FieldCompany:     "company",
	FieldAddress:     "address",
	FieldCity:        "city",
	FieldState:       "state",
	FieldZip:         "zip",
	FieldCountry:     "country",
	FieldDescription: "description",
	FieldLeadSource:  "lead_source",
}, nil)

// SalesforceFields maps canonical names onto Salesforce Contact fields.
// The company name lives on the related Account object and is read-only
// through the Account.Name relationship.
var SalesforceFields = NewFieldMapper(map[string]string{
	FieldFirstName:    "FirstName",
	FieldLastName:     "LastName",
	FieldEmail:        "Email",
	FieldPhone:        "Phone",
	FieldMobilePhone:  "MobilePhone",
	FieldJobTitle:     "Title",
	FieldDepartment:   "Department",
	FieldAddress:      "MailingStreet",
	FieldCity:         "MailingCity",
	FieldState:        "MailingState",
	FieldZip:          "MailingPostalCode",
	FieldCountry:      "MailingCountry",
	FieldOtherStreet:  "OtherStreet",
	FieldOtherCity:    "OtherCity",
	FieldOtherState:   "OtherState",
	FieldOtherZip:     "OtherPostalCode",
	FieldOtherCountry: "OtherCountry",
	FieldDescription:  "Description",
	FieldLeadSource:   "LeadSource",
}, map[string]string{
	"Account.Name": FieldCompany,
})

// Mapper returns the field mapper for a provider
func Mapper(p Provider) (*FieldMapper, bool) {
	switch p {
	case ProviderHubSpot:
		return HubSpotFields, true
	case ProviderSalesforce:
		return SalesforceFields, true
	}
	return nil, false
}
