package crm_test

import (
	"testing"

	"github.com/notewell/crmbridge/internal/crm"
	"github.com/stretchr/testify/assert"
)

func TestFieldMapperRoundTrip(t *testing.T) {
	assert := assert.New(t)

	mappers := map[string]*crm.FieldMapper{
		"hubspot":    crm.HubSpotFields,
		"salesforce": crm.SalesforceFields,
	}

	// Every canonical field present in both directions must survive a
	// canonical -> wire -> canonical round trip unchanged
	for name, mapper := range mappers {
		for _, field := range crm.CanonicalFields {
			wire, ok := mapper.Wire(field)
			if !ok {
				continue
			}

			canonical, ok := mapper.Canonical(wire)
			assert.True(ok, "%s: wire field %s should map back", name, wire)
			assert.Equal(field, canonical, "%s: round trip for %s", name, field)
		}
	}
}

func TestFieldMapperDropsUnmappedOnWrite(t *testing.T) {
	assert := assert.New(t)

	// HubSpot has no "other address" block, so those fields must be
	// silently dropped rather than sent
	out := crm.HubSpotFields.ToProvider(map[string]string{
		crm.FieldFirstName:  "Ada",
		crm.FieldOtherCity:  "Boston",
		"not_a_real_field":  "x",
		crm.FieldJobTitle:   "Engineer",
		crm.FieldOtherState: "MA",
	})

	assert.Equal(map[string]string{
		"firstname": "Ada",
		"jobtitle":  "Engineer",
	}, out)
}

func TestFieldMapperReadOnlyRelationship(t *testing.T) {
	assert := assert.New(t)

	// Account.Name is readable as the canonical company field...
	canonical, ok := crm.SalesforceFields.Canonical("Account.Name")
	assert.True(ok)
	assert.Equal(crm.FieldCompany, canonical)

	// ...but never writable
	_, ok = crm.SalesforceFields.Wire(crm.FieldCompany)
	assert.False(ok)
}

func TestRecordFromWireSkipsUnknownFields(t *testing.T) {
	assert := assert.New(t)

	record := crm.SalesforceFields.RecordFromWire("003xx", map[string]string{
		"FirstName":    "Grace",
		"Title":        "Admiral",
		"Account.Name": "US Navy",
		"Unmapped__c":  "ignored",
	})

	assert.Equal("003xx", record.ID)
	assert.Equal(map[string]string{
		crm.FieldFirstName: "Grace",
		crm.FieldJobTitle:  "Admiral",
		crm.FieldCompany:   "US Navy",
	}, record.Fields)
}
