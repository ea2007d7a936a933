package fhir

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ausphi/healthsim/internal/insurance"
	apperrors "github.com/ausphi/healthsim/internal/shared/errors"
	"github.com/ausphi/healthsim/internal/shared/random"
	"github.com/ausphi/healthsim/internal/shared/types"
)

var simDate = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

const bundle = `{
  "resourceType": "Bundle",
  "type": "transaction",
  "entry": [
    {
      "fullUrl": "urn:uuid:1",
      "resource": {
        "resourceType": "Patient",
        "id": "p1",
        "identifier": [
          {"system": "http://ns.electronichealth.net.au/id/hi/ihi/1.0", "value": "8003608166690503"},
          {"system": "http://ns.electronichealth.net.au/id/medicare-number", "value": "2950301131 1"}
        ],
        "name": [
          {"use": "nickname", "given": ["Liv"]},
          {"use": "official", "family": "Smith456", "given": ["Olivia123", "Grace"]}
        ],
        "telecom": [
          {"system": "phone", "value": "0412 345 678", "use": "mobile"},
          {"system": "phone", "value": "02 9976 1234", "use": "home"},
          {"system": "email", "value": "olivia.smith@example.com.au"}
        ],
        "gender": "female",
        "birthDate": "1985-07-20",
        "address": [
          {"use": "work", "line": ["1 Martin Pl"], "city": "Sydney", "state": "NSW", "postalCode": "2000", "country": "AU"},
          {"use": "home", "line": ["12 Beach Rd"], "city": "Manly", "state": "New South Wales", "postalCode": "2095", "country": "AU"}
        ]
      }
    },
    {
      "resource": {
        "resourceType": "Patient",
        "id": "p2",
        "name": [{"family": "Lee", "given": ["Jack"]}],
        "gender": "male",
        "birthDate": "1990-01-01",
        "address": [{"line": ["4 Elm St"], "city": "Boston", "state": "Massachusetts", "country": "US"}]
      }
    },
    {
      "resource": {
        "resourceType": "Patient",
        "id": "p3",
        "name": [{"family": "Gone", "given": ["Alex"]}],
        "birthDate": "1940-05-05",
        "deceasedDateTime": "2020-01-01T00:00:00Z"
      }
    },
    {
      "resource": {"resourceType": "Patient", "id": "p4", "name": [{"family": "Doe", "given": ["Sam"]}]}
    },
    {
      "resource": {"resourceType": "Encounter", "id": "e1", "status": "finished"}
    }
  ]
}`

func TestImportMembers(t *testing.T) {
	existing := []insurance.Member{{MembershipNumber: "MBR-00000041"}}
	res, err := ImportMembers([]byte(bundle), simDate, random.New(1), existing)
	require.NoError(t, err)
	require.Len(t, res.Members, 2)

	olivia := res.Members[0]
	assert.Equal(t, "MBR-00000042", olivia.MembershipNumber)
	assert.Equal(t, "Olivia", olivia.FirstName)
	assert.Equal(t, "Smith", olivia.LastName)
	assert.Equal(t, insurance.GenderFemale, olivia.Gender)
	assert.Equal(t, time.Date(1985, 7, 20, 0, 0, 0, 0, time.UTC), olivia.DateOfBirth)
	assert.Equal(t, types.MedicareNumber("2950301131"), olivia.MedicareNumber)
	assert.Equal(t, "0412 345 678", olivia.Contact.Mobile)
	assert.Equal(t, "02 9976 1234", olivia.Contact.Phone)
	assert.Equal(t, "olivia.smith@example.com.au", olivia.Contact.Email)
	assert.Equal(t, types.NewAddress("12 Beach Rd", "Manly", types.StateNSW, "2095"), olivia.Address)
	assert.Equal(t, simDate, olivia.JoinDate)
	assert.True(t, olivia.IsActive)
	assert.NotNil(t, olivia.RiskScore)

	jack := res.Members[1]
	assert.Equal(t, "MBR-00000043", jack.MembershipNumber)
	assert.Equal(t, insurance.GenderMale, jack.Gender)
	assert.NotEqual(t, "Boston", jack.Address.Suburb, "overseas addresses are replaced")
	assert.Equal(t, "AU", jack.Address.Country)
	assert.True(t, jack.MedicareNumber.IsValid())

	require.Len(t, res.Skipped, 2)
	assert.Equal(t, Skip{PatientID: "p3", Reason: "deceased"}, res.Skipped[0])
	assert.Equal(t, "p4", res.Skipped[1].PatientID)
}

func TestImportSkipsKnownMedicareNumber(t *testing.T) {
	existing := []insurance.Member{{MembershipNumber: "MBR-00000001", MedicareNumber: "2950301131"}}
	res, err := ImportMembers([]byte(bundle), simDate, random.New(2), existing)
	require.NoError(t, err)
	require.Len(t, res.Members, 1)
	assert.Equal(t, "Jack", res.Members[0].FirstName)
	assert.Equal(t, "MBR-00000002", res.Members[0].MembershipNumber)
	assert.Contains(t, res.Skipped, Skip{PatientID: "p1", Reason: "medicare number already registered"})
}

func TestImportSinglePatient(t *testing.T) {
	data := `{"resourceType":"Patient","id":"solo","name":[{"family":"Tran","given":["Minh"]}],"gender":"unknown","birthDate":"2001-11-30"}`
	res, err := ImportMembers([]byte(data), simDate, random.New(3), nil)
	require.NoError(t, err)
	require.Len(t, res.Members, 1)
	assert.Equal(t, "MBR-00000001", res.Members[0].MembershipNumber)
	assert.Equal(t, insurance.GenderOther, res.Members[0].Gender)
}

func TestImportRejectsBadInput(t *testing.T) {
	for name, data := range map[string]string{
		"not json":   `{"resourceType":`,
		"wrong type": `{"resourceType":"Observation"}`,
		"bad entry":  `{"resourceType":"Bundle","entry":[{"resource":{"resourceType":"Patient","name":"x"}}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ImportMembers([]byte(data), simDate, random.New(1), nil)
			assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest), err)
		})
	}
}

func TestPatientToMemberRejectsFutureBirth(t *testing.T) {
	p := Patient{ID: "x", Name: []HumanName{{Family: "Young", Given: []string{"Kai"}}}, BirthDate: "2024-04-01"}
	_, reason, ok := p.toMember(simDate)
	assert.False(t, ok)
	assert.Equal(t, "born after simulation date", reason)
}
