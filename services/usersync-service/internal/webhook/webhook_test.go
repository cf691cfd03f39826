package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerify(t *testing.T) {
	body := []byte(`{"type":"user.created"}`)
	sig := Sign("s3cret", body)

	require.NoError(t, Verify("s3cret", body, sig))
	require.NoError(t, Verify("s3cret", body, "sha256="+sig))
	assert.ErrorIs(t, Verify("s3cret", body, ""), ErrMissingSignature)
	assert.ErrorIs(t, Verify("other", body, sig), ErrBadSignature)
	assert.ErrorIs(t, Verify("s3cret", body, "not-hex"), ErrBadSignature)
	assert.ErrorIs(t, Verify("s3cret", []byte(`{"type":"user.deleted"}`), sig), ErrBadSignature)
}

func TestParse(t *testing.T) {
	evt, err := Parse([]byte(`{
		"type": "user.created",
		"data": {
			"id": "user_1",
			"email_addresses": [{"id": "e1", "email_address": "Old@Example.com"}, {"id": "e2", "email_address": " Rahim@Example.com "}],
			"primary_email_address_id": "e2",
			"first_name": "Rahim",
			"last_name": " Uddin",
			"phone_numbers": [{"id": "p1", "phone_number": "+8801700000000"}],
			"image_url": "https://img.example/u1.png"
		}
	}`))
	require.NoError(t, err)
	assert.Equal(t, TypeUserCreated, evt.Type)
	assert.Equal(t, "user_1", evt.Data.ID)
	assert.Equal(t, "rahim@example.com", evt.Data.PrimaryEmail())
	assert.Equal(t, "+8801700000000", evt.Data.PrimaryPhone())
	assert.Equal(t, "Rahim Uddin", evt.Data.FullName())

	_, err = Parse([]byte(`{"type":"user.created","data":{}}`))
	require.Error(t, err)
	_, err = Parse([]byte(`{"data":{"id":"u"}}`))
	require.Error(t, err)
	_, err = Parse([]byte(`not json`))
	require.Error(t, err)
}

func TestPrimaryFallbacks(t *testing.T) {
	d := UserData{
		EmailAddresses: []EmailAddress{{ID: "e1", EmailAddress: " "}, {ID: "e2", EmailAddress: "A@B.io"}},
		PhoneNumbers:   []PhoneNumber{{ID: "p1", PhoneNumber: ""}},
		FirstName:      "Solo",
	}
	assert.Equal(t, "a@b.io", d.PrimaryEmail())
	assert.Equal(t, "", d.PrimaryPhone())
	assert.Equal(t, "Solo", d.FullName())
}
