// Package webhook decodes and authenticates user lifecycle events sent by the
// hosted auth provider.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const SignatureHeader = "X-Webhook-Signature"

const (
	TypeUserCreated = "user.created"
	TypeUserUpdated = "user.updated"
	TypeUserDeleted = "user.deleted"
)

var (
	ErrMissingSignature = errors.New("missing signature")
	ErrBadSignature     = errors.New("signature mismatch")
)

type EmailAddress struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

type PhoneNumber struct {
	ID          string `json:"id"`
	PhoneNumber string `json:"phone_number"`
}

type UserData struct {
	ID                    string         `json:"id"`
	EmailAddresses        []EmailAddress `json:"email_addresses"`
	PrimaryEmailAddressID string         `json:"primary_email_address_id"`
	FirstName             string         `json:"first_name"`
	LastName              string         `json:"last_name"`
	PhoneNumbers          []PhoneNumber  `json:"phone_numbers"`
	PrimaryPhoneNumberID  string         `json:"primary_phone_number_id"`
	ImageURL              string         `json:"image_url"`
}

type Event struct {
	Type string   `json:"type"`
	Data UserData `json:"data"`
}

// Sign returns the hex HMAC-SHA256 of body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares signature against the HMAC of the raw body in constant time.
func Verify(secret string, body []byte, signature string) error {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return ErrMissingSignature
	}
	got, err := hex.DecodeString(strings.TrimPrefix(signature, "sha256="))
	if err != nil {
		return ErrBadSignature
	}
	want, _ := hex.DecodeString(Sign(secret, body))
	if !hmac.Equal(got, want) {
		return ErrBadSignature
	}
	return nil
}

func Parse(body []byte) (Event, error) {
	var evt Event
	if err := json.Unmarshal(body, &evt); err != nil {
		return Event{}, fmt.Errorf("decode webhook event: %w", err)
	}
	evt.Type = strings.TrimSpace(evt.Type)
	evt.Data.ID = strings.TrimSpace(evt.Data.ID)
	if evt.Type == "" {
		return Event{}, errors.New("event type missing")
	}
	if evt.Data.ID == "" {
		return Event{}, errors.New("user id missing")
	}
	return evt, nil
}

// PrimaryEmail prefers the address flagged primary and falls back to the first one.
func (d UserData) PrimaryEmail() string {
	for _, e := range d.EmailAddresses {
		if d.PrimaryEmailAddressID != "" && e.ID == d.PrimaryEmailAddressID {
			return strings.ToLower(strings.TrimSpace(e.EmailAddress))
		}
	}
	for _, e := range d.EmailAddresses {
		if v := strings.TrimSpace(e.EmailAddress); v != "" {
			return strings.ToLower(v)
		}
	}
	return ""
}

func (d UserData) PrimaryPhone() string {
	for _, p := range d.PhoneNumbers {
		if d.PrimaryPhoneNumberID != "" && p.ID == d.PrimaryPhoneNumberID {
			return strings.TrimSpace(p.PhoneNumber)
		}
	}
	for _, p := range d.PhoneNumbers {
		if v := strings.TrimSpace(p.PhoneNumber); v != "" {
			return v
		}
	}
	return ""
}

func (d UserData) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(d.FirstName) + " " + strings.TrimSpace(d.LastName))
}
