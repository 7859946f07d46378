package models

import "time"

// UserProfile stores optional personal details. PhoneNumber, Address and
// DateOfBirth hold PII envelopes, never plaintext.
type UserProfile struct {
	UserID             string
	PhoneNumber        string
	Address            string
	DateOfBirth        string
	Bio                string
	Website            string
	Timezone           string
	Language           string
	EmailNotifications bool
	SMSNotifications   bool
	UpdatedAt          time.Time
}
