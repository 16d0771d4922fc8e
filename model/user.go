package model

import (
	"encoding/json"
	"strings"
)

type User struct {
	ID             string `json:"_id"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Phone          string `json:"phone"`
	Email          string `json:"email,omitempty"`
	Role           Role   `json:"role"`
	ProfilePicture string `json:"profilePicture,omitempty"`
	FirstLogin     bool   `json:"firstLogin"`
	FCNNumber      string `json:"fcnNumber,omitempty"`
	DeliveryMethod string `json:"deliveryMethod,omitempty"`
	CreatedAt      string `json:"createdAt,omitempty"`
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// UnmarshalJSON accepts both "_id" and "id" since the API is not consistent.
func (u *User) UnmarshalJSON(data []byte) error {
	type plain User
	var aux struct {
		plain
		AltID string `json:"id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*u = User(aux.plain)
	if u.ID == "" {
		u.ID = aux.AltID
	}
	u.Role = ParseRole(string(u.Role))
	return nil
}

// SanitizePhone drops a single leading zero, which is how the login and user
// forms normalise local numbers before they reach the API.
func SanitizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	return strings.TrimPrefix(phone, "0")
}
