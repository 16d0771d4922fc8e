package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Coordinate is a latitude or longitude that may arrive as a number or a string.
type Coordinate struct {
	Value float64
	Valid bool
}

func (c *Coordinate) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	f, err := strconv.ParseFloat(raw, 64)
	c.Value, c.Valid = f, err == nil
	return nil
}

func (c Coordinate) MarshalJSON() ([]byte, error) {
	if !c.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(c.Value)
}

type DeliveryLocation struct {
	UserID           string     `json:"userId,omitempty"`
	DeliveryPersonID string     `json:"deliveryPersonId,omitempty"`
	UserName         string     `json:"userName"`
	UserPhone        string     `json:"userPhone"`
	Latitude         Coordinate `json:"latitude"`
	Longitude        Coordinate `json:"longitude"`
	DeliveryMethod   string     `json:"deliveryMethod,omitempty"`

	UserDeliveryMethod string `json:"userDeliveryMethod,omitempty"`

	// Alternate spellings some delivery apps still send.
	DeliveryPersonName  string `json:"deliveryPersonName,omitempty"`
	UserFullName        string `json:"userFullName,omitempty"`
	DeliveryPersonPhone string `json:"deliveryPersonPhone,omitempty"`
}

// Normalize folds the alternate name, phone and method fields into the
// primary ones.
func (l DeliveryLocation) Normalize() DeliveryLocation {
	if l.UserName == "" {
		l.UserName = firstNonEmpty(l.DeliveryPersonName, l.UserFullName)
	}
	if l.UserPhone == "" {
		l.UserPhone = l.DeliveryPersonPhone
	}
	if l.DeliveryMethod == "" {
		l.DeliveryMethod = l.UserDeliveryMethod
	}
	return l
}

func (l DeliveryLocation) HasCoordinates() bool {
	return l.Latitude.Valid && l.Longitude.Valid
}

type DeliveryPerson struct {
	UserID     string           `json:"userId"`
	Location   DeliveryLocation `json:"location"`
	LastUpdate time.Time        `json:"lastUpdate"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
