package models

import "driverdesk/internal/domain"

// Assignment describes who occupies a seat and how the fare was paid.
type Assignment struct {
	PassengerName string               `json:"passenger_name"`
	FromStop      int                  `json:"from_stop"`
	ToStop        int                  `json:"to_stop"`
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
	Amount        int64                `json:"amount"`
	Subject       SubjectRef           `json:"subject"`
}

type Seat struct {
	ID         int         `json:"id"`
	Occupied   bool        `json:"occupied"`
	Assignment *Assignment `json:"assignment,omitempty"`
}
