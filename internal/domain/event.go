package domain

import "time"

const (
	EventBookingCreated   = "booking_created"
	EventBookingCanceled  = "booking_canceled"
	EventPassengerAdded   = "passenger_added"
	EventPassengerUpdated = "passenger_updated"
	EventPassengerRemoved = "passenger_removed"
)

type BookingEvent struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	BookingID      int64     `json:"booking_id"`
	BookingCode    string    `json:"booking_code"`
	FlightID       int64     `json:"flight_id"`
	UserID         int64     `json:"user_id"`
	Status         string    `json:"status"`
	TotalPrice     Money     `json:"total_price"`
	PassengerID    int64     `json:"passenger_id,omitempty"`
	SeatsAvailable int       `json:"seats_available"`
	OccurredAt     time.Time `json:"occurred_at"`
}
