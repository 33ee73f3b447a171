package domain

import "time"

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCanceled  BookingStatus = "canceled"
)

type Booking struct {
	ID          int64
	FlightID    int64
	UserID      int64
	BookingCode string
	Status      BookingStatus
	TotalPrice  Money
	BookedAt    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Passengers []Passenger
}

// Active reports whether the booking still holds seats and accepts passenger changes.
func (b *Booking) Active() bool {
	return b.Status != BookingStatusCanceled
}

type BookingFilter struct {
	// UserID restricts the listing to one owner; zero lists every booking.
	UserID int64
	Limit  int
	Offset int
}
