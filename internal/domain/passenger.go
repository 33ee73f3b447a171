package domain

import "time"

type Passenger struct {
	ID             int64
	BookingID      int64
	FirstName      string
	LastName       string
	DateOfBirth    *time.Time
	PassportNumber string
	SeatNumber     string
	Price          Money
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
