package domain

import "time"

type Flight struct {
	ID                   int64
	Code                 string
	OriginAirportID      int64
	DestinationAirportID int64
	FromAirport          string
	ToAirport            string
	DepartureTime        time.Time
	ArrivalTime          time.Time
	TotalSeats           int
	AvailableSeats       int
	BasePrice            Money
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// FlightFilter narrows a catalog search. Empty fields match everything.
type FlightFilter struct {
	Origin      string
	Destination string
	Date        *time.Time
}

type Airport struct {
	ID      int64
	Code    string
	Name    string
	City    string
	Country string
}
