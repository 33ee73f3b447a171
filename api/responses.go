package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Domenick1991/airreservations/internal/auth"
	"github.com/Domenick1991/airreservations/internal/domain"
	"github.com/Domenick1991/airreservations/internal/service/passengers"
	"github.com/gin-gonic/gin"
)

type flightResponse struct {
	ID                   int64        `json:"id"`
	Code                 string       `json:"code"`
	Origin               string       `json:"origin"`
	Destination          string       `json:"destination"`
	OriginAirportID      int64        `json:"origin_airport_id"`
	DestinationAirportID int64        `json:"destination_airport_id"`
	DepartureAt          string       `json:"departure_at"`
	ArrivalAt            string       `json:"arrival_at"`
	SeatsTotal           int          `json:"seats_total"`
	SeatsAvailable       int          `json:"seats_available"`
	BasePrice            domain.Money `json:"base_price"`
}

type passengerResponse struct {
	ID             int64        `json:"id"`
	BookingID      int64        `json:"booking_id"`
	FirstName      string       `json:"first_name"`
	LastName       string       `json:"last_name"`
	DateOfBirth    *string      `json:"date_of_birth"`
	PassportNumber string       `json:"passport_number,omitempty"`
	Seat           string       `json:"seat,omitempty"`
	Price          domain.Money `json:"price"`
}

type bookingResponse struct {
	ID          int64               `json:"id"`
	BookingCode string              `json:"booking_code"`
	FlightID    int64               `json:"flight_id"`
	UserID      int64               `json:"user_id"`
	Status      string              `json:"status"`
	TotalPrice  domain.Money        `json:"total_price"`
	BookedAt    string              `json:"booked_at"`
	Passengers  []passengerResponse `json:"passengers,omitempty"`
}

type passengerMutationResponse struct {
	Message        string             `json:"message,omitempty"`
	Passenger      *passengerResponse `json:"passenger,omitempty"`
	Booking        bookingResponse    `json:"booking"`
	SeatsAvailable int                `json:"seats_available"`
}

func newFlightResponse(f *domain.Flight) flightResponse {
	return flightResponse{
		ID:                   f.ID,
		Code:                 f.Code,
		Origin:               f.FromAirport,
		Destination:          f.ToAirport,
		OriginAirportID:      f.OriginAirportID,
		DestinationAirportID: f.DestinationAirportID,
		DepartureAt:          f.DepartureTime.UTC().Format(time.RFC3339),
		ArrivalAt:            f.ArrivalTime.UTC().Format(time.RFC3339),
		SeatsTotal:           f.TotalSeats,
		SeatsAvailable:       f.AvailableSeats,
		BasePrice:            f.BasePrice,
	}
}

func newPassengerResponse(p *domain.Passenger) passengerResponse {
	resp := passengerResponse{
		ID:             p.ID,
		BookingID:      p.BookingID,
		FirstName:      p.FirstName,
		LastName:       p.LastName,
		PassportNumber: p.PassportNumber,
		Seat:           p.SeatNumber,
		Price:          p.Price,
	}
	if p.DateOfBirth != nil {
		dob := p.DateOfBirth.Format("2006-01-02")
		resp.DateOfBirth = &dob
	}
	return resp
}

func newBookingResponse(b *domain.Booking) bookingResponse {
	resp := bookingResponse{
		ID:          b.ID,
		BookingCode: b.BookingCode,
		FlightID:    b.FlightID,
		UserID:      b.UserID,
		Status:      string(b.Status),
		TotalPrice:  b.TotalPrice,
		BookedAt:    b.BookedAt.UTC().Format(time.RFC3339),
	}
	for i := range b.Passengers {
		resp.Passengers = append(resp.Passengers, newPassengerResponse(&b.Passengers[i]))
	}
	return resp
}

func newMutationResponse(r *passengers.Result) passengerMutationResponse {
	resp := passengerMutationResponse{SeatsAvailable: r.SeatsAvailable}
	if r.Booking != nil {
		summary := *r.Booking
		summary.Passengers = nil
		resp.Booking = newBookingResponse(&summary)
	}
	if r.Passenger != nil {
		p := newPassengerResponse(r.Passenger)
		resp.Passenger = &p
	}
	return resp
}

// actor returns the authenticated caller or writes a 401.
func actor(c *gin.Context) (domain.Actor, bool) {
	a, ok := auth.ActorFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized", Message: "authentication required"})
	}
	return a, ok
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		writeBadRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}
