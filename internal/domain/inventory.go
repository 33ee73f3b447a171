package domain

// InventoryRecord is a per-flight view used to reconcile the seat counter
// against the passengers that hold seats.
type InventoryRecord struct {
	FlightID       int64
	FlightCode     string
	TotalSeats     int
	AvailableSeats int
	HeldSeats      int
}

func (r InventoryRecord) ExpectedAvailable() int {
	return r.TotalSeats - r.HeldSeats
}

func (r InventoryRecord) Consistent() bool {
	return r.AvailableSeats == r.ExpectedAvailable() && r.AvailableSeats >= 0 && r.AvailableSeats <= r.TotalSeats
}

// BookingTotalRecord compares an active booking's stored total with its passengers.
type BookingTotalRecord struct {
	BookingID      int64
	BookingCode    string
	TotalPrice     Money
	PassengerTotal Money
}

func (r BookingTotalRecord) Consistent() bool {
	return r.TotalPrice == r.PassengerTotal
}
