package auth

import (
	"fmt"

	"github.com/Domenick1991/airreservations/internal/domain"
)

// Authorize lets the booking owner or an admin through and rejects everyone else.
func Authorize(actor domain.Actor, booking *domain.Booking) error {
	if actor.IsAdmin() || (actor.UserID != 0 && actor.UserID == booking.UserID) {
		return nil
	}
	return fmt.Errorf("booking %d: %w", booking.ID, domain.ErrForbidden)
}
