package audit

import (
	"context"
	"time"

	"github.com/Domenick1991/airreservations/internal/domain"
	"github.com/Domenick1991/airreservations/internal/logger"
	"github.com/sirupsen/logrus"
)

const DefaultInterval = 5 * time.Minute

type SnapshotReader interface {
	InventorySnapshot(ctx context.Context) ([]domain.InventoryRecord, error)
	BookingTotalsSnapshot(ctx context.Context) ([]domain.BookingTotalRecord, error)
}

type Report struct {
	FlightsChecked  int
	BookingsChecked int
	SeatMismatches  []domain.InventoryRecord
	TotalMismatches []domain.BookingTotalRecord
}

func (r Report) Consistent() bool {
	return len(r.SeatMismatches) == 0 && len(r.TotalMismatches) == 0
}

// InventoryAuditor compares seat counters and booking totals with the
// passenger rows behind them. It only reports; it never writes.
type InventoryAuditor struct {
	reader SnapshotReader
	log    *logrus.Logger
}

func NewInventoryAuditor(reader SnapshotReader, log *logrus.Logger) *InventoryAuditor {
	if log == nil {
		log = logger.Discard()
	}
	return &InventoryAuditor{reader: reader, log: log}
}

func (a *InventoryAuditor) Audit(ctx context.Context) (Report, error) {
	var report Report

	inventory, err := a.reader.InventorySnapshot(ctx)
	if err != nil {
		return report, err
	}
	report.FlightsChecked = len(inventory)
	for _, r := range inventory {
		if !r.Consistent() {
			report.SeatMismatches = append(report.SeatMismatches, r)
			a.log.WithFields(logrus.Fields{
				"flight_id":          r.FlightID,
				"flight_code":        r.FlightCode,
				"seats_total":        r.TotalSeats,
				"seats_available":    r.AvailableSeats,
				"expected_available": r.ExpectedAvailable(),
			}).Error("seat inventory mismatch")
		}
	}

	totals, err := a.reader.BookingTotalsSnapshot(ctx)
	if err != nil {
		return report, err
	}
	report.BookingsChecked = len(totals)
	for _, r := range totals {
		if !r.Consistent() {
			report.TotalMismatches = append(report.TotalMismatches, r)
			a.log.WithFields(logrus.Fields{
				"booking_id":      r.BookingID,
				"booking_code":    r.BookingCode,
				"total_price":     r.TotalPrice.String(),
				"passenger_total": r.PassengerTotal.String(),
			}).Error("booking total mismatch")
		}
	}

	a.log.WithFields(logrus.Fields{
		"flights":          report.FlightsChecked,
		"bookings":         report.BookingsChecked,
		"seat_mismatches":  len(report.SeatMismatches),
		"total_mismatches": len(report.TotalMismatches),
	}).Info("inventory audit finished")
	return report, nil
}

// Run audits immediately and then on every tick until ctx is done.
func (a *InventoryAuditor) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		a.log.WithField("interval", interval.String()).Warn("invalid audit interval, using default")
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := a.Audit(ctx); err != nil && ctx.Err() == nil {
			a.log.WithError(err).Warn("inventory audit failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
