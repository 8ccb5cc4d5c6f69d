package services

import (
	"errors"
	"testing"

	"driverdesk/internal/domain"
	"driverdesk/internal/domain/models"
)

func TestSeatAllocatorOccupiesAscending(t *testing.T) {
	a := NewSeatAllocator(6)

	ids, err := a.TryOccupy(2, models.Assignment{PassengerName: "Ivan", Amount: 641})
	if err != nil {
		t.Fatalf("occupy: %v", err)
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Fatalf("ids = %v", ids)
	}
	seats := a.Seats()
	if seats[0].Assignment.Amount != 321 || seats[1].Assignment.Amount != 320 {
		t.Fatalf("fare split wrong: %d %d", seats[0].Assignment.Amount, seats[1].Assignment.Amount)
	}

	next, err := a.TryOccupy(3, models.Assignment{PassengerName: "Olga", Amount: 300})
	if err != nil {
		t.Fatalf("occupy: %v", err)
	}
	if next[0] != 3 || next[2] != 5 {
		t.Fatalf("second block = %v", next)
	}
	if a.OccupiedCount() != 5 || a.FreeCount() != 1 {
		t.Fatalf("occupied=%d free=%d", a.OccupiedCount(), a.FreeCount())
	}
}

func TestSeatAllocatorNoPartialAllocation(t *testing.T) {
	a := NewSeatAllocator(3)
	if _, err := a.TryOccupy(2, models.Assignment{PassengerName: "A", Amount: 2}); err != nil {
		t.Fatalf("occupy: %v", err)
	}

	_, err := a.TryOccupy(2, models.Assignment{PassengerName: "B", Amount: 2})
	var capErr domain.CapacityExceededError
	if !errors.As(err, &capErr) {
		t.Fatalf("expected CapacityExceededError, got %v", err)
	}
	if capErr.Requested != 2 || capErr.Free != 1 {
		t.Fatalf("unexpected fields: %+v", capErr)
	}
	if a.OccupiedCount() != 2 {
		t.Fatalf("partial allocation happened: %d", a.OccupiedCount())
	}
}

func TestSeatAllocatorReleaseAndValidation(t *testing.T) {
	a := NewSeatAllocator(0)
	if a.Capacity() != 6 {
		t.Fatalf("default capacity = %d", a.Capacity())
	}
	if _, err := a.TryOccupy(0, models.Assignment{}); !domain.IsValidation(err) {
		t.Fatalf("zero party: %v", err)
	}
	ids, _ := a.TryOccupy(2, models.Assignment{PassengerName: "A", Amount: 10})
	if err := a.Release([]int{ids[0], 42}); !domain.IsNotFound(err) {
		t.Fatalf("release unknown seat: %v", err)
	}
	if a.OccupiedCount() != 2 {
		t.Fatalf("failed release changed seats")
	}
	if err := a.Release(ids); err != nil {
		t.Fatalf("release: %v", err)
	}
	if a.FreeCount() != 6 {
		t.Fatalf("free = %d", a.FreeCount())
	}

	_, _ = a.TryOccupy(6, models.Assignment{PassengerName: "Full", Amount: 6})
	a.ReleaseAll()
	if a.OccupiedCount() != 0 {
		t.Fatalf("release all left %d seats", a.OccupiedCount())
	}
}

func TestSeatAllocatorSeatsIsACopy(t *testing.T) {
	a := NewSeatAllocator(2)
	_, _ = a.TryOccupy(1, models.Assignment{PassengerName: "A", Amount: 5})
	seats := a.Seats()
	seats[0].Assignment.PassengerName = "changed"
	if a.Seats()[0].Assignment.PassengerName != "A" {
		t.Fatalf("Seats leaked internal state")
	}
}
