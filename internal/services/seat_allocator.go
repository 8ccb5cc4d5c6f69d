package services

import (
	"driverdesk/internal/domain"
	"driverdesk/internal/domain/models"
	"driverdesk/internal/utils"
)

// SeatAllocator owns the fixed seat pool of the vehicle.
type SeatAllocator struct {
	seats []models.Seat
}

func NewSeatAllocator(capacity int) *SeatAllocator {
	if capacity <= 0 {
		capacity = 6
	}
	seats := make([]models.Seat, capacity)
	for i := range seats {
		seats[i] = models.Seat{ID: i + 1}
	}
	return &SeatAllocator{seats: seats}
}

func (a *SeatAllocator) Capacity() int { return len(a.seats) }

// TryOccupy claims the first partySize free seats in ascending id order, or nothing.
// The assignment amount is the whole fare; it is split across the claimed seats.
func (a *SeatAllocator) TryOccupy(partySize int, assignment models.Assignment) ([]int, error) {
	if partySize <= 0 {
		return nil, domain.ValidationError{Field: "party_size", Msg: "must be at least 1"}
	}
	free := a.FreeCount()
	if partySize > free {
		return nil, domain.CapacityExceededError{Requested: partySize, Free: free}
	}

	shares := utils.SplitAmount(assignment.Amount, partySize)
	ids := make([]int, 0, partySize)
	for i := range a.seats {
		if len(ids) == partySize {
			break
		}
		if a.seats[i].Occupied {
			continue
		}
		as := assignment
		as.Amount = shares[len(ids)]
		a.seats[i].Occupied = true
		a.seats[i].Assignment = &as
		ids = append(ids, a.seats[i].ID)
	}
	return ids, nil
}

// Release frees the given seats whatever their state.
func (a *SeatAllocator) Release(ids []int) error {
	for _, id := range ids {
		if id < 1 || id > len(a.seats) {
			return domain.NotFoundError{Resource: "seat", ID: id}
		}
	}
	for _, id := range ids {
		a.seats[id-1] = models.Seat{ID: id}
	}
	return nil
}

func (a *SeatAllocator) ReleaseAll() {
	for i := range a.seats {
		a.seats[i] = models.Seat{ID: i + 1}
	}
}

func (a *SeatAllocator) OccupiedCount() int {
	n := 0
	for _, s := range a.seats {
		if s.Occupied {
			n++
		}
	}
	return n
}

func (a *SeatAllocator) FreeCount() int {
	return len(a.seats) - a.OccupiedCount()
}

// Seats returns a deep copy of the pool.
func (a *SeatAllocator) Seats() []models.Seat {
	out := make([]models.Seat, len(a.seats))
	for i, s := range a.seats {
		out[i] = s
		if s.Assignment != nil {
			as := *s.Assignment
			out[i].Assignment = &as
		}
	}
	return out
}
