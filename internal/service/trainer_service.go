package service

import (
	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/repository"
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Service Interface ---
type TrainerService interface {
	GetTrainer(ctx context.Context, id primitive.ObjectID) (*domain.Trainer, error)
	ListTrainers(ctx context.Context) ([]domain.Trainer, error)
	// UpdateSchedule replaces the trainer's weekly schedule. Allowed for the
	// trainer themselves or an admin.
	UpdateSchedule(ctx context.Context, actor domain.Actor, trainerID primitive.ObjectID, days []domain.ScheduleDay) (*domain.Trainer, error)
}

// --- Service Implementation ---

type trainerService struct {
	trainerRepo repository.TrainerRepository
}

// NewTrainerService creates a new instance of trainerService.
func NewTrainerService(trainerRepo repository.TrainerRepository) TrainerService {
	return &trainerService{trainerRepo: trainerRepo}
}

func (s *trainerService) GetTrainer(ctx context.Context, id primitive.ObjectID) (*domain.Trainer, error) {
	trainer, err := s.trainerRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTrainerNotFound
		}
		return nil, err
	}
	return trainer, nil
}

func (s *trainerService) ListTrainers(ctx context.Context) ([]domain.Trainer, error) {
	return s.trainerRepo.List(ctx)
}

func (s *trainerService) UpdateSchedule(ctx context.Context, actor domain.Actor, trainerID primitive.ObjectID, days []domain.ScheduleDay) (*domain.Trainer, error) {
	// 1. Authorization
	if actor.Role != domain.RoleAdmin && !(actor.Role == domain.RoleTrainer && actor.ID == trainerID) {
		return nil, ErrAccessDenied
	}

	// 2. Validate and normalise
	week, err := ValidateSchedule(days)
	if err != nil {
		return nil, err
	}

	// 3. Persist
	trainer, err := s.trainerRepo.UpdateSchedule(ctx, trainerID, week)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTrainerNotFound
		}
		return nil, err
	}
	log.Printf("INFO: Schedule updated for trainer %s by %s", trainerID.Hex(), actor.ID.Hex())
	return trainer, nil
}

// ValidateSchedule checks a weekly schedule and returns all seven days,
// Sunday first. Days not supplied are unavailable. Working hours must be
// well formed and must not overlap within a day; they are stored sorted.
func ValidateSchedule(days []domain.ScheduleDay) ([]domain.ScheduleDay, error) {
	week := domain.EmptyWeek()
	seen := make(map[int]bool, len(days))

	for _, day := range days {
		if day.DayOfWeek < 0 || day.DayOfWeek > 6 {
			return nil, fmt.Errorf("%w: dayOfWeek %d is out of range 0-6", ErrInvalidInput, day.DayOfWeek)
		}
		if seen[day.DayOfWeek] {
			return nil, fmt.Errorf("%w: dayOfWeek %d appears more than once", ErrInvalidInput, day.DayOfWeek)
		}
		seen[day.DayOfWeek] = true

		hours := append([]domain.WorkingHours{}, day.WorkingHours...)
		for _, h := range hours {
			if err := h.Validate(); err != nil {
				return nil, fmt.Errorf("%w: day %d working hours %s-%s: %v", ErrInvalidInput, day.DayOfWeek, h.Start, h.End, err)
			}
		}
		sort.Slice(hours, func(i, j int) bool { return hours[i].Start < hours[j].Start })
		for i := 1; i < len(hours); i++ {
			if hours[i].Overlaps(hours[i-1]) {
				return nil, fmt.Errorf("%w: day %d working hours %s-%s and %s-%s overlap",
					ErrInvalidInput, day.DayOfWeek, hours[i-1].Start, hours[i-1].End, hours[i].Start, hours[i].End)
			}
		}

		week[day.DayOfWeek] = domain.ScheduleDay{
			DayOfWeek:    day.DayOfWeek,
			Available:    day.Available && len(hours) > 0,
			WorkingHours: hours,
		}
	}
	return week, nil
}
