package service

import (
	"alcyxob/gym-app/internal/domain"
	"context"
	"errors"
	"testing"
)

func TestValidateSchedule(t *testing.T) {
	tests := []struct {
		name    string
		days    []domain.ScheduleDay
		wantErr bool
	}{
		{"empty week", nil, false},
		{"sorted windows", []domain.ScheduleDay{{DayOfWeek: 1, Available: true, WorkingHours: []domain.WorkingHours{{Start: "08:00", End: "12:00"}, {Start: "13:00", End: "17:00"}}}}, false},
		{"touching windows", []domain.ScheduleDay{{DayOfWeek: 1, Available: true, WorkingHours: []domain.WorkingHours{{Start: "12:00", End: "17:00"}, {Start: "08:00", End: "12:00"}}}}, false},
		{"overlapping windows", []domain.ScheduleDay{{DayOfWeek: 1, Available: true, WorkingHours: []domain.WorkingHours{{Start: "08:00", End: "12:00"}, {Start: "11:00", End: "14:00"}}}}, true},
		{"start after end", []domain.ScheduleDay{{DayOfWeek: 2, Available: true, WorkingHours: []domain.WorkingHours{{Start: "18:00", End: "09:00"}}}}, true},
		{"malformed time", []domain.ScheduleDay{{DayOfWeek: 2, Available: true, WorkingHours: []domain.WorkingHours{{Start: "9:00", End: "17:00"}}}}, true},
		{"day out of range", []domain.ScheduleDay{{DayOfWeek: 7, Available: true}}, true},
		{"duplicate day", []domain.ScheduleDay{{DayOfWeek: 3}, {DayOfWeek: 3}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			week, err := ValidateSchedule(tt.days)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Fatalf("err = %v, want ErrInvalidInput", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(week) != 7 {
				t.Fatalf("len = %d, want 7", len(week))
			}
			for i, d := range week {
				if d.DayOfWeek != i {
					t.Errorf("week[%d].DayOfWeek = %d", i, d.DayOfWeek)
				}
				for j := 1; j < len(d.WorkingHours); j++ {
					if d.WorkingHours[j].Start < d.WorkingHours[j-1].Start {
						t.Errorf("day %d windows not sorted", i)
					}
				}
			}
		})
	}
}

func TestValidateScheduleAvailableNeedsHours(t *testing.T) {
	week, err := ValidateSchedule([]domain.ScheduleDay{{DayOfWeek: 0, Available: true}})
	if err != nil {
		t.Fatal(err)
	}
	if week[0].Available {
		t.Error("day with no working hours stored as available")
	}
}

func TestUpdateScheduleAuthorization(t *testing.T) {
	env := newTestEnv(t)
	svc := NewTrainerService(env.trainers)
	trainer := env.addTrainer(t)
	otherTrainer := env.addTrainer(t)
	admin := env.addUser(t, domain.RoleAdmin)
	member := env.addUser(t, domain.RoleMember)

	days := []domain.ScheduleDay{{DayOfWeek: 1, Available: true, WorkingHours: []domain.WorkingHours{{Start: "06:00", End: "10:00"}}}}

	if _, err := svc.UpdateSchedule(context.Background(), otherTrainer, trainer.ID, days); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("other trainer err = %v", err)
	}
	if _, err := svc.UpdateSchedule(context.Background(), member, trainer.ID, days); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("member err = %v", err)
	}
	updated, err := svc.UpdateSchedule(context.Background(), trainer, trainer.ID, days)
	if err != nil {
		t.Fatalf("self update: %v", err)
	}
	if !updated.Schedule[1].Available || updated.Schedule[2].Available {
		t.Errorf("schedule = %+v", updated.Schedule)
	}
	if _, err := svc.UpdateSchedule(context.Background(), admin, trainer.ID, days); err != nil {
		t.Errorf("admin update: %v", err)
	}
	if _, err := svc.UpdateSchedule(context.Background(), admin, member.ID, days); !errors.Is(err, ErrTrainerNotFound) {
		t.Errorf("unknown trainer err = %v", err)
	}

	// The new schedule drives availability.
	ok, err := env.availability.IsAvailable(context.Background(), SlotQuery{TrainerID: trainer.ID, Date: testDay, Slot: domain.TimeRange{Start: "10:00", End: "11:00"}})
	if err != nil || ok {
		t.Errorf("slot outside new hours available=%v err=%v", ok, err)
	}
}
