package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WorkingHours is one bookable window inside a schedule day.
type WorkingHours = TimeRange

// ScheduleDay is the recurring weekly entry for a single weekday.
type ScheduleDay struct {
	DayOfWeek    int            `bson:"dayOfWeek" json:"dayOfWeek"` // 0 = Sunday ... 6 = Saturday
	Available    bool           `bson:"available" json:"available"`
	WorkingHours []WorkingHours `bson:"workingHours" json:"workingHours"`
}

// Trainer holds the bookable profile of a trainer user. The ID is the
// trainer's user ID.
type Trainer struct {
	ID             primitive.ObjectID `bson:"_id" json:"id"`
	Name           string             `bson:"name" json:"name"`
	Specialization string             `bson:"specialization,omitempty" json:"specialization,omitempty"`
	Bio            string             `bson:"bio,omitempty" json:"bio,omitempty"`
	Location       string             `bson:"location,omitempty" json:"location,omitempty"` // Default appointment location
	Schedule       []ScheduleDay      `bson:"schedule" json:"schedule"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// DaySchedule returns the entry for the given weekday, if any.
func (t *Trainer) DaySchedule(day time.Weekday) (ScheduleDay, bool) {
	for _, d := range t.Schedule {
		if d.DayOfWeek == int(day) {
			return d, true
		}
	}
	return ScheduleDay{}, false
}

// EmptyWeek returns seven unavailable days, Sunday first.
func EmptyWeek() []ScheduleDay {
	week := make([]ScheduleDay, 7)
	for i := range week {
		week[i] = ScheduleDay{DayOfWeek: i, WorkingHours: []WorkingHours{}}
	}
	return week
}
