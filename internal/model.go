package internal

import "time"

type User struct {
	ID    string `json:"id"`
	Token string `json:"token,omitempty"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// GoalProfile is a user's account document. BedTime and WakeTime are "HH:mm"
// strings in the device's local calendar; both are set or both are empty.
type GoalProfile struct {
	UserID    string    `json:"id" bson:"id"`
	UserName  string    `json:"user_name" bson:"userName"`
	Email     string    `json:"email,omitempty" bson:"email,omitempty"`
	BedTime   string    `json:"bed_time,omitempty" bson:"bedTime,omitempty"`
	WakeTime  string    `json:"wake_time,omitempty" bson:"wakeTime,omitempty"`
	CreatedAt time.Time `json:"created_at" bson:"createdAt"`
	UpdatedAt time.Time `json:"updated_at" bson:"updatedAt"`
}

func (p *GoalProfile) HasGoal() bool {
	return p.BedTime != "" && p.WakeTime != ""
}

// GoalFields is a partial profile update; nil fields are left untouched.
type GoalFields struct {
	BedTime  *string
	WakeTime *string
}

type SleepLogEntry struct {
	ID          string    `json:"id" bson:"id"`
	UserID      string    `json:"user_id" bson:"userId"`
	Date        time.Time `json:"date" bson:"date"`
	IsCompleted bool      `json:"is_completed" bson:"isCompleted"`
	CreatedAt   time.Time `json:"created_at" bson:"createdAt"`
}

type RoutineStep struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	IsCompleted bool   `json:"is_completed"`
}

type Outcome string

const (
	OutcomeNone         Outcome = ""
	OutcomeCompleted    Outcome = "completed"
	OutcomeInterrupted  Outcome = "interrupted"
	OutcomeUndetermined Outcome = "undetermined"
)
