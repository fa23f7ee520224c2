package storage

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/yourname/fixyoursleep/internal"
	"github.com/yourname/fixyoursleep/internal/calendar"
)

// Document field names shared by the schemaless backends (JSON files and
// MongoDB).
const (
	fieldID          = "id"
	fieldUserName    = "userName"
	fieldEmail       = "email"
	fieldBedTime     = "bedTime"
	fieldWakeTime    = "wakeTime"
	fieldCreatedAt   = "createdAt"
	fieldUpdatedAt   = "updatedAt"
	fieldUserID      = "userId"
	fieldDate        = "date"
	fieldIsCompleted = "isCompleted"
)

type Document = map[string]any

// DecodeProfile validates a raw profile document. It fails closed: any
// missing or mistyped field yields internal.ErrInvalidDocument.
func DecodeProfile(doc Document) (*internal.GoalProfile, error) {
	var err error
	p := &internal.GoalProfile{}
	if p.UserID, err = requiredString(doc, fieldID); err != nil {
		return nil, err
	}
	if p.UserName, err = optionalString(doc, fieldUserName); err != nil {
		return nil, err
	}
	if p.Email, err = optionalString(doc, fieldEmail); err != nil {
		return nil, err
	}
	if p.BedTime, err = optionalString(doc, fieldBedTime); err != nil {
		return nil, err
	}
	if p.WakeTime, err = optionalString(doc, fieldWakeTime); err != nil {
		return nil, err
	}
	if err := validateGoalPair(p.BedTime, p.WakeTime); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = optionalTime(doc, fieldCreatedAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = optionalTime(doc, fieldUpdatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

func EncodeProfile(p *internal.GoalProfile) Document {
	doc := Document{
		fieldID:        p.UserID,
		fieldUserName:  p.UserName,
		fieldCreatedAt: p.CreatedAt,
		fieldUpdatedAt: p.UpdatedAt,
	}
	if p.Email != "" {
		doc[fieldEmail] = p.Email
	}
	if p.BedTime != "" {
		doc[fieldBedTime] = p.BedTime
	}
	if p.WakeTime != "" {
		doc[fieldWakeTime] = p.WakeTime
	}
	return doc
}

// DecodeSleepLog validates a raw sleep log document. userID fills in the
// owner when the document does not carry it (the document lives under the
// user's collection).
func DecodeSleepLog(doc Document, userID string) (*internal.SleepLogEntry, error) {
	var err error
	e := &internal.SleepLogEntry{}
	if e.ID, err = requiredString(doc, fieldID); err != nil {
		return nil, err
	}
	if e.UserID, err = optionalString(doc, fieldUserID); err != nil {
		return nil, err
	}
	if e.UserID == "" {
		e.UserID = userID
	}
	if e.Date, err = requiredTime(doc, fieldDate); err != nil {
		return nil, err
	}
	v, ok := doc[fieldIsCompleted]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q", internal.ErrInvalidDocument, fieldIsCompleted)
	}
	if e.IsCompleted, ok = v.(bool); !ok {
		return nil, fmt.Errorf("%w: %q is %T, want bool", internal.ErrInvalidDocument, fieldIsCompleted, v)
	}
	if e.CreatedAt, err = optionalTime(doc, fieldCreatedAt); err != nil {
		return nil, err
	}
	return e, nil
}

func EncodeSleepLog(e *internal.SleepLogEntry) Document {
	return Document{
		fieldID:          e.ID,
		fieldUserID:      e.UserID,
		fieldDate:        e.Date,
		fieldIsCompleted: e.IsCompleted,
		fieldCreatedAt:   e.CreatedAt,
	}
}

func validateGoalPair(bed, wake string) error {
	if (bed == "") != (wake == "") {
		return fmt.Errorf("%w: bedTime and wakeTime must be set together", internal.ErrInvalidDocument)
	}
	for _, s := range []string{bed, wake} {
		if s == "" {
			continue
		}
		if _, err := calendar.ParseTimeOfDay(s); err != nil {
			return fmt.Errorf("%w: %v", internal.ErrInvalidDocument, err)
		}
	}
	return nil
}

func requiredString(doc Document, key string) (string, error) {
	s, err := optionalString(doc, key)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", fmt.Errorf("%w: missing %q", internal.ErrInvalidDocument, key)
	}
	return s, nil
}

func optionalString(doc Document, key string) (string, error) {
	v, ok := doc[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q is %T, want string", internal.ErrInvalidDocument, key, v)
	}
	return s, nil
}

func requiredTime(doc Document, key string) (time.Time, error) {
	t, err := optionalTime(doc, key)
	if err != nil {
		return time.Time{}, err
	}
	if t.IsZero() {
		return time.Time{}, fmt.Errorf("%w: missing %q", internal.ErrInvalidDocument, key)
	}
	return t, nil
}

func optionalTime(doc Document, key string) (time.Time, error) {
	v, ok := doc[key]
	if !ok || v == nil {
		return time.Time{}, nil
	}
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case primitive.DateTime:
		return t.Time(), nil
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q: %v", internal.ErrInvalidDocument, key, err)
		}
		return parsed, nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q is %T, want time", internal.ErrInvalidDocument, key, v)
	}
}
