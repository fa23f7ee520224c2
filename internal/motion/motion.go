// Package motion models the phone's accelerometer as a subscription source.
package motion

import (
	"fmt"
	"math"
	"time"
)

// Acceleration is user acceleration (gravity removed) in g.
type Acceleration struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type Axis string

const (
	AxisX Axis = "x"
	AxisY Axis = "y"
	AxisZ Axis = "z"
)

func ParseAxis(s string) (Axis, error) {
	switch a := Axis(s); a {
	case AxisX, AxisY, AxisZ:
		return a, nil
	}
	return "", fmt.Errorf("motion: unknown axis %q", s)
}

// Along returns the magnitude of the acceleration on a single axis.
func (a Acceleration) Along(axis Axis) float64 {
	switch axis {
	case AxisX:
		return math.Abs(a.X)
	case AxisY:
		return math.Abs(a.Y)
	default:
		return math.Abs(a.Z)
	}
}

type Subscription uint64

// Sensor delivers samples to fn roughly every interval until unsubscribed.
// Subscribe returns internal.ErrSensorUnavailable when the device cannot
// produce samples. If the device goes away later, the subscription is
// dropped and lost is called once. Unsubscribe is idempotent.
type Sensor interface {
	Subscribe(interval time.Duration, fn func(Acceleration), lost func(error)) (Subscription, error)
	Unsubscribe(sub Subscription)
}
