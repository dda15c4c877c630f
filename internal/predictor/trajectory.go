package predictor

import (
	"time"

	"github.com/xkilldash9x/foresight/api/schemas"
	"github.com/xkilldash9x/foresight/internal/buffer"
	"github.com/xkilldash9x/foresight/internal/geometry"
)

// PointerState is the read-only view of the trajectory shared with sibling
// predictors.
type PointerState interface {
	Current() geometry.Point
}

// Trajectory holds the pointer history and the latest prediction. It is
// owned by the pointer handler.
type Trajectory struct {
	history   *buffer.CircularBuffer[schemas.TimedPoint]
	current   geometry.Point
	predicted geometry.Point
}

// NewTrajectory creates a trajectory keeping historySize samples.
func NewTrajectory(historySize int) (*Trajectory, error) {
	h, err := buffer.New[schemas.TimedPoint](historySize)
	if err != nil {
		return nil, err
	}
	return &Trajectory{history: h}, nil
}

func (t *Trajectory) Current() geometry.Point   { return t.current }
func (t *Trajectory) Predicted() geometry.Point { return t.predicted }

// Resize changes how many samples the history keeps.
func (t *Trajectory) Resize(n int) error { return t.history.Resize(n) }

// HistoryLen is the number of samples currently retained.
func (t *Trajectory) HistoryLen() int { return t.history.Len() }

// Update sets the current point. When predict is true the sample is added to
// the history and the predicted point extrapolated over lookahead; otherwise
// the predicted point collapses onto the current one.
func (t *Trajectory) Update(p geometry.Point, at time.Time, predict bool, lookahead time.Duration) {
	t.current = p
	if !predict {
		t.predicted = p
		return
	}
	t.history.Add(schemas.TimedPoint{Point: p, Time: at})
	t.predicted = PredictNextPoint(p, t.history, lookahead)
}

// Reset forgets the history and collapses both points onto p.
func (t *Trajectory) Reset(p geometry.Point) {
	t.history.Clear()
	t.current = p
	t.predicted = p
}

// Snapshot copies the trajectory for events.
func (t *Trajectory) Snapshot() schemas.TrajectorySnapshot {
	return schemas.TrajectorySnapshot{
		History:   t.history.Items(),
		Current:   t.current,
		Predicted: t.predicted,
	}
}

// PredictNextPoint extrapolates current along the velocity measured between
// the oldest and newest retained samples. With fewer than two samples, or no
// elapsed time between them, the prediction is current itself.
func PredictNextPoint(current geometry.Point, history *buffer.CircularBuffer[schemas.TimedPoint], lookahead time.Duration) geometry.Point {
	if history.Len() < 2 {
		return current
	}
	oldest, _ := history.First()
	newest, _ := history.Last()

	dt := newest.Time.Sub(oldest.Time).Seconds()
	if dt <= 0 {
		return current
	}
	velocity := newest.Point.Sub(oldest.Point).Mul(1 / dt)
	return current.Add(velocity.Mul(lookahead.Seconds()))
}
