package tracker

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/swdee/go-posegame/pose"
)

// SmootherParams defines the noise weights used by the keypoint Kalman filter.
// Noise is weighted by the body scale (shoulder width, else hip width) so
// smoothing behaves the same close to and far from the camera.
type SmootherParams struct {
	// StdWeightPosition weights the position noise
	StdWeightPosition float64
	// StdWeightVelocity weights the velocity noise
	StdWeightVelocity float64
	// MinScore is the keypoint confidence needed for the shoulders or hips
	// to be used as body scale
	MinScore float64
	// MaxGap is how long a joint may go undetected before its filter is
	// started afresh
	MaxGap time.Duration
}

// DefaultSmootherParams returns SmootherParams configured with
// - Std Weight Position: 1/20
// - Std Weight Velocity: 1/160
// - Min Score: 0.3
// - Max Gap: 500ms
func DefaultSmootherParams() SmootherParams {
	return SmootherParams{
		StdWeightPosition: 1.0 / 20,
		StdWeightVelocity: 1.0 / 160,
		MinScore:          0.3,
		MaxGap:            500 * time.Millisecond,
	}
}

// Validate checks the parameters are usable
func (p SmootherParams) Validate() error {

	if !(p.StdWeightPosition > 0) || math.IsInf(p.StdWeightPosition, 0) {
		return fmt.Errorf("%w: position weight %v must be positive", ErrInvalidParams, p.StdWeightPosition)
	}

	if !(p.StdWeightVelocity > 0) || math.IsInf(p.StdWeightVelocity, 0) {
		return fmt.Errorf("%w: velocity weight %v must be positive", ErrInvalidParams, p.StdWeightVelocity)
	}

	if math.IsNaN(p.MinScore) || p.MinScore < 0 || p.MinScore > 1 {
		return fmt.Errorf("%w: min score %v not in [0,1]", ErrInvalidParams, p.MinScore)
	}

	if p.MaxGap < 0 {
		return fmt.Errorf("%w: max gap %v is negative", ErrInvalidParams, p.MaxGap)
	}

	return nil
}

// jointState is the filter state of a single joint, the mean holds
// x, y, vx, vy
type jointState struct {
	mean     *mat.VecDense
	cov      *mat.Dense
	lastSeen time.Time
}

// Smoother runs a constant velocity Kalman filter over every joint to remove
// frame to frame jitter from the detector.  It is not safe for concurrent use.
type Smoother struct {
	params    SmootherParams
	motionMat *mat.Dense
	updateMat *mat.Dense
	joints    map[pose.Joint]*jointState
	// scale is the last known body scale
	scale float64
}

// NewSmoother returns a keypoint Smoother
func NewSmoother(p SmootherParams) (*Smoother, error) {

	if err := p.Validate(); err != nil {
		return nil, err
	}

	ndim := 2
	dt := 1.0

	// create identity matrix for motionMat with the velocity terms
	motionMat := mat.NewDense(4, 4, nil)

	for i := 0; i < 4; i++ {
		motionMat.Set(i, i, 1.0)
	}

	for i := 0; i < ndim; i++ {
		motionMat.Set(i, ndim+i, dt)
	}

	// create updateMat as a 2x4 matrix selecting the position components
	updateMat := mat.NewDense(2, 4, nil)

	for i := 0; i < ndim; i++ {
		updateMat.Set(i, i, 1.0)
	}

	return &Smoother{
		params:    p,
		motionMat: motionMat,
		updateMat: updateMat,
		joints:    make(map[pose.Joint]*jointState),
	}, nil
}

// Reset clears the filter state of all joints
func (s *Smoother) Reset() {
	s.joints = make(map[pose.Joint]*jointState)
	s.scale = 0
}

// Smooth returns a copy of the frame with filtered joint positions.  Joints
// absent from the frame stay absent and their scores are kept as detected.
func (s *Smoother) Smooth(f pose.Frame) pose.Frame {

	out := pose.Frame{Timestamp: f.Timestamp}

	if f.Empty() {
		return out
	}

	if scale, ok := bodyScale(f, s.params.MinScore); ok {
		s.scale = scale
	}

	out.Points = make(map[pose.Joint]pose.KeyPoint, len(f.Points))

	// without any body scale there is nothing to weight the noise against
	if s.scale == 0 {
		for j, kp := range f.Points {
			out.Points[j] = kp
		}

		return out
	}

	for j, kp := range f.Points {
		if math.IsNaN(kp.X) || math.IsNaN(kp.Y) {
			out.Points[j] = kp
			continue
		}

		st, exists := s.joints[j]

		if !exists || f.Timestamp.Sub(st.lastSeen) > s.params.MaxGap ||
			f.Timestamp.Before(st.lastSeen) {

			s.joints[j] = s.initiate(kp, f.Timestamp)
			out.Points[j] = kp
			continue
		}

		s.predict(st)

		if err := s.update(st, kp); err != nil {
			// filter diverged, restart it from the measurement
			s.joints[j] = s.initiate(kp, f.Timestamp)
			out.Points[j] = kp
			continue
		}

		st.lastSeen = f.Timestamp

		out.Points[j] = pose.KeyPoint{
			X:     st.mean.AtVec(0),
			Y:     st.mean.AtVec(1),
			Score: kp.Score,
		}
	}

	return out
}

// initiate creates the filter state for a newly seen joint
func (s *Smoother) initiate(kp pose.KeyPoint, ts time.Time) *jointState {

	mean := mat.NewVecDense(4, []float64{kp.X, kp.Y, 0, 0})

	std := []float64{
		2 * s.params.StdWeightPosition * s.scale,  // x position
		2 * s.params.StdWeightPosition * s.scale,  // y position
		10 * s.params.StdWeightVelocity * s.scale, // x velocity
		10 * s.params.StdWeightVelocity * s.scale, // y velocity
	}

	cov := mat.NewDense(4, 4, nil)

	for i, v := range std {
		cov.Set(i, i, v*v)
	}

	return &jointState{
		mean:     mean,
		cov:      cov,
		lastSeen: ts,
	}
}

// predict advances the joint state by one frame
func (s *Smoother) predict(st *jointState) {

	std := []float64{
		s.params.StdWeightPosition * s.scale,
		s.params.StdWeightPosition * s.scale,
		s.params.StdWeightVelocity * s.scale,
		s.params.StdWeightVelocity * s.scale,
	}

	motionCov := mat.NewDense(4, 4, nil)

	for i, v := range std {
		motionCov.Set(i, i, v*v)
	}

	mean := mat.NewVecDense(4, nil)
	mean.MulVec(s.motionMat, st.mean)
	st.mean = mean

	tmp := mat.NewDense(4, 4, nil)
	tmp.Mul(s.motionMat, st.cov)

	cov := mat.NewDense(4, 4, nil)
	cov.Mul(tmp, s.motionMat.T())
	cov.Add(cov, motionCov)
	st.cov = cov
}

// update corrects the joint state with a measured keypoint
func (s *Smoother) update(st *jointState, kp pose.KeyPoint) error {

	// project the state covariance to measurement space and add the
	// measurement noise
	tmp := mat.NewDense(2, 4, nil)
	tmp.Mul(s.updateMat, st.cov)

	projected := mat.NewDense(2, 2, nil)
	projected.Mul(tmp, s.updateMat.T())

	noise := s.params.StdWeightPosition * s.scale
	offDiag := (projected.At(0, 1) + projected.At(1, 0)) / 2

	projectedCov := mat.NewSymDense(2, []float64{
		projected.At(0, 0) + noise*noise, offDiag,
		offDiag, projected.At(1, 1) + noise*noise,
	})

	// perform Cholesky factorization of the projected covariance matrix
	chol := mat.Cholesky{}

	if ok := chol.Factorize(projectedCov); !ok {
		return errors.New("failed to factorize projected covariance")
	}

	// compute the transposed Kalman gain
	B := mat.NewDense(4, 2, nil)
	B.Mul(st.cov, s.updateMat.T())

	var kalmanGain mat.Dense
	err := chol.SolveTo(&kalmanGain, B.T())

	if err != nil {
		return fmt.Errorf("failed to compute kalman gain: %w", err)
	}

	// compute the innovation (measurement residual)
	innovation := mat.NewVecDense(2, []float64{
		kp.X - st.mean.AtVec(0),
		kp.Y - st.mean.AtVec(1),
	})

	correction := mat.NewVecDense(4, nil)
	correction.MulVec(kalmanGain.T(), innovation)

	mean := mat.NewVecDense(4, nil)
	mean.AddVec(st.mean, correction)
	st.mean = mean

	// update the state covariance
	temp := mat.NewDense(4, 2, nil)
	temp.Mul(kalmanGain.T(), projectedCov)

	temp2 := mat.NewDense(4, 4, nil)
	temp2.Mul(temp, &kalmanGain)

	cov := mat.NewDense(4, 4, nil)
	cov.Sub(st.cov, temp2)
	st.cov = cov

	return nil
}

// bodyScale returns the shoulder width, falling back to the hip width
func bodyScale(f pose.Frame, minScore float64) (float64, bool) {

	pairs := [][2]pose.Joint{
		{pose.LeftShoulder, pose.RightShoulder},
		{pose.LeftHip, pose.RightHip},
	}

	for _, pair := range pairs {
		a, okA := f.Point(pair[0], minScore)
		b, okB := f.Point(pair[1], minScore)

		if !okA || !okB {
			continue
		}

		if w := math.Hypot(a.X-b.X, a.Y-b.Y); w > 1e-6 {
			return w, true
		}
	}

	return 0, false
}
