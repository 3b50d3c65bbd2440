package pose

import (
	"math"
	"time"
)

/* skeleton keypoints
0: Nose
1: Left Eye
2: Right Eye
3: Left Ear
4: Right Ear
5: Left Shoulder
6: Right Shoulder
7: Left Elbow
8: Right Elbow
9: Left Wrist
10: Right Wrist
11: Left Hip
12: Right Hip
13: Left Knee
14: Right Knee
15: Left Ankle
16: Right Ankle
*/

// Joint is the index of a body keypoint as emitted by COCO trained pose
// models such as YOLOv8-pose.
type Joint int

const (
	Nose Joint = iota
	LeftEye
	RightEye
	LeftEar
	RightEar
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
)

// NumJoints is the number of keypoints in a skeleton
const NumJoints = 17

var jointNames = [NumJoints]string{
	"nose", "left_eye", "right_eye", "left_ear", "right_ear",
	"left_shoulder", "right_shoulder", "left_elbow", "right_elbow",
	"left_wrist", "right_wrist", "left_hip", "right_hip",
	"left_knee", "right_knee", "left_ankle", "right_ankle",
}

// Valid reports whether the joint is part of the keypoint vocabulary
func (j Joint) Valid() bool {
	return j >= 0 && j < NumJoints
}

func (j Joint) String() string {
	if !j.Valid() {
		return "unknown"
	}

	return jointNames[j]
}

// Limbs are the pairs of joints connected when drawing a skeleton, so
// {RightAnkle, RightKnee} means draw a line from the right ankle to the
// right knee.
var Limbs = [19][2]Joint{
	{RightAnkle, RightKnee}, {RightKnee, RightHip}, {LeftAnkle, LeftKnee},
	{LeftKnee, LeftHip}, {RightHip, LeftHip}, {RightShoulder, RightHip},
	{LeftShoulder, LeftHip}, {RightShoulder, LeftShoulder},
	{RightShoulder, RightElbow}, {LeftShoulder, LeftElbow},
	{RightElbow, RightWrist}, {LeftElbow, LeftWrist}, {LeftEye, RightEye},
	{Nose, LeftEye}, {Nose, RightEye}, {LeftEye, LeftEar},
	{RightEye, RightEar}, {LeftEar, LeftShoulder}, {RightEar, RightShoulder},
}

// KeyPoint is the estimated image position of a single joint.  Coordinates
// are in image space so Y grows downward.
type KeyPoint struct {
	X float64
	Y float64
	// Score is the detector confidence in the range [0,1]
	Score float64
}

// Frame is a snapshot of the joints detected for one person in a single
// video frame.  Joints that were not detected are absent from Points, a
// Frame with no Points signals that nobody was detected.
type Frame struct {
	// Timestamp is the monotonic capture time of the frame
	Timestamp time.Time
	// Points are the detected joints
	Points map[Joint]KeyPoint
}

// EmptyFrame returns a frame with no detected joints
func EmptyFrame(ts time.Time) Frame {
	return Frame{Timestamp: ts}
}

// Empty reports whether the frame has no detected joints
func (f Frame) Empty() bool {
	return len(f.Points) == 0
}

// Point returns the keypoint for joint j if it was detected with a score of
// at least minScore and finite coordinates
func (f Frame) Point(j Joint, minScore float64) (KeyPoint, bool) {

	kp, ok := f.Points[j]

	if !ok || math.IsNaN(kp.Score) || kp.Score < minScore {
		return KeyPoint{}, false
	}

	if math.IsNaN(kp.X) || math.IsNaN(kp.Y) || math.IsInf(kp.X, 0) || math.IsInf(kp.Y, 0) {
		return KeyPoint{}, false
	}

	return kp, true
}

// FrameFromCOCO builds a Frame from keypoints ordered by COCO index where each
// entry holds x, y and score.  Entries beyond the keypoint vocabulary or with
// NaN values are skipped.
func FrameFromCOCO(ts time.Time, points [][3]float64) Frame {

	f := Frame{
		Timestamp: ts,
		Points:    make(map[Joint]KeyPoint, len(points)),
	}

	for i, p := range points {
		j := Joint(i)

		if !j.Valid() {
			break
		}

		if math.IsNaN(p[0]) || math.IsNaN(p[1]) || math.IsNaN(p[2]) {
			continue
		}

		f.Points[j] = KeyPoint{X: p[0], Y: p[1], Score: p[2]}
	}

	return f
}
