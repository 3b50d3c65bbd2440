// Package detect runs YOLOv8 pose estimation on a Rockchip NPU and reduces the
// result to the keypoints of a single player.
package detect

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/swdee/go-rknnlite"
	"github.com/swdee/go-rknnlite/postprocess"
	"github.com/swdee/go-rknnlite/preprocess"
	"gocv.io/x/gocv"

	"github.com/swdee/go-posegame/pose"
)

// Params defines the configuration of a Detector
type Params struct {
	// ModelFile is the RKNN compiled YOLOv8 pose model
	ModelFile string
	// Core is the NPU core mask the model runs on
	Core rknnlite.CoreMask
	// BoxThreshold is the minimum probability for a person to be detected
	BoxThreshold float32
	// NMSThreshold is the Non-Maximum Suppression IoU threshold
	NMSThreshold float32
}

// DefaultParams returns Params for the COCO trained YOLOv8 pose model running
// on any free NPU core
func DefaultParams(modelFile string) Params {
	coco := postprocess.YOLOv8PoseCOCOParams()

	return Params{
		ModelFile:    modelFile,
		Core:         rknnlite.NPUCoreAuto,
		BoxThreshold: coco.BoxThreshold,
		NMSThreshold: coco.NMSThreshold,
	}
}

// Detector finds the player's keypoints in video frames.  It is not safe for
// concurrent use.
type Detector struct {
	rt       *rknnlite.Runtime
	post     *postprocess.YOLOv8Pose
	resizer  *preprocess.Resizer
	rgbImg   gocv.Mat
	inputImg gocv.Mat
	width    int
	height   int
}

// NewDetector loads the model onto the NPU
func NewDetector(p Params) (*Detector, error) {

	rt, err := rknnlite.NewRuntime(p.ModelFile, p.Core)

	if err != nil {
		return nil, fmt.Errorf("error initializing RKNN runtime: %w", err)
	}

	// leave output tensors as int8, the post processor dequantizes them
	rt.SetWantFloat(false)

	attrs, err := rt.QueryInputTensors()

	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("error querying input tensors: %w", err)
	}

	if len(attrs) == 0 {
		rt.Close()
		return nil, fmt.Errorf("model %s has no input tensor", p.ModelFile)
	}

	coco := postprocess.YOLOv8PoseCOCOParams()
	coco.BoxThreshold = p.BoxThreshold
	coco.NMSThreshold = p.NMSThreshold

	// input tensors are NHWC
	return &Detector{
		rt:       rt,
		post:     postprocess.NewYOLOv8Pose(coco),
		rgbImg:   gocv.NewMat(),
		inputImg: gocv.NewMat(),
		width:    int(attrs[0].Dims[2]),
		height:   int(attrs[0].Dims[1]),
	}, nil
}

// Detect runs pose estimation on a BGR camera image and returns the frame of
// the player stamped ts.  An image with nobody in it gives an empty frame.
func (d *Detector) Detect(img gocv.Mat, ts time.Time) (pose.Frame, error) {

	if img.Empty() {
		return pose.EmptyFrame(ts), nil
	}

	// the letterbox geometry depends on the source size
	if d.resizer == nil || d.resizer.SrcWidth() != img.Cols() ||
		d.resizer.SrcHeight() != img.Rows() {

		if d.resizer != nil {
			d.resizer.Close()
		}

		d.resizer = preprocess.NewResizer(img.Cols(), img.Rows(), d.width, d.height)
	}

	gocv.CvtColor(img, &d.rgbImg, gocv.ColorBGRToRGB)
	d.resizer.LetterBoxResize(d.rgbImg, &d.inputImg, color.RGBA{R: 0, G: 0, B: 0, A: 255})

	outputs, err := d.rt.Inference([]gocv.Mat{d.inputImg})

	if err != nil {
		return pose.Frame{}, fmt.Errorf("runtime inferencing failed: %w", err)
	}

	detectObjs := d.post.DetectObjects(outputs, d.resizer)
	boxes := detectObjs.GetDetectResults()
	keyPoints := d.post.GetPoseEstimation(detectObjs)

	people := make([]pose.Person, 0, len(boxes))

	for i, box := range boxes {
		if i >= len(keyPoints) {
			break
		}

		person := pose.Person{
			Box:    image.Rect(box.Box.Left, box.Box.Top, box.Box.Right, box.Box.Bottom),
			Points: make([][3]float64, len(keyPoints[i])),
		}

		for j, kp := range keyPoints[i] {
			person.Points[j] = [3]float64{float64(kp.X), float64(kp.Y), float64(kp.Score)}
		}

		people = append(people, person)
	}

	if err := outputs.Free(); err != nil {
		return pose.Frame{}, fmt.Errorf("error freeing outputs: %w", err)
	}

	return pose.PrimaryFrame(ts, people), nil
}

// Close releases the NPU runtime and image buffers
func (d *Detector) Close() error {

	d.rgbImg.Close()
	d.inputImg.Close()

	if d.resizer != nil {
		d.resizer.Close()
	}

	return d.rt.Close()
}
