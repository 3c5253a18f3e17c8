package emotion

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// Classifier maps a JPEG frame to an emotion label.
type Classifier interface {
	Classify(jpeg []byte) (Label, error)
	Close() error
}

// netLabels is the output order of the FER+ style emotion models.
var netLabels = []Label{
	LabelNeutral, LabelHappy, LabelSurprise, LabelSad,
	LabelAngry, LabelDisgust, LabelFear,
}

// NetClassifier runs an ONNX emotion-recognition network via OpenCV's
// DNN module, with a YuNet face detector in front of it to crop the
// face region.
type NetClassifier struct {
	mu       sync.Mutex // Protects inference
	detector gocv.FaceDetectorYN
	net      gocv.Net
	cfg      ClassifierConfig
}

// ClassifierConfig holds model paths and thresholds.
type ClassifierConfig struct {
	// FaceModelPath is the YuNet face-detection ONNX model.
	FaceModelPath string

	// EmotionModelPath is the emotion-classification ONNX model.
	EmotionModelPath string

	// FaceConfidence is the minimum face-detection score.
	FaceConfidence float64

	// InputSize is the emotion network's square input edge in pixels.
	InputSize int
}

// DefaultClassifierConfig returns defaults for the FER+ 64x64 model.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		FaceModelPath:    "models/face_detection_yunet.onnx",
		EmotionModelPath: "models/emotion_ferplus.onnx",
		FaceConfidence:   0.7,
		InputSize:        64,
	}
}

// NewNetClassifier loads the detection and classification models.
func NewNetClassifier(cfg ClassifierConfig) (*NetClassifier, error) {
	for _, path := range []string{cfg.FaceModelPath, cfg.EmotionModelPath} {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("model file not found: %s", path)
		}
	}

	detector := gocv.NewFaceDetectorYNWithParams(
		cfg.FaceModelPath,
		"",
		image.Pt(320, 320),
		float32(cfg.FaceConfidence),
		0.3,
		5000,
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	net := gocv.ReadNet(cfg.EmotionModelPath, "")
	if net.Empty() {
		detector.Close()
		return nil, fmt.Errorf("load emotion model: %s", cfg.EmotionModelPath)
	}

	return &NetClassifier{
		detector: detector,
		net:      net,
		cfg:      cfg,
	}, nil
}

// Classify finds the most confident face in the frame and classifies
// its emotion. Returns LabelNoDetection when no face is found.
func (c *NetClassifier) Classify(jpeg []byte) (Label, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return LabelNoDetection, fmt.Errorf("decode image: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return LabelNoDetection, fmt.Errorf("empty image")
	}

	c.detector.SetInputSize(image.Pt(img.Cols(), img.Rows()))

	faces := gocv.NewMat()
	defer faces.Close()
	c.detector.Detect(img, &faces)

	rect, ok := bestFace(faces, img.Cols(), img.Rows())
	if !ok {
		return LabelNoDetection, nil
	}

	face := img.Region(rect)
	defer face.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(face, &gray, gocv.ColorBGRToGray)

	blob := gocv.BlobFromImage(gray, 1.0,
		image.Pt(c.cfg.InputSize, c.cfg.InputSize),
		gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	c.net.SetInput(blob, "")
	out := c.net.Forward("")
	defer out.Close()

	_, _, _, maxLoc := gocv.MinMaxLoc(out)

	idx := maxLoc.X
	if idx < 0 || idx >= len(netLabels) {
		return LabelNoDetection, nil
	}
	return netLabels[idx], nil
}

// bestFace picks the highest scoring detection, clamped to the image.
func bestFace(faces gocv.Mat, imgW, imgH int) (image.Rectangle, bool) {
	bestScore := float32(-1)
	var best image.Rectangle

	for r := 0; r < faces.Rows(); r++ {
		score := faces.GetFloatAt(r, 14)
		if score <= bestScore {
			continue
		}
		x := int(faces.GetFloatAt(r, 0))
		y := int(faces.GetFloatAt(r, 1))
		w := int(faces.GetFloatAt(r, 2))
		h := int(faces.GetFloatAt(r, 3))

		rect := image.Rect(x, y, x+w, y+h).Intersect(image.Rect(0, 0, imgW, imgH))
		if rect.Empty() {
			continue
		}
		bestScore = score
		best = rect
	}

	return best, bestScore > 0
}

// Close releases the models.
func (c *NetClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detector.Close()
	return c.net.Close()
}

// MockClassifier is a classifier with an overridable function for
// testing.
type MockClassifier struct {
	// ClassifyFunc overrides Classify when set.
	ClassifyFunc func(jpeg []byte) (Label, error)
}

// Classify calls ClassifyFunc, defaulting to neutral.
func (m *MockClassifier) Classify(jpeg []byte) (Label, error) {
	if m.ClassifyFunc != nil {
		return m.ClassifyFunc(jpeg)
	}
	return LabelNeutral, nil
}

// Close is a no-op.
func (m *MockClassifier) Close() error { return nil }
