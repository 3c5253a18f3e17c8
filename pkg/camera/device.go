package camera

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Device captures single frames as JPEG.
type Device interface {
	CaptureJPEG() ([]byte, error)
	Close() error
}

// OpenCVDevice captures frames from a V4L2/AVFoundation camera via OpenCV.
type OpenCVDevice struct {
	mu      sync.Mutex
	capture *gocv.VideoCapture
	mat     gocv.Mat
	quality int
	closed  bool
}

// OpenDevice opens the capture device described by cfg.
func OpenDevice(cfg Config) (*OpenCVDevice, error) {
	capture, err := gocv.OpenVideoCapture(cfg.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("open camera %d: %w", cfg.DeviceID, err)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	capture.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))

	return &OpenCVDevice{
		capture: capture,
		mat:     gocv.NewMat(),
		quality: cfg.JPEGQuality,
	}, nil
}

// CaptureJPEG grabs one frame and encodes it as JPEG.
func (d *OpenCVDevice) CaptureJPEG() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, fmt.Errorf("camera closed")
	}
	if ok := d.capture.Read(&d.mat); !ok {
		return nil, fmt.Errorf("camera read failed")
	}
	if d.mat.Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, d.mat,
		[]int{gocv.IMWriteJpegQuality, d.quality})
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// Close releases the capture device.
func (d *OpenCVDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	d.mat.Close()
	return d.capture.Close()
}
