package camera

import "time"

// Config holds camera capture settings.
type Config struct {
	// DeviceID is the capture device index (0 = default camera).
	DeviceID int `json:"device_id"`

	// Width is the capture width in pixels.
	Width int `json:"width"`

	// Height is the capture height in pixels.
	Height int `json:"height"`

	// Framerate is the target capture rate in frames per second.
	Framerate int `json:"framerate"`

	// JPEGQuality is the encode quality (1-100).
	JPEGQuality int `json:"jpeg_quality"`

	// HistorySize is how many recent frames the stream retains.
	HistorySize int `json:"history_size"`

	// ClipDuration is how much recent video the clip recorder retains.
	ClipDuration time.Duration `json:"clip_duration"`
}

// DefaultConfig returns sensible defaults for the board camera.
func DefaultConfig() Config {
	return Config{
		DeviceID:     0,
		Width:        1280,
		Height:       720,
		Framerate:    15,
		JPEGQuality:  85,
		HistorySize:  30,
		ClipDuration: 10 * time.Second,
	}
}

// Validate returns a list of validation errors.
func (c Config) Validate() []string {
	var errors []string

	if c.Width <= 0 || c.Height <= 0 {
		errors = append(errors, "width and height must be positive")
	}
	if c.Framerate <= 0 || c.Framerate > 120 {
		errors = append(errors, "framerate must be between 1 and 120")
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		errors = append(errors, "jpeg_quality must be between 1 and 100")
	}
	if c.HistorySize <= 0 {
		errors = append(errors, "history_size must be positive")
	}
	if c.ClipDuration < 0 {
		errors = append(errors, "clip_duration must not be negative")
	}

	return errors
}

// FrameInterval returns the time between captures.
func (c Config) FrameInterval() time.Duration {
	if c.Framerate <= 0 {
		return time.Second / 15
	}
	return time.Second / time.Duration(c.Framerate)
}
