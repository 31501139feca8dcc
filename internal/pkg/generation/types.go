package generation

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/mweidner/JadeFrame/app/models"
)

// GenerateRequest is the inbound generation submission. Unset parameters get
// per-mode defaults applied before the job is stored.
type GenerateRequest struct {
	Mode           string  `json:"mode" validate:"required,oneof=t2v i2v voice_to_video"`
	Prompt         string  `json:"prompt" validate:"required,min=1,max=2000"`
	NegativePrompt string  `json:"negative_prompt" validate:"max=2000"`
	ImageURL       string  `json:"image_url" validate:"omitempty,url"`
	AudioURL       string  `json:"audio_url" validate:"omitempty,url"`
	Width          int     `json:"width" validate:"omitempty,min=64,max=1920"`
	Height         int     `json:"height" validate:"omitempty,min=64,max=1920"`
	FPS            int     `json:"fps" validate:"omitempty,min=1,max=60"`
	NumFrames      int     `json:"num_frames" validate:"omitempty,min=1,max=600"`
	Steps          int     `json:"steps" validate:"omitempty,min=1,max=100"`
	GuidanceScale  float64 `json:"guidance_scale" validate:"omitempty,min=0,max=20"`
	Seed           *int64  `json:"seed,omitempty"`
}

var validate = validator.New()

// Validate checks field constraints plus the per-mode input requirements the
// tags cannot express.
func (r *GenerateRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	switch r.Mode {
	case models.JobModeImageToVideo:
		if r.ImageURL == "" {
			return fmt.Errorf("%w: image_url is required for mode i2v", ErrInvalidRequest)
		}
	case models.JobModeVoiceToVideo:
		if r.AudioURL == "" {
			return fmt.Errorf("%w: audio_url is required for mode voice_to_video", ErrInvalidRequest)
		}
	}
	return nil
}

// applyDefaults fills unset generation parameters in place.
func (r *GenerateRequest) applyDefaults() {
	if r.Width == 0 {
		r.Width = 832
	}
	if r.Height == 0 {
		r.Height = 480
	}
	if r.FPS == 0 {
		r.FPS = 16
	}
	if r.NumFrames == 0 {
		r.NumFrames = 81
	}
	if r.Steps == 0 {
		r.Steps = 30
	}
	if r.GuidanceScale == 0 {
		r.GuidanceScale = 5.0
	}
}

// payloadJSON is the opaque echo of the request stored on the job row so the
// dispatcher can rebuild the provider input without re-deriving defaults.
func (r *GenerateRequest) payloadJSON() string {
	b, err := json.Marshal(r)
	if err != nil {
		return "{}"
	}
	return string(b)
}
