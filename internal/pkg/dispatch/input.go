package dispatch

import (
	"encoding/json"

	"github.com/mweidner/JadeFrame/app/models"
)

// BuildProviderInput merges the job's structured fields over whatever can be
// reconstructed from the stored request payload. The structured fields are
// the ones that were billed, so they always win: a tampered payload cannot
// override resolution or step counts after the debit.
func BuildProviderInput(job *models.VideoJob) map[string]interface{} {
	input := map[string]interface{}{}
	if job.Payload != "" {
		// Best effort; an unparseable payload just means no extra fields.
		_ = json.Unmarshal([]byte(job.Payload), &input)
	}

	input["prompt"] = job.Prompt
	if job.NegativePrompt != "" {
		input["negative_prompt"] = job.NegativePrompt
	}
	if job.Width > 0 {
		input["width"] = job.Width
	}
	if job.Height > 0 {
		input["height"] = job.Height
	}
	if job.FPS > 0 {
		input["fps"] = job.FPS
	}
	if job.NumFrames > 0 {
		input["num_frames"] = job.NumFrames
	}
	if job.Steps > 0 {
		input["steps"] = job.Steps
	}
	if job.GuidanceScale > 0 {
		input["guidance_scale"] = job.GuidanceScale
	}
	return input
}
