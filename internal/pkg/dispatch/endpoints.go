package dispatch

import (
	"fmt"
	"strings"

	"github.com/mweidner/JadeFrame/app/models"
	"github.com/mweidner/JadeFrame/internal/pkg/env"
)

// defaultEndpoints is the deterministic mode-to-endpoint mapping. Every mode
// resolves explicitly; an unmapped mode is a dispatch error, never a silent
// fallthrough to some other endpoint.
var defaultEndpoints = map[string]string{
	models.JobModeTextToVideo:  "jade-video/t2v",
	models.JobModeImageToVideo: "jade-video/i2v",
	models.JobModeVoiceToVideo: "jade-video/voice",
}

// endpointEnvOverrides lets operators repoint a single mode without a
// deploy, e.g. COMPUTE_ENDPOINT_T2V=jade-video-preview/t2v.
var endpointEnvOverrides = map[string]string{
	models.JobModeTextToVideo:  "COMPUTE_ENDPOINT_T2V",
	models.JobModeImageToVideo: "COMPUTE_ENDPOINT_I2V",
	models.JobModeVoiceToVideo: "COMPUTE_ENDPOINT_VOICE",
}

// ResolveEndpoint maps a job mode to its provider endpoint.
func ResolveEndpoint(mode string) (string, error) {
	m := strings.TrimSpace(mode)
	def, ok := defaultEndpoints[m]
	if !ok {
		return "", fmt.Errorf("no provider endpoint configured for mode %q", mode)
	}
	if envKey := endpointEnvOverrides[m]; envKey != "" {
		if override := strings.TrimSpace(env.GetEnv(envKey, "")); override != "" {
			return override, nil
		}
	}
	return def, nil
}
