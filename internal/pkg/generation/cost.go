package generation

import "github.com/mweidner/JadeFrame/app/models"

// Per-mode price in jades, debited up front before the job row exists.
var modeCosts = map[string]int64{
	models.JobModeTextToVideo:  10,
	models.JobModeImageToVideo: 15,
	models.JobModeVoiceToVideo: 20,
}

// Cost returns the jade price for a generation mode, zero for unknown modes
// (those are rejected by validation before the ledger is touched).
func Cost(mode string) int64 {
	return modeCosts[mode]
}
