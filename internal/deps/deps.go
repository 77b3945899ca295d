package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"captionstudio/internal/config"
	"captionstudio/internal/services"
)

// Requirement defines an external binary captionstudio shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// ForConfig lists the binaries the configured pipeline needs. uvx is only
// mandatory when the WhisperX backend is selected.
func ForConfig(cfg *config.Config) []Requirement {
	reqs := []Requirement{
		{Name: "FFmpeg", Command: cfg.FFmpegBinary(), Description: "decode, encode and audio extraction"},
		{Name: "FFprobe", Command: cfg.FFprobeBinary(), Description: "source dimensions and duration"},
	}
	reqs = append(reqs, Requirement{
		Name:        "uvx",
		Command:     "uvx",
		Description: "runs the WhisperX transcription backend",
		Optional:    cfg.ASR.Backend != "whisperx",
	})
	return reqs
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		switch {
		case cmd == "":
			status.Detail = "command not configured"
		default:
			if _, err := exec.LookPath(cmd); err != nil {
				status.Detail = fmt.Sprintf("binary %q not found", cmd)
			} else {
				status.Available = true
			}
		}
		results = append(results, status)
	}
	return results
}

// Require returns an external-tool error naming every missing mandatory
// binary.
func Require(requirements ...Requirement) error {
	var missing []string
	for _, status := range CheckBinaries(requirements) {
		if !status.Available && !status.Optional {
			missing = append(missing, fmt.Sprintf("%s (%s)", status.Name, status.Detail))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return services.Wrap(services.ErrExternalTool, "deps", "check binaries",
		"missing required tools: "+strings.Join(missing, ", "), nil)
}
