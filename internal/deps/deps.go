package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement defines an external binary radiocap shells out to.
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
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// Missing returns the statuses that are unavailable. Optional requirements
// are included only when includeOptional is set.
func Missing(statuses []Status, includeOptional bool) []Status {
	var missing []Status
	for _, status := range statuses {
		if status.Available {
			continue
		}
		if status.Optional && !includeOptional {
			continue
		}
		missing = append(missing, status)
	}
	return missing
}

// AnyAvailable reports whether at least one dependency resolved. Capture
// tools form a fallback chain, so a single installed tool is enough to run.
func AnyAvailable(statuses []Status) bool {
	for _, status := range statuses {
		if status.Available {
			return true
		}
	}
	return false
}
