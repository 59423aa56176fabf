package storage

import (
	"fmt"

	"github.com/Epistemic-Technology/invoice-audit/models"
)

// CalculateResourcePaths lists the resource URIs a client can read for a
// loaded document.
func CalculateResourcePaths(data *models.VisualData) []string {
	resourcePaths := []string{
		"audit://state",
		"audit://transactions",
		"audit://review",
	}
	if data == nil {
		return resourcePaths
	}

	for _, page := range data.TextMap {
		resourcePaths = append(resourcePaths, fmt.Sprintf("audit://pages/%d", page.Page))
	}

	if len(data.Images) > 0 {
		resourcePaths = append(resourcePaths, "audit://pages/{page}/image")
	}

	return resourcePaths
}
