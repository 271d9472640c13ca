// Package file provides file-based persistence for workflows, execution runs and
// continuations. Each record is stored as a JSON document.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/dukex/engageflow/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root             string
	workflowRepo     *WorkflowRepository
	runRepo          *ExecutionRunRepository
	continuationRepo *ContinuationRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:             cleanRoot,
		workflowRepo:     NewWorkflowRepository(cleanRoot),
		runRepo:          NewExecutionRunRepository(cleanRoot),
		continuationRepo: NewContinuationRepository(cleanRoot),
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

//nolint:ireturn // persistence.Persistence contract
func (fp *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return fp.workflowRepo
}

//nolint:ireturn // persistence.Persistence contract
func (fp *Persistence) ExecutionRunRepository() persistence.ExecutionRunRepository {
	return fp.runRepo
}

//nolint:ireturn // persistence.Persistence contract
func (fp *Persistence) ContinuationRepository() persistence.ContinuationRepository {
	return fp.continuationRepo
}
