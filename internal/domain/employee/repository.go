package employee

import "context"

// EmployeeRepository is the employee-directory collaborator.
type EmployeeRepository interface {
	// GetByID returns ErrEmployeeNotFound for unknown or soft-deleted employees.
	GetByID(ctx context.Context, id string) (Employee, error)
	// ListActive returns every employee that is not soft-deleted, ordered by name.
	ListActive(ctx context.Context) ([]Employee, error)
}
