package engine

import "context"

// AccountDirectory answers existence checks against the external
// user-management component. Wallet provisioning refuses owners the
// directory does not know.
type AccountDirectory interface {
	AccountExists(ctx context.Context, ownerID string) (bool, error)
}

// StaticDirectory is a directory with a fixed member set. An empty set means
// every owner is accepted, which is the standalone-deployment default.
type StaticDirectory struct {
	Members map[string]bool
}

func (d StaticDirectory) AccountExists(_ context.Context, ownerID string) (bool, error) {
	if len(d.Members) == 0 {
		return true, nil
	}
	return d.Members[ownerID], nil
}
