package directory

import "context"

// Repository resolves alert audiences to concrete users and device tokens.
// Read paths may be served from a cache; token removal must reach the store.
type Repository interface {
	// ListActiveByIDs returns the active users among the given IDs.
	ListActiveByIDs(ctx context.Context, ids []int64) ([]*User, error)
	// ListActiveGroupMembers returns the active members of the given groups,
	// without duplicates across groups.
	ListActiveGroupMembers(ctx context.Context, groupIDs []int64) ([]*User, error)
	// ListDeviceTokens returns the registered push tokens of the given users.
	ListDeviceTokens(ctx context.Context, userIDs []int64) ([]string, error)
	// RemoveDeviceTokens deletes tokens reported as unregistered by the push
	// provider.
	RemoveDeviceTokens(ctx context.Context, tokens []string) error
}
