package service

import (
	"context"

	"github.com/climastore/backend/internal/entity"
)

// Identity is the requester identity supplied by the authentication layer.
// At most one of UserID and GuestSessionID is expected to be set.
type Identity struct {
	UserID         string
	GuestSessionID string
	IsAdmin        bool
}

// Owner resolves the identity into a cart/order owner, preferring the
// authenticated user. Fails with entity.ErrNoIdentity when neither is set.
func (id Identity) Owner() (entity.CartOwner, error) {
	if id.UserID != "" {
		return entity.UserOwner(id.UserID), nil
	}
	if id.GuestSessionID != "" {
		return entity.GuestOwner(id.GuestSessionID), nil
	}
	return entity.CartOwner{}, entity.ErrNoIdentity
}

// CanAccess reports whether the requester owns the given entity or has
// admin rights.
func (id Identity) CanAccess(owner entity.CartOwner) bool {
	if id.IsAdmin {
		return true
	}
	if uid, ok := owner.UserID(); ok {
		return id.UserID != "" && id.UserID == uid
	}
	if gid, ok := owner.GuestSessionID(); ok {
		return id.GuestSessionID != "" && id.GuestSessionID == gid
	}
	return false
}

// CartCache caches cart snapshots by owner. Implementations must treat
// failures as misses; a nil cache disables caching.
type CartCache interface {
	Get(ctx context.Context, owner entity.CartOwner) (*entity.Cart, bool)
	Set(ctx context.Context, cart *entity.Cart)
	Invalidate(ctx context.Context, owner entity.CartOwner)
}
