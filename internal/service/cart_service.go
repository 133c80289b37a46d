package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/climastore/backend/internal/entity"
	"github.com/climastore/backend/internal/repository"
)

// CartService owns cart mutations and the guest-to-user merge on login.
type CartService struct {
	uow   repository.UnitOfWork
	cache CartCache
}

func NewCartService(uow repository.UnitOfWork, cache CartCache) *CartService {
	return &CartService{uow: uow, cache: cache}
}

// Get returns the requester's cart. A requester without a persisted cart
// gets an empty, unsaved one; carts are only created on the first add.
func (s *CartService) Get(ctx context.Context, identity Identity) (*entity.Cart, error) {
	owner, err := identity.Owner()
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if cart, ok := s.cache.Get(ctx, owner); ok {
			return cart, nil
		}
	}

	var cart *entity.Cart
	err = s.uow.Within(ctx, func(ctx context.Context, repos repository.Repositories) error {
		cart, err = repos.Carts().FindByOwner(ctx, owner)
		if errors.Is(err, entity.ErrCartNotFound) {
			cart, err = entity.NewCart(owner)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(ctx, cart)
	}
	return cart, nil
}

// AddItem adds quantity of a variant to the requester's cart, creating the
// cart lazily on first add. The variant's current price is captured as the
// line's unit price; an existing line for the same variant is merged.
func (s *CartService) AddItem(ctx context.Context, identity Identity, variantID string, quantity int) (*entity.Cart, error) {
	owner, err := identity.Owner()
	if err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", entity.ErrInvalidInput)
	}

	slog.Info("Service: Adding item to cart", "owner", owner.Key(), "variant_id", variantID, "quantity", quantity)

	var cart *entity.Cart
	err = s.uow.Within(ctx, func(ctx context.Context, repos repository.Repositories) error {
		variant, err := repos.Catalog().VariantByID(ctx, variantID)
		if err != nil {
			return err
		}
		if !variant.IsActive {
			return fmt.Errorf("%w: %s", entity.ErrVariantUnavailable, variant.SKU)
		}
		product, err := repos.Catalog().ProductByID(ctx, variant.ProductID)
		if err != nil {
			return err
		}
		if !product.IsActive {
			return fmt.Errorf("%w: %s", entity.ErrProductUnavailable, product.Name)
		}

		cart, err = repos.Carts().FindByOwnerForUpdate(ctx, owner)
		if errors.Is(err, entity.ErrCartNotFound) {
			cart, err = entity.NewCart(owner)
		}
		if err != nil {
			return err
		}

		if err := cart.AddItem(product.ID, variant.ID, quantity, variant.Price); err != nil {
			return err
		}
		return repos.Carts().Save(ctx, cart)
	})
	if err != nil {
		return nil, err
	}

	s.refreshCache(ctx, cart)
	return cart, nil
}

// UpdateItemQuantity replaces the quantity of an existing cart line.
func (s *CartService) UpdateItemQuantity(ctx context.Context, identity Identity, variantID string, quantity int) (*entity.Cart, error) {
	return s.mutate(ctx, identity, func(cart *entity.Cart) error {
		return cart.SetItemQuantity(variantID, quantity)
	})
}

// RemoveItem deletes a line from the requester's cart.
func (s *CartService) RemoveItem(ctx context.Context, identity Identity, variantID string) (*entity.Cart, error) {
	return s.mutate(ctx, identity, func(cart *entity.Cart) error {
		return cart.RemoveItem(variantID)
	})
}

// Clear removes every line from the requester's cart.
func (s *CartService) Clear(ctx context.Context, identity Identity) (*entity.Cart, error) {
	return s.mutate(ctx, identity, func(cart *entity.Cart) error {
		cart.Clear()
		return nil
	})
}

func (s *CartService) mutate(ctx context.Context, identity Identity, fn func(cart *entity.Cart) error) (*entity.Cart, error) {
	owner, err := identity.Owner()
	if err != nil {
		return nil, err
	}

	var cart *entity.Cart
	err = s.uow.Within(ctx, func(ctx context.Context, repos repository.Repositories) error {
		cart, err = repos.Carts().FindByOwnerForUpdate(ctx, owner)
		if err != nil {
			return err
		}
		if err := fn(cart); err != nil {
			return err
		}
		return repos.Carts().Save(ctx, cart)
	})
	if err != nil {
		return nil, err
	}

	s.refreshCache(ctx, cart)
	return cart, nil
}

// Merge folds the guest session's cart into the authenticated user's cart,
// summing quantities for variants present in both. The guest cart is left
// empty. Merging a missing or empty guest cart succeeds trivially.
func (s *CartService) Merge(ctx context.Context, guestSessionID string, identity Identity) (*entity.Cart, error) {
	if identity.UserID == "" {
		return nil, entity.ErrUnauthorized
	}
	owner := entity.UserOwner(identity.UserID)

	slog.Info("Service: Merging guest cart", "user_id", identity.UserID, "guest_session_id", guestSessionID)

	var userCart *entity.Cart
	err := s.uow.Within(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		userCart, err = repos.Carts().FindByOwnerForUpdate(ctx, owner)
		if errors.Is(err, entity.ErrCartNotFound) {
			userCart, err = entity.NewCart(owner)
		}
		if err != nil {
			return err
		}

		guestCart, err := repos.Carts().FindByOwnerForUpdate(ctx, entity.GuestOwner(guestSessionID))
		if errors.Is(err, entity.ErrCartNotFound) {
			// Nothing to merge; persist the user cart as-is if it is new.
			return repos.Carts().Save(ctx, userCart)
		}
		if err != nil {
			return err
		}

		userCart.MergeFrom(guestCart)
		if err := repos.Carts().Save(ctx, userCart); err != nil {
			return err
		}
		return repos.Carts().Save(ctx, guestCart)
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, entity.GuestOwner(guestSessionID))
	}
	s.refreshCache(ctx, userCart)
	return userCart, nil
}

func (s *CartService) refreshCache(ctx context.Context, cart *entity.Cart) {
	if s.cache != nil {
		s.cache.Set(ctx, cart)
	}
}
