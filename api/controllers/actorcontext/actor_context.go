package actorcontext

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/tablebird/tablebird-backend/api/middleware"
	cartsvc "github.com/tablebird/tablebird-backend/internal/cart"
	"github.com/tablebird/tablebird-backend/internal/orders"
	"github.com/tablebird/tablebird-backend/pkg/enums"
	pkgerrors "github.com/tablebird/tablebird-backend/pkg/errors"
)

// ResolveIdentity extracts the cart owner identity: an authenticated user id
// when present, a guest session key otherwise.
func ResolveIdentity(r *http.Request) (cartsvc.Identity, error) {
	ctx := r.Context()

	if raw := middleware.UserIDFromContext(ctx); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			return cartsvc.Identity{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
		}
		return cartsvc.Identity{UserID: &userID}, nil
	}

	if key := middleware.SessionKeyFromContext(ctx); key != "" {
		return cartsvc.Identity{SessionKey: &key}, nil
	}

	return cartsvc.Identity{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing identity")
}

// ResolveActor extracts the authenticated actor for state-machine calls.
func ResolveActor(r *http.Request) (orders.Actor, error) {
	ctx := r.Context()

	role, err := enums.ParseActorRole(middleware.RoleFromContext(ctx))
	if err != nil {
		return orders.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing actor role")
	}

	actor := orders.Actor{Role: role}
	if raw := middleware.UserIDFromContext(ctx); raw != "" {
		userID, parseErr := uuid.Parse(raw)
		if parseErr != nil {
			return orders.Actor{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, parseErr, "invalid user id")
		}
		actor.UserID = &userID
	}
	return actor, nil
}

// ResolveViewer returns the authenticated actor when one is present and an
// anonymous guest customer otherwise. Reads stay open to guests; the order
// service applies per-order visibility.
func ResolveViewer(r *http.Request) orders.Actor {
	if actor, err := ResolveActor(r); err == nil {
		return actor
	}
	return orders.Actor{Role: enums.ActorRoleCustomer}
}

// ResolveRestaurantID extracts the staff token's restaurant binding.
func ResolveRestaurantID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.RestaurantIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "restaurant context required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid restaurant id")
	}
	return id, nil
}
