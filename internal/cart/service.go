package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tablebird/tablebird-backend/internal/catalog"
	pkgdb "github.com/tablebird/tablebird-backend/pkg/db"
	"github.com/tablebird/tablebird-backend/pkg/db/models"
	pkgerrors "github.com/tablebird/tablebird-backend/pkg/errors"
)

// Identity names the cart owner: an authenticated user or an anonymous
// session, never both.
type Identity struct {
	UserID     *uuid.UUID
	SessionKey *string
}

// Validate enforces the exactly-one-owner rule before any repo lookup.
func (i Identity) Validate() error {
	hasUser := i.UserID != nil && *i.UserID != uuid.Nil
	hasSession := i.SessionKey != nil && *i.SessionKey != ""
	if hasUser == hasSession {
		return pkgerrors.New(pkgerrors.CodeValidation, "exactly one of user id or session key is required")
	}
	return nil
}

// CartRepository is the persistence surface the service depends on.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	Create(ctx context.Context, cart *models.Cart) (*models.Cart, error)
	FindByIdentity(ctx context.Context, identity Identity) (*models.Cart, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Cart, error)
	SetRestaurant(ctx context.Context, cartID uuid.UUID, restaurantID *uuid.UUID) error
	FindLine(ctx context.Context, cartID, menuItemID uuid.UUID, customizationKey string) (*models.CartLine, error)
	GetLine(ctx context.Context, cartID, lineID uuid.UUID) (*models.CartLine, error)
	CreateLine(ctx context.Context, line *models.CartLine) error
	UpdateLineQuantity(ctx context.Context, lineID uuid.UUID, quantity int) error
	DeleteLine(ctx context.Context, lineID uuid.UUID) error
	DeleteLinesByCart(ctx context.Context, cartID uuid.UUID) error
	CountLines(ctx context.Context, cartID uuid.UUID) (int64, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type restaurantLoader interface {
	GetRestaurant(ctx context.Context, id uuid.UUID) (*models.Restaurant, error)
}

// AddItemInput captures one configured item addition.
type AddItemInput struct {
	MenuItemID uuid.UUID
	Quantity   int
	OptionIDs  []uuid.UUID
}

// Service owns the mutable pre-order basket.
type Service interface {
	GetOrCreate(ctx context.Context, identity Identity) (*models.Cart, error)
	AddItem(ctx context.Context, identity Identity, input AddItemInput) (*models.Cart, error)
	UpdateLineQuantity(ctx context.Context, identity Identity, lineID uuid.UUID, quantity int) (*models.Cart, error)
	Clear(ctx context.Context, identity Identity) (*models.Cart, error)
}

type service struct {
	repo        CartRepository
	tx          txRunner
	resolver    catalog.Resolver
	restaurants restaurantLoader
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, tx txRunner, resolver catalog.Resolver, restaurants restaurantLoader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("catalog resolver required")
	}
	if restaurants == nil {
		return nil, fmt.Errorf("restaurant loader required")
	}
	return &service{
		repo:        repo,
		tx:          tx,
		resolver:    resolver,
		restaurants: restaurants,
	}, nil
}

// GetOrCreate returns the single live cart for the identity, creating one if
// absent. Creation races resolve through the unique owner index: the loser
// re-reads the winner's row.
func (s *service) GetOrCreate(ctx context.Context, identity Identity) (*models.Cart, error) {
	if err := identity.Validate(); err != nil {
		return nil, err
	}

	cart, err := s.repo.FindByIdentity(ctx, identity)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	fresh := &models.Cart{UserID: identity.UserID, SessionKey: identity.SessionKey}
	created, err := s.repo.Create(ctx, fresh)
	if err != nil {
		if pkgdb.IsUniqueViolation(err, "ux_carts_user", "ux_carts_session") {
			existing, readErr := s.repo.FindByIdentity(ctx, identity)
			if readErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, readErr, "reload cart after create race")
			}
			return existing, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return created, nil
}

// AddItem resolves the selection against the catalog and merges it into the
// cart. The unit price is frozen at resolve time.
func (s *service) AddItem(ctx context.Context, identity Identity, input AddItemInput) (*models.Cart, error) {
	resolved, err := s.resolver.Resolve(ctx, input.MenuItemID, input.OptionIDs, input.Quantity)
	if err != nil {
		return nil, err
	}

	restaurant, err := s.restaurants.GetRestaurant(ctx, resolved.RestaurantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "restaurant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load restaurant")
	}
	if !restaurant.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnavailable, "restaurant is not accepting orders")
	}

	cart, err := s.GetOrCreate(ctx, identity)
	if err != nil {
		return nil, err
	}

	key := resolved.Snapshot.Fingerprint()
	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		// Re-read inside the transaction so concurrent additions observe
		// the committed restaurant binding.
		current, err := repo.GetByID(ctx, cart.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart")
		}

		switch {
		case current.RestaurantID == nil:
			if err := repo.SetRestaurant(ctx, current.ID, &resolved.RestaurantID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bind cart restaurant")
			}
		case *current.RestaurantID != resolved.RestaurantID:
			return pkgerrors.New(pkgerrors.CodeConflict, "cart holds items from another restaurant").
				WithDetails(map[string]any{
					"cart_restaurant_id": current.RestaurantID.String(),
					"item_restaurant_id": resolved.RestaurantID.String(),
				})
		}

		existing, err := repo.FindLine(ctx, current.ID, resolved.MenuItemID, key)
		if err == nil {
			return repo.UpdateLineQuantity(ctx, existing.ID, existing.Quantity+input.Quantity)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find cart line")
		}

		line := &models.CartLine{
			CartID:              current.ID,
			MenuItemID:          resolved.MenuItemID,
			Quantity:            input.Quantity,
			Customizations:      resolved.Snapshot,
			CustomizationKey:    key,
			UnitPriceAtAddition: resolved.UnitPrice,
		}
		if err := repo.CreateLine(ctx, line); err != nil {
			if pkgdb.IsUniqueViolation(err, "ux_cart_lines_config") {
				merged, readErr := repo.FindLine(ctx, current.ID, resolved.MenuItemID, key)
				if readErr != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, readErr, "reload cart line after race")
				}
				return repo.UpdateLineQuantity(ctx, merged.ID, merged.Quantity+input.Quantity)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart line")
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	return s.repo.GetByID(ctx, cart.ID)
}

// UpdateLineQuantity replaces a line's quantity; zero removes the line. When
// the last line goes, the restaurant binding is cleared as well.
func (s *service) UpdateLineQuantity(ctx context.Context, identity Identity, lineID uuid.UUID, quantity int) (*models.Cart, error) {
	if err := identity.Validate(); err != nil {
		return nil, err
	}
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}

	cart, err := s.repo.FindByIdentity(ctx, identity)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		line, err := repo.GetLine(ctx, cart.ID, lineID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
		}

		if quantity == 0 {
			if err := repo.DeleteLine(ctx, line.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart line")
			}
			remaining, err := repo.CountLines(ctx, cart.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count cart lines")
			}
			if remaining == 0 {
				if err := repo.SetRestaurant(ctx, cart.ID, nil); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "unbind cart restaurant")
				}
			}
			return nil
		}

		if err := repo.UpdateLineQuantity(ctx, line.ID, quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line")
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	return s.repo.GetByID(ctx, cart.ID)
}

// Clear deletes every line and unbinds the restaurant.
func (s *service) Clear(ctx context.Context, identity Identity) (*models.Cart, error) {
	cart, err := s.GetOrCreate(ctx, identity)
	if err != nil {
		return nil, err
	}

	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.DeleteLinesByCart(ctx, cart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart lines")
		}
		if err := repo.SetRestaurant(ctx, cart.ID, nil); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "unbind cart restaurant")
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	return s.repo.GetByID(ctx, cart.ID)
}

// Subtotal sums line totals from current lines, never a cached column.
func Subtotal(cart *models.Cart) decimal.Decimal {
	total := decimal.Zero
	if cart == nil {
		return total
	}
	for _, line := range cart.Lines {
		total = total.Add(line.LineTotal())
	}
	return total.Round(2)
}

// ItemCount sums quantities across lines.
func ItemCount(cart *models.Cart) int {
	if cart == nil {
		return 0
	}
	count := 0
	for _, line := range cart.Lines {
		count += line.Quantity
	}
	return count
}
