package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tablebird/tablebird-backend/internal/cart"
	"github.com/tablebird/tablebird-backend/pkg/config"
	pkgdb "github.com/tablebird/tablebird-backend/pkg/db"
	"github.com/tablebird/tablebird-backend/pkg/db/models"
	"github.com/tablebird/tablebird-backend/pkg/enums"
	pkgerrors "github.com/tablebird/tablebird-backend/pkg/errors"
	"github.com/tablebird/tablebird-backend/pkg/outbox"
)

// OrderRepository is the persistence surface the service depends on.
type OrderRepository interface {
	WithTx(tx *gorm.DB) OrderRepository
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetByNumber(ctx context.Context, number string) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error)
	ListByRestaurant(ctx context.Context, restaurantID uuid.UUID, status *enums.OrderStatus, limit, offset int) ([]models.Order, error)
	UpdateColumns(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	UpdatePaymentStatus(ctx context.Context, orderID uuid.UUID, status enums.PaymentStatus) error
	AppendHistory(ctx context.Context, row *models.OrderStatusHistory) error
	ListHistory(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type catalogLoader interface {
	GetRestaurant(ctx context.Context, id uuid.UUID) (*models.Restaurant, error)
	GetMenuItem(ctx context.Context, id uuid.UUID) (*models.MenuItem, error)
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service converts carts into orders and drives the order state machine.
type Service interface {
	PlaceOrder(ctx context.Context, identity cart.Identity, input PlaceOrderInput) (*models.Order, error)
	TransitionStatus(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus, actor Actor, comment *string) (*models.Order, error)
	UpdateOperationalFields(ctx context.Context, orderID uuid.UUID, input OperationalFieldsInput) (*models.Order, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetForActor(ctx context.Context, id uuid.UUID, actor Actor) (*models.Order, error)
	GetByNumber(ctx context.Context, number string) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error)
	ListByRestaurant(ctx context.Context, restaurantID uuid.UUID, status *enums.OrderStatus, limit, offset int) ([]models.Order, error)
	ListHistory(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error)
	ListHistoryForActor(ctx context.Context, orderID uuid.UUID, actor Actor) ([]models.OrderStatusHistory, error)
}

type service struct {
	repo    OrderRepository
	carts   cart.CartRepository
	catalog catalogLoader
	charges ChargeCalculator
	tx      txRunner
	events  eventEmitter
	cfg     config.OrdersConfig
	now     func() time.Time
}

// NewService builds an order service backed by the provided stack.
func NewService(
	repo OrderRepository,
	carts cart.CartRepository,
	catalog catalogLoader,
	charges ChargeCalculator,
	tx txRunner,
	events eventEmitter,
	cfg config.OrdersConfig,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog loader required")
	}
	if charges == nil {
		charges = ZeroCharges{}
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if events == nil {
		return nil, fmt.Errorf("event emitter required")
	}
	return &service{
		repo:    repo,
		carts:   carts,
		catalog: catalog,
		charges: charges,
		tx:      tx,
		events:  events,
		cfg:     cfg,
		now:     time.Now,
	}, nil
}

// PlaceOrder atomically converts the identity's cart into an order. Each
// attempt runs as one transaction; an order-number collision rolls the whole
// attempt back and retries with a fresh candidate.
func (s *service) PlaceOrder(ctx context.Context, identity cart.Identity, input PlaceOrderInput) (*models.Order, error) {
	if err := identity.Validate(); err != nil {
		return nil, err
	}
	if err := s.validatePlacement(input); err != nil {
		return nil, err
	}

	staged, err := s.carts.FindByIdentity(ctx, identity)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	var placed *models.Order
	attempts := s.cfg.NumberMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		placed = nil
		txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			order, err := s.placeOrderTx(ctx, tx, staged.ID, identity, input)
			if err != nil {
				return err
			}
			placed = order
			return nil
		})
		if txErr == nil {
			return placed, nil
		}
		if pkgdb.IsUniqueViolation(txErr, "ux_orders_number") {
			continue
		}
		return nil, txErr
	}

	return nil, pkgerrors.New(pkgerrors.CodeConflict, "order number space exhausted")
}

func (s *service) placeOrderTx(ctx context.Context, tx *gorm.DB, cartID uuid.UUID, identity cart.Identity, input PlaceOrderInput) (*models.Order, error) {
	cartRepo := s.carts.WithTx(tx)
	orderRepo := s.repo.WithTx(tx)

	// Re-read inside the transaction; the cart may have mutated since the
	// caller's last look.
	staged, err := cartRepo.GetByID(ctx, cartID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart")
	}
	if len(staged.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	if staged.RestaurantID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is not bound to a restaurant")
	}

	restaurant, err := s.catalog.GetRestaurant(ctx, *staged.RestaurantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "restaurant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load restaurant")
	}
	if !restaurant.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnavailable, "restaurant is not accepting orders")
	}

	subtotal := cart.Subtotal(staged)
	charges, err := s.charges.ComputeCharges(ctx, ChargeInput{
		TenantID:     restaurant.TenantID,
		RestaurantID: restaurant.ID,
		OrderType:    input.OrderType,
		Subtotal:     subtotal,
		Delivery:     input.Delivery,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "compute charges")
	}

	total := subtotal.
		Add(charges.Taxes).
		Add(charges.DeliveryFee).
		Add(charges.ServiceFee).
		Sub(charges.Discount).
		Round(2)
	if total.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount exceeds order value")
	}

	now := s.now()
	currency := input.Currency
	if currency == "" {
		currency = enums.CurrencyUSD
	}

	lines := make([]models.OrderLine, 0, len(staged.Lines))
	for _, src := range staged.Lines {
		item, err := s.catalog.GetMenuItem(ctx, src.MenuItemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeUnavailable, "item no longer orderable").
					WithDetails(map[string]any{"menu_item_id": src.MenuItemID})
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load menu item")
		}
		if !item.IsAvailable {
			return nil, pkgerrors.New(pkgerrors.CodeUnavailable, "item no longer orderable").
				WithDetails(map[string]any{"menu_item_id": item.ID})
		}
		menuItemID := src.MenuItemID
		lines = append(lines, models.OrderLine{
			MenuItemID:     &menuItemID,
			Name:           item.Name,
			Description:    item.Description,
			Quantity:       src.Quantity,
			UnitPrice:      src.UnitPriceAtAddition,
			Customizations: src.Customizations,
		})
	}

	order := &models.Order{
		OrderNumber:  generateOrderNumber(s.cfg.NumberPrefix, now),
		UserID:       identity.UserID,
		TenantID:     restaurant.TenantID,
		RestaurantID: restaurant.ID,

		Status:    enums.OrderStatusAwaitingConfirmation,
		OrderType: input.OrderType,

		Contact:     input.Contact,
		TableNumber: input.TableNumber,
		Delivery:    input.Delivery,

		Subtotal:    subtotal,
		Taxes:       charges.Taxes.Round(2),
		DeliveryFee: charges.DeliveryFee.Round(2),
		ServiceFee:  charges.ServiceFee.Round(2),
		Discount:    charges.Discount.Round(2),
		Total:       total,
		Currency:    currency,

		PaymentStatus: enums.PaymentStatusPending,

		SpecialInstructions: input.SpecialInstructions,
		ScheduledFor:        input.ScheduledFor,

		Lines: lines,
		History: []models.OrderStatusHistory{
			{
				Status:    enums.OrderStatusAwaitingConfirmation,
				ActorRole: enums.ActorRoleCustomer,
				ChangedBy: identity.UserID,
			},
		},
	}

	if err := orderRepo.Create(ctx, order); err != nil {
		return nil, err
	}

	if err := cartRepo.DeleteLinesByCart(ctx, staged.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart lines")
	}
	if err := cartRepo.SetRestaurant(ctx, staged.ID, nil); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "unbind cart restaurant")
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actorRef(Actor{Role: enums.ActorRoleCustomer, UserID: identity.UserID}),
		Data: OrderCreatedEvent{
			OrderID:      order.ID,
			OrderNumber:  order.OrderNumber,
			TenantID:     order.TenantID,
			RestaurantID: order.RestaurantID,
			OrderType:    string(order.OrderType),
			Status:       string(order.Status),
			Total:        order.Total.StringFixed(2),
			Currency:     string(order.Currency),
		},
		OccurredAt: now,
	}
	if err := s.events.Emit(ctx, tx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order created event")
	}

	return order, nil
}

func (s *service) validatePlacement(input PlaceOrderInput) error {
	if !input.OrderType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown order type")
	}
	if input.Currency != "" && !input.Currency.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown currency")
	}
	if input.Contact.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer contact is required")
	}

	switch input.OrderType {
	case enums.OrderTypeDelivery:
		if input.Delivery == nil || !input.Delivery.Complete() {
			return pkgerrors.New(pkgerrors.CodeValidation, "delivery orders require a complete address")
		}
	case enums.OrderTypeDineIn:
		// Staff may assign a table after placement unless policy insists.
		if s.cfg.RequireTableNumber && (input.TableNumber == nil || *input.TableNumber == "") {
			return pkgerrors.New(pkgerrors.CodeValidation, "dine-in orders require a table number")
		}
	}
	return nil
}

// TransitionStatus applies one legal state-machine step and appends the
// audit row in the same transaction.
func (s *service) TransitionStatus(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus, actor Actor, comment *string) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	var updated *models.Order
	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.GetByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		if err := validateTransition(order, target, actor); err != nil {
			return err
		}

		now := s.now()
		previous := order.Status
		updates := transitionUpdates(order, target, now, comment)
		if err := repo.UpdateColumns(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}

		history := &models.OrderStatusHistory{
			OrderID:   order.ID,
			Status:    target,
			ActorRole: actor.Role,
			ChangedBy: actor.UserID,
			Comment:   comment,
		}
		if err := repo.AppendHistory(ctx, history); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status history")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actorRef(actor),
			Data: OrderStatusChangedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				Previous:    string(previous),
				Current:     string(target),
				ActorRole:   string(actor.Role),
			},
			OccurredAt: now,
		}
		if err := s.events.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit status changed event")
		}

		fresh, err := repo.GetByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		updated = fresh
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return updated, nil
}

// UpdateOperationalFields edits the staff-operational columns without
// touching the financial or line snapshots.
func (s *service) UpdateOperationalFields(ctx context.Context, orderID uuid.UUID, input OperationalFieldsInput) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	updates := map[string]any{}
	if input.InternalNotes != nil {
		updates["internal_notes"] = *input.InternalNotes
	}
	if input.POSOrderID != nil {
		updates["pos_order_id"] = *input.POSOrderID
	}
	if input.KDSToken != nil {
		updates["kds_token"] = *input.KDSToken
	}
	if input.PrepTimeEstimateMinutes != nil {
		updates["prep_time_estimate_minutes"] = *input.PrepTimeEstimateMinutes
	}
	if input.ScheduledFor != nil {
		updates["scheduled_for"] = *input.ScheduledFor
	}
	if input.TableNumber != nil {
		updates["table_number"] = *input.TableNumber
	}
	if len(updates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no operational fields supplied")
	}

	var updated *models.Order
	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.GetByID(ctx, orderID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if err := repo.UpdateColumns(ctx, orderID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update operational fields")
		}
		fresh, err := repo.GetByID(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		updated = fresh
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return updated, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// GetForActor is GetByID with the caller's visibility applied: customers
// only see their own orders, guest orders stay reachable by id.
func (s *service) GetForActor(ctx context.Context, id uuid.UUID, actor Actor) (*models.Order, error) {
	order, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeOrderView(order, actor); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) GetByNumber(ctx context.Context, number string) (*models.Order, error) {
	order, err := s.repo.GetByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return rows, nil
}

func (s *service) ListByRestaurant(ctx context.Context, restaurantID uuid.UUID, status *enums.OrderStatus, limit, offset int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.repo.ListByRestaurant(ctx, restaurantID, status, limit, offset)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return rows, nil
}

func (s *service) ListHistory(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error) {
	rows, err := s.repo.ListHistory(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list status history")
	}
	return rows, nil
}

func (s *service) ListHistoryForActor(ctx context.Context, orderID uuid.UUID, actor Actor) ([]models.OrderStatusHistory, error) {
	if _, err := s.GetForActor(ctx, orderID, actor); err != nil {
		return nil, err
	}
	return s.ListHistory(ctx, orderID)
}

// authorizeOrderView gates reads the way the state machine gates cancels.
// A mismatched customer gets NOT_FOUND rather than FORBIDDEN so the
// response does not confirm the order exists.
func authorizeOrderView(order *models.Order, actor Actor) error {
	if order.UserID == nil {
		return nil
	}
	if actor.Role == enums.ActorRoleStaff || actor.Role == enums.ActorRoleSystem {
		return nil
	}
	if actor.UserID != nil && *actor.UserID == *order.UserID {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func actorRef(actor Actor) *outbox.ActorRef {
	return &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role}
}
