package orders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tablebird/tablebird-backend/internal/cart"
	"github.com/tablebird/tablebird-backend/pkg/config"
	"github.com/tablebird/tablebird-backend/pkg/db/models"
	"github.com/tablebird/tablebird-backend/pkg/enums"
	pkgerrors "github.com/tablebird/tablebird-backend/pkg/errors"
	"github.com/tablebird/tablebird-backend/pkg/outbox"
	"github.com/tablebird/tablebird-backend/pkg/types"
)

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type recordingEmitter struct {
	events []outbox.DomainEvent
	err    error
}

func (e *recordingEmitter) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	if e.err != nil {
		return e.err
	}
	e.events = append(e.events, event)
	return nil
}

type stubCatalog struct {
	restaurants map[uuid.UUID]*models.Restaurant
	items       map[uuid.UUID]*models.MenuItem
}

func (s *stubCatalog) GetRestaurant(_ context.Context, id uuid.UUID) (*models.Restaurant, error) {
	if r, ok := s.restaurants[id]; ok {
		return r, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubCatalog) GetMenuItem(_ context.Context, id uuid.UUID) (*models.MenuItem, error) {
	if i, ok := s.items[id]; ok {
		return i, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type flatRateCharges struct {
	taxRate decimal.Decimal
}

func (c flatRateCharges) ComputeCharges(_ context.Context, in ChargeInput) (Charges, error) {
	return Charges{
		Taxes:       in.Subtotal.Mul(c.taxRate).Round(2),
		DeliveryFee: decimal.Zero,
		ServiceFee:  decimal.Zero,
		Discount:    decimal.Zero,
	}, nil
}

// memoryOrderRepo keeps orders in maps and fakes the unique index on
// order_number for collision tests.
type memoryOrderRepo struct {
	orders    map[uuid.UUID]*models.Order
	byNumber  map[string]uuid.UUID
	history   map[uuid.UUID][]models.OrderStatusHistory
	createErr error
}

func newMemoryOrderRepo() *memoryOrderRepo {
	return &memoryOrderRepo{
		orders:   map[uuid.UUID]*models.Order{},
		byNumber: map[string]uuid.UUID{},
		history:  map[uuid.UUID][]models.OrderStatusHistory{},
	}
}

func (r *memoryOrderRepo) WithTx(_ *gorm.DB) OrderRepository { return r }

func (r *memoryOrderRepo) Create(_ context.Context, order *models.Order) error {
	if r.createErr != nil {
		err := r.createErr
		r.createErr = nil
		return err
	}
	if _, taken := r.byNumber[order.OrderNumber]; taken {
		return fmt.Errorf("duplicate key value violates unique constraint \"ux_orders_number\"")
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	for i := range order.Lines {
		if order.Lines[i].ID == uuid.Nil {
			order.Lines[i].ID = uuid.New()
		}
		order.Lines[i].OrderID = order.ID
	}
	for i := range order.History {
		row := order.History[i]
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		row.OrderID = order.ID
		r.history[order.ID] = append(r.history[order.ID], row)
	}
	r.orders[order.ID] = order
	r.byNumber[order.OrderNumber] = order.ID
	return nil
}

func (r *memoryOrderRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := r.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *order
	copied.History = append([]models.OrderStatusHistory{}, r.history[id]...)
	return &copied, nil
}

func (r *memoryOrderRepo) GetByNumber(_ context.Context, number string) (*models.Order, error) {
	id, ok := r.byNumber[number]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return r.GetByID(context.Background(), id)
}

func (r *memoryOrderRepo) ListByUser(_ context.Context, userID uuid.UUID, _, _ int) ([]models.Order, error) {
	var out []models.Order
	for _, order := range r.orders {
		if order.UserID != nil && *order.UserID == userID {
			out = append(out, *order)
		}
	}
	return out, nil
}

func (r *memoryOrderRepo) ListByRestaurant(_ context.Context, restaurantID uuid.UUID, status *enums.OrderStatus, _, _ int) ([]models.Order, error) {
	var out []models.Order
	for _, order := range r.orders {
		if order.RestaurantID != restaurantID {
			continue
		}
		if status != nil && order.Status != *status {
			continue
		}
		out = append(out, *order)
	}
	return out, nil
}

func (r *memoryOrderRepo) UpdateColumns(_ context.Context, orderID uuid.UUID, updates map[string]any) error {
	order, ok := r.orders[orderID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for column, value := range updates {
		switch column {
		case "status":
			order.Status = value.(enums.OrderStatus)
		case "confirmed_at":
			ts := value.(time.Time)
			order.ConfirmedAt = &ts
		case "preparation_started_at":
			ts := value.(time.Time)
			order.PreparationStartedAt = &ts
		case "ready_at":
			ts := value.(time.Time)
			order.ReadyAt = &ts
		case "picked_up_or_dispatched_at":
			ts := value.(time.Time)
			order.PickedUpOrDispatchedAt = &ts
		case "delivered_at":
			ts := value.(time.Time)
			order.DeliveredAt = &ts
		case "completed_at":
			ts := value.(time.Time)
			order.CompletedAt = &ts
		case "cancelled_at":
			ts := value.(time.Time)
			order.CancelledAt = &ts
		case "cancellation_reason":
			reason := value.(string)
			order.CancellationReason = &reason
		case "internal_notes":
			notes := value.(string)
			order.InternalNotes = &notes
		case "table_number":
			table := value.(string)
			order.TableNumber = &table
		}
	}
	return nil
}

func (r *memoryOrderRepo) UpdatePaymentStatus(_ context.Context, orderID uuid.UUID, status enums.PaymentStatus) error {
	order, ok := r.orders[orderID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	order.PaymentStatus = status
	return nil
}

func (r *memoryOrderRepo) AppendHistory(_ context.Context, row *models.OrderStatusHistory) error {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	r.history[row.OrderID] = append(r.history[row.OrderID], *row)
	return nil
}

func (r *memoryOrderRepo) ListHistory(_ context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error) {
	return append([]models.OrderStatusHistory{}, r.history[orderID]...), nil
}

// memoryCartSource serves a single cart and records clearing calls.
type memoryCartSource struct {
	cart         *models.Cart
	linesCleared bool
	unbound      bool
}

func (s *memoryCartSource) WithTx(_ *gorm.DB) cart.CartRepository { return s }

func (s *memoryCartSource) Create(_ context.Context, _ *models.Cart) (*models.Cart, error) {
	return nil, fmt.Errorf("not supported")
}

func (s *memoryCartSource) FindByIdentity(_ context.Context, _ cart.Identity) (*models.Cart, error) {
	if s.cart == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.cart, nil
}

func (s *memoryCartSource) GetByID(_ context.Context, id uuid.UUID) (*models.Cart, error) {
	if s.cart == nil || s.cart.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.cart, nil
}

func (s *memoryCartSource) SetRestaurant(_ context.Context, cartID uuid.UUID, restaurantID *uuid.UUID) error {
	if s.cart == nil || s.cart.ID != cartID {
		return gorm.ErrRecordNotFound
	}
	s.cart.RestaurantID = restaurantID
	if restaurantID == nil {
		s.unbound = true
	}
	return nil
}

func (s *memoryCartSource) FindLine(_ context.Context, _, _ uuid.UUID, _ string) (*models.CartLine, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *memoryCartSource) GetLine(_ context.Context, _, _ uuid.UUID) (*models.CartLine, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *memoryCartSource) CreateLine(_ context.Context, _ *models.CartLine) error {
	return fmt.Errorf("not supported")
}

func (s *memoryCartSource) UpdateLineQuantity(_ context.Context, _ uuid.UUID, _ int) error {
	return fmt.Errorf("not supported")
}

func (s *memoryCartSource) DeleteLine(_ context.Context, _ uuid.UUID) error {
	return fmt.Errorf("not supported")
}

func (s *memoryCartSource) DeleteLinesByCart(_ context.Context, cartID uuid.UUID) error {
	if s.cart == nil || s.cart.ID != cartID {
		return gorm.ErrRecordNotFound
	}
	s.cart.Lines = nil
	s.linesCleared = true
	return nil
}

func (s *memoryCartSource) CountLines(_ context.Context, _ uuid.UUID) (int64, error) {
	if s.cart == nil {
		return 0, nil
	}
	return int64(len(s.cart.Lines)), nil
}

type fixture struct {
	svc          Service
	repo         *memoryOrderRepo
	carts        *memoryCartSource
	catalog      *stubCatalog
	emitter      *recordingEmitter
	userID       uuid.UUID
	restaurantID uuid.UUID
	tenantID     uuid.UUID
	burgerID     uuid.UUID
}

func price(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// newFixture seeds a cart holding two customized burgers at $9.00 each.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	userID := uuid.New()
	tenantID := uuid.New()
	restaurantID := uuid.New()
	burgerID := uuid.New()
	cheeseID := uuid.New()
	toppingsID := uuid.New()

	snapshot := types.CustomizationSnapshot{
		{
			OptionID:   cheeseID,
			OptionName: "Extra Cheese",
			GroupID:    toppingsID,
			GroupName:  "Toppings",
			PriceDelta: price("1.00"),
		},
	}

	carts := &memoryCartSource{
		cart: &models.Cart{
			ID:           uuid.New(),
			UserID:       &userID,
			RestaurantID: &restaurantID,
			Lines: []models.CartLine{
				{
					ID:                  uuid.New(),
					MenuItemID:          burgerID,
					Quantity:            2,
					Customizations:      snapshot,
					CustomizationKey:    snapshot.Fingerprint(),
					UnitPriceAtAddition: price("9.00"),
				},
			},
		},
	}

	description := "Char-grilled classic"
	catalog := &stubCatalog{
		restaurants: map[uuid.UUID]*models.Restaurant{
			restaurantID: {
				ID:       restaurantID,
				TenantID: tenantID,
				Name:     "Bird & Bun",
				IsActive: true,
			},
		},
		items: map[uuid.UUID]*models.MenuItem{
			burgerID: {
				ID:           burgerID,
				RestaurantID: restaurantID,
				Name:         "Burger",
				Description:  &description,
				BasePrice:    price("8.00"),
				IsAvailable:  true,
			},
		},
	}

	repo := newMemoryOrderRepo()
	emitter := &recordingEmitter{}

	svc, err := NewService(
		repo,
		carts,
		catalog,
		flatRateCharges{taxRate: price("0.10")},
		stubTxRunner{},
		emitter,
		config.OrdersConfig{NumberPrefix: "ORD", NumberMaxAttempts: 5},
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	return &fixture{
		svc:          svc,
		repo:         repo,
		carts:        carts,
		catalog:      catalog,
		emitter:      emitter,
		userID:       userID,
		restaurantID: restaurantID,
		tenantID:     tenantID,
		burgerID:     burgerID,
	}
}

func takeawayInput() PlaceOrderInput {
	return PlaceOrderInput{
		OrderType: enums.OrderTypeTakeaway,
		Contact:   types.CustomerContact{Name: "Ada", Phone: "+15550100"},
	}
}

func TestPlaceOrderSnapshotsCartAndTotals(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	identity := cart.Identity{UserID: &f.userID}

	order, err := f.svc.PlaceOrder(context.Background(), identity, takeawayInput())
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	if !order.Subtotal.Equal(price("18.00")) {
		t.Fatalf("expected subtotal 18.00, got %s", order.Subtotal)
	}
	if !order.Taxes.Equal(price("1.80")) {
		t.Fatalf("expected taxes 1.80, got %s", order.Taxes)
	}
	if !order.Total.Equal(price("19.80")) {
		t.Fatalf("expected total 19.80, got %s", order.Total)
	}
	if order.Status != enums.OrderStatusAwaitingConfirmation {
		t.Fatalf("expected AWAITING_CONFIRMATION, got %s", order.Status)
	}
	if order.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("expected PENDING payment, got %s", order.PaymentStatus)
	}
	if order.TenantID != f.tenantID {
		t.Fatal("tenant must be derived from the restaurant")
	}
	if len(order.Lines) != 1 {
		t.Fatalf("expected one line, got %d", len(order.Lines))
	}

	line := order.Lines[0]
	if line.Name != "Burger" {
		t.Fatalf("expected name snapshot, got %q", line.Name)
	}
	if !line.UnitPrice.Equal(price("9.00")) {
		t.Fatalf("expected frozen unit price 9.00, got %s", line.UnitPrice)
	}
	if len(line.Customizations) != 1 || line.Customizations[0].OptionName != "Extra Cheese" {
		t.Fatalf("customization snapshot not copied: %+v", line.Customizations)
	}

	if !f.carts.linesCleared || !f.carts.unbound {
		t.Fatal("cart must be emptied and unbound in the placement transaction")
	}

	if len(f.emitter.events) != 1 || f.emitter.events[0].EventType != enums.EventOrderCreated {
		t.Fatalf("expected one order_created event, got %+v", f.emitter.events)
	}
}

func TestPlaceOrderRejectsEmptyIdentity(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.svc.PlaceOrder(context.Background(), cart.Identity{}, takeawayInput())
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestPlaceOrderRejectsEmptyCart(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.carts.cart.Lines = nil

	_, err := f.svc.PlaceOrder(context.Background(), cart.Identity{UserID: &f.userID}, takeawayInput())
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestPlaceOrderRejectsUnboundCart(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.carts.cart.RestaurantID = nil

	_, err := f.svc.PlaceOrder(context.Background(), cart.Identity{UserID: &f.userID}, takeawayInput())
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestPlaceOrderRejectsInactiveRestaurant(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.catalog.restaurants[f.restaurantID].IsActive = false

	_, err := f.svc.PlaceOrder(context.Background(), cart.Identity{UserID: &f.userID}, takeawayInput())
	assertCode(t, err, pkgerrors.CodeUnavailable)
}

func TestPlaceOrderRejectsItemGoneUnavailable(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.catalog.items[f.burgerID].IsAvailable = false

	_, err := f.svc.PlaceOrder(context.Background(), cart.Identity{UserID: &f.userID}, takeawayInput())
	assertCode(t, err, pkgerrors.CodeUnavailable)
	if f.carts.linesCleared {
		t.Fatal("cart must survive a failed placement")
	}
}

func TestPlaceOrderDeliveryRequiresAddress(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	input := takeawayInput()
	input.OrderType = enums.OrderTypeDelivery

	_, err := f.svc.PlaceOrder(context.Background(), cart.Identity{UserID: &f.userID}, input)
	assertCode(t, err, pkgerrors.CodeValidation)

	input.Delivery = &types.DeliveryDetails{Line1: "1 Main St", City: "Springfield", PostalCode: "01101"}
	if _, err := f.svc.PlaceOrder(context.Background(), cart.Identity{UserID: &f.userID}, input); err != nil {
		t.Fatalf("delivery with complete address should place, got %v", err)
	}
}

func TestPlaceOrderRetriesNumberCollision(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.repo.createErr = fmt.Errorf("duplicate key value violates unique constraint \"ux_orders_number\"")

	order, err := f.svc.PlaceOrder(context.Background(), cart.Identity{UserID: &f.userID}, takeawayInput())
	if err != nil {
		t.Fatalf("collision retry should succeed, got %v", err)
	}
	if order.OrderNumber == "" {
		t.Fatal("expected an order number")
	}
}

func TestPlaceOrderNumberFormat(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	order, err := f.svc.PlaceOrder(context.Background(), cart.Identity{UserID: &f.userID}, takeawayInput())
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	datePart := time.Now().UTC().Format("20060102")
	prefix := "ORD-" + datePart + "-"
	if len(order.OrderNumber) != len(prefix)+6 || order.OrderNumber[:len(prefix)] != prefix {
		t.Fatalf("unexpected order number %q", order.OrderNumber)
	}
}

func TestTransitionStatusAppendsHistoryAndStamps(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	order, err := f.svc.PlaceOrder(context.Background(), cart.Identity{UserID: &f.userID}, takeawayInput())
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	staff := Actor{Role: enums.ActorRoleStaff}
	updated, err := f.svc.TransitionStatus(context.Background(), order.ID, enums.OrderStatusConfirmed, staff, nil)
	if err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}
	if updated.Status != enums.OrderStatusConfirmed {
		t.Fatalf("expected CONFIRMED, got %s", updated.Status)
	}
	if updated.ConfirmedAt == nil {
		t.Fatal("expected confirmed_at stamp")
	}
	if len(updated.History) != 2 {
		t.Fatalf("expected two history rows, got %d", len(updated.History))
	}
	if updated.History[1].Status != enums.OrderStatusConfirmed {
		t.Fatalf("expected history row for CONFIRMED, got %s", updated.History[1].Status)
	}

	last := f.emitter.events[len(f.emitter.events)-1]
	if last.EventType != enums.EventOrderStatusChanged {
		t.Fatalf("expected order_status_changed event, got %s", last.EventType)
	}
}

func TestTransitionStatusRejectsIllegalStep(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	order, err := f.svc.PlaceOrder(context.Background(), cart.Identity{UserID: &f.userID}, takeawayInput())
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	_, err = f.svc.TransitionStatus(context.Background(), order.ID, enums.OrderStatusPreparing, Actor{Role: enums.ActorRoleStaff}, nil)
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestCustomerCancelOnlyBeforeConfirmation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	order, err := f.svc.PlaceOrder(context.Background(), cart.Identity{UserID: &f.userID}, takeawayInput())
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	customer := Actor{Role: enums.ActorRoleCustomer, UserID: &f.userID}
	cancelled, err := f.svc.TransitionStatus(context.Background(), order.ID, enums.OrderStatusCancelledByUser, customer, nil)
	if err != nil {
		t.Fatalf("customer cancel before confirmation: %v", err)
	}
	if cancelled.CancelledAt == nil {
		t.Fatal("expected cancelled_at stamp")
	}

	_, err = f.svc.TransitionStatus(context.Background(), order.ID, enums.OrderStatusCancelledByUser, customer, nil)
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestGetForActorHidesForeignOrders(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	order, err := f.svc.PlaceOrder(context.Background(), cart.Identity{UserID: &f.userID}, takeawayInput())
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	stranger := uuid.New()
	_, err = f.svc.GetForActor(context.Background(), order.ID, Actor{Role: enums.ActorRoleCustomer, UserID: &stranger})
	assertCode(t, err, pkgerrors.CodeNotFound)

	if _, err := f.svc.GetForActor(context.Background(), order.ID, Actor{Role: enums.ActorRoleCustomer, UserID: &f.userID}); err != nil {
		t.Fatalf("owner read should pass, got %v", err)
	}
	if _, err := f.svc.GetForActor(context.Background(), order.ID, Actor{Role: enums.ActorRoleStaff}); err != nil {
		t.Fatalf("staff read should pass, got %v", err)
	}
}

func TestListHistoryForActorScopedLikeReads(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	order, err := f.svc.PlaceOrder(context.Background(), cart.Identity{UserID: &f.userID}, takeawayInput())
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	stranger := uuid.New()
	_, err = f.svc.ListHistoryForActor(context.Background(), order.ID, Actor{Role: enums.ActorRoleCustomer, UserID: &stranger})
	assertCode(t, err, pkgerrors.CodeNotFound)

	rows, err := f.svc.ListHistoryForActor(context.Background(), order.ID, Actor{Role: enums.ActorRoleCustomer, UserID: &f.userID})
	if err != nil {
		t.Fatalf("owner history read should pass, got %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected the placement history row, got %d", len(rows))
	}
}

func TestUpdateOperationalFields(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	order, err := f.svc.PlaceOrder(context.Background(), cart.Identity{UserID: &f.userID}, takeawayInput())
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	notes := "allergy: peanuts"
	table := "12"
	updated, err := f.svc.UpdateOperationalFields(context.Background(), order.ID, OperationalFieldsInput{
		InternalNotes: &notes,
		TableNumber:   &table,
	})
	if err != nil {
		t.Fatalf("UpdateOperationalFields: %v", err)
	}
	if updated.InternalNotes == nil || *updated.InternalNotes != notes {
		t.Fatalf("expected internal notes update, got %+v", updated.InternalNotes)
	}
	if updated.TableNumber == nil || *updated.TableNumber != table {
		t.Fatalf("expected table number update, got %+v", updated.TableNumber)
	}

	_, err = f.svc.UpdateOperationalFields(context.Background(), order.ID, OperationalFieldsInput{})
	assertCode(t, err, pkgerrors.CodeValidation)
}
