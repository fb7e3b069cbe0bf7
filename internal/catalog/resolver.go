package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tablebird/tablebird-backend/pkg/db/models"
	pkgerrors "github.com/tablebird/tablebird-backend/pkg/errors"
	"github.com/tablebird/tablebird-backend/pkg/types"
)

// MenuItemLoader is the read surface the resolver needs from the catalog.
type MenuItemLoader interface {
	GetMenuItem(ctx context.Context, id uuid.UUID) (*models.MenuItem, error)
}

// ResolvedItem is the priced, immutable line snapshot handed to the cart
// and order layers. Snapshot is canonical (sorted by option id), so two
// requests selecting the same options in different order resolve equal.
type ResolvedItem struct {
	MenuItemID   uuid.UUID
	RestaurantID uuid.UUID
	Name         string
	Description  *string
	UnitPrice    decimal.Decimal
	Snapshot     types.CustomizationSnapshot
}

// Resolver validates a menu item selection and prices it.
type Resolver interface {
	Resolve(ctx context.Context, menuItemID uuid.UUID, optionIDs []uuid.UUID, quantity int) (*ResolvedItem, error)
}

type resolver struct {
	repo MenuItemLoader
}

// NewResolver builds a snapshot resolver backed by the catalog repo.
func NewResolver(repo MenuItemLoader) (Resolver, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &resolver{repo: repo}, nil
}

func (r *resolver) Resolve(ctx context.Context, menuItemID uuid.UUID, optionIDs []uuid.UUID, quantity int) (*ResolvedItem, error) {
	if menuItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "menu item id is required")
	}
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	item, err := r.repo.GetMenuItem(ctx, menuItemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "menu item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load menu item")
	}
	if !item.IsAvailable {
		return nil, pkgerrors.New(pkgerrors.CodeUnavailable, "menu item is unavailable").
			WithDetails(map[string]any{"menu_item_id": item.ID.String()})
	}

	seen := make(map[uuid.UUID]struct{}, len(optionIDs))
	for _, id := range optionIDs {
		if _, dup := seen[id]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate customization option").
				WithDetails(map[string]any{"option_id": id.String()})
		}
		seen[id] = struct{}{}
	}

	type optionRef struct {
		option models.CustomizationOption
		group  models.CustomizationGroup
	}
	byOption := make(map[uuid.UUID]optionRef)
	for _, group := range item.Groups {
		for _, opt := range group.Options {
			byOption[opt.ID] = optionRef{option: opt, group: group}
		}
	}

	selectedPerGroup := make(map[uuid.UUID]int)
	snapshot := make(types.CustomizationSnapshot, 0, len(optionIDs))

	for _, id := range optionIDs {
		ref, ok := byOption[id]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeUnavailable, "customization option is not offered for this item").
				WithDetails(map[string]any{"option_id": id.String()})
		}
		if !ref.option.IsAvailable {
			return nil, pkgerrors.New(pkgerrors.CodeUnavailable, "customization option is unavailable").
				WithDetails(map[string]any{"option_id": id.String(), "option_name": ref.option.Name})
		}
		selectedPerGroup[ref.group.ID]++
		snapshot = append(snapshot, types.CustomizationSelection{
			OptionID:   ref.option.ID,
			OptionName: ref.option.Name,
			GroupID:    ref.group.ID,
			GroupName:  ref.group.Name,
			PriceDelta: ref.option.PriceDelta,
		})
	}

	// Selection-count rules apply per touched group; MaxSelection of 0
	// means unbounded above MinSelection.
	for _, group := range item.Groups {
		count, touched := selectedPerGroup[group.ID]
		if !touched {
			continue
		}
		if count < group.MinSelection || (group.MaxSelection > 0 && count > group.MaxSelection) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "selection count out of range for customization group").
				WithDetails(map[string]any{
					"group_id":      group.ID.String(),
					"group_name":    group.Name,
					"min_selection": group.MinSelection,
					"max_selection": group.MaxSelection,
					"selected":      count,
				})
		}
	}

	return &ResolvedItem{
		MenuItemID:   item.ID,
		RestaurantID: item.RestaurantID,
		Name:         item.Name,
		Description:  item.Description,
		UnitPrice:    item.BasePrice.Add(snapshot.PriceDeltaSum()).Round(2),
		Snapshot:     snapshot.Canonical(),
	}, nil
}
