package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"perfume-storefront/internal/domain"
	"perfume-storefront/internal/history"
	"perfume-storefront/internal/repo"
)

type CartService interface {
	GetCart(ctx context.Context, customerID uuid.UUID) (domain.CartView, error)
	Add(ctx context.Context, customerID, productID uuid.UUID, qty int) (domain.CartView, error)
	Modify(ctx context.Context, customerID, productID uuid.UUID, qty int) (domain.CartView, error)
	Remove(ctx context.Context, customerID, productID uuid.UUID) (domain.CartView, error)
	Undo(ctx context.Context, customerID uuid.UUID) (domain.CartView, error)
	Redo(ctx context.Context, customerID uuid.UUID) (domain.CartView, error)
	HistoryInfo(ctx context.Context, customerID uuid.UUID) (domain.HistoryInfo, error)
}

type cartService struct {
	tx        Transactor
	products  repo.ProductRepo
	carts     repo.CartRepo
	histories history.Store
	locks     *CustomerLocks
	capacity  int
	logger    *zap.Logger
	reads     singleflight.Group
	now       func() time.Time
}

func NewCartService(
	tx Transactor,
	products repo.ProductRepo,
	carts repo.CartRepo,
	histories history.Store,
	locks *CustomerLocks,
	capacity int,
	logger *zap.Logger,
) CartService {
	return &cartService{
		tx:        tx,
		products:  products,
		carts:     carts,
		histories: histories,
		locks:     locks,
		capacity:  capacity,
		logger:    logger,
		now:       time.Now,
	}
}

// GetCart collapses concurrent reads of the same cart into one query. The
// shared read does not follow any single caller's cancellation.
func (s *cartService) GetCart(ctx context.Context, customerID uuid.UUID) (domain.CartView, error) {
	readCtx := context.WithoutCancel(ctx)
	v, err, _ := s.reads.Do(customerID.String(), func() (any, error) {
		cart, err := s.loadCart(readCtx, customerID)
		if err != nil {
			return nil, err
		}
		return cart.View(), nil
	})
	if err != nil {
		return domain.CartView{}, err
	}
	return v.(domain.CartView), nil
}

func (s *cartService) Add(ctx context.Context, customerID, productID uuid.UUID, qty int) (domain.CartView, error) {
	if qty <= 0 {
		return domain.CartView{}, domain.ErrInvalidQuantity
	}
	return s.mutate(ctx, customerID, func(cart *domain.Cart) error {
		product, err := s.findProduct(ctx, productID)
		if err != nil {
			return err
		}
		wanted := cart.QuantityOf(productID) + qty
		if !product.HasStock(wanted) {
			return fmt.Errorf("%w: %s has %d left, cart would hold %d", domain.ErrInsufficientStock, product.Name, product.Stock, wanted)
		}
		cart.Add(domain.CartItem{
			ProductID: product.ID,
			Name:      product.Name,
			Quantity:  qty,
			UnitPrice: product.Price,
		})
		return nil
	})
}

func (s *cartService) Modify(ctx context.Context, customerID, productID uuid.UUID, qty int) (domain.CartView, error) {
	if qty <= 0 {
		return domain.CartView{}, domain.ErrInvalidQuantity
	}
	return s.mutate(ctx, customerID, func(cart *domain.Cart) error {
		if !cart.Contains(productID) {
			return domain.ErrItemNotInCart
		}
		product, err := s.findProduct(ctx, productID)
		if err != nil {
			return err
		}
		if !product.HasStock(qty) {
			return fmt.Errorf("%w: %s has %d left", domain.ErrInsufficientStock, product.Name, product.Stock)
		}
		return cart.Modify(productID, qty)
	})
}

func (s *cartService) Remove(ctx context.Context, customerID, productID uuid.UUID) (domain.CartView, error) {
	return s.mutate(ctx, customerID, func(cart *domain.Cart) error {
		return cart.Remove(productID)
	})
}

func (s *cartService) Undo(ctx context.Context, customerID uuid.UUID) (domain.CartView, error) {
	return s.travel(ctx, customerID, (*domain.CartHistory).Undo, domain.ErrNothingToUndo)
}

func (s *cartService) Redo(ctx context.Context, customerID uuid.UUID) (domain.CartView, error) {
	return s.travel(ctx, customerID, (*domain.CartHistory).Redo, domain.ErrNothingToRedo)
}

func (s *cartService) HistoryInfo(ctx context.Context, customerID uuid.UUID) (domain.HistoryInfo, error) {
	h, err := s.histories.Load(ctx, customerID)
	if err != nil {
		return domain.HistoryInfo{}, fmt.Errorf("load cart history: %w", err)
	}
	if h == nil {
		h = domain.NewCartHistory(s.capacity)
	}
	return h.Info(), nil
}

// mutate applies fn to the customer's cart, persists the result and pushes
// it onto the history. A customer without history gets the untouched cart
// recorded first so the change can be undone.
func (s *cartService) mutate(ctx context.Context, customerID uuid.UUID, fn func(cart *domain.Cart) error) (domain.CartView, error) {
	unlock := s.locks.Lock(customerID)
	defer unlock()

	cart, err := s.loadCart(ctx, customerID)
	if err != nil {
		return domain.CartView{}, err
	}
	h, err := s.loadHistory(ctx, customerID)
	if err != nil {
		return domain.CartView{}, err
	}
	if h.Len() == 0 {
		h.Push(cart.Snapshot(s.now()))
	}

	if err := fn(cart); err != nil {
		return domain.CartView{}, err
	}

	if err := s.persist(ctx, cart); err != nil {
		return domain.CartView{}, err
	}
	h.Push(cart.Snapshot(s.now()))
	if err := s.histories.Save(ctx, customerID, h); err != nil {
		return domain.CartView{}, fmt.Errorf("save cart history: %w", err)
	}

	return cart.View(), nil
}

func (s *cartService) travel(
	ctx context.Context,
	customerID uuid.UUID,
	move func(*domain.CartHistory) (domain.CartMemento, error),
	empty error,
) (domain.CartView, error) {
	unlock := s.locks.Lock(customerID)
	defer unlock()

	h, err := s.histories.Load(ctx, customerID)
	if err != nil {
		return domain.CartView{}, fmt.Errorf("load cart history: %w", err)
	}
	if h == nil {
		return domain.CartView{}, empty
	}

	m, err := move(h)
	if err != nil {
		return domain.CartView{}, err
	}

	cart := domain.NewCart(customerID, nil)
	cart.Restore(m)
	if err := s.persist(ctx, cart); err != nil {
		return domain.CartView{}, err
	}
	if err := s.histories.Save(ctx, customerID, h); err != nil {
		return domain.CartView{}, fmt.Errorf("save cart history: %w", err)
	}

	s.logger.Debug("cart restored from history",
		zap.String("customer_id", customerID.String()),
		zap.Int("position", h.Position()))
	return cart.View(), nil
}

func (s *cartService) loadCart(ctx context.Context, customerID uuid.UUID) (*domain.Cart, error) {
	items, err := s.carts.ListItems(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return domain.NewCart(customerID, items), nil
}

func (s *cartService) loadHistory(ctx context.Context, customerID uuid.UUID) (*domain.CartHistory, error) {
	h, err := s.histories.Load(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("load cart history: %w", err)
	}
	if h == nil {
		h = domain.NewCartHistory(s.capacity)
	}
	return h, nil
}

func (s *cartService) persist(ctx context.Context, cart *domain.Cart) error {
	err := s.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		return s.carts.ReplaceItems(ctx, tx, cart.CustomerID, cart.Items())
	})
	if err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func (s *cartService) findProduct(ctx context.Context, productID uuid.UUID) (*domain.Product, error) {
	product, err := s.products.FindById(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("find product: %w", err)
	}
	if product == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
	}
	return product, nil
}
