package memory

import (
	"sort"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// cartRepository — in-memory реализация CartRepository.
type cartRepository struct {
	st *state
}

func (r *cartRepository) Create(cart domain.Cart) error {
	if err := cart.Owner().Validate(); err != nil {
		return err
	}
	cart.Items = append([]domain.CartItem(nil), cart.Items...)
	r.st.carts[cart.ID] = cart
	return nil
}

func (r *cartRepository) ActiveByOwner(owner domain.CartOwner) (domain.Cart, error) {
	if err := owner.Validate(); err != nil {
		return domain.Cart{}, err
	}
	for _, cart := range r.st.carts {
		if cart.Status != domain.CartStatusActive {
			continue
		}
		if cart.OwnedBy(owner) {
			return r.withSortedItems(cart), nil
		}
	}
	return domain.Cart{}, domain.ErrCartNotFound
}

func (r *cartRepository) Get(id string) (domain.Cart, error) {
	cart, ok := r.st.carts[id]
	if !ok {
		return domain.Cart{}, domain.ErrCartNotFound
	}
	return r.withSortedItems(cart), nil
}

func (r *cartRepository) Item(itemID string) (domain.CartItem, error) {
	for _, cart := range r.st.carts {
		for _, item := range cart.Items {
			if item.ID == itemID {
				return item, nil
			}
		}
	}
	return domain.CartItem{}, domain.ErrCartItemNotFound
}

func (r *cartRepository) UpsertItem(item domain.CartItem) error {
	cart, ok := r.st.carts[item.CartID]
	if !ok {
		return domain.ErrCartNotFound
	}
	if item.Quantity <= 0 {
		return domain.ErrQuantityInvalid
	}

	replaced := false
	for i := range cart.Items {
		if cart.Items[i].ID == item.ID {
			cart.Items[i] = item
			replaced = true
			break
		}
	}
	if !replaced {
		cart.Items = append(cart.Items, item)
	}
	cart.UpdatedAt = time.Now().UTC()
	r.st.carts[cart.ID] = cart
	return nil
}

func (r *cartRepository) DeleteItem(itemID string) error {
	for id, cart := range r.st.carts {
		for i, item := range cart.Items {
			if item.ID != itemID {
				continue
			}
			cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
			cart.UpdatedAt = time.Now().UTC()
			r.st.carts[id] = cart
			return nil
		}
	}
	return domain.ErrCartItemNotFound
}

func (r *cartRepository) ClearItems(cartID string) error {
	cart, ok := r.st.carts[cartID]
	if !ok {
		return domain.ErrCartNotFound
	}
	cart.Items = nil
	cart.UpdatedAt = time.Now().UTC()
	r.st.carts[cartID] = cart
	return nil
}

func (r *cartRepository) SetStatus(cartID string, status domain.CartStatus) error {
	cart, ok := r.st.carts[cartID]
	if !ok {
		return domain.ErrCartNotFound
	}
	cart.Status = status
	cart.UpdatedAt = time.Now().UTC()
	r.st.carts[cartID] = cart
	return nil
}

func (r *cartRepository) AbandonGuestCartsBefore(cutoff time.Time, limit int) (int, error) {
	processed := 0
	for id, cart := range r.st.carts {
		if limit > 0 && processed >= limit {
			break
		}
		if cart.SessionID == "" || cart.Status != domain.CartStatusActive {
			continue
		}
		if !cart.UpdatedAt.Before(cutoff) {
			continue
		}
		cart.Status = domain.CartStatusAbandoned
		r.st.carts[id] = cart
		processed++
	}
	return processed, nil
}

func (r *cartRepository) withSortedItems(cart domain.Cart) domain.Cart {
	items := append([]domain.CartItem(nil), cart.Items...)
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
	cart.Items = items
	return cart
}

var _ domain.CartRepository = (*cartRepository)(nil)
