package memory

import (
	"sort"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// addressRepository — in-memory реализация AddressRepository.
type addressRepository struct {
	st *state
}

func (r *addressRepository) Create(address domain.Address) error {
	if err := address.Validate(); err != nil {
		return err
	}
	r.st.addresses[address.ID] = address
	return nil
}

func (r *addressRepository) Get(id string) (domain.Address, error) {
	address, ok := r.st.addresses[id]
	if !ok {
		return domain.Address{}, domain.ErrAddressNotFound
	}
	return address, nil
}

// shippingRepository — in-memory реализация ShippingMethodRepository.
type shippingRepository struct {
	st *state
}

func (r *shippingRepository) Create(method domain.ShippingMethod) error {
	r.st.shipping[method.ID] = method
	return nil
}

func (r *shippingRepository) Get(id string) (domain.ShippingMethod, error) {
	method, ok := r.st.shipping[id]
	if !ok || !method.Active {
		return domain.ShippingMethod{}, domain.ErrShippingMethodNotFound
	}
	return method, nil
}

func (r *shippingRepository) FirstActive() (domain.ShippingMethod, error) {
	active := make([]domain.ShippingMethod, 0)
	for _, method := range r.st.shipping {
		if method.Active {
			active = append(active, method)
		}
	}
	if len(active) == 0 {
		return domain.ShippingMethod{}, domain.ErrShippingMethodNotFound
	}
	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })
	return active[0], nil
}

var _ domain.AddressRepository = (*addressRepository)(nil)
var _ domain.ShippingMethodRepository = (*shippingRepository)(nil)
