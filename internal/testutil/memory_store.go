// Package testutil provides in-memory stand-ins for the Postgres store, the
// Kafka publisher and Redis, for service and API tests.
package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"forest-fashion/internal/models"
	"forest-fashion/internal/stock"
	"forest-fashion/internal/store"

	"github.com/shopspring/decimal"
)

// MemoryStore implements every repository of the service package over
// maps. It follows the Postgres store's semantics, including the sentinel
// errors it returns.
type MemoryStore struct {
	mu           sync.Mutex
	products     map[string]models.Product
	orders       map[string]models.Order
	reservations map[string]models.Reservation
	users        map[string]models.User
	resets       map[string]models.PasswordReset
	profiles     map[string]models.Profile
	contacts     map[string]models.Contact
	newsletter   map[string]models.Subscription
	events       map[string]string
	seq          int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products:     map[string]models.Product{},
		orders:       map[string]models.Order{},
		reservations: map[string]models.Reservation{},
		users:        map[string]models.User{},
		resets:       map[string]models.PasswordReset{},
		profiles:     map[string]models.Profile{},
		contacts:     map[string]models.Contact{},
		newsletter:   map[string]models.Subscription{},
		events:       map[string]string{},
	}
}

// tick returns strictly increasing timestamps so ordering by creation time
// is deterministic.
func (m *MemoryStore) tick() time.Time {
	m.seq++
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(m.seq) * time.Second)
}

// cloneProduct deep-copies the nested slices so callers never share them
// with the stored value.
func cloneProduct(p models.Product) models.Product {
	if p.Variants != nil {
		variants := make(models.Variants, len(p.Variants))
		for i, v := range p.Variants {
			v.Sizes = append([]models.SizeStock(nil), v.Sizes...)
			variants[i] = v
		}
		p.Variants = variants
	}
	if p.Images != nil {
		p.Images = append(models.Images(nil), p.Images...)
	}
	return p
}

// Products

func (m *MemoryStore) CreateProduct(_ context.Context, p *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.products {
		if existing.SKU == p.SKU {
			return store.ErrDuplicate
		}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = m.tick()
		p.UpdatedAt = p.CreatedAt
	}
	m.products[p.ID] = cloneProduct(*p)
	return nil
}

// PutProduct stores a product as is, for test setup.
func (m *MemoryStore) PutProduct(p models.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = m.tick()
	}
	m.products[p.ID] = cloneProduct(p)
}

func (m *MemoryStore) GetProductByID(_ context.Context, id string) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	p = cloneProduct(p)
	return &p, nil
}

func (m *MemoryStore) GetProductsByIDs(_ context.Context, ids []string) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Product{}
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, cloneProduct(p))
		}
	}
	return out, nil
}

func (m *MemoryStore) ListProducts(_ context.Context, f models.ProductFilter) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Product{}
	for _, p := range m.products {
		if f.Category != "" && f.Category != "all" && p.Category != f.Category {
			continue
		}
		switch {
		case f.Status != "" && f.Status != "all":
			if p.Status != f.Status {
				continue
			}
		case !f.AllStatuses:
			if p.Status == models.ProductStatusDiscontinued {
				continue
			}
		}
		if f.Featured != nil && p.Featured != *f.Featured {
			continue
		}
		out = append(out, cloneProduct(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *MemoryStore) UpdateProduct(_ context.Context, id string, apply func(current *models.Product) (*models.Product, error)) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	current := cloneProduct(existing)
	p, err := apply(&current)
	if err != nil {
		return nil, err
	}
	p.ID = id
	for other, product := range m.products {
		if other != id && product.SKU == p.SKU {
			return nil, store.ErrDuplicate
		}
	}
	m.products[id] = cloneProduct(*p)
	out := cloneProduct(*p)
	return &out, nil
}

func (m *MemoryStore) DeleteProduct(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *MemoryStore) ListVariantProducts(_ context.Context) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Product{}
	for _, p := range m.products {
		if len(p.Variants) > 0 {
			out = append(out, cloneProduct(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Reservations

func (m *MemoryStore) ReserveStockTx(_ context.Context, r *models.Reservation) (models.SizeStock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[r.ProductID]
	if !ok {
		return models.SizeStock{}, store.ErrNotFound
	}
	p = cloneProduct(p)
	entry, err := stock.Reserve(p.Variants, r.Color, r.Size, r.Quantity)
	if err != nil {
		return entry, err
	}
	m.products[p.ID] = p

	now := m.tick()
	r.Status = models.ReservationHeld
	r.CreatedAt, r.UpdatedAt = now, now
	m.reservations[r.Token] = *r
	return entry, nil
}

func (m *MemoryStore) ReleaseReservationTx(_ context.Context, token string) (*models.Reservation, *models.SizeStock, error) {
	return m.settle(token, models.ReservationReleased, stock.Release)
}

func (m *MemoryStore) CommitReservationTx(_ context.Context, token string) (*models.Reservation, *models.SizeStock, error) {
	return m.settle(token, models.ReservationCommitted, stock.Commit)
}

func (m *MemoryStore) settle(token, final string, apply func(models.Variants, string, string, int) (models.SizeStock, error)) (*models.Reservation, *models.SizeStock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[token]
	if !ok {
		return nil, nil, store.ErrNotFound
	}
	if r.Status != models.ReservationHeld {
		return &r, nil, nil
	}

	var changed *models.SizeStock
	if p, ok := m.products[r.ProductID]; ok {
		p = cloneProduct(p)
		entry, err := apply(p.Variants, r.Color, r.Size, r.Quantity)
		if err != nil && !errors.Is(err, stock.ErrUnavailable) {
			return nil, nil, err
		}
		if err == nil {
			m.products[p.ID] = p
			changed = &entry
		}
	}

	r.Status = final
	r.UpdatedAt = m.tick()
	m.reservations[token] = r
	return &r, changed, nil
}

func (m *MemoryStore) AttachReservations(_ context.Context, orderID string, tokens []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, token := range tokens {
		r, ok := m.reservations[token]
		if !ok || r.Status != models.ReservationHeld || r.OrderID != nil {
			continue
		}
		id := orderID
		r.OrderID = &id
		r.ExpiresAt = nil
		m.reservations[token] = r
	}
	return nil
}

func (m *MemoryStore) GetReservation(_ context.Context, token string) (*models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[token]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

func (m *MemoryStore) GetReservationsByOrder(_ context.Context, orderID string) ([]models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Reservation{}
	for _, r := range m.reservations {
		if r.OrderID != nil && *r.OrderID == orderID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) ListExpiredReservations(_ context.Context, now time.Time, limit int) ([]models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Reservation{}
	for _, r := range m.reservations {
		if r.Status == models.ReservationHeld && r.OrderID == nil && r.ExpiresAt != nil && !r.ExpiresAt.After(now) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(*out[j].ExpiresAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// HeldReservations counts reservations still in the held state.
func (m *MemoryStore) HeldReservations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.reservations {
		if r.Status == models.ReservationHeld {
			n++
		}
	}
	return n
}

// Orders

func (m *MemoryStore) CreateOrder(_ context.Context, o *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.IdempotencyKey != nil {
		for _, existing := range m.orders {
			if existing.IdempotencyKey != nil && *existing.IdempotencyKey == *o.IdempotencyKey {
				return store.ErrDuplicate
			}
		}
	}
	now := m.tick()
	o.CreatedAt, o.UpdatedAt = now, now
	m.orders[o.ID] = *o
	return nil
}

// PutOrder stores an order as is, for test setup.
func (m *MemoryStore) PutOrder(o models.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = m.tick()
	}
	m.orders[o.ID] = o
}

func (m *MemoryStore) GetOrderByID(_ context.Context, id string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &o, nil
}

func (m *MemoryStore) GetOrderByIdempotencyKey(_ context.Context, key string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.IdempotencyKey != nil && *o.IdempotencyKey == key {
			return &o, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) ListOrders(_ context.Context, userID *string) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedOrders(func(o models.Order) bool {
		return userID == nil || (o.UserID != nil && *o.UserID == *userID)
	}), nil
}

func (m *MemoryStore) sortedOrders(keep func(models.Order) bool) []models.Order {
	out := []models.Order{}
	for _, o := range m.orders {
		if keep(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *MemoryStore) UpdateOrderStatus(_ context.Context, orderID, status, paymentStatus string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if status != "" {
		o.Status = status
	}
	if paymentStatus != "" {
		o.PaymentStatus = paymentStatus
	}
	o.UpdatedAt = m.tick()
	m.orders[orderID] = o
	return &o, nil
}

func (m *MemoryStore) FixLegacyOrders(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, o := range m.orders {
		if o.PaymentMethod != "" && o.PaymentStatus != "" {
			continue
		}
		if o.PaymentMethod == "" {
			o.PaymentMethod = models.PaymentMethodCashOnDelivery
		}
		if o.PaymentStatus == "" {
			o.PaymentStatus = models.PaymentStatusPending
		}
		m.orders[id] = o
		n++
	}
	return n, nil
}

// Users

func (m *MemoryStore) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return store.ErrDuplicate
		}
	}
	u.CreatedAt = m.tick()
	m.users[u.ID] = *u
	return nil
}

func (m *MemoryStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (m *MemoryStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *MemoryStore) GetUsersByIDs(_ context.Context, ids []string) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.User{}
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *MemoryStore) UpdateUserPassword(_ context.Context, userID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.PasswordHash = hash
	m.users[userID] = u
	return nil
}

func (m *MemoryStore) AdminExists(_ context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Role == models.RoleAdmin {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) ReplacePasswordReset(_ context.Context, r *models.PasswordReset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for token, existing := range m.resets {
		if existing.UserID == r.UserID {
			delete(m.resets, token)
		}
	}
	m.resets[r.Token] = *r
	return nil
}

func (m *MemoryStore) GetPasswordReset(_ context.Context, token string) (*models.PasswordReset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resets[token]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

func (m *MemoryStore) DeletePasswordReset(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.resets, token)
	return nil
}

// Profiles

func (m *MemoryStore) GetProfile(_ context.Context, userID string) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (m *MemoryStore) UpsertProfile(_ context.Context, p *models.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.tick()
	if existing, ok := m.profiles[p.UserID]; ok {
		p.CreatedAt = existing.CreatedAt
	} else {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	m.profiles[p.UserID] = *p
	return nil
}

// Contacts and newsletter

func (m *MemoryStore) CreateContact(_ context.Context, c *models.Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.CreatedAt = m.tick()
	m.contacts[c.ID] = *c
	return nil
}

func (m *MemoryStore) ListContacts(_ context.Context) ([]models.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Contact{}
	for _, c := range m.contacts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) UpdateContactStatus(_ context.Context, id, status string) (*models.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c.Status = status
	m.contacts[id] = c
	return &c, nil
}

func (m *MemoryStore) GetSubscription(_ context.Context, email string) (*models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.newsletter[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &s, nil
}

func (m *MemoryStore) CreateSubscription(_ context.Context, s *models.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.newsletter[s.Email]; ok {
		return store.ErrDuplicate
	}
	s.CreatedAt = m.tick()
	m.newsletter[s.Email] = *s
	return nil
}

func (m *MemoryStore) SetSubscribed(_ context.Context, email string, subscribed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.newsletter[email]
	if !ok {
		return store.ErrNotFound
	}
	s.Subscribed = subscribed
	m.newsletter[email] = s
	return nil
}

// Stats

func (m *MemoryStore) CountProducts(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.products), nil
}

func (m *MemoryStore) CountOrders(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders), nil
}

func (m *MemoryStore) CountUsers(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users), nil
}

func (m *MemoryStore) Revenue(_ context.Context) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := decimal.Zero
	for _, o := range m.orders {
		if o.Status != models.OrderStatusCancelled {
			total = total.Add(o.Total)
		}
	}
	return total, nil
}

func (m *MemoryStore) RecentOrders(_ context.Context, limit int) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.sortedOrders(func(models.Order) bool { return true })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) TopProducts(_ context.Context, limit int) ([]models.TopProduct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[string]int{}
	for _, o := range m.orders {
		for _, item := range o.Items {
			if _, ok := m.products[item.ProductID]; ok {
				counts[item.ProductID] += item.Quantity
			}
		}
	}
	out := make([]models.TopProduct, 0, len(counts))
	for id, n := range counts {
		out = append(out, models.TopProduct{ProductID: id, Count: n, Product: cloneProduct(m.products[id])})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].ProductID < out[j].ProductID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Processed events

func (m *MemoryStore) IsEventProcessed(_ context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.events[eventID]
	return ok, nil
}

func (m *MemoryStore) MarkEventProcessed(_ context.Context, eventID, eventType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[eventID] = eventType
	return nil
}
