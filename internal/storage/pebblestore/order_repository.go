// Package pebblestore хранит обогащённые заказы во встраиваемом key-value хранилище Pebble.
// Заказ лежит одним JSON-значением под ключом "order/<id>"; выборки обходят префикс целиком.
package pebblestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/vladislavdragonenkov/order-enricher/internal/domain"
)

const orderKeyPrefix = "order/"

// Store владеет экземпляром Pebble.
type Store struct {
	db *pebble.DB
}

// Open открывает (или создаёт) хранилище в каталоге dir.
func Open(dir string) (*Store, error) {
	return open(filepath.Clean(dir), nil)
}

// OpenInMemory открывает хранилище поверх vfs.NewMem; используется в тестах и демо-режиме.
func OpenInMemory() (*Store, error) {
	return open("", vfs.NewMem())
}

func open(dir string, fs vfs.FS) (*Store, error) {
	opts := &pebble.Options{FS: fs}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &Store{db: db}, nil
}

// Ping проверяет, что хранилище открыто и читается.
func (s *Store) Ping(_ context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("pebble store is not initialized")
	}
	_, closer, err := s.db.Get([]byte(orderKeyPrefix))
	if err == nil {
		return closer.Close()
	}
	if errors.Is(err, pebble.ErrNotFound) {
		return nil
	}
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type orderRepository struct {
	db *pebble.DB
}

// NewOrderRepository создаёт Pebble-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.db}
}

func orderKey(id string) []byte {
	return []byte(orderKeyPrefix + id)
}

// Save перезаписывает значение целиком; Set в Pebble атомарен.
func (r *orderRepository) Save(ctx context.Context, order domain.EnrichedOrder) error {
	if err := ctx.Err(); err != nil {
		return domain.NewPersistenceError("save order", err)
	}

	value, err := json.Marshal(order)
	if err != nil {
		return domain.NewPersistenceError("encode order", err)
	}
	if err := r.db.Set(orderKey(order.OrderID), value, pebble.Sync); err != nil {
		return domain.NewPersistenceError("save order", err)
	}
	return nil
}

func (r *orderRepository) Get(ctx context.Context, orderID string) (domain.EnrichedOrder, error) {
	if err := ctx.Err(); err != nil {
		return domain.EnrichedOrder{}, domain.NewPersistenceError("get order", err)
	}

	value, closer, err := r.db.Get(orderKey(orderID))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return domain.EnrichedOrder{}, domain.ErrOrderNotFound
		}
		return domain.EnrichedOrder{}, domain.NewPersistenceError("get order", err)
	}
	defer closer.Close()

	order, err := decodeOrder(value)
	if err != nil {
		return domain.EnrichedOrder{}, domain.NewPersistenceError("decode order", err)
	}
	return order, nil
}

func (r *orderRepository) List(ctx context.Context) ([]domain.EnrichedOrder, error) {
	return r.FindByCriteria(ctx, domain.OrderCriteria{})
}

// FindByCriteria обходит префикс заказов в порядке ключей (по OrderID).
func (r *orderRepository) FindByCriteria(ctx context.Context, criteria domain.OrderCriteria) ([]domain.EnrichedOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewPersistenceError("find orders", err)
	}

	iter, err := r.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(orderKeyPrefix),
		UpperBound: prefixUpperBound([]byte(orderKeyPrefix)),
	})
	if err != nil {
		return nil, domain.NewPersistenceError("open iterator", err)
	}
	defer iter.Close()

	result := make([]domain.EnrichedOrder, 0)
	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, domain.NewPersistenceError("find orders", err)
		}
		order, err := decodeOrder(iter.Value())
		if err != nil {
			return nil, domain.NewPersistenceError("decode order", err)
		}
		if criteria.Matches(order) {
			result = append(result, order)
		}
	}
	if err := iter.Error(); err != nil {
		return nil, domain.NewPersistenceError("iterate orders", err)
	}
	return result, nil
}

func decodeOrder(value []byte) (domain.EnrichedOrder, error) {
	var order domain.EnrichedOrder
	if err := json.Unmarshal(value, &order); err != nil {
		return domain.EnrichedOrder{}, err
	}
	return order, nil
}

// prefixUpperBound возвращает наименьший ключ, больший любого ключа с данным префиксом.
func prefixUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

var _ domain.OrderRepository = (*orderRepository)(nil)
