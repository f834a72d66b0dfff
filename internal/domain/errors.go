package domain

import (
	"errors"
	"fmt"
)

var (
	// Ошибка отсутствующего идентификатора заказа.
	ErrOrderIDRequired = errors.New("order_id is required")
	// Ошибка отсутствующего идентификатора клиента.
	ErrCustomerRequired = errors.New("customer_id is required")
	// Ошибка отсутствия хотя бы одного товара в заказе.
	ErrProductsRequired = errors.New("order must contain at least one product id")
	// Ошибка пустого идентификатора товара.
	ErrProductIDBlank = errors.New("product id must not be blank")
	// ErrInvalidRequest оборачивает все ошибки валидации входящего заказа.
	ErrInvalidRequest = errors.New("invalid order request")
	// ErrOrderNotFound возвращается хранилищем, если заказа нет.
	ErrOrderNotFound = errors.New("order not found")

	// ErrNotFound — запрошенный клиент или товар не существует во внешнем сервисе.
	ErrNotFound = errors.New("resource not found")
	// ErrUnavailable — внешний сервис недоступен или ответил неожиданно.
	ErrUnavailable = errors.New("service unavailable")
	// ErrPersistence — ошибка хранилища, не связанная с внешними сервисами.
	ErrPersistence = errors.New("persistence failure")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// Ресурсы внешних сервисов.
const (
	ResourceCustomer = "Customer"
	ResourceProduct  = "Product"
)

// NotFoundError сообщает, что внешний сервис ответил «не найдено» по идентификатору.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID '%s' not found.", e.Resource, e.ID)
}

// Is позволяет сравнивать через errors.Is(err, ErrNotFound).
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError создаёт ошибку отсутствия ресурса.
func NewNotFoundError(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// UnavailableError сообщает о любой другой ошибке внешнего сервиса.
type UnavailableError struct {
	Resource string
	Cause    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s service is currently unavailable.", e.Resource)
}

// Is позволяет сравнивать через errors.Is(err, ErrUnavailable).
func (e *UnavailableError) Is(target error) bool {
	return target == ErrUnavailable
}

func (e *UnavailableError) Unwrap() error {
	return e.Cause
}

// NewUnavailableError создаёт ошибку недоступности сервиса.
func NewUnavailableError(resource string, cause error) error {
	return &UnavailableError{Resource: resource, Cause: cause}
}

// PersistenceError оборачивает ошибки хранилища.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

// Is позволяет сравнивать через errors.Is(err, ErrPersistence).
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NewPersistenceError создаёт ошибку хранилища для операции op.
func NewPersistenceError(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}

// IsNotFound проверяет, является ли ошибка «ресурс не найден».
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnavailable проверяет, является ли ошибка недоступностью внешнего сервиса.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
