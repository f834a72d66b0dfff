package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/order-enricher/internal/domain"
)

const (
	opTimeout = 5 * time.Second

	selectOrderColumns = `
		SELECT o.order_id, o.order_timestamp, o.customer_id, o.customer_name,
		       o.customer_street, o.customer_zip, o.customer_country, o.total_price
		FROM enriched_orders o`
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

// Save выполняет upsert заказа и полностью заменяет его список товаров в одной транзакции.
func (r *orderRepository) Save(ctx context.Context, order domain.EnrichedOrder) (err error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.NewPersistenceError("begin tx", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO enriched_orders (
			order_id, order_timestamp, customer_id, customer_name,
			customer_street, customer_zip, customer_country, total_price, saved_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW())
		ON CONFLICT (order_id) DO UPDATE SET
			order_timestamp  = EXCLUDED.order_timestamp,
			customer_id      = EXCLUDED.customer_id,
			customer_name    = EXCLUDED.customer_name,
			customer_street  = EXCLUDED.customer_street,
			customer_zip     = EXCLUDED.customer_zip,
			customer_country = EXCLUDED.customer_country,
			total_price      = EXCLUDED.total_price,
			saved_at         = NOW()
	`,
		order.OrderID, order.Timestamp.UTC(), order.Customer.CustomerID, order.Customer.Name,
		order.Customer.Street, order.Customer.Zip, order.Customer.Country, order.TotalPrice,
	)
	if err != nil {
		return domain.NewPersistenceError("upsert order", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM enriched_order_products WHERE order_id = $1`, order.OrderID); err != nil {
		return domain.NewPersistenceError("replace order products", err)
	}

	for i, product := range order.Products {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO enriched_order_products (
				order_id, position, product_id, name, price, category, tags
			) VALUES ($1,$2,$3,$4,$5,$6,$7)
		`,
			order.OrderID, i, product.ProductID, product.Name, product.Price, product.Category, encodeTags(product.Tags),
		); err != nil {
			return domain.NewPersistenceError("insert order product", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return domain.NewPersistenceError("commit save order", err)
	}

	return nil
}

func (r *orderRepository) Get(ctx context.Context, orderID string) (domain.EnrichedOrder, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	order, err := scanOrder(r.db.QueryRowContext(ctx, selectOrderColumns+`
		WHERE o.order_id = $1
	`, orderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.EnrichedOrder{}, domain.ErrOrderNotFound
		}
		return domain.EnrichedOrder{}, domain.NewPersistenceError("select order", err)
	}

	products, err := r.loadProducts(ctx, []string{order.OrderID})
	if err != nil {
		return domain.EnrichedOrder{}, err
	}
	order.Products = productsOf(products, order.OrderID)

	return order, nil
}

func (r *orderRepository) List(ctx context.Context) ([]domain.EnrichedOrder, error) {
	return r.FindByCriteria(ctx, domain.OrderCriteria{})
}

// FindByCriteria строит один запрос с опциональными фильтрами.
// Фильтр по товару проверяется через EXISTS, поэтому заказ не дублируется,
// даже если товар встречается в нём несколько раз.
func (r *orderRepository) FindByCriteria(ctx context.Context, criteria domain.OrderCriteria) ([]domain.EnrichedOrder, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, selectOrderColumns+`
		WHERE ($1::text IS NULL OR o.customer_id = $1::text)
		  AND ($2::text IS NULL OR EXISTS (
		        SELECT 1 FROM enriched_order_products p
		        WHERE p.order_id = o.order_id AND p.product_id = $2::text
		  ))
		ORDER BY o.seq ASC
	`, nullableString(criteria.CustomerID), nullableString(criteria.ProductID))
	if err != nil {
		return nil, domain.NewPersistenceError("find orders", err)
	}
	defer rows.Close()

	orders := make([]domain.EnrichedOrder, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, domain.NewPersistenceError("scan order row", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewPersistenceError("iterate order rows", err)
	}
	rows.Close()

	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]string, len(orders))
	for i := range orders {
		ids[i] = orders[i].OrderID
	}
	products, err := r.loadProducts(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Products = productsOf(products, orders[i].OrderID)
	}

	return orders, nil
}

// loadProducts одним запросом читает товары всех переданных заказов и группирует их по order_id.
func (r *orderRepository) loadProducts(ctx context.Context, orderIDs []string) (map[string][]domain.ProductInfo, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id, product_id, name, price, category, tags
		FROM enriched_order_products
		WHERE order_id = ANY($1)
		ORDER BY order_id, position ASC
	`, orderIDs)
	if err != nil {
		return nil, domain.NewPersistenceError("load order products", err)
	}
	defer rows.Close()

	byOrder := make(map[string][]domain.ProductInfo, len(orderIDs))
	for rows.Next() {
		var (
			orderID string
			product domain.ProductInfo
			tags    sql.NullString
		)
		if err := rows.Scan(&orderID, &product.ProductID, &product.Name, &product.Price, &product.Category, &tags); err != nil {
			return nil, domain.NewPersistenceError("scan order product", err)
		}
		product.Tags = decodeTags(tags)
		byOrder[orderID] = append(byOrder[orderID], product)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewPersistenceError("iterate order products", err)
	}

	return byOrder, nil
}

// productsOf возвращает непустой срез, даже если у заказа нет товаров.
func productsOf(byOrder map[string][]domain.ProductInfo, orderID string) []domain.ProductInfo {
	if products, ok := byOrder[orderID]; ok {
		return products
	}
	return make([]domain.ProductInfo, 0)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.EnrichedOrder, error) {
	var (
		order domain.EnrichedOrder
		total decimal.Decimal
	)
	if err := row.Scan(
		&order.OrderID, &order.Timestamp, &order.Customer.CustomerID, &order.Customer.Name,
		&order.Customer.Street, &order.Customer.Zip, &order.Customer.Country, &total,
	); err != nil {
		return domain.EnrichedOrder{}, err
	}
	order.Timestamp = order.Timestamp.UTC()
	order.TotalPrice = total
	return order, nil
}

func nullableString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ domain.OrderRepository = (*orderRepository)(nil)
