package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"medcart/internal/domain"
)

func nowUTC() time.Time { return time.Now().UTC() }

// OpenSQLite открывает базу в режиме WAL с таймаутом ожидания блокировки
func OpenSQLite(path string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	email TEXT NOT NULL UNIQUE,
	phone TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	verified INTEGER NOT NULL DEFAULT 0,
	verify_token TEXT NOT NULL DEFAULT '',
	reset_token TEXT NOT NULL DEFAULT '',
	reset_token_expires TIMESTAMP,
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS sessions (
	token TEXT PRIMARY KEY,
	user_id INTEGER NOT NULL,
	role TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	expires_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS categories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS products (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	sku TEXT NOT NULL UNIQUE,
	price TEXT NOT NULL,
	stock INTEGER NOT NULL DEFAULT 0,
	category_id INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS orders (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	code TEXT NOT NULL UNIQUE,
	user_id INTEGER NOT NULL DEFAULT 0,
	total TEXT NOT NULL,
	status TEXT NOT NULL,
	payment_intent_id TEXT NOT NULL DEFAULT '',
	paid_by TEXT NOT NULL DEFAULT '',
	staff_comment TEXT NOT NULL DEFAULT '',
	staff_actor_id INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS order_items (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	order_id INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
	product_id INTEGER NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	quantity INTEGER NOT NULL,
	unit_price TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id);
CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id);
CREATE TABLE IF NOT EXISTS addresses (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL UNIQUE,
	line1 TEXT NOT NULL,
	line2 TEXT NOT NULL DEFAULT '',
	city TEXT NOT NULL,
	state TEXT NOT NULL,
	zip TEXT NOT NULL
);`

// InitSchema создаёт таблицы при первом запуске
func InitSchema(db *sqlx.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("schema init failed: %w", err)
	}
	return nil
}

// SQLStore хранилище поверх sqlite; реализует ProductRepository,
// остальные репозитории — обёртки по образцу in-memory варианта
type SQLStore struct {
	db *sqlx.DB
}

func NewSQLStore(db *sqlx.DB) *SQLStore { return &SQLStore{db: db} }

type sqlTxKey struct{}

// ext возвращает активную транзакцию из контекста либо само соединение
func (s *SQLStore) ext(ctx context.Context) sqlx.ExtContext {
	if tx, ok := ctx.Value(sqlTxKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return s.db
}

// translateErr приводит ошибки драйвера к ошибкам репозитория
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
		return ErrDuplicate
	}
	return err
}

var _ ProductRepository = (*SQLStore)(nil)

func (s *SQLStore) Create(ctx context.Context, p *domain.Product) error {
	res, err := s.ext(ctx).ExecContext(ctx,
		`INSERT INTO products (name, sku, price, stock, category_id) VALUES (?, ?, ?, ?, ?)`,
		p.Name, p.SKU, p.Price, p.Stock, p.CategoryID)
	if err != nil {
		return translateErr(err)
	}
	p.ID, err = res.LastInsertId()
	return err
}

func (s *SQLStore) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	err := sqlx.GetContext(ctx, s.ext(ctx), &p, `SELECT * FROM products WHERE id = ?`, id)
	if err != nil {
		return nil, translateErr(err)
	}
	return &p, nil
}

func (s *SQLStore) Update(ctx context.Context, p *domain.Product) error {
	res, err := s.ext(ctx).ExecContext(ctx,
		`UPDATE products SET name = ?, sku = ?, price = ?, stock = ?, category_id = ? WHERE id = ?`,
		p.Name, p.SKU, p.Price, p.Stock, p.CategoryID, p.ID)
	if err != nil {
		return translateErr(err)
	}
	return requireRow(res)
}

func (s *SQLStore) Delete(ctx context.Context, id int64) error {
	res, err := s.ext(ctx).ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return translateErr(err)
	}
	return requireRow(res)
}

func (s *SQLStore) List(ctx context.Context, f ProductFilter) ([]domain.Product, error) {
	q := `SELECT * FROM products WHERE 1=1`
	args := make([]interface{}, 0, 4)
	if f.NameSubstring != "" {
		q += ` AND name LIKE ?`
		args = append(args, "%"+f.NameSubstring+"%")
	}
	if f.CategoryID != nil {
		q += ` AND category_id = ?`
		args = append(args, *f.CategoryID)
	}
	if f.MinPrice != nil {
		q += ` AND CAST(price AS REAL) >= ?`
		args = append(args, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		q += ` AND CAST(price AS REAL) <= ?`
		args = append(args, *f.MaxPrice)
	}
	q += ` ORDER BY id`
	out := make([]domain.Product, 0)
	if err := sqlx.SelectContext(ctx, s.ext(ctx), &out, q, args...); err != nil {
		return nil, translateErr(err)
	}
	return out, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SQLCategories репозиторий категорий
type SQLCategories struct{ store *SQLStore }

func NewSQLCategories(store *SQLStore) *SQLCategories { return &SQLCategories{store: store} }

var _ CategoryRepository = (*SQLCategories)(nil)

func (sc *SQLCategories) Create(ctx context.Context, c *domain.Category) error {
	res, err := sc.store.ext(ctx).ExecContext(ctx, `INSERT INTO categories (name) VALUES (?)`, c.Name)
	if err != nil {
		return translateErr(err)
	}
	c.ID, err = res.LastInsertId()
	return err
}

func (sc *SQLCategories) GetByID(ctx context.Context, id int64) (*domain.Category, error) {
	var c domain.Category
	if err := sqlx.GetContext(ctx, sc.store.ext(ctx), &c, `SELECT * FROM categories WHERE id = ?`, id); err != nil {
		return nil, translateErr(err)
	}
	return &c, nil
}

func (sc *SQLCategories) List(ctx context.Context) ([]domain.Category, error) {
	out := make([]domain.Category, 0)
	if err := sqlx.SelectContext(ctx, sc.store.ext(ctx), &out, `SELECT * FROM categories ORDER BY id`); err != nil {
		return nil, translateErr(err)
	}
	return out, nil
}

// SQLOrders репозиторий заказов; позиции хранятся в order_items
type SQLOrders struct{ store *SQLStore }

func NewSQLOrders(store *SQLStore) *SQLOrders { return &SQLOrders{store: store} }

var _ OrderRepository = (*SQLOrders)(nil)

func (so *SQLOrders) Create(ctx context.Context, o *domain.Order) error {
	now := nowUTC()
	o.CreatedAt = now
	o.UpdatedAt = now
	res, err := so.store.ext(ctx).ExecContext(ctx,
		`INSERT INTO orders (code, user_id, total, status, payment_intent_id, paid_by, staff_comment, staff_actor_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.Code, o.UserID, o.Total, o.Status, o.PaymentIntentID, o.PaidBy, o.StaffComment, o.StaffActorID, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return translateErr(err)
	}
	if o.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	for _, it := range o.Items {
		if _, err := so.store.ext(ctx).ExecContext(ctx,
			`INSERT INTO order_items (order_id, product_id, name, quantity, unit_price) VALUES (?, ?, ?, ?, ?)`,
			o.ID, it.ProductID, it.Name, it.Quantity, it.UnitPrice); err != nil {
			return fmt.Errorf("failed to insert order item for product %d: %w", it.ProductID, err)
		}
	}
	return nil
}

func (so *SQLOrders) getWhere(ctx context.Context, where string, arg interface{}) (*domain.Order, error) {
	var o domain.Order
	if err := sqlx.GetContext(ctx, so.store.ext(ctx), &o, `SELECT * FROM orders WHERE `+where, arg); err != nil {
		return nil, translateErr(err)
	}
	if err := so.loadItems(ctx, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (so *SQLOrders) loadItems(ctx context.Context, o *domain.Order) error {
	items := make([]domain.OrderItem, 0)
	err := sqlx.SelectContext(ctx, so.store.ext(ctx), &items,
		`SELECT product_id, name, quantity, unit_price FROM order_items WHERE order_id = ? ORDER BY id`, o.ID)
	if err != nil {
		return translateErr(err)
	}
	o.Items = items
	return nil
}

func (so *SQLOrders) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	return so.getWhere(ctx, `id = ?`, id)
}

func (so *SQLOrders) GetByCode(ctx context.Context, code string) (*domain.Order, error) {
	return so.getWhere(ctx, `code = ?`, code)
}

func (so *SQLOrders) GetByIntentID(ctx context.Context, intentID string) (*domain.Order, error) {
	if intentID == "" {
		return nil, ErrNotFound
	}
	return so.getWhere(ctx, `payment_intent_id = ?`, intentID)
}

func (so *SQLOrders) Update(ctx context.Context, o *domain.Order) error {
	o.UpdatedAt = nowUTC()
	res, err := so.store.ext(ctx).ExecContext(ctx,
		`UPDATE orders SET status = ?, payment_intent_id = ?, paid_by = ?, staff_comment = ?, staff_actor_id = ?, updated_at = ? WHERE id = ?`,
		o.Status, o.PaymentIntentID, o.PaidBy, o.StaffComment, o.StaffActorID, o.UpdatedAt, o.ID)
	if err != nil {
		return translateErr(err)
	}
	return requireRow(res)
}

func (so *SQLOrders) List(ctx context.Context, f OrderFilter) ([]domain.Order, error) {
	q := `SELECT * FROM orders WHERE 1=1`
	args := make([]interface{}, 0, 2)
	if f.UserID != nil {
		q += ` AND user_id = ?`
		args = append(args, *f.UserID)
	}
	if f.Status != nil {
		q += ` AND status = ?`
		args = append(args, *f.Status)
	}
	q += ` ORDER BY id`
	out := make([]domain.Order, 0)
	if err := sqlx.SelectContext(ctx, so.store.ext(ctx), &out, q, args...); err != nil {
		return nil, translateErr(err)
	}
	for i := range out {
		if err := so.loadItems(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// SQLUsers репозиторий пользователей
type SQLUsers struct{ store *SQLStore }

func NewSQLUsers(store *SQLStore) *SQLUsers { return &SQLUsers{store: store} }

var _ UserRepository = (*SQLUsers)(nil)

func (su *SQLUsers) Create(ctx context.Context, u *domain.User) error {
	u.CreatedAt = nowUTC()
	res, err := su.store.ext(ctx).ExecContext(ctx,
		`INSERT INTO users (email, phone, name, role, password_hash, verified, verify_token, reset_token, reset_token_expires, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Email, u.Phone, u.Name, u.Role, u.PasswordHash, u.Verified, u.VerifyToken, u.ResetToken, u.ResetTokenExpires, u.CreatedAt)
	if err != nil {
		return translateErr(err)
	}
	u.ID, err = res.LastInsertId()
	return err
}

func (su *SQLUsers) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	if err := sqlx.GetContext(ctx, su.store.ext(ctx), &u, `SELECT * FROM users WHERE id = ?`, id); err != nil {
		return nil, translateErr(err)
	}
	return &u, nil
}

func (su *SQLUsers) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	if err := sqlx.GetContext(ctx, su.store.ext(ctx), &u, `SELECT * FROM users WHERE email = ?`, email); err != nil {
		return nil, translateErr(err)
	}
	return &u, nil
}

func (su *SQLUsers) GetByVerifyToken(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	var u domain.User
	if err := sqlx.GetContext(ctx, su.store.ext(ctx), &u, `SELECT * FROM users WHERE verify_token = ?`, token); err != nil {
		return nil, translateErr(err)
	}
	return &u, nil
}

func (su *SQLUsers) Update(ctx context.Context, u *domain.User) error {
	res, err := su.store.ext(ctx).ExecContext(ctx,
		`UPDATE users SET email = ?, phone = ?, name = ?, role = ?, password_hash = ?, verified = ?, verify_token = ?, reset_token = ?, reset_token_expires = ? WHERE id = ?`,
		u.Email, u.Phone, u.Name, u.Role, u.PasswordHash, u.Verified, u.VerifyToken, u.ResetToken, u.ResetTokenExpires, u.ID)
	if err != nil {
		return translateErr(err)
	}
	return requireRow(res)
}

// SQLAddresses репозиторий адресов
type SQLAddresses struct{ store *SQLStore }

func NewSQLAddresses(store *SQLStore) *SQLAddresses { return &SQLAddresses{store: store} }

var _ AddressRepository = (*SQLAddresses)(nil)

func (sa *SQLAddresses) Create(ctx context.Context, a *domain.Address) error {
	res, err := sa.store.ext(ctx).ExecContext(ctx,
		`INSERT INTO addresses (user_id, line1, line2, city, state, zip) VALUES (?, ?, ?, ?, ?, ?)`,
		a.UserID, a.Line1, a.Line2, a.City, a.State, a.Zip)
	if err != nil {
		return translateErr(err)
	}
	a.ID, err = res.LastInsertId()
	return err
}

func (sa *SQLAddresses) GetByUserID(ctx context.Context, userID int64) (*domain.Address, error) {
	var a domain.Address
	if err := sqlx.GetContext(ctx, sa.store.ext(ctx), &a, `SELECT * FROM addresses WHERE user_id = ?`, userID); err != nil {
		return nil, translateErr(err)
	}
	return &a, nil
}

func (sa *SQLAddresses) Update(ctx context.Context, a *domain.Address) error {
	res, err := sa.store.ext(ctx).ExecContext(ctx,
		`UPDATE addresses SET line1 = ?, line2 = ?, city = ?, state = ?, zip = ? WHERE user_id = ?`,
		a.Line1, a.Line2, a.City, a.State, a.Zip, a.UserID)
	if err != nil {
		return translateErr(err)
	}
	return requireRow(res)
}

// SQLSessions хранилище сессий
type SQLSessions struct{ store *SQLStore }

func NewSQLSessions(store *SQLStore) *SQLSessions { return &SQLSessions{store: store} }

var _ SessionRepository = (*SQLSessions)(nil)

func (ss *SQLSessions) Create(ctx context.Context, s *domain.Session) error {
	_, err := ss.store.ext(ctx).ExecContext(ctx,
		`INSERT INTO sessions (token, user_id, role, email, phone, expires_at) VALUES (?, ?, ?, ?, ?, ?)`,
		s.Token, s.UserID, s.Role, s.Email, s.Phone, s.ExpiresAt)
	return translateErr(err)
}

func (ss *SQLSessions) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	var s domain.Session
	if err := sqlx.GetContext(ctx, ss.store.ext(ctx), &s, `SELECT * FROM sessions WHERE token = ?`, token); err != nil {
		return nil, translateErr(err)
	}
	return &s, nil
}

func (ss *SQLSessions) Delete(ctx context.Context, token string) error {
	res, err := ss.store.ext(ctx).ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	if err != nil {
		return translateErr(err)
	}
	return requireRow(res)
}

// SQLTx транзакции sqlite; кладёт *sqlx.Tx в контекст для репозиториев
type SQLTx struct{ store *SQLStore }

func NewSQLTx(store *SQLStore) *SQLTx { return &SQLTx{store: store} }

var _ TxManager = (*SQLTx)(nil)

func (t *SQLTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := t.store.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	ctx = context.WithValue(ctx, sqlTxKey{}, tx)
	if err := fn(ctx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original: %w)", rbErr, err)
		}
		return err
	}
	return tx.Commit()
}
