package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/db"
	"github.com/jackc/pgx/v5"
)

const (
	userColumns    = `id, email, password_hash, full_name, phone, role, created_at`
	addressColumns = `id, user_id, full_name, phone, address_line1, address_line2, city, state, zip_code, country`
)

type Repository interface {
	CreateUserTx(ctx context.Context, q db.Querier, u *User) error
	GetUser(ctx context.Context, id int64) (User, error)
	GetUserTx(ctx context.Context, q db.Querier, id int64) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)

	ListAddresses(ctx context.Context, userID int64) ([]Address, error)
	GetAddressTx(ctx context.Context, q db.Querier, userID, id int64) (Address, error)
	CreateAddress(ctx context.Context, a *Address) error
	UpdateAddress(ctx context.Context, a *Address) error
	DeleteAddress(ctx context.Context, userID, id int64) error
}

type PostgresRepository struct {
	pool db.Querier
}

func NewPostgresRepository(pool db.Querier) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) CreateUserTx(ctx context.Context, q db.Querier, u *User) error {
	if u.Role == "" {
		u.Role = RoleUser
	}
	err := q.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, full_name, phone, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, strings.ToLower(u.Email), u.PasswordHash, u.FullName, u.Phone, string(u.Role)).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return apperr.Duplicate("email")
		}
		return fmt.Errorf("create user: %w", err)
	}
	u.Email = strings.ToLower(u.Email)
	return nil
}

func (r *PostgresRepository) GetUser(ctx context.Context, id int64) (User, error) {
	return r.GetUserTx(ctx, r.pool, id)
}

func (r *PostgresRepository) GetUserTx(ctx context.Context, q db.Querier, id int64) (User, error) {
	return scanUser(q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
}

func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, strings.ToLower(email)))
}

func (r *PostgresRepository) ListAddresses(ctx context.Context, userID int64) ([]Address, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+addressColumns+` FROM addresses WHERE user_id=$1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	defer rows.Close()

	out := []Address{}
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetAddressTx only returns addresses owned by userID; any other id reads as missing.
func (r *PostgresRepository) GetAddressTx(ctx context.Context, q db.Querier, userID, id int64) (Address, error) {
	a, err := scanAddress(q.QueryRow(ctx, `SELECT `+addressColumns+` FROM addresses WHERE id=$1 AND user_id=$2`, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Address{}, apperr.NotFound("address")
		}
		return Address{}, fmt.Errorf("get address: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) CreateAddress(ctx context.Context, a *Address) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO addresses (user_id, full_name, phone, address_line1, address_line2, city, state, zip_code, country)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, a.UserID, a.FullName, a.Phone, a.AddressLine1, a.AddressLine2, a.City, a.State, a.ZipCode, a.Country).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("create address: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpdateAddress(ctx context.Context, a *Address) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE addresses
		SET full_name=$3, phone=$4, address_line1=$5, address_line2=$6, city=$7, state=$8, zip_code=$9, country=$10
		WHERE id=$1 AND user_id=$2
	`, a.ID, a.UserID, a.FullName, a.Phone, a.AddressLine1, a.AddressLine2, a.City, a.State, a.ZipCode, a.Country)
	if err != nil {
		return fmt.Errorf("update address: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("address")
	}
	return nil
}

func (r *PostgresRepository) DeleteAddress(ctx context.Context, userID, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM addresses WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return apperr.Invalid("address is used by an existing order")
		}
		return fmt.Errorf("delete address: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("address")
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		u    User
		role string
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Phone, &role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, apperr.NotFound("user")
		}
		return User{}, fmt.Errorf("get user: %w", err)
	}
	u.Role = Role(role)
	return u, nil
}

func scanAddress(row pgx.Row) (Address, error) {
	var a Address
	err := row.Scan(&a.ID, &a.UserID, &a.FullName, &a.Phone, &a.AddressLine1, &a.AddressLine2, &a.City, &a.State, &a.ZipCode, &a.Country)
	return a, err
}
