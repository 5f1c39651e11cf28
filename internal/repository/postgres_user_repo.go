package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nufounders/nufounders/internal/model"
)

const userColumns = `open_id, name, email, login_method, role, created_at, updated_at, last_signed_in`

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// rowScanner は*sql.Rowと*sql.Rowsの共通部分。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanUser は1行をmodel.Userに読み込む。
func scanUser(row rowScanner) (*model.User, error) {
	user := &model.User{}
	var email sql.NullString
	var role string
	if err := row.Scan(
		&user.OpenID, &user.Name, &email, &user.LoginMethod, &role,
		&user.CreatedAt, &user.UpdatedAt, &user.LastSignedIn,
	); err != nil {
		return nil, err
	}
	if email.Valid {
		e := email.String
		user.Email = &e
	}
	user.Role = model.Role(role)
	return user, nil
}

// FindByOpenID は指定openIDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByOpenID(ctx context.Context, openID string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE open_id = $1`,
		openID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by open ID: %w", err)
	}
	return user, nil
}

// Upsert はユーザーを作成、または既存ユーザーを上書きする。
// Roleが空の場合、既存ユーザーのロールは維持する。
func (r *PostgresUserRepo) Upsert(ctx context.Context, in *model.UpsertUser) (*model.User, error) {
	at := in.LastSignedIn
	if at.IsZero() {
		at = time.Now()
	}

	user, err := scanUser(r.db.QueryRowContext(ctx,
		`INSERT INTO users (open_id, name, email, login_method, role, created_at, updated_at, last_signed_in)
		 VALUES ($1, $2, $3, $4, COALESCE(NULLIF($5::text, ''), 'user'), $6, $6, $6)
		 ON CONFLICT (open_id) DO UPDATE SET
		   name = EXCLUDED.name,
		   email = EXCLUDED.email,
		   login_method = EXCLUDED.login_method,
		   role = CASE WHEN $5::text = '' THEN users.role ELSE EXCLUDED.role END,
		   updated_at = EXCLUDED.updated_at,
		   last_signed_in = EXCLUDED.last_signed_in
		 RETURNING `+userColumns,
		in.OpenID, in.Name, in.Email, in.LoginMethod, string(in.Role), at,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return user, nil
}

// TouchLastSignedIn はlastSignedInのみを更新する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) TouchLastSignedIn(ctx context.Context, openID string, at time.Time) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`UPDATE users SET last_signed_in = $2, updated_at = $2
		 WHERE open_id = $1
		 RETURNING `+userColumns,
		openID, at,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update last signed in: %w", err)
	}
	return user, nil
}

// List は全ユーザーを作成日時の昇順で返す。
func (r *PostgresUserRepo) List(ctx context.Context) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at ASC, open_id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// UpdateRole はユーザーのロールを変更する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) UpdateRole(ctx context.Context, openID string, role model.Role) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`UPDATE users SET role = $2, updated_at = now()
		 WHERE open_id = $1
		 RETURNING `+userColumns,
		openID, string(role),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}
	return user, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
