// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/nufounders/nufounders/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
// openIDを主キーとし、書き込みはすべて無条件のUPSERT（last-write-wins）とする。
type UserRepository interface {
	// FindByOpenID は指定openIDのユーザーを取得する。見つからない場合はnilを返す。
	FindByOpenID(ctx context.Context, openID string) (*model.User, error)

	// Upsert はユーザーを作成、または既存ユーザーのname, email, loginMethod, lastSignedInを上書きする。
	// 保存後のユーザーを返す。
	Upsert(ctx context.Context, in *model.UpsertUser) (*model.User, error)

	// TouchLastSignedIn はlastSignedInのみを更新する。見つからない場合はnilを返す。
	TouchLastSignedIn(ctx context.Context, openID string, at time.Time) (*model.User, error)

	// List は全ユーザーを作成日時の昇順で返す。
	List(ctx context.Context) ([]*model.User, error)

	// UpdateRole はユーザーのロールを変更する。見つからない場合はnilを返す。
	UpdateRole(ctx context.Context, openID string, role model.Role) (*model.User, error)
}

// HealthChecker はストアの疎通確認インターフェース。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}
