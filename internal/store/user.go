package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kraman82351/Task-management/types"
)

const userColumns = `id, email, name, role, photo, bio, is_verified, password_hash,
	verification_token_hash, verification_token_expires_at,
	reset_token_hash, reset_token_expires_at,
	created_at, updated_at`

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (types.User, error) {
	var (
		user                  types.User
		verifyHash, resetHash sql.NullString
		verifyExp, resetExp   sql.NullTime
	)
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Role,
		&user.Photo,
		&user.Bio,
		&user.IsVerified,
		&user.PasswordHash,
		&verifyHash,
		&verifyExp,
		&resetHash,
		&resetExp,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return types.User{}, err
	}
	if verifyHash.Valid {
		user.VerificationToken = &types.OneTimeToken{Hash: verifyHash.String, ExpiresAt: verifyExp.Time}
	}
	if resetHash.Valid {
		user.ResetToken = &types.OneTimeToken{Hash: resetHash.String, ExpiresAt: resetExp.Time}
	}
	return user, nil
}

func (r *UserRepository) List(ctx context.Context) ([]types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]types.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *UserRepository) GetByTokenHash(ctx context.Context, kind types.TokenKind, hash string) (types.User, error) {
	hashCol, _, err := tokenColumns(kind)
	if err != nil {
		return types.User{}, err
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE `+hashCol+` = $1`, hash)
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (types.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, mapError(err)
	}
	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `
		INSERT INTO users (id, email, name, role, photo, bio, is_verified, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.Email,
		user.Name,
		user.Role,
		user.Photo,
		user.Bio,
		user.IsVerified,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	); err != nil {
		return types.User{}, mapError(err)
	}
	return user, nil
}

// UpdateProfile writes only the name, bio and photo columns.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, profile types.Profile) (types.User, error) {
	query := `
		UPDATE users
		SET name = $1,
			bio = $2,
			photo = $3,
			updated_at = $4
		WHERE id = $5
		RETURNING ` + userColumns
	user, err := scanUser(r.db.QueryRowContext(ctx, query, profile.Name, profile.Bio, profile.Photo, time.Now(), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, mapError(err)
	}
	return user, nil
}

func (r *UserRepository) SetPassword(ctx context.Context, id, passwordHash string) error {
	const query = `UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, passwordHash, time.Now(), id)
	if err != nil {
		return mapError(err)
	}
	return expectAffected(result)
}

func (r *UserRepository) SetRole(ctx context.Context, id string, role types.Role) error {
	const query = `UPDATE users SET role = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, role, time.Now(), id)
	if err != nil {
		return mapError(err)
	}
	return expectAffected(result)
}

// SetToken stores token as the pending token of kind, replacing any previous one.
func (r *UserRepository) SetToken(ctx context.Context, id string, kind types.TokenKind, token types.OneTimeToken) error {
	hashCol, expCol, err := tokenColumns(kind)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE users SET %s = $1, %s = $2, updated_at = $3 WHERE id = $4`, hashCol, expCol)
	result, err := r.db.ExecContext(ctx, query, token.Hash, token.ExpiresAt, time.Now(), id)
	if err != nil {
		return mapError(err)
	}
	return expectAffected(result)
}

// ConsumeToken clears the pending token of kind and applies change in one
// statement, provided the stored hash still equals hash. ErrNotFound means
// the token was already used or replaced.
func (r *UserRepository) ConsumeToken(ctx context.Context, id string, kind types.TokenKind, hash string, change types.TokenConsumption) error {
	hashCol, expCol, err := tokenColumns(kind)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		UPDATE users
		SET %s = NULL,
			%s = NULL,
			is_verified = is_verified OR $1,
			password_hash = COALESCE(NULLIF($2, ''), password_hash),
			updated_at = $3
		WHERE id = $4 AND %s = $5`, hashCol, expCol, hashCol)
	result, err := r.db.ExecContext(ctx, query, change.MarkVerified, change.PasswordHash, time.Now(), id, hash)
	if err != nil {
		return mapError(err)
	}
	return expectAffected(result)
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM users WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return mapError(err)
	}
	return expectAffected(result)
}

func tokenColumns(kind types.TokenKind) (hashCol, expCol string, err error) {
	switch kind {
	case types.TokenVerification:
		return "verification_token_hash", "verification_token_expires_at", nil
	case types.TokenReset:
		return "reset_token_hash", "reset_token_expires_at", nil
	default:
		return "", "", fmt.Errorf("unknown token kind %q", kind)
	}
}

func expectAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
