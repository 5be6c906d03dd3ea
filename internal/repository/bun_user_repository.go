package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/terraconstructs/gatehouse/internal/apperr"
	"github.com/terraconstructs/gatehouse/internal/auth"
	"github.com/terraconstructs/gatehouse/internal/db/bunx"
	"github.com/terraconstructs/gatehouse/internal/db/models"
)

// BunUserRepository implements UserRepository using Bun ORM
type BunUserRepository struct {
	db *bun.DB
}

// NewBunUserRepository creates a new Bun-based user repository
func NewBunUserRepository(db *bun.DB) *BunUserRepository {
	return &BunUserRepository{db: db}
}

func prepareNewUser(user *models.User) {
	if user.ID == "" {
		user.ID = bunx.NewUUIDv7()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
}

// Create inserts a new user into the database
func (r *BunUserRepository) Create(ctx context.Context, user *models.User) error {
	prepareNewUser(user)
	_, err := r.db.NewInsert().
		Model(user).
		Exec(ctx)
	if err != nil {
		return insertUserError(err)
	}
	return nil
}

// CreateWithDefaultRole assigns the default role and inserts the user atomically.
func (r *BunUserRepository) CreateWithDefaultRole(ctx context.Context, user *models.User) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		role := new(models.Role)
		err := tx.NewSelect().
			Model(role).
			Where("is_default = ?", true).
			Order("created_at ASC").
			Limit(1).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.Misconfigured("Default role not found")
			}
			return fmt.Errorf("get default role: %w", err)
		}

		prepareNewUser(user)
		user.RoleID = &role.ID
		user.Role = role

		if _, err := tx.NewInsert().Model(user).Exec(ctx); err != nil {
			return insertUserError(err)
		}
		return nil
	})
}

func (r *BunUserRepository) getOne(ctx context.Context, column, value string) (*models.User, error) {
	user := new(models.User)
	err := r.db.NewSelect().
		Model(user).
		Where("?TableAlias.? = ?", bun.Ident(column), value).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("user")
		}
		return nil, fmt.Errorf("get user by %s: %w", column, err)
	}
	return user, nil
}

// GetByID retrieves a user by their ID
func (r *BunUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, "id", id)
}

// GetByEmail retrieves a user by their email
func (r *BunUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, "email", email)
}

// GetBySubject retrieves a user by their OIDC subject
func (r *BunUserRepository) GetBySubject(ctx context.Context, subject string) (*models.User, error) {
	return r.getOne(ctx, "subject", subject)
}

// GetWithRole retrieves a user and its assigned role
func (r *BunUserRepository) GetWithRole(ctx context.Context, id string) (*models.User, error) {
	user := new(models.User)
	err := r.db.NewSelect().
		Model(user).
		Relation("Role").
		Where("u.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("user")
		}
		return nil, fmt.Errorf("get user with role: %w", err)
	}
	return user, nil
}

// List retrieves all users with their roles, oldest first
func (r *BunUserRepository) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.db.NewSelect().
		Model(&users).
		Relation("Role").
		Order("u.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Count returns the number of users
func (r *BunUserRepository) Count(ctx context.Context) (int, error) {
	n, err := r.db.NewSelect().Model((*models.User)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// UpdateRole points the user at a different role
func (r *BunUserRepository) UpdateRole(ctx context.Context, id, roleID string) error {
	result, err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("role_id = ?", roleID).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update user role: %w", err)
	}
	return requireOneRow(result, "user")
}

// UpdateLastLogin updates the last_login_at timestamp for a user
func (r *BunUserRepository) UpdateLastLogin(ctx context.Context, id string) error {
	now := time.Now().UTC()
	_, err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("last_login_at = ?", now).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// SetPasswordHash updates the stored bcrypt hash for a user's local credentials.
func (r *BunUserRepository) SetPasswordHash(ctx context.Context, id, passwordHash string) error {
	result, err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set password hash: %w", err)
	}
	return requireOneRow(result, "user")
}

// LinkSubject records the federated subject on an existing user
func (r *BunUserRepository) LinkSubject(ctx context.Context, id, subject string) error {
	result, err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("subject = ?", subject).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("link subject: %w", err)
	}
	return requireOneRow(result, "user")
}

// Disable soft-disables a user. Users are never hard-deleted.
func (r *BunUserRepository) Disable(ctx context.Context, id string) error {
	now := time.Now().UTC()
	result, err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("disabled_at = ?", now).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("disable user: %w", err)
	}
	return requireOneRow(result, "user")
}

type grantRow struct {
	UserID     string         `bun:"user_id"`
	Email      string         `bun:"email"`
	Name       string         `bun:"name"`
	DisabledAt *time.Time     `bun:"disabled_at"`
	RoleName   sql.NullString `bun:"role_name"`
	Resource   sql.NullString `bun:"resource"`
	Action     sql.NullString `bun:"action"`
}

// LoadGrant reads the user, its role and the role's permissions with a single joined
// SELECT, so the role and permission rows come from the same snapshot.
func (r *BunUserRepository) LoadGrant(ctx context.Context, userID string) (*auth.Grant, error) {
	var rows []grantRow
	err := r.db.NewSelect().
		TableExpr("users AS u").
		ColumnExpr("u.id AS user_id, u.email, u.name, u.disabled_at").
		ColumnExpr("r.name AS role_name").
		ColumnExpr("p.resource, p.action").
		Join("LEFT JOIN roles AS r ON r.id = u.role_id").
		Join("LEFT JOIN role_permissions AS rp ON rp.role_id = r.id").
		Join("LEFT JOIN permissions AS p ON p.id = rp.permission_id").
		Where("u.id = ?", userID).
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("load grant: %w", err)
	}
	if len(rows) == 0 {
		return nil, apperr.NotFound("user")
	}

	first := rows[0]
	grant := &auth.Grant{
		UserID:   first.UserID,
		Email:    first.Email,
		Name:     first.Name,
		Disabled: first.DisabledAt != nil,
		RoleName: first.RoleName.String,
	}
	for _, row := range rows {
		if row.Resource.Valid && row.Action.Valid {
			grant.Permissions = append(grant.Permissions, auth.Permission{
				Resource: row.Resource.String,
				Action:   row.Action.String,
			})
		}
	}
	return grant, nil
}

// ErrEmailTaken is returned when a user insert collides with an existing email or subject.
var ErrEmailTaken = apperr.Conflict("User with this email already exists")

func insertUserError(err error) error {
	if isDuplicateKeyError(err) {
		return ErrEmailTaken
	}
	return fmt.Errorf("create user: %w", err)
}

func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "unique constraint") || strings.Contains(msg, "UNIQUE constraint") || strings.Contains(msg, "23505")
}

func requireOneRow(result sql.Result, entity string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperr.NotFound(entity)
	}
	return nil
}
