package pgrepos

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/smartcampus/campus/core"
	"github.com/smartcampus/campus/core/user"
)

const userColumns = `id, name, username, email, role, department, phone, bio, avatar, is_active, google_id,
	password_hash, created_at, updated_at, last_login`

var userOrderingFields = map[string]string{
	"name":       "name",
	"username":   "username",
	"email":      "email",
	"role":       "CASE role WHEN 'admin' THEN 30 WHEN 'faculty' THEN 20 ELSE 10 END", // by priority
	"is_active":  "is_active",
	"created_at": "created_at",
	"last_login": "last_login",
}

type userRow struct {
	ID           string      `db:"id"`
	Name         string      `db:"name"`
	Username     null.String `db:"username"`
	Email        null.String `db:"email"`
	Role         string      `db:"role"`
	Department   string      `db:"department"`
	Phone        string      `db:"phone"`
	Bio          string      `db:"bio"`
	Avatar       string      `db:"avatar"`
	IsActive     bool        `db:"is_active"`
	GoogleID     null.String `db:"google_id"`
	PasswordHash null.Bytes  `db:"password_hash"`
	CreatedAt    null.Time   `db:"created_at"`
	UpdatedAt    null.Time   `db:"updated_at"`
	LastLogin    null.Time   `db:"last_login"`
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo userRepository) toRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     null.NewString(usr.Username, usr.Username != ""),
		Email:        null.NewString(usr.Email, usr.Email != ""),
		Role:         usr.Role,
		Department:   usr.Department,
		Phone:        usr.Phone,
		Bio:          usr.Bio,
		Avatar:       usr.Avatar,
		IsActive:     usr.IsActive,
		GoogleID:     null.NewString(usr.GoogleID, usr.GoogleID != ""),
		PasswordHash: null.NewBytes(usr.PasswordHash, len(usr.PasswordHash) > 0),
		CreatedAt:    null.NewTime(usr.CreatedAt.UTC(), !usr.CreatedAt.IsZero()),
		UpdatedAt:    null.NewTime(usr.UpdatedAt.UTC(), !usr.UpdatedAt.IsZero()),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (repo userRepository) toUser(row userRow) user.User {
	return user.User{
		ID:           row.ID,
		Name:         row.Name,
		Username:     row.Username.String,
		Email:        row.Email.String,
		Role:         row.Role,
		Department:   row.Department,
		Phone:        row.Phone,
		Bio:          row.Bio,
		Avatar:       row.Avatar,
		IsActive:     row.IsActive,
		GoogleID:     row.GoogleID.String,
		PasswordHash: row.PasswordHash.Bytes,
		CreatedAt:    row.CreatedAt.Time,
		UpdatedAt:    row.UpdatedAt.Time,
		LastLogin:    row.LastLogin.Time,
	}
}

func (repo userRepository) CheckUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	var w where
	w.add("(username = ? OR email = ?)", null.NewString(username, username != ""), null.NewString(email, email != ""))
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		if err := w.addIn("id NOT", ids); err != nil {
			return errors.Wrap(err, "checking user uniqueness")
		}
	}

	var rows []userRow
	q := repo.db.Rebind(`SELECT ` + userColumns + ` FROM "user"` + w.String() + ` LIMIT 2`)
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, row := range rows {
		if username != "" && row.Username.String == username {
			return user.ErrUsernameExists
		}
	}
	if len(rows) > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	row := repo.toRow(usr)
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO "user" (`+userColumns+`)
		VALUES (:id, :name, :username, :email, :role, :department, :phone, :bio, :avatar, :is_active, :google_id,
			:password_hash, :created_at, :updated_at, :last_login)`, row)
	if err != nil {
		switch {
		case isUniqueViolation(err, "username"):
			return user.User{}, user.ErrUsernameExists
		case isUniqueViolation(err, "email"):
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return repo.toUser(row), nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var w where
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		w.add("id = ?", filter.ID)
	case filter.UsernameOrEmail != "":
		w.add("(username = ? OR email = ?)", filter.UsernameOrEmail, filter.UsernameOrEmail)
	case filter.Email != "":
		w.add("email = ?", filter.Email)
	case filter.GoogleID != "":
		w.add("google_id = ?", filter.GoogleID)
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	q := repo.db.Rebind(`SELECT ` + userColumns + ` FROM "user"` + w.String() + ` LIMIT 1`)
	if err := repo.db.GetContext(ctx, &row, q, w.args...); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "getting user")
	}
	return repo.toUser(row), nil
}

func (repo userRepository) QueryUsers(
	ctx context.Context,
	filter user.QueryFilter,
	ordering []core.DBOrdering,
	page core.Pagination,
) ([]user.User, int, error) {
	var w where
	// users with Name, Username or Email matching the search keyword
	if filter.Search != "" {
		val := containsPattern(filter.Search)
		w.add(`(name ILIKE ? ESCAPE '\' OR username ILIKE ? ESCAPE '\' OR email ILIKE ? ESCAPE '\')`, val, val, val)
	}
	if len(filter.Roles) > 0 {
		if err := w.addIn("role", filter.Roles); err != nil {
			return nil, 0, errors.Wrap(err, "querying users")
		}
	}
	if filter.IsActive != nil {
		w.add("is_active = ?", *filter.IsActive)
	}
	if !filter.CreatedFrom.IsZero() {
		w.add("created_at >= ?", filter.CreatedFrom.UTC())
	}
	if !filter.CreatedTo.IsZero() {
		w.add("created_at <= ?", filter.CreatedTo.UTC())
	}

	var total int
	if err := repo.db.GetContext(ctx, &total, repo.db.Rebind(`SELECT COUNT(*) FROM "user"`+w.String()), w.args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting users")
	}

	orderList := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		if col, ok := userOrderingFields[ord.Field]; ok {
			orderList = append(orderList, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
		}
	}
	if len(orderList) == 0 {
		orderList = append(orderList, "created_at DESC")
	}
	orderList = append(orderList, "id ASC")

	q := fmt.Sprintf(`SELECT %s FROM "user"%s ORDER BY %s LIMIT %d OFFSET %d`,
		userColumns, w.String(), strings.Join(orderList, ", "), page.Limit, page.Offset())
	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), w.args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying users")
	}

	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, repo.toUser(row))
	}
	return users, total, nil
}

func (repo userRepository) QueryActiveUserIDs(ctx context.Context, roles ...string) ([]string, error) {
	var w where
	w.add("is_active = ?", true)
	if len(roles) > 0 {
		if err := w.addIn("role", roles); err != nil {
			return nil, errors.Wrap(err, "querying active users")
		}
	}

	ids := make([]string, 0)
	q := repo.db.Rebind(`SELECT id FROM "user"` + w.String() + ` ORDER BY id`)
	if err := repo.db.SelectContext(ctx, &ids, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying active users")
	}
	return ids, nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	row := repo.toRow(usr)
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE "user" SET
			name = :name, username = :username, email = :email, role = :role, department = :department,
			phone = :phone, bio = :bio, avatar = :avatar, is_active = :is_active, google_id = :google_id,
			password_hash = :password_hash, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`, row)
	if err != nil {
		switch {
		case isUniqueViolation(err, "username"):
			return user.User{}, user.ErrUsernameExists
		case isUniqueViolation(err, "email"):
			return user.User{}, user.ErrEmailExists
		case isUniqueViolation(err, "google_id"):
			return user.User{}, user.ErrGoogleIDExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM "user" WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "deleting users")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}
