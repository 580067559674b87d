package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/natya/core"
	"github.com/trezcool/natya/core/user"
)

const userColumns = `users.id, users.role, users.name, users.email, users.phone, users.student_id, users.pre_admission_id,
	users.is_active, users.password_hash, users.created_at, users.updated_at, users.last_login`

var userOrderings = map[string]string{
	"id":         "users.id",
	"name":       "users.name",
	"email":      "users.email",
	"created_at": "users.created_at",
	"last_login": "users.last_login",
}

type userRepository struct {
	repository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{repository{exec: exec}}
}

func (repo userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	q := "SELECT COUNT(*) FROM users WHERE email = ?"
	args := []interface{}{email}
	if len(excludedUsers) > 0 {
		ids := make([]int64, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		q += " AND id NOT IN (?)"
		args = append(args, ids)
	}

	var count []int
	if err := selectIn(ctx, repo.getExec(exec), &count, q, args...); err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if len(count) > 0 && count[0] > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	id, err := insert(ctx, repo.getExec(exec), `
		INSERT INTO users (role, name, email, phone, student_id, pre_admission_id, is_active, password_hash, created_at, updated_at, last_login)
		VALUES (:role, :name, :email, :phone, :student_id, :pre_admission_id, :is_active, :password_hash, :created_at, :updated_at, :last_login)`,
		usr)
	if err != nil {
		if uniqueConstraintOn(err, "email") {
			return user.User{}, user.ErrEmailExists
		}
		if uniqueConstraintOn(err, "student_id") {
			return user.User{}, user.ErrStudentIDTaken
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	usr.ID = id
	return usr, nil
}

func (repo userRepository) CreateStudentDetails(ctx context.Context, details user.StudentDetails, exec ...core.DBExecutor) error {
	_, err := update(ctx, repo.getExec(exec), `
		INSERT INTO student_details (user_id, dance_style, experience_level, date_of_birth, address, guardian_name,
			guardian_phone, emergency_contact, enrollment_status, enrollment_date)
		VALUES (:user_id, :dance_style, :experience_level, :date_of_birth, :address, :guardian_name,
			:guardian_phone, :emergency_contact, :enrollment_status, :enrollment_date)`,
		details)
	return errors.Wrap(err, "inserting student details")
}

func (repo userRepository) withDetails(ctx context.Context, exec core.DBExecutor, usr user.User) (user.User, error) {
	if !usr.IsStudent() {
		return usr, nil
	}
	var details user.StudentDetails
	err := exec.GetContext(ctx, &details, exec.Rebind("SELECT * FROM student_details WHERE user_id = ?"), usr.ID)
	switch {
	case err == sql.ErrNoRows:
		return usr, nil
	case err != nil:
		return user.User{}, errors.Wrap(err, "getting student details")
	}
	usr.Details = &details
	return usr, nil
}

func (repo userRepository) getUserWhere(ctx context.Context, exec core.DBExecutor, where string, arg interface{}) (user.User, error) {
	var usr user.User
	err := exec.GetContext(ctx, &usr, exec.Rebind("SELECT "+userColumns+" FROM users WHERE "+where), arg)
	if err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "getting user")
	}
	return repo.withDetails(ctx, exec, usr)
}

func (repo userRepository) GetUser(ctx context.Context, id int64, exec ...core.DBExecutor) (user.User, error) {
	return repo.getUserWhere(ctx, repo.getExec(exec), "id = ?", id)
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string, exec ...core.DBExecutor) (user.User, error) {
	return repo.getUserWhere(ctx, repo.getExec(exec), "email = ?", email)
}

func (repo userRepository) StudentIDExists(ctx context.Context, studentID string, exec ...core.DBExecutor) (bool, error) {
	e := repo.getExec(exec)
	var count int
	if err := e.GetContext(ctx, &count, e.Rebind("SELECT COUNT(*) FROM users WHERE student_id = ?"), studentID); err != nil {
		return false, errors.Wrap(err, "checking student ID")
	}
	return count > 0, nil
}

// userRow is a users row joined with its optional student details.
type userRow struct {
	user.User
	DanceStyle       sql.NullString `db:"dance_style"`
	ExperienceLevel  sql.NullString `db:"experience_level"`
	DateOfBirth      sql.NullString `db:"date_of_birth"`
	Address          sql.NullString `db:"address"`
	GuardianName     sql.NullString `db:"guardian_name"`
	GuardianPhone    sql.NullString `db:"guardian_phone"`
	EmergencyContact sql.NullString `db:"emergency_contact"`
	EnrollmentStatus sql.NullString `db:"enrollment_status"`
	EnrollmentDate   sql.NullTime   `db:"enrollment_date"`
}

func (row userRow) toUser() user.User {
	usr := row.User
	if row.EnrollmentStatus.Valid {
		usr.Details = &user.StudentDetails{
			UserID:           usr.ID,
			DanceStyle:       row.DanceStyle.String,
			ExperienceLevel:  row.ExperienceLevel.String,
			DateOfBirth:      row.DateOfBirth.String,
			Address:          row.Address.String,
			GuardianName:     row.GuardianName.String,
			GuardianPhone:    row.GuardianPhone.String,
			EmergencyContact: row.EmergencyContact.String,
			EnrollmentStatus: row.EnrollmentStatus.String,
			EnrollmentDate:   null.NewTime(row.EnrollmentDate.Time, row.EnrollmentDate.Valid),
		}
	}
	return usr
}

func (repo userRepository) FilterUsers(ctx context.Context, filter user.QueryFilter, orderings []core.DBOrdering) ([]user.User, error) {
	var (
		where []string
		args  []interface{}
	)
	// users with Name, Email, Phone or Student ID matching the search keyword
	if filter.Search != "" {
		val := "%" + strings.ToLower(filter.Search) + "%"
		where = append(where, "(LOWER(users.name) LIKE ? OR LOWER(users.email) LIKE ? OR users.phone LIKE ? OR LOWER(users.student_id) LIKE ?)")
		args = append(args, val, val, val, val)
	}
	if filter.Role != "" {
		where = append(where, "users.role = ?")
		args = append(args, filter.Role)
	}
	if filter.EnrollmentStatus != "" {
		where = append(where, "student_details.enrollment_status = ?")
		args = append(args, filter.EnrollmentStatus)
	}
	if filter.IsActive != nil {
		where = append(where, "users.is_active = ?")
		args = append(args, *filter.IsActive)
	}

	q := "SELECT " + userColumns + `, student_details.dance_style, student_details.experience_level,
		student_details.date_of_birth, student_details.address, student_details.guardian_name, student_details.guardian_phone,
		student_details.emergency_contact, student_details.enrollment_status, student_details.enrollment_date
		FROM users LEFT JOIN student_details ON student_details.user_id = users.id`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += orderBy(orderings, userOrderings, "users.created_at DESC")

	var rows []userRow
	if err := repo.exec.SelectContext(ctx, &rows, repo.exec.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "filtering users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toUser())
	}
	return users, nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	n, err := update(ctx, repo.getExec(exec), `
		UPDATE users SET name = :name, email = :email, phone = :phone, student_id = :student_id, is_active = :is_active,
			password_hash = :password_hash, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`,
		usr)
	if err != nil {
		if uniqueConstraintOn(err, "email") {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo userRepository) UpdateStudentDetails(ctx context.Context, details user.StudentDetails, exec ...core.DBExecutor) error {
	n, err := update(ctx, repo.getExec(exec), `
		UPDATE student_details SET dance_style = :dance_style, experience_level = :experience_level,
			date_of_birth = :date_of_birth, address = :address, guardian_name = :guardian_name,
			guardian_phone = :guardian_phone, emergency_contact = :emergency_contact,
			enrollment_status = :enrollment_status, enrollment_date = :enrollment_date
		WHERE user_id = :user_id`,
		details)
	if err != nil {
		return errors.Wrap(err, "updating student details")
	}
	if n == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (repo userRepository) SetLastLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := repo.exec.ExecContext(ctx, repo.exec.Rebind("UPDATE users SET last_login = ? WHERE id = ?"), at.UTC(), id)
	return errors.Wrap(err, "setting last login")
}

func (repo userRepository) DeleteStudentDetails(ctx context.Context, userIDs []int64, exec ...core.DBExecutor) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := execIn(ctx, repo.getExec(exec), "DELETE FROM student_details WHERE user_id IN (?)", userIDs)
	return errors.Wrap(err, "deleting student details")
}

func (repo userRepository) DeleteUsers(ctx context.Context, ids []int64, exec ...core.DBExecutor) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := execIn(ctx, repo.getExec(exec), "DELETE FROM users WHERE id IN (?)", ids)
	return errors.Wrap(err, "deleting users")
}
