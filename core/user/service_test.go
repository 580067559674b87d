package user_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/natya/core"
	"github.com/trezcool/natya/core/user"
	emailsvc "github.com/trezcool/natya/services/email"
	"github.com/trezcool/natya/storage/database/sqlx"
	"github.com/trezcool/natya/tests"
)

type fakeDependent struct {
	deleted   []int64
	cleanedUp bool
	err       error
}

func (d *fakeDependent) DeleteForUsers(_ context.Context, _ core.DBExecutor, userIDs ...int64) (func(), error) {
	if d.err != nil {
		return nil, d.err
	}
	d.deleted = append(d.deleted, userIDs...)
	return func() { d.cleanedUp = true }, nil
}

type testEnv struct {
	db      core.DB
	repo    user.Repository
	svc     *user.Service
	mailSvc *emailsvc.ConsoleService
	dep     *fakeDependent
}

func setup(t *testing.T) testEnv {
	conf := testutil.PrepareConfig(t)
	db := testutil.PrepareDB(t, conf)
	mailSvc := testutil.NewEmailService(t, conf, new(testutil.Logger))
	repo := sqlxrepos.NewUserRepository(db)
	dep := new(fakeDependent)
	return testEnv{
		db:      db,
		repo:    repo,
		svc:     user.NewService(db, repo, mailSvc, conf, dep),
		mailSvc: mailSvc,
		dep:     dep,
	}
}

func TestService_Register(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	validate, _ := testutil.NewValidator()

	ns := user.NewStudent{
		Name:            "  Asha Rao ",
		Email:           "Asha@Test.test",
		Phone:           "+919876543210",
		Password:        "s3cure-pass",
		PasswordConfirm: "s3cure-pass",
		StudentProfile:  user.StudentProfile{DanceStyle: "Bharatanatyam", DateOfBirth: "2010-04-12"},
	}
	require.NoError(t, ns.Validate(ctx, validate, env.svc))
	usr, err := env.svc.Register(ctx, ns)
	require.NoError(t, err)

	assert.Equal(t, "Asha Rao", usr.Name)
	assert.Equal(t, "asha@test.test", usr.Email)
	assert.True(t, usr.IsStudent())
	assert.False(t, usr.StudentID.Valid)
	assert.NoError(t, usr.CheckPassword("s3cure-pass"))

	got, err := env.svc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Details)
	assert.Equal(t, user.EnrollmentPending, got.Details.EnrollmentStatus)
	assert.Equal(t, "Bharatanatyam", got.Details.DanceStyle)
	assert.False(t, got.Details.EnrollmentDate.Valid)

	// same email, different case
	dup := ns
	dup.Email = "ASHA@test.test"
	err = dup.Validate(ctx, validate, env.svc)
	assert.Equal(t, user.ErrEmailExists, errors.Cause(err))
	_, err = env.svc.Register(ctx, user.NewStudent{Name: "X", Email: "asha@test.test", Password: "p"})
	assert.Equal(t, user.ErrEmailExists, errors.Cause(err))
}

func TestService_CreateAdmittedStudent(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	user.NowFunc = func() time.Time { return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC) }
	defer func() { user.NowFunc = time.Now }()

	db, repo, svc := env.db, env.repo, env.svc
	var (
		usr user.User
		pwd string
	)
	err := core.RunInTx(ctx, db, func(tx core.DBExecutor) error {
		var err error
		usr, pwd, err = svc.CreateAdmittedStudent(ctx, tx, user.NewAdmittedStudent{
			Name:       "Meera",
			Email:      " Meera@Test.test",
			Phone:      "+919876543210",
			BranchCode: "na",
			Profile:    user.StudentProfile{DanceStyle: "Kathak"},
		})
		return err
	})
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^NA25\d{4}$`), usr.StudentID.String)
	assert.Equal(t, "meera@test.test", usr.Email)
	assert.Len(t, pwd, 12)
	assert.NoError(t, usr.CheckPassword(pwd))

	got, err := svc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Details)
	assert.Equal(t, user.EnrollmentActive, got.Details.EnrollmentStatus)
	assert.True(t, got.Details.EnrollmentDate.Valid)
	assert.Equal(t, 2025, got.Details.EnrollmentDate.Time.Year())

	exists, err := repo.StudentIDExists(ctx, usr.StudentID.String)
	require.NoError(t, err)
	assert.True(t, exists)

	// email already taken
	err = core.RunInTx(ctx, db, func(tx core.DBExecutor) error {
		_, _, err := svc.CreateAdmittedStudent(ctx, tx, user.NewAdmittedStudent{Name: "M", Email: "meera@test.test", BranchCode: "NA"})
		return err
	})
	assert.Equal(t, user.ErrEmailExists, errors.Cause(err))
}

func TestService_SetEnrollmentStatus(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	student := testutil.CreateStudent(t, env.repo, "Student", "student@test.test", "pwd", user.EnrollmentPending, time.Time{})
	admin := testutil.CreateUser(t, env.repo, "Admin", "admin@test.test", "pwd", user.RoleAdmin, true)

	activatedAt := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	user.NowFunc = func() time.Time { return activatedAt }
	defer func() { user.NowFunc = time.Now }()

	usr, err := env.svc.SetEnrollmentStatus(ctx, student.ID, user.EnrollmentActive)
	require.NoError(t, err)
	assert.Equal(t, user.EnrollmentActive, usr.Details.EnrollmentStatus)
	assert.True(t, usr.Details.EnrollmentDate.Time.Equal(activatedAt))

	// pausing then reactivating keeps the first enrollment date
	user.NowFunc = func() time.Time { return activatedAt.AddDate(0, 3, 0) }
	_, err = env.svc.SetEnrollmentStatus(ctx, student.ID, user.EnrollmentPaused)
	require.NoError(t, err)
	usr, err = env.svc.SetEnrollmentStatus(ctx, student.ID, user.EnrollmentActive)
	require.NoError(t, err)
	assert.True(t, usr.Details.EnrollmentDate.Time.Equal(activatedAt))

	got, err := env.svc.GetByID(ctx, student.ID)
	require.NoError(t, err)
	assert.True(t, got.Details.EnrollmentDate.Time.Equal(activatedAt))

	_, err = env.svc.SetEnrollmentStatus(ctx, admin.ID, user.EnrollmentActive)
	assert.Equal(t, user.ErrNotStudent, err)
	_, err = env.svc.SetEnrollmentStatus(ctx, 9999, user.EnrollmentActive)
	assert.Equal(t, user.ErrNotFound, errors.Cause(err))
}

func TestService_Query(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	now := time.Now().UTC()
	testutil.CreateUser(t, env.repo, "Admin", "admin@test.test", "", user.RoleAdmin, true, now.Add(-3*time.Hour))
	asha := testutil.CreateStudent(t, env.repo, "Asha", "asha@test.test", "", user.EnrollmentActive, now)
	testutil.CreateStudent(t, env.repo, "Ravi", "ravi@test.test", "", user.EnrollmentPending, time.Time{})

	active := true
	tests := []struct {
		name   string
		filter user.QueryFilter
		want   []string
	}{
		{name: "all", want: []string{"Ravi", "Asha", "Admin"}},
		{name: "students", filter: user.QueryFilter{Role: user.RoleStudent}, want: []string{"Ravi", "Asha"}},
		{name: "search", filter: user.QueryFilter{Search: "ASH"}, want: []string{"Asha"}},
		{name: "enrollment", filter: user.QueryFilter{EnrollmentStatus: user.EnrollmentPending}, want: []string{"Ravi"}},
		{name: "active admins", filter: user.QueryFilter{Role: user.RoleAdmin, IsActive: &active}, want: []string{"Admin"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users, err := env.svc.Query(ctx, tt.filter, []core.DBOrdering{{Field: "created_at"}, {Field: "id"}})
			require.NoError(t, err)
			names := make([]string, 0, len(users))
			for _, u := range users {
				names = append(names, u.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}

	users, err := env.svc.Query(ctx, user.QueryFilter{Search: "asha"}, nil)
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.NotNil(t, users[0].Details)
	assert.Equal(t, asha.ID, users[0].ID)
	assert.Equal(t, user.EnrollmentActive, users[0].Details.EnrollmentStatus)
}

func TestService_Delete(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	student := testutil.CreateStudent(t, env.repo, "Student", "student@test.test", "", user.EnrollmentActive, time.Now())

	env.dep.err = errors.New("boom")
	err := env.svc.Delete(ctx, student.ID)
	assert.Error(t, err)
	_, err = env.svc.GetByID(ctx, student.ID)
	require.NoError(t, err, "failed deletion must be rolled back")
	assert.False(t, env.dep.cleanedUp)

	env.dep.err = nil
	require.NoError(t, env.svc.Delete(ctx, student.ID))
	assert.Equal(t, []int64{student.ID}, env.dep.deleted)
	assert.True(t, env.dep.cleanedUp)
	_, err = env.svc.GetByID(ctx, student.ID)
	assert.Equal(t, user.ErrNotFound, errors.Cause(err))
}

func TestService_PasswordReset(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	usr := testutil.CreateUser(t, env.repo, "Admin", "admin@test.test", "old-pwd", user.RoleAdmin, true)

	require.NoError(t, env.svc.RequestPasswordReset(ctx, "ADMIN@test.test"))
	sent := env.mailSvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "admin@test.test", sent[0].To[0].Address)
	data := sent[0].TemplateData.(map[string]interface{})
	uid, token := data["UID"].(string), data["Token"].(string)
	assert.Equal(t, user.EncodeUID(usr), uid)

	rp := user.ResetUserPassword{UID: uid, Token: token, Password: "new-pwd", PasswordConfirm: "new-pwd"}
	require.NoError(t, env.svc.ResetPassword(ctx, rp))
	got, err := env.svc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.NoError(t, got.CheckPassword("new-pwd"))

	// the token stops working once the password changed
	assert.Error(t, env.svc.ResetPassword(ctx, rp))
	rp.UID = user.EncodeUID(user.User{ID: 404})
	assert.Error(t, env.svc.ResetPassword(ctx, rp))

	assert.Equal(t, user.ErrNotFound, errors.Cause(env.svc.RequestPasswordReset(ctx, "nobody@test.test")))
}

func TestService_SaveAdmin(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	admin, err := env.svc.SaveAdmin(ctx, user.NewAdmin{Name: "Admin", Email: "admin@test.test", Password: "pwd1"})
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin())

	// saving again updates the same account
	again, err := env.svc.SaveAdmin(ctx, user.NewAdmin{Name: "Head Admin", Email: "admin@test.test", Password: "pwd2"})
	require.NoError(t, err)
	assert.Equal(t, admin.ID, again.ID)

	got, err := env.svc.GetByEmail(ctx, "admin@test.test")
	require.NoError(t, err)
	assert.Equal(t, "Head Admin", got.Name)
	assert.NoError(t, got.CheckPassword("pwd2"))

	require.NoError(t, env.svc.SetPassword(ctx, "admin@test.test", "pwd3"))
	got, err = env.svc.GetByID(ctx, admin.ID)
	require.NoError(t, err)
	assert.NoError(t, got.CheckPassword("pwd3"))
}
