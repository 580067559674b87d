package fee_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/natya/core"
	"github.com/trezcool/natya/core/fee"
	"github.com/trezcool/natya/core/user"
	emailsvc "github.com/trezcool/natya/services/email"
	"github.com/trezcool/natya/services/filestore"
	"github.com/trezcool/natya/storage/database/sqlx"
	"github.com/trezcool/natya/tests"
)

type testEnv struct {
	svc     *fee.Service
	users   user.Repository
	files   *filestore.LocalStore
	mailSvc *emailsvc.ConsoleService
}

func setup(t *testing.T) testEnv {
	conf := testutil.PrepareConfig(t)
	conf.Fees.DueDay = 5
	conf.Fees.GraceDays = 2
	conf.Fees.PerDayPenalty = 50
	db := testutil.PrepareDB(t, conf)
	logger := new(testutil.Logger)
	users := sqlxrepos.NewUserRepository(db)
	files := testutil.NewFileStore(t, conf)
	mailSvc := testutil.NewEmailService(t, conf, logger)
	t.Cleanup(func() { fee.NowFunc = time.Now })

	return testEnv{
		svc:     fee.NewService(db, sqlxrepos.NewFeeRepository(db), users, files, mailSvc, logger, conf),
		users:   users,
		files:   files,
		mailSvc: mailSvc,
	}
}

func at(year int, month time.Month, day int) func() time.Time {
	return func() time.Time { return time.Date(year, month, day, 9, 0, 0, 0, time.UTC) }
}

func TestService_GenerateMonthlyFees(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	testutil.CreateStudent(t, env.users, "Active 1", "a1@test.test", "", user.EnrollmentActive, time.Now())
	testutil.CreateStudent(t, env.users, "Active 2", "a2@test.test", "", user.EnrollmentActive, time.Now())
	testutil.CreateStudent(t, env.users, "Pending", "p@test.test", "", user.EnrollmentPending, time.Time{})
	testutil.CreateStudent(t, env.users, "Paused", "s@test.test", "", user.EnrollmentPaused, time.Now())
	testutil.CreateUser(t, env.users, "Admin", "admin@test.test", "", user.RoleAdmin, true)

	gf := fee.GenerateFees{Month: 5, Year: 2025, BaseAmount: 2000}
	n, err := env.svc.GenerateMonthlyFees(ctx, gf)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	// idempotent
	n, err = env.svc.GenerateMonthlyFees(ctx, gf)
	require.NoError(t, err)
	assert.Zero(t, n)

	records, err := env.svc.AllFees(ctx, fee.StatusPending)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.EqualValues(t, 2000, r.BaseAmount)
		assert.True(t, r.DueDate.Equal(time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC)))
		assert.Contains(t, []string{"Active 1", "Active 2"}, r.StudentName)
	}
}

func TestService_OnlinePayment(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	student := testutil.CreateStudent(t, env.users, "Asha", "asha@test.test", "", user.EnrollmentActive, time.Now())

	fee.NowFunc = at(2025, time.May, 1)
	_, err := env.svc.GenerateMonthlyFees(ctx, fee.GenerateFees{Month: 5, Year: 2025, BaseAmount: 2000})
	require.NoError(t, err)

	// no record for June
	_, err = env.svc.PayFee(ctx, student.ID, fee.Period{Month: 6, Year: 2025}, testutil.PNGUpload("june.png"))
	assert.Equal(t, fee.ErrNotPayable, errors.Cause(err))

	// 8 days and 9 hours after the due date: 9 started days, 2 of grace
	fee.NowFunc = at(2025, time.May, 13)
	r, err := env.svc.PayFee(ctx, student.ID, fee.Period{Month: 5, Year: 2025}, testutil.PNGUpload("may.png"))
	require.NoError(t, err)
	assert.Equal(t, fee.StatusUploaded, r.Status)
	assert.Equal(t, fee.MethodOnline, r.PaymentMethod.String)
	assert.EqualValues(t, 350, r.PenaltyAmount)

	// uploaded evidence cannot be replaced
	_, err = env.svc.PayFee(ctx, student.ID, fee.Period{Month: 5, Year: 2025}, testutil.PNGUpload("again.png"))
	assert.Equal(t, fee.ErrNotPayable, errors.Cause(err))

	rc, name, err := env.svc.Screenshot(ctx, r.ID)
	require.NoError(t, err)
	_ = rc.Close()
	assert.Equal(t, r.PaymentScreenshot.String, name)

	// verified later: the penalty is the one of the submission
	fee.NowFunc = at(2025, time.May, 20)
	r, err = env.svc.VerifyPayment(ctx, r.ID, fee.Decision{Status: fee.StatusVerified})
	require.NoError(t, err)
	assert.Equal(t, fee.StatusVerified, r.Status)
	assert.EqualValues(t, 350, r.PenaltyAmount)
	assert.EqualValues(t, 2350, r.AmountPaid.Int64)
	assert.True(t, r.PaymentDate.Valid)

	_, err = env.svc.VerifyPayment(ctx, r.ID, fee.Decision{Status: fee.StatusRejected})
	assert.Equal(t, fee.ErrNotUploaded, errors.Cause(err))

	// the penalty stays frozen
	fee.NowFunc = at(2025, time.July, 1)
	ov, err := env.svc.MyFees(ctx, student.ID)
	require.NoError(t, err)
	require.NotNil(t, ov.Current)
	assert.Equal(t, r.ID, ov.Current.ID)
	assert.EqualValues(t, 350, ov.Current.PenaltyAmount)

	sent := env.mailSvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "asha@test.test", sent[0].To[0].Address)
}

func TestService_RejectedPayment(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	student := testutil.CreateStudent(t, env.users, "Asha", "asha@test.test", "", user.EnrollmentActive, time.Now())
	fee.NowFunc = at(2025, time.May, 2)
	_, err := env.svc.GenerateMonthlyFees(ctx, fee.GenerateFees{Month: 5, Year: 2025, BaseAmount: 2000})
	require.NoError(t, err)

	r, err := env.svc.PayFee(ctx, student.ID, fee.Period{Month: 5, Year: 2025}, testutil.PNGUpload("blurry.png"))
	require.NoError(t, err)
	first := r.PaymentScreenshot.String

	r, err = env.svc.VerifyPayment(ctx, r.ID, fee.Decision{Status: fee.StatusRejected, Notes: "unreadable"})
	require.NoError(t, err)
	assert.Equal(t, fee.StatusRejected, r.Status)
	assert.False(t, r.SubmittedAt.Valid)

	// a rejected fee can be paid again; the previous evidence is dropped
	r, err = env.svc.PayFee(ctx, student.ID, fee.Period{Month: 5, Year: 2025}, testutil.PNGUpload("clear.png"))
	require.NoError(t, err)
	assert.Equal(t, fee.StatusUploaded, r.Status)
	assert.NotEqual(t, first, r.PaymentScreenshot.String)
	_, err = env.files.Open(ctx, core.CategoryPayments, first)
	assert.Equal(t, filestore.ErrFileNotFound, errors.Cause(err))
}

func TestService_RecordCashPayment(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	student := testutil.CreateStudent(t, env.users, "Asha", "asha@test.test", "", user.EnrollmentActive, time.Now())
	admin := testutil.CreateUser(t, env.users, "Admin", "admin@test.test", "", user.RoleAdmin, true)
	fee.NowFunc = at(2025, time.May, 3)

	// no record yet: it is created settled
	r, err := env.svc.RecordCashPayment(ctx, fee.CashPayment{UserID: student.ID, Month: 4, Year: 2025, Amount: 2100})
	require.NoError(t, err)
	assert.Equal(t, fee.StatusPaid, r.Status)
	assert.Equal(t, fee.MethodCash, r.PaymentMethod.String)
	assert.EqualValues(t, 2100, r.AmountPaid.Int64)

	_, err = env.svc.RecordCashPayment(ctx, fee.CashPayment{UserID: student.ID, Month: 4, Year: 2025, Amount: 2100})
	assert.Equal(t, fee.ErrAlreadySettled, errors.Cause(err))

	// an existing pending record is settled
	_, err = env.svc.GenerateMonthlyFees(ctx, fee.GenerateFees{Month: 5, Year: 2025, BaseAmount: 2000})
	require.NoError(t, err)
	r, err = env.svc.RecordCashPayment(ctx, fee.CashPayment{UserID: student.ID, Month: 5, Year: 2025, Amount: 2000, Notes: "at desk"})
	require.NoError(t, err)
	assert.Equal(t, fee.StatusPaid, r.Status)
	assert.Equal(t, "at desk", r.AdminNotes)

	_, err = env.svc.RecordCashPayment(ctx, fee.CashPayment{UserID: admin.ID, Month: 5, Year: 2025, Amount: 2000})
	assert.Equal(t, user.ErrNotStudent, errors.Cause(err))
}

func TestService_MyFees(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	student := testutil.CreateStudent(t, env.users, "Asha", "asha@test.test", "", user.EnrollmentActive, time.Now())
	fee.NowFunc = at(2025, time.March, 1)
	for _, month := range []int{3, 4, 5} {
		_, err := env.svc.GenerateMonthlyFees(ctx, fee.GenerateFees{Month: month, Year: 2025, BaseAmount: 2000})
		require.NoError(t, err)
	}
	_, err := env.svc.RecordCashPayment(ctx, fee.CashPayment{UserID: student.ID, Month: 3, Year: 2025, Amount: 2000})
	require.NoError(t, err)

	// April is 12 days late, May is not due yet
	fee.NowFunc = func() time.Time { return time.Date(2025, time.April, 17, 0, 0, 0, 0, time.UTC) }
	ov, err := env.svc.MyFees(ctx, student.ID)
	require.NoError(t, err)
	require.Len(t, ov.History, 3)
	assert.Equal(t, 5, ov.History[0].Month)
	assert.Equal(t, 3, ov.History[2].Month)

	require.NotNil(t, ov.Current)
	assert.Equal(t, 4, ov.Current.Month)
	assert.EqualValues(t, 500, ov.Current.PenaltyAmount)
	assert.EqualValues(t, 2500, ov.Current.TotalAmount)
	assert.Zero(t, ov.History[0].PenaltyAmount)
}

func TestService_DeleteForUsers(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	student := testutil.CreateStudent(t, env.users, "Asha", "asha@test.test", "", user.EnrollmentActive, time.Now())
	fee.NowFunc = at(2025, time.May, 1)
	_, err := env.svc.GenerateMonthlyFees(ctx, fee.GenerateFees{Month: 5, Year: 2025, BaseAmount: 2000})
	require.NoError(t, err)
	r, err := env.svc.PayFee(ctx, student.ID, fee.Period{Month: 5, Year: 2025}, testutil.PNGUpload("may.png"))
	require.NoError(t, err)

	cleanup, err := env.svc.DeleteForUsers(ctx, nil, student.ID)
	require.NoError(t, err)
	require.NotNil(t, cleanup)

	// files are only released by the cleanup
	_, err = env.files.Open(ctx, core.CategoryPayments, r.PaymentScreenshot.String)
	require.NoError(t, err)
	cleanup()
	_, err = env.files.Open(ctx, core.CategoryPayments, r.PaymentScreenshot.String)
	assert.Equal(t, filestore.ErrFileNotFound, errors.Cause(err))

	ov, err := env.svc.MyFees(ctx, student.ID)
	require.NoError(t, err)
	assert.Empty(t, ov.History)
	assert.Nil(t, ov.Current)
}
