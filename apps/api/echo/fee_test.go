package echoapi_test

import (
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/natya/apps/api/echo"
	"github.com/trezcool/natya/core"
	"github.com/trezcool/natya/core/fee"
	"github.com/trezcool/natya/core/user"
	"github.com/trezcool/natya/tests"
)

func Test_feeApi_endToEnd(t *testing.T) {
	env := setup(t, func(conf *core.Config) {
		conf.Fees.DueDay = 5
		conf.Fees.GraceDays = 2
		conf.Fees.PerDayPenalty = 50
	})
	now := time.Date(2025, time.May, 3, 10, 0, 0, 0, time.UTC)
	fee.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { fee.NowFunc = time.Now })

	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin@test.test", "", user.RoleAdmin, true)
	student := testutil.CreateStudent(t, env.usrRepo, "Asha", "asha@test.test", "", user.EnrollmentActive, now.AddDate(0, -3, 0))
	testutil.CreateStudent(t, env.usrRepo, "Ravi", "ravi@test.test", "", user.EnrollmentPaused, now.AddDate(0, -3, 0))
	adminToken := env.getToken(t, admin)
	studentToken := env.getToken(t, student)

	runHTTPTests(t, env, []httpTest{
		{
			name: "students cannot generate", method: http.MethodPost, path: "/v1/fees/generate", token: studentToken,
			body: []byte(`{"month": 5, "year": 2025, "base_amount": 2000}`), wantCode: http.StatusForbidden,
		},
		{
			name: "invalid month", method: http.MethodPost, path: "/v1/fees/generate", token: adminToken,
			body: []byte(`{"month": 13, "year": 2025, "base_amount": 2000}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "policy", path: "/v1/fees/policy", token: studentToken, wantCode: http.StatusOK,
			wantData: marchallObj(t, echoapi.FeePolicy{DueDay: 5, GraceDays: 2, PerDayPenalty: 50}),
		},
		{
			name: "nothing to pay yet", method: http.MethodPost, path: "/v1/fees/pay", token: studentToken,
			wantCode: http.StatusBadRequest,
		},
	})

	generate := []byte(`{"month": 5, "year": 2025, "base_amount": 2000}`)
	rec := env.serve(newAuthRequest(http.MethodPost, "/v1/fees/generate", adminToken, generate))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte(`{"created": 1}`)}, rec)

	// generation is idempotent
	rec = env.serve(newAuthRequest(http.MethodPost, "/v1/fees/generate", adminToken, generate))
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte(`{"created": 0}`)}, rec)

	// screenshot is required
	period := map[string]string{"month": "5", "year": "2025"}
	rec = env.serve(newMultipartRequest(t, "/v1/fees/pay", studentToken, period, nil))
	checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: []byte(`{"screenshot": "this field is required"}`)}, rec)

	// unsupported file
	rec = env.serve(newMultipartRequest(t, "/v1/fees/pay", studentToken, period, map[string][]byte{"screenshot": []byte("plain text")}))
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: []byte(`{"screenshot": "only JPEG, PNG, WEBP and PDF files are allowed"}`),
	}, rec)

	// pay before the due date
	rec = env.serve(newMultipartRequest(t, "/v1/fees/pay", studentToken, period, map[string][]byte{"screenshot": testutil.PNG}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var r fee.Record
	decode(t, rec, &r)
	assert.Equal(t, fee.StatusUploaded, r.Status)
	assert.EqualValues(t, 0, r.PenaltyAmount)
	assert.EqualValues(t, 2000, r.TotalAmount)
	recordPath := "/v1/fees/" + strconv.FormatInt(r.ID, 10)

	rec = env.serve(newAuthRequest(http.MethodGet, "/v1/fees?status=uploaded", adminToken))
	require.Equal(t, http.StatusOK, rec.Code)
	var records []fee.StudentRecord
	decode(t, rec, &records)
	require.Len(t, records, 1)
	assert.Equal(t, "Asha", records[0].StudentName)

	rec = env.serve(newAuthRequest(http.MethodGet, recordPath+"/screenshot", adminToken))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testutil.PNG, rec.Body.Bytes())

	// verified a week later, the penalty stays frozen at the submission instant
	now = now.AddDate(0, 0, 7)
	rec = env.serve(newAuthRequest(http.MethodPut, recordPath+"/verify", adminToken, []byte(`{"status": "verified"}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &r)
	assert.Equal(t, fee.StatusVerified, r.Status)
	assert.EqualValues(t, 0, r.PenaltyAmount)
	assert.EqualValues(t, 2000, r.AmountPaid.Int64)
	require.True(t, r.PaymentDate.Valid)
	assert.True(t, r.PaymentDate.Time.Equal(now), r.PaymentDate.Time)

	rec = env.serve(newAuthRequest(http.MethodGet, "/v1/fees/me", studentToken))
	require.Equal(t, http.StatusOK, rec.Code)
	var ov fee.Overview
	decode(t, rec, &ov)
	require.NotNil(t, ov.Current)
	assert.Equal(t, r.ID, ov.Current.ID)
	assert.EqualValues(t, 0, ov.Current.PenaltyAmount)
	assert.EqualValues(t, 2000, ov.Current.TotalAmount)
	require.Len(t, ov.History, 1)

	// settled records cannot be verified again
	rec = env.serve(newAuthRequest(http.MethodPut, recordPath+"/verify", adminToken, []byte(`{"status": "rejected"}`)))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.serve(newAuthRequest(http.MethodPost, "/v1/fees/cash", adminToken,
		[]byte(`{"user_id": `+strconv.FormatInt(student.ID, 10)+`, "month": 5, "year": 2025, "amount": 2000}`)))
	assert.Equal(t, http.StatusConflict, rec.Code)

	assert.Empty(t, env.logger.Errors())
}

func Test_feeApi_cashPayment(t *testing.T) {
	env := setup(t)
	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin@test.test", "", user.RoleAdmin, true)
	student := testutil.CreateStudent(t, env.usrRepo, "Asha", "asha@test.test", "", user.EnrollmentActive, time.Now())
	adminToken := env.getToken(t, admin)

	body := []byte(`{"user_id": ` + strconv.FormatInt(student.ID, 10) + `, "month": 1, "year": 2025, "amount": 1800, "notes": "Paid at the desk"}`)
	rec := env.serve(newAuthRequest(http.MethodPost, "/v1/fees/cash", adminToken, body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var r fee.Record
	decode(t, rec, &r)
	assert.Equal(t, fee.StatusPaid, r.Status)
	assert.Equal(t, fee.MethodCash, r.PaymentMethod.String)
	assert.EqualValues(t, 1800, r.AmountPaid.Int64)

	rec = env.serve(newAuthRequest(http.MethodGet, "/v1/fees/"+strconv.FormatInt(r.ID, 10)+"/screenshot", adminToken))
	checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "payment screenshot not found"})}, rec)
}
