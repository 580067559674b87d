package echoapi_test

import (
	"net/http"
	"regexp"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/natya/apps/api/echo"
	"github.com/trezcool/natya/core/admission"
	"github.com/trezcool/natya/core/user"
	"github.com/trezcool/natya/tests"
)

const applicantPhone = "+919876543210"

// verifyPhone goes through the OTP flow of the API for phone.
func (env testEnv) verifyPhone(t *testing.T, phone string) {
	t.Helper()
	rec := env.serve(newRequest(http.MethodPost, "/v1/otp/send", []byte(`{"phone": "`+phone+`"}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sent echoapi.OTPSentResponse
	decode(t, rec, &sent)
	require.Len(t, sent.Code, env.conf.OTP.Length)

	body := []byte(`{"phone": "` + phone + `", "code": "` + sent.Code + `"}`)
	rec = env.serve(newRequest(http.MethodPost, "/v1/otp/verify", body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func applicationFields(email string) map[string]string {
	return map[string]string{
		"name":        "Kavya Menon",
		"email":       email,
		"phone":       applicantPhone,
		"dance_style": "Bharatanatyam",
		"gender":      "female",
	}
}

func Test_otpApi(t *testing.T) {
	env := setup(t)

	runHTTPTests(t, env, []httpTest{
		{
			name: "invalid phone", method: http.MethodPost, path: "/v1/otp/send", body: []byte(`{"phone": "12ab"}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"phone": "enter a valid phone number"}`),
		},
		{
			name: "no code sent", method: http.MethodPost, path: "/v1/otp/verify", body: []byte(`{"phone": "` + applicantPhone + `", "code": "123456"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "invalid or expired code"}),
		},
	})

	rec := env.serve(newRequest(http.MethodPost, "/v1/otp/send", []byte(`{"phone": "`+applicantPhone+`"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	var sent echoapi.OTPSentResponse
	decode(t, rec, &sent)

	wrong := "000000"
	if sent.Code == wrong {
		wrong = "111111"
	}
	rec = env.serve(newRequest(http.MethodPost, "/v1/otp/verify", []byte(`{"phone": "`+applicantPhone+`", "code": "`+wrong+`"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// resend within the resend interval
	rec = env.serve(newRequest(http.MethodPost, "/v1/otp/send", []byte(`{"phone": "`+applicantPhone+`"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func Test_admissionApi_endToEnd(t *testing.T) {
	env := setup(t)
	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin@test.test", "", user.RoleAdmin, true)
	adminToken := env.getToken(t, admin)
	files := map[string][]byte{"id_proof": testutil.PNG, "payment_screenshot": testutil.PNG}

	// unverified phone
	rec := env.serve(newMultipartRequest(t, "/v1/admissions", "", applicationFields("kavya@test.test"), files))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	// missing files
	env.verifyPhone(t, applicantPhone)
	rec = env.serve(newMultipartRequest(t, "/v1/admissions", "", applicationFields("kavya@test.test"), nil))
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: []byte(`{"id_proof": "this field is required", "payment_screenshot": "this field is required"}`),
	}, rec)

	// submit
	rec = env.serve(newMultipartRequest(t, "/v1/admissions", "", applicationFields("kavya@test.test"), files))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var pa admission.PreAdmission
	decode(t, rec, &pa)
	assert.Equal(t, admission.TypeAdmission, pa.Type)
	assert.Equal(t, admission.PaymentUploaded, pa.PaymentStatus)
	assert.Equal(t, admission.StatusPending, pa.ApplicationStatus)
	appPath := "/v1/admissions/" + strconv.FormatInt(pa.ID, 10)

	// the verified code gated a single submission
	rec = env.serve(newMultipartRequest(t, "/v1/admissions", "", applicationFields("other@test.test"), files))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	runHTTPTests(t, env, []httpTest{
		{name: "admin required", path: "/v1/admissions", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "approve before payment verification", method: http.MethodPost, path: appPath + "/approve", token: adminToken,
			wantCode: http.StatusUnprocessableEntity, wantData: marchallObj(t, httpErr{Error: "payment has not been verified"}),
		},
		{
			name: "schedule trial of an admission", method: http.MethodPost, path: appPath + "/schedule-trial", token: adminToken,
			body: []byte(`{"date": "2025-06-10", "time": "17:00"}`), wantCode: http.StatusUnprocessableEntity,
		},
		{name: "unknown file kind", path: appPath + "/files/photo", token: adminToken, wantCode: http.StatusNotFound},
	})

	rec = env.serve(newAuthRequest(http.MethodGet, appPath+"/files/payment", adminToken))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, testutil.PNG, rec.Body.Bytes())

	rec = env.serve(newAuthRequest(http.MethodPut, appPath+"/payment", adminToken, []byte(`{"status": "verified"}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// approve
	rec = env.serve(newAuthRequest(http.MethodPost, appPath+"/approve", adminToken, []byte(`{"notes": "Welcome!"}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var approved echoapi.AdmissionApproved
	decode(t, rec, &approved)
	assert.Equal(t, admission.StatusApproved, approved.Application.ApplicationStatus)
	assert.EqualValues(t, admin.ID, approved.Application.ApprovedBy.Int64)
	assert.Regexp(t, regexp.MustCompile(`^NA\d{6}$`), approved.Student.StudentID.String)
	require.NotNil(t, approved.Student.Details)
	assert.Equal(t, "Bharatanatyam", approved.Student.Details.DanceStyle)

	// the credentials are emailed to the new student
	var pwd string
	for _, msg := range env.mailSvc.SentMessages() {
		if msg.TemplateName == "admission_approved" {
			data, _ := msg.TemplateData.(map[string]interface{})
			pwd, _ = data["Password"].(string)
		}
	}
	require.NotEmpty(t, pwd)

	rec = env.serve(newRequest(http.MethodPost, "/v1/users/login", marchallObj(t, echoapi.LoginRequest{Email: "kavya@test.test", Password: pwd})))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var login echoapi.LoginResponse
	decode(t, rec, &login)

	rec = env.serve(newAuthRequest(http.MethodGet, "/v1/users/me", login.Token))
	require.Equal(t, http.StatusOK, rec.Code)
	var me user.User
	decode(t, rec, &me)
	assert.Equal(t, approved.Student.ID, me.ID)
	assert.Equal(t, user.RoleStudent, me.Role)
	require.NotNil(t, me.Details)
	assert.Equal(t, user.EnrollmentActive, me.Details.EnrollmentStatus)

	// decided applications are final
	rec = env.serve(newAuthRequest(http.MethodPost, appPath+"/reject", adminToken))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	assert.Empty(t, env.logger.Errors())
}

func Test_admissionApi_trial(t *testing.T) {
	env := setup(t)
	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin@test.test", "", user.RoleAdmin, true)
	adminToken := env.getToken(t, admin)

	env.verifyPhone(t, applicantPhone)
	fields := applicationFields("kavya@test.test")
	fields["preferred_date"] = "2025-06-10"
	rec := env.serve(newMultipartRequest(t, "/v1/admissions/trial", "", fields, nil))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var pa admission.PreAdmission
	decode(t, rec, &pa)
	assert.Equal(t, admission.TypeTrial, pa.Type)
	assert.False(t, pa.IDProof.Valid)
	appPath := "/v1/admissions/" + strconv.FormatInt(pa.ID, 10)

	rec = env.serve(newAuthRequest(http.MethodGet, "/v1/admissions?status=pending", adminToken))
	require.Equal(t, http.StatusOK, rec.Code)
	var apps []admission.PreAdmission
	decode(t, rec, &apps)
	require.Len(t, apps, 1)

	rec = env.serve(newAuthRequest(http.MethodPost, appPath+"/schedule-trial", adminToken, []byte(`{"date": "2025-06-12", "time": "25:00"}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: []byte(`{"time": "enter a valid time (HH:MM)"}`)}, rec)

	rec = env.serve(newAuthRequest(http.MethodPost, appPath+"/schedule-trial", adminToken, []byte(`{"date": "2025-06-12", "time": "17:30"}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &pa)
	assert.Equal(t, admission.StatusTrialScheduled, pa.ApplicationStatus)
	assert.Equal(t, "2025-06-12", pa.TrialDate.String)
	msgs := env.mailSvc.SentMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "trial_scheduled", msgs[0].TemplateName)
	assert.Equal(t, "kavya@test.test", msgs[0].To[0].Address)

	rec = env.serve(newAuthRequest(http.MethodPost, appPath+"/complete-trial", adminToken, []byte(`{"notes": "Natural talent"}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &pa)
	assert.Equal(t, admission.StatusApproved, pa.ApplicationStatus)

	rec = env.serve(newAuthRequest(http.MethodGet, "/v1/admissions?status=pending", adminToken))
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &apps)
	assert.Empty(t, apps)
}
