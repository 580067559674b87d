package echoapi_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/natya/apps/api/echo"
	"github.com/trezcool/natya/core"
	"github.com/trezcool/natya/core/admission"
	"github.com/trezcool/natya/core/branch"
	"github.com/trezcool/natya/core/certificate"
	"github.com/trezcool/natya/core/document"
	"github.com/trezcool/natya/core/fee"
	"github.com/trezcool/natya/core/meeting"
	"github.com/trezcool/natya/core/otp"
	"github.com/trezcool/natya/core/schedule"
	"github.com/trezcool/natya/core/user"
	emailsvc "github.com/trezcool/natya/services/email"
	"github.com/trezcool/natya/storage/database/sqlx"
	"github.com/trezcool/natya/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testEnv struct {
	app     *echoapi.Server
	conf    *core.Config
	usrRepo user.Repository
	userSvc *user.Service
	mailSvc *emailsvc.ConsoleService
	logger  *testutil.Logger
}

// setup wires a server on a fresh database. confFns run before any service is built.
func setup(t *testing.T, confFns ...func(*core.Config)) testEnv {
	t.Helper()
	conf := testutil.PrepareConfig(t)
	conf.Academy.DefaultBranchCode = "NA"
	for _, fn := range confFns {
		fn(conf)
	}
	db := testutil.PrepareDB(t, conf)
	logger := new(testutil.Logger)
	validate, translator := testutil.NewValidator()
	user.InitValidators(validate, translator)
	mailSvc := testutil.NewEmailService(t, conf, logger)
	files := testutil.NewFileStore(t, conf)

	usrRepo := sqlxrepos.NewUserRepository(db)
	branchRepo := sqlxrepos.NewBranchRepository(db)

	otpSvc := otp.NewService(sqlxrepos.NewOTPRepository(db), conf)
	feeSvc := fee.NewService(db, sqlxrepos.NewFeeRepository(db), usrRepo, files, mailSvc, logger, conf)
	certSvc := certificate.NewService(db, sqlxrepos.NewCertificateRepository(db), usrRepo, mailSvc, logger, conf)
	scheduleSvc := schedule.NewService(sqlxrepos.NewScheduleRepository(db), usrRepo)
	documentSvc := document.NewService(sqlxrepos.NewDocumentRepository(db), usrRepo, files, logger)
	userSvc := user.NewService(db, usrRepo, mailSvc, conf, documentSvc, scheduleSvc, feeSvc, certSvc)

	app := echoapi.NewServer(echoapi.ServerDeps{
		Conf:       conf,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,
		UserSvc:    userSvc,
		OTPSvc:     otpSvc,
		BranchSvc:  branch.NewService(branchRepo),
		AdmissionSvc: admission.NewService(
			db, sqlxrepos.NewAdmissionRepository(db), otpSvc, userSvc, branchRepo, files, mailSvc, logger, conf,
		),
		FeeSvc:         feeSvc,
		CertificateSvc: certSvc,
		MeetingSvc:     meeting.NewService(sqlxrepos.NewMeetingRepository(db), mailSvc),
		ScheduleSvc:    scheduleSvc,
		DocumentSvc:    documentSvc,
	})
	t.Cleanup(func() { _ = app.Close() })

	return testEnv{
		app:     app,
		conf:    conf,
		usrRepo: usrRepo,
		userSvc: userSvc,
		mailSvc: mailSvc,
		logger:  logger,
	}
}

func (env testEnv) serve(req *http.Request, rec *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	env.app.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// newMultipartRequest builds a multipart/form-data POST request of fields and files.
func newMultipartRequest(
	t *testing.T,
	path, token string,
	fields map[string]string,
	files map[string][]byte,
) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for field, content := range files {
		fw, err := w.CreateFormFile(field, field+".png")
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func (env testEnv) getToken(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := env.app.Token(usr)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList(): %v", err)
	}
	return data
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode(%s): %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, env testEnv, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			checkCodeAndData(t, tt, env.serve(newAuthRequest(method, tt.path, tt.token, tt.body)))
		})
	}
}
