// Package testutil contains helpers shared by the package tests.
package testutil

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/natya/core"
	"github.com/trezcool/natya/core/user"
	appfs "github.com/trezcool/natya/fs"
	"github.com/trezcool/natya/services/email"
	"github.com/trezcool/natya/services/filestore"
	"github.com/trezcool/natya/storage/database"
)

// PNG is the smallest content sniffed as image/png.
var PNG = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

// PNGUpload returns an upload of PNG content.
func PNGUpload(filename string) core.Upload {
	return core.Upload{Filename: filename, Content: bytes.NewReader(PNG)}
}

// Logger records logged errors.
type Logger struct {
	mu     sync.Mutex
	errors []string
}

func (l *Logger) Debug(string, ...interface{}) {}
func (l *Logger) Info(string, ...interface{})  {}
func (l *Logger) Warn(string, ...interface{})  {}
func (l *Logger) Error(msg string, _ ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}
func (l *Logger) Fatal(msg string, _ ...interface{}) { panic(msg) }

func (l *Logger) Errors() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.errors...)
}

// PrepareConfig returns a test config backed by a fresh SQLite database and upload dir.
func PrepareConfig(t *testing.T) *core.Config {
	t.Helper()
	dir := t.TempDir()
	conf := core.NewTestConfig()
	conf.Database.Engine = database.EngineSQLite
	conf.Database.Name = filepath.Join(dir, "natya_test.db")
	conf.Uploads.Backend = "local"
	conf.Uploads.Dir = filepath.Join(dir, "uploads")
	return conf
}

// PrepareDB opens and migrates the database of conf. It is closed when the test ends.
func PrepareDB(t *testing.T, conf *core.Config) *sqlx.DB {
	t.Helper()
	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("database.Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db); err != nil {
		t.Fatalf("database.Migrate() failed: %v", err)
	}
	return db
}

func NewValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	return validate, translator
}

// NewEmailService returns a synchronous email service recording the sent messages.
func NewEmailService(t *testing.T, conf *core.Config, logger core.Logger) *emailsvc.ConsoleService {
	t.Helper()
	tmpls := core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf, logger)
	return emailsvc.NewConsoleServiceMock(conf, tmpls, logger)
}

func NewFileStore(t *testing.T, conf *core.Config) *filestore.LocalStore {
	t.Helper()
	store, err := filestore.NewLocalStore(conf.Uploads.Dir, conf.Uploads.MaxSize)
	if err != nil {
		t.Fatalf("filestore.NewLocalStore() failed: %v", err)
	}
	return store
}

// UserCreator is satisfied by user.Repository.
type UserCreator interface {
	CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error)
	CreateStudentDetails(ctx context.Context, details user.StudentDetails, exec ...core.DBExecutor) error
}

func CreateUser(t *testing.T, repo UserCreator, name, email, pwd, role string, isActive bool, createdAt ...time.Time) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Role:      role,
		Name:      name,
		Email:     email,
		Phone:     "+910000000000",
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd == "" {
		pwd = "unusable"
	}
	if err := usr.SetPassword(pwd); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateStudent creates an active student login with the given enrollment status.
// A zero enrolledAt leaves the enrollment date unset.
func CreateStudent(t *testing.T, repo UserCreator, name, email, pwd, status string, enrolledAt time.Time) user.User {
	t.Helper()
	usr := CreateUser(t, repo, name, email, pwd, user.RoleStudent, true)
	details := user.StudentDetails{
		UserID:           usr.ID,
		EnrollmentStatus: status,
		EnrollmentDate:   null.NewTime(enrolledAt.UTC(), !enrolledAt.IsZero()),
	}
	if err := repo.CreateStudentDetails(context.Background(), details); err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	usr.Details = &details
	return usr
}

