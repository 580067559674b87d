package emailsvc

import (
	"bytes"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/trezcool/natya/core"
	appfs "github.com/trezcool/natya/fs"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type testLogger struct {
	errors []string
}

func (l *testLogger) Debug(string, ...interface{}) {}
func (l *testLogger) Info(string, ...interface{})  {}
func (l *testLogger) Warn(string, ...interface{})  {}
func (l *testLogger) Error(msg string, _ ...interface{}) {
	l.errors = append(l.errors, msg)
}
func (l *testLogger) Fatal(msg string, _ ...interface{}) { panic(msg) }

func newTestService(t *testing.T) (*ConsoleService, *bytes.Buffer) {
	t.Helper()
	conf := core.NewTestConfig()
	logger := new(testLogger)
	tmpls := core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf, logger)
	require.True(t, tmpls.Has("trial_scheduled"))
	require.Empty(t, logger.errors)

	svc := NewConsoleService(conf, tmpls, logger)
	out := new(bytes.Buffer)
	svc.out = out
	return svc, out
}

func TestConsoleService_SendMessages(t *testing.T) {
	svc, out := newTestService(t)

	svc.SendMessages(
		&core.EmailMessage{
			To:           []mail.Address{{Name: "Asha", Address: "asha@test.test"}},
			Subject:      "Your Trial Class Is Scheduled",
			TemplateName: "trial_scheduled",
			TemplateData: map[string]interface{}{"Name": "Asha", "Date": "2025-05-01", "Time": "10:00", "Notes": ""},
		},
		&core.EmailMessage{
			To:      []mail.Address{{Address: "ravi@test.test"}},
			Subject: "Plain",
			BodyStr: "hello",
		},
		// no recipient: dropped
		&core.EmailMessage{Subject: "Nobody", BodyStr: "hello"},
	)
	svc.Wait()

	sent := svc.SentMessages()
	require.Len(t, sent, 2)
	for _, msg := range sent {
		if msg.TemplateName == "trial_scheduled" {
			assert.Contains(t, msg.TextContent, "2025-05-01")
			assert.Contains(t, msg.TextContent, "10:00")
		}
	}
	assert.Contains(t, out.String(), "Subject: [Natya] Your Trial Class Is Scheduled")
	assert.Contains(t, out.String(), "multipart/mixed")
}

func TestConsoleService_RenderError(t *testing.T) {
	svc, out := newTestService(t)

	// missing keys fail rendering in test mode
	svc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: "asha@test.test"}},
		Subject:      "Broken",
		TemplateName: "trial_scheduled",
		TemplateData: map[string]interface{}{"Name": "Asha"},
	})
	svc.Wait()

	assert.Empty(t, svc.SentMessages())
	assert.False(t, strings.Contains(out.String(), "Broken"))
}

func TestConsoleServiceMock(t *testing.T) {
	conf := core.NewTestConfig()
	logger := new(testLogger)
	tmpls := core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf, logger)
	svc := NewConsoleServiceMock(conf, tmpls, logger)

	svc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: "asha@test.test"}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{"Name": "Asha", "UID": "MQ", "Token": "tok-en"},
	})

	// sent synchronously
	sent := svc.SentMessages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].TextContent, "tok-en")
	assert.Contains(t, sent[0].HTMLContent, "tok-en")
}
