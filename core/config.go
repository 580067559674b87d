package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env                       string // DEV (local; default), TEST, QA, PROD
		Build                     string
		Debug                     bool
		TestMode                  bool
		AppName                   string
		SecretKey                 string
		FrontendBaseURL           string
		DefaultFromEmail          mail.Address
		SendgridApiKey            string
		RollbarToken              string
		PasswordResetTimeoutDelta time.Duration

		Server       serverConfig
		Database     dbConfig
		OTP          otpConfig
		Fees         feeConfig
		Certificates certificateConfig
		Uploads      uploadConfig
		Academy      academyConfig
	}

	serverConfig struct {
		Host                      string
		Port                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		DisableReqLogs            bool
	}

	dbConfig struct {
		Engine        string // sqlite3 | postgres
		Name          string // file path for sqlite3
		Host          string
		Port          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	otpConfig struct {
		Length         int
		TTL            time.Duration
		ResendInterval time.Duration
		MaxAttempts    int
		VerifiedWindow time.Duration
		PurgeSchedule  string
	}

	feeConfig struct {
		DueDay        int
		GraceDays     int
		PerDayPenalty int64
	}

	certificateConfig struct {
		NumberPrefix  string
		EligibleAfter time.Duration
	}

	uploadConfig struct {
		Backend string // local | oss
		Dir     string
		MaxSize int64
		OSS     ossConfig
	}

	ossConfig struct {
		Endpoint        string
		AccessKeyID     string
		AccessKeySecret string
		Bucket          string
		Prefix          string
	}

	academyConfig struct {
		DefaultBranchCode string
		CountryCode       string // calling code of local phone numbers
	}
)

func (c serverConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c dbConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// NewConfig loads the application configuration from defaults, the optional `config/.env.<env>` file and
// the environment (prefixed with the current ENV, e.g. DEV_SERVER_PORT).
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "Natya")
	v.SetDefault("secretKey", "r3k!x9-wq$+8yd=2&mt_v0#ahl(4zc@e7fj^n1u6gb%o5pis)")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "Natya <noreply@localhost>")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("server.host", "")
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.debugHost", "localhost:4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.disableReqLogs", false)

	v.SetDefault("database.engine", "sqlite3")
	v.SetDefault("database.name", "natya.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", false)

	v.SetDefault("otp.length", 6)
	v.SetDefault("otp.ttl", 10*time.Minute)
	v.SetDefault("otp.resendInterval", 30*time.Second)
	v.SetDefault("otp.maxAttempts", 5)
	v.SetDefault("otp.verifiedWindow", 30*time.Minute)
	v.SetDefault("otp.purgeSchedule", "@hourly")

	v.SetDefault("fees.dueDay", 5)
	v.SetDefault("fees.graceDays", 2)
	v.SetDefault("fees.perDayPenalty", int64(50))

	v.SetDefault("certificates.numberPrefix", "NTY")
	v.SetDefault("certificates.eligibleAfter", 365*24*time.Hour)

	v.SetDefault("uploads.backend", "local")
	v.SetDefault("uploads.dir", "uploads")
	v.SetDefault("uploads.maxSize", int64(5<<20))
	v.SetDefault("uploads.oss.endpoint", "")
	v.SetDefault("uploads.oss.accessKeyID", "")
	v.SetDefault("uploads.oss.accessKeySecret", "")
	v.SetDefault("uploads.oss.bucket", "")
	v.SetDefault("uploads.oss.prefix", "natya")

	v.SetDefault("academy.defaultBranchCode", "NA")
	v.SetDefault("academy.countryCode", "91")

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	case "PROD":
		v.SetDefault("debug", false)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	confDir := os.Getenv("CONFIG_DIR")
	if confDir == "" {
		confDir = "config"
	}
	dotEnvPath := filepath.Join(confDir, ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	fromEmail, err := mail.ParseAddress(v.GetString("defaultFromEmail"))
	if err != nil {
		log.Fatalf("config.defaultFromEmail: %v", err)
	}

	conf := &Config{
		Env:                       env,
		Build:                     v.GetString("build"),
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("testMode"),
		AppName:                   v.GetString("appName"),
		SecretKey:                 v.GetString("secretKey"),
		FrontendBaseURL:           v.GetString("frontendBaseURL"),
		DefaultFromEmail:          *fromEmail,
		SendgridApiKey:            v.GetString("sendgridApiKey"),
		RollbarToken:              v.GetString("rollbarToken"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		Server: serverConfig{
			Host:                      v.GetString("server.host"),
			Port:                      v.GetString("server.port"),
			DebugHost:                 v.GetString("server.debugHost"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			DisableReqLogs:            v.GetBool("server.disableReqLogs"),
		},
		Database: dbConfig{
			Engine:        v.GetString("database.engine"),
			Name:          v.GetString("database.name"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		OTP: otpConfig{
			Length:         v.GetInt("otp.length"),
			TTL:            v.GetDuration("otp.ttl"),
			ResendInterval: v.GetDuration("otp.resendInterval"),
			MaxAttempts:    v.GetInt("otp.maxAttempts"),
			VerifiedWindow: v.GetDuration("otp.verifiedWindow"),
			PurgeSchedule:  v.GetString("otp.purgeSchedule"),
		},
		Fees: feeConfig{
			DueDay:        v.GetInt("fees.dueDay"),
			GraceDays:     v.GetInt("fees.graceDays"),
			PerDayPenalty: v.GetInt64("fees.perDayPenalty"),
		},
		Certificates: certificateConfig{
			NumberPrefix:  v.GetString("certificates.numberPrefix"),
			EligibleAfter: v.GetDuration("certificates.eligibleAfter"),
		},
		Uploads: uploadConfig{
			Backend: v.GetString("uploads.backend"),
			Dir:     v.GetString("uploads.dir"),
			MaxSize: v.GetInt64("uploads.maxSize"),
			OSS: ossConfig{
				Endpoint:        v.GetString("uploads.oss.endpoint"),
				AccessKeyID:     v.GetString("uploads.oss.accessKeyID"),
				AccessKeySecret: v.GetString("uploads.oss.accessKeySecret"),
				Bucket:          v.GetString("uploads.oss.bucket"),
				Prefix:          v.GetString("uploads.oss.prefix"),
			},
		},
		Academy: academyConfig{
			DefaultBranchCode: v.GetString("academy.defaultBranchCode"),
			CountryCode:       strings.TrimPrefix(v.GetString("academy.countryCode"), "+"),
		},
	}
	if conf.Fees.DueDay < 1 || conf.Fees.DueDay > 28 {
		log.Fatalf("config.fees.dueDay: %d is not in [1, 28]", conf.Fees.DueDay)
	}
	return conf
}

// NewTestConfig returns the configuration used by package tests.
func NewTestConfig() *Config {
	conf := NewConfig()
	conf.Env = "TEST"
	conf.Debug = false
	conf.TestMode = true
	conf.Server.DisableReqLogs = true
	return conf
}
