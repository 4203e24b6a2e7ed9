package core

import (
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type (
	Config struct {
		AppName          string
		Build            string
		Env              string // DEV (local; default), TEST, QA, PROD
		Debug            bool
		TestMode         bool
		SecretKey        string
		FrontendBaseURL  string
		WorkDir          string
		RollbarToken     string
		SendgridApiKey   string
		defaultFromEmail string

		PasswordResetTimeoutDelta time.Duration

		Server   ServerConfig
		Database DatabaseConfig
		Redis    RedisConfig
		Storage  StorageConfig
		Payment  PaymentConfig
		Revenue  RevenueConfig
		OTP      OTPConfig
	}

	ServerConfig struct {
		Host                      string
		Address                   string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		AllowedOrigins            []string
	}

	DatabaseConfig struct {
		Engine        string // postgres | inmem
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	RedisConfig struct {
		URL          string
		PoolSize     int
		MinIdleConns int
		DialTimeout  time.Duration
		ReadTimeout  time.Duration
		WriteTimeout time.Duration
	}

	StorageConfig struct {
		Driver          string // local | oss
		LocalDir        string
		PublicBaseURL   string
		OSSEndpoint     string
		OSSAccessKey    string
		OSSSecretKey    string
		OSSBucket       string
		ReaperPrefix    string
		RetentionDays   int
		ReaperSchedule  string
		CertificateCron string
	}

	PaymentConfig struct {
		MidtransServerKey string
		Production        bool
	}

	RevenueConfig struct {
		TeacherSharePercent int
		MinWithdrawal       int64
	}

	OTPConfig struct {
		TTL         time.Duration
		Length      int
		MaxAttempts int
	}
)

// Address returns the "host:port" of the database server.
func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
}

func (c *Config) IsInMemory() bool {
	return c.Database.Engine == "inmem"
}

// NewConfig loads the configuration of the current environment (env var ENV).
// Values are looked up as <ENV>_<KEY>, e.g. PROD_DATABASE_HOST.
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
		v.SetDefault("database.engine", "inmem")
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	workDir := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err = godotenv.Load(dotEnvPath); err != nil {
			panic(errors.Wrapf(err, "loading %s", dotEnvPath))
		}
	} else if !os.IsNotExist(err) {
		panic(errors.Wrapf(err, "checking %s", dotEnvPath))
	}
	v.AutomaticEnv()

	conf := &Config{
		AppName:          v.GetString("appName"),
		Build:            v.GetString("build"),
		Env:              env,
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		SecretKey:        v.GetString("secretKey"),
		FrontendBaseURL:  strings.TrimRight(v.GetString("frontendBaseURL"), "/"),
		WorkDir:          workDir,
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		defaultFromEmail: v.GetString("defaultFromEmail"),

		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),

		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Address:                   v.GetString("server.address"),
			DebugHost:                 v.GetString("server.debugHost"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			AllowedOrigins:            splitList(v.GetString("server.allowedOrigins")),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Redis: RedisConfig{
			URL:          v.GetString("redis.url"),
			PoolSize:     v.GetInt("redis.poolSize"),
			MinIdleConns: v.GetInt("redis.minIdleConns"),
			DialTimeout:  v.GetDuration("redis.dialTimeout"),
			ReadTimeout:  v.GetDuration("redis.readTimeout"),
			WriteTimeout: v.GetDuration("redis.writeTimeout"),
		},
		Storage: StorageConfig{
			Driver:          v.GetString("storage.driver"),
			LocalDir:        v.GetString("storage.localDir"),
			PublicBaseURL:   strings.TrimRight(v.GetString("storage.publicBaseURL"), "/"),
			OSSEndpoint:     v.GetString("storage.ossEndpoint"),
			OSSAccessKey:    v.GetString("storage.ossAccessKey"),
			OSSSecretKey:    v.GetString("storage.ossSecretKey"),
			OSSBucket:       v.GetString("storage.ossBucket"),
			ReaperPrefix:    v.GetString("storage.reaperPrefix"),
			RetentionDays:   v.GetInt("storage.retentionDays"),
			ReaperSchedule:  v.GetString("storage.reaperSchedule"),
			CertificateCron: v.GetString("storage.certificateCron"),
		},
		Payment: PaymentConfig{
			MidtransServerKey: v.GetString("payment.midtransServerKey"),
			Production:        v.GetBool("payment.production"),
		},
		Revenue: RevenueConfig{
			TeacherSharePercent: v.GetInt("revenue.teacherSharePercent"),
			MinWithdrawal:       v.GetInt64("revenue.minWithdrawal"),
		},
		OTP: OTPConfig{
			TTL:         v.GetDuration("otp.ttl"),
			Length:      v.GetInt("otp.length"),
			MaxAttempts: v.GetInt("otp.maxAttempts"),
		},
	}
	if conf.Storage.LocalDir == "" {
		conf.Storage.LocalDir = filepath.Join(workDir, "uploads")
	}
	return conf
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Alpha Academy")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "d9k2-tq!r8x$+w1=az&unb7(e!p)#*c4(#ha^$mbvz2q")
	v.SetDefault("frontendBaseURL", "http://localhost:5173")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 30*24*time.Hour)
	v.SetDefault("server.allowedOrigins", "*")

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "academy")
	v.SetDefault("database.user", "academy")
	v.SetDefault("database.password", "academy")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.poolSize", 10)
	v.SetDefault("redis.minIdleConns", 2)
	v.SetDefault("redis.dialTimeout", 5*time.Second)
	v.SetDefault("redis.readTimeout", 3*time.Second)
	v.SetDefault("redis.writeTimeout", 3*time.Second)

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.localDir", "")
	v.SetDefault("storage.publicBaseURL", "http://localhost:8000/media")
	v.SetDefault("storage.ossEndpoint", "")
	v.SetDefault("storage.ossAccessKey", "")
	v.SetDefault("storage.ossSecretKey", "")
	v.SetDefault("storage.ossBucket", "")
	v.SetDefault("storage.reaperPrefix", "tmp/")
	v.SetDefault("storage.retentionDays", 7)
	v.SetDefault("storage.reaperSchedule", "15 2 * * *")
	v.SetDefault("storage.certificateCron", "@hourly")

	v.SetDefault("payment.midtransServerKey", "")
	v.SetDefault("payment.production", false)

	v.SetDefault("revenue.teacherSharePercent", 70)
	v.SetDefault("revenue.minWithdrawal", 10000)

	v.SetDefault("otp.ttl", 10*time.Minute)
	v.SetDefault("otp.length", 6)
	v.SetDefault("otp.maxAttempts", 5)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
