package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	HTTP         HTTPConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Identity     IdentityConfig
	Submission   SubmissionConfig
	RateLimit    RateLimitConfig
	Notifier     NotifierConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Eventing     EventingConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Notifier.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CRUSHLINK_APP_ENV" required:"true"`
	Port         string `envconfig:"CRUSHLINK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CRUSHLINK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CRUSHLINK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CRUSHLINK_SERVICE_KIND" default:"api"`
}

type HTTPConfig struct {
	CORSAllowedOrigins []string      `envconfig:"CRUSHLINK_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	ReadHeaderTimeout  time.Duration `envconfig:"CRUSHLINK_HTTP_READ_HEADER_TIMEOUT" default:"5s"`
	ShutdownTimeout    time.Duration `envconfig:"CRUSHLINK_HTTP_SHUTDOWN_TIMEOUT" default:"15s"`
}

type DBConfig struct {
	DSN    string `envconfig:"CRUSHLINK_DB_DSN"`
	Driver string `envconfig:"CRUSHLINK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CRUSHLINK_DB_HOST"`
	LegacyPort     int    `envconfig:"CRUSHLINK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CRUSHLINK_DB_USER"`
	LegacyPassword string `envconfig:"CRUSHLINK_DB_PASSWORD"`
	LegacyName     string `envconfig:"CRUSHLINK_DB_NAME"`
	LegacySSLMode  string `envconfig:"CRUSHLINK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CRUSHLINK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CRUSHLINK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CRUSHLINK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CRUSHLINK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the configured driver targets SQLite.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"CRUSHLINK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CRUSHLINK_REDIS_ADDR"`
	Password     string        `envconfig:"CRUSHLINK_REDIS_PASSWORD"`
	DB           int           `envconfig:"CRUSHLINK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CRUSHLINK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CRUSHLINK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CRUSHLINK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CRUSHLINK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CRUSHLINK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite    bool `envconfig:"CRUSHLINK_USE_SQLITE" default:"false"`
	AutoMigrate  bool `envconfig:"CRUSHLINK_AUTO_MIGRATE" default:"false"`
	PendingSweep bool `envconfig:"CRUSHLINK_FEATURE_PENDING_SWEEP" default:"false"`
}

type IdentityConfig struct {
	Prefix string `envconfig:"CRUSHLINK_IDENTITY_PREFIX" default:"4VP"`
}

type SubmissionConfig struct {
	Timeout        time.Duration `envconfig:"CRUSHLINK_SUBMISSION_TIMEOUT" default:"10s"`
	IdempotencyTTL time.Duration `envconfig:"CRUSHLINK_SUBMISSION_IDEMPOTENCY_TTL" default:"24h"`
	MaxDisplayName int           `envconfig:"CRUSHLINK_SUBMISSION_MAX_DISPLAY_NAME" default:"64"`
	SweepGrace     time.Duration `envconfig:"CRUSHLINK_SUBMISSION_SWEEP_GRACE" default:"1m"`
	SweepBatchSize int           `envconfig:"CRUSHLINK_SUBMISSION_SWEEP_BATCH_SIZE" default:"200"`
}

type RateLimitConfig struct {
	SubmitWindow       time.Duration `envconfig:"CRUSHLINK_RATE_LIMIT_SUBMIT_WINDOW" default:"10m"`
	SubmitIPLimit      int           `envconfig:"CRUSHLINK_RATE_LIMIT_SUBMIT_IP_LIMIT" default:"30"`
	SubmitContactLimit int           `envconfig:"CRUSHLINK_RATE_LIMIT_SUBMIT_CONTACT_LIMIT" default:"5"`
}

type NotifierConfig struct {
	Provider string        `envconfig:"CRUSHLINK_NOTIFIER_PROVIDER" default:"log"`
	Delivery string        `envconfig:"CRUSHLINK_NOTIFIER_DELIVERY" default:"inline"`
	Subject  string        `envconfig:"CRUSHLINK_NOTIFIER_SUBJECT" default:"It's a match!"`
	Message  string        `envconfig:"CRUSHLINK_NOTIFIER_MESSAGE" default:"Congratulations! You have a mutual crush match! 💘"`
	Timeout  time.Duration `envconfig:"CRUSHLINK_NOTIFIER_TIMEOUT" default:"10s"`

	SendgridAPIKey    string `envconfig:"CRUSHLINK_SENDGRID_API_KEY"`
	SendgridFromEmail string `envconfig:"CRUSHLINK_SENDGRID_FROM_EMAIL"`
	SendgridFromName  string `envconfig:"CRUSHLINK_SENDGRID_FROM_NAME" default:"Crushlink"`

	EmailJSEndpoint   string `envconfig:"CRUSHLINK_EMAILJS_ENDPOINT" default:"https://api.emailjs.com/api/v1.0/email/send"`
	EmailJSServiceID  string `envconfig:"CRUSHLINK_EMAILJS_SERVICE_ID"`
	EmailJSTemplateID string `envconfig:"CRUSHLINK_EMAILJS_TEMPLATE_ID"`
	EmailJSPublicKey  string `envconfig:"CRUSHLINK_EMAILJS_PUBLIC_KEY"`
}

// InlineDelivery reports whether the submission path dispatches e-mails itself.
func (n NotifierConfig) InlineDelivery() bool {
	return !strings.EqualFold(strings.TrimSpace(n.Delivery), NotifierDeliveryOutbox)
}

func (n NotifierConfig) validate() error {
	provider := strings.ToLower(strings.TrimSpace(n.Provider))
	switch provider {
	case NotifierProviderLog, "":
	case NotifierProviderSendgrid:
		if n.SendgridAPIKey == "" || n.SendgridFromEmail == "" {
			return fmt.Errorf("%s and %s are required for the sendgrid notifier", EnvSendgridAPIKey, EnvSendgridFromEmail)
		}
	case NotifierProviderEmailJS:
		if n.EmailJSServiceID == "" || n.EmailJSTemplateID == "" || n.EmailJSPublicKey == "" {
			return fmt.Errorf("%s, %s and %s are required for the emailjs notifier", EnvEmailJSServiceID, EnvEmailJSTemplateID, EnvEmailJSPublicKey)
		}
	default:
		return fmt.Errorf("unsupported notifier provider %q", n.Provider)
	}
	switch strings.ToLower(strings.TrimSpace(n.Delivery)) {
	case "", NotifierDeliveryInline, NotifierDeliveryOutbox:
	default:
		return fmt.Errorf("unsupported notifier delivery %q", n.Delivery)
	}
	return nil
}

type GCPConfig struct {
	ProjectID              string `envconfig:"CRUSHLINK_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"CRUSHLINK_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"CRUSHLINK_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	MatchTopic               string `envconfig:"CRUSHLINK_PUBSUB_MATCH_TOPIC" default:"crush-match-events"`
	NotificationSubscription string `envconfig:"CRUSHLINK_PUBSUB_NOTIFICATION_SUBSCRIPTION" default:"crush-match-notifications"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"CRUSHLINK_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"CRUSHLINK_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"CRUSHLINK_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"CRUSHLINK_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"CRUSHLINK_OUTBOX_RETENTION_DAYS" default:"30"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"CRUSHLINK_CRON_INTERVAL" default:"5m"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DBDriverSQLite
	}
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
