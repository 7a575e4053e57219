package config

const EnvPrefix = "CRUSHLINK"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	NotifierProviderLog      = "log"
	NotifierProviderSendgrid = "sendgrid"
	NotifierProviderEmailJS  = "emailjs"

	NotifierDeliveryInline = "inline"
	NotifierDeliveryOutbox = "outbox"
)

const (
	EnvAppEnv         = "CRUSHLINK_APP_ENV"
	EnvPort           = "CRUSHLINK_APP_PORT"
	EnvLogLevel       = "CRUSHLINK_LOG_LEVEL"
	EnvServiceKind    = "CRUSHLINK_SERVICE_KIND"
	EnvDBDSN          = "CRUSHLINK_DB_DSN"
	EnvDBDriver       = "CRUSHLINK_DB_DRIVER"
	EnvDBHost         = "CRUSHLINK_DB_HOST"
	EnvDBPort         = "CRUSHLINK_DB_PORT"
	EnvDBUser         = "CRUSHLINK_DB_USER"
	EnvDBPassword     = "CRUSHLINK_DB_PASSWORD"
	EnvDBName         = "CRUSHLINK_DB_NAME"
	EnvRedisURL       = "CRUSHLINK_REDIS_URL"
	EnvUseSQLite      = "CRUSHLINK_USE_SQLITE"
	EnvAutoMigrate    = "CRUSHLINK_AUTO_MIGRATE"
	EnvPendingSweep   = "CRUSHLINK_FEATURE_PENDING_SWEEP"
	EnvIdentityPrefix = "CRUSHLINK_IDENTITY_PREFIX"

	EnvNotifierProvider  = "CRUSHLINK_NOTIFIER_PROVIDER"
	EnvNotifierDelivery  = "CRUSHLINK_NOTIFIER_DELIVERY"
	EnvSendgridAPIKey    = "CRUSHLINK_SENDGRID_API_KEY"
	EnvSendgridFromEmail = "CRUSHLINK_SENDGRID_FROM_EMAIL"
	EnvEmailJSServiceID  = "CRUSHLINK_EMAILJS_SERVICE_ID"
	EnvEmailJSTemplateID = "CRUSHLINK_EMAILJS_TEMPLATE_ID"
	EnvEmailJSPublicKey  = "CRUSHLINK_EMAILJS_PUBLIC_KEY"

	EnvGCPProjectID          = "CRUSHLINK_GCP_PROJECT_ID"
	EnvPubSubMatchTopic      = "CRUSHLINK_PUBSUB_MATCH_TOPIC"
	EnvPubSubNotificationSub = "CRUSHLINK_PUBSUB_NOTIFICATION_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
