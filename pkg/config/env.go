package config

const (
	EnvPrefix = "KARTUPINTAR"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "KARTUPINTAR_APP_ENV"
	EnvPort     = "KARTUPINTAR_APP_PORT"
	EnvLogLevel = "KARTUPINTAR_LOG_LEVEL"

	EnvDBDSN    = "KARTUPINTAR_DB_DSN"
	EnvDBDriver = "KARTUPINTAR_DB_DRIVER"
	EnvDBHost   = "KARTUPINTAR_DB_HOST"
	EnvDBPort   = "KARTUPINTAR_DB_PORT"
	EnvDBUser   = "KARTUPINTAR_DB_USER"
	EnvDBName   = "KARTUPINTAR_DB_NAME"

	EnvRedisURL  = "KARTUPINTAR_REDIS_URL"
	EnvRedisAddr = "KARTUPINTAR_REDIS_ADDR"

	EnvJWTSecret               = "KARTUPINTAR_JWT_SECRET"
	EnvJWTIssuer               = "KARTUPINTAR_JWT_ISSUER"
	EnvJWTExpMins              = "KARTUPINTAR_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes  = "KARTUPINTAR_REFRESH_TOKEN_TTL_MINUTES"
	EnvLedgerMaxTopUp          = "KARTUPINTAR_LEDGER_MAX_TOPUP"
	EnvLedgerCardIDPrefix      = "KARTUPINTAR_LEDGER_CARD_ID_PREFIX"
	EnvLedgerMaxConflictRetry  = "KARTUPINTAR_LEDGER_MAX_CONFLICT_RETRIES"
	EnvGCPProjectID            = "KARTUPINTAR_GCP_PROJECT_ID"
	EnvPubSubLedgerTopic       = "KARTUPINTAR_PUBSUB_LEDGER_TOPIC"
	EnvCronSchedule            = "KARTUPINTAR_CRON_SCHEDULE"
	EnvFeatureFlagsAutoMigrate = "KARTUPINTAR_AUTO_MIGRATE"
)

const (
	DBDriverPostgres = "postgres"
	DBDriverMySQL    = "mysql"
	DBDriverSQLite   = "sqlite"
)

// in the order of DBConfig host, user, name
var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
