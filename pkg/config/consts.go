package config

const (
	// EnvPrefix is passed to envconfig; variables carry the full
	// TABLEBIRD_ prefix in their tags so this stays empty.
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "TABLEBIRD_APP_ENV"
	EnvPort     = "TABLEBIRD_APP_PORT"
	EnvDBDSN    = "TABLEBIRD_DB_DSN"
	EnvDBHost   = "TABLEBIRD_DB_HOST"
	EnvDBUser   = "TABLEBIRD_DB_USER"
	EnvDBName   = "TABLEBIRD_DB_NAME"
	EnvRedisURL = "TABLEBIRD_REDIS_URL"

	EnvJWTSecret  = "TABLEBIRD_JWT_SECRET"
	EnvJWTIssuer  = "TABLEBIRD_JWT_ISSUER"
	EnvJWTExpMins = "TABLEBIRD_JWT_EXPIRATION_MINUTES"

	EnvGCPProjectID      = "TABLEBIRD_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic = "TABLEBIRD_PUBSUB_ORDERS_TOPIC"
	EnvPubSubOrdersSub   = "TABLEBIRD_PUBSUB_ORDERS_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
