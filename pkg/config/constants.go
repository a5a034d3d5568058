package config

const (
	EnvPrefix = "MARKETCORE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "MARKETCORE_APP_ENV"
	EnvLogLevel = "MARKETCORE_LOG_LEVEL"

	EnvDBDSN  = "MARKETCORE_DB_DSN"
	EnvDBHost = "MARKETCORE_DB_HOST"
	EnvDBUser = "MARKETCORE_DB_USER"
	EnvDBName = "MARKETCORE_DB_NAME"

	EnvRedisURL          = "MARKETCORE_REDIS_URL"
	EnvGCPProjectID      = "MARKETCORE_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic = "MARKETCORE_PUBSUB_ORDERS_TOPIC"

	EnvOrdersDefaultProvider = "MARKETCORE_ORDERS_DEFAULT_PROVIDER"
	EnvOrdersFlatShippingFee = "MARKETCORE_ORDERS_FLAT_SHIPPING_FEE"
	EnvOrdersPromoCodes      = "MARKETCORE_ORDERS_PROMO_CODES"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
