package config

const (
	EnvPrefix = "SEEDFUND"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "SEEDFUND_APP_ENV"
	EnvPort     = "SEEDFUND_APP_PORT"
	EnvLogLevel = "SEEDFUND_LOG_LEVEL"

	EnvDBDSN  = "SEEDFUND_DB_DSN"
	EnvDBHost = "SEEDFUND_DB_HOST"
	EnvDBUser = "SEEDFUND_DB_USER"
	EnvDBName = "SEEDFUND_DB_NAME"

	EnvRedisURL     = "SEEDFUND_REDIS_URL"
	EnvJWTSecret    = "SEEDFUND_JWT_SECRET"
	EnvJWTIssuer    = "SEEDFUND_JWT_ISSUER"
	EnvGCPProjectID = "SEEDFUND_GCP_PROJECT_ID"

	EnvPaymentsProvider = "SEEDFUND_PAYMENTS_PROVIDER"
	EnvPaymentsCurrency = "SEEDFUND_PAYMENTS_CURRENCY"

	EnvSplitRemittanceRate      = "SEEDFUND_SPLIT_REMITTANCE_RATE"
	EnvSplitSpenderRate         = "SEEDFUND_SPLIT_SPENDER_RATE"
	EnvSplitFundRate            = "SEEDFUND_SPLIT_FUND_RATE"
	EnvSplitPlatformRate        = "SEEDFUND_SPLIT_PLATFORM_RATE"
	EnvFundCreatorPoolFraction  = "SEEDFUND_FUND_CREATOR_POOL_FRACTION"
	EnvSplitRemittanceTolerance = "SEEDFUND_SPLIT_REMITTANCE_TOLERANCE"

	EnvCycleDays    = "SEEDFUND_CYCLE_DAYS"
	EnvSeasonMonths = "SEEDFUND_SEASON_MONTHS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
