package config

// EnvPrefix is handed to envconfig; every field carries an explicit key so the
// prefix only matters for fields without one.
const EnvPrefix = "DIRECTORY"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv    = "DIRECTORY_APP_ENV"
	EnvPort      = "DIRECTORY_APP_PORT"
	EnvDBDSN     = "DIRECTORY_DB_DSN"
	EnvDBHost    = "DIRECTORY_DB_HOST"
	EnvDBUser    = "DIRECTORY_DB_USER"
	EnvDBName    = "DIRECTORY_DB_NAME"
	EnvRedisURL  = "DIRECTORY_REDIS_URL"
	EnvJWTSecret = "DIRECTORY_JWT_SECRET"
	EnvJWTIssuer = "DIRECTORY_JWT_ISSUER"

	EnvSearchTopBand  = "DIRECTORY_SEARCH_TOP_BAND_SIZE"
	EnvSearchCacheTTL = "DIRECTORY_SEARCH_CACHE_TTL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
