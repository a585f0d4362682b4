package config

const (
	// EnvPrefix is passed to envconfig; every field carries its full name in the tag.
	EnvPrefix = "DOMEO"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	EnvAppEnv   = "DOMEO_APP_ENV"
	EnvPort     = "DOMEO_APP_PORT"
	EnvLogLevel = "DOMEO_LOG_LEVEL"

	EnvDBDSN    = "DOMEO_DB_DSN"
	EnvDBDriver = "DOMEO_DB_DRIVER"
	EnvDBHost   = "DOMEO_DB_HOST"
	EnvDBUser   = "DOMEO_DB_USER"
	EnvDBName   = "DOMEO_DB_NAME"

	EnvRedisURL = "DOMEO_REDIS_URL"

	EnvDocumentsFuzzyLimit   = "DOMEO_DOCUMENTS_FUZZY_CANDIDATE_LIMIT"
	EnvDocumentsDefaultTypes = "DOMEO_DOCUMENTS_DEFAULT_TYPES"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
