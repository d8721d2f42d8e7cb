package config

// EnvPrefix namespaces every environment variable read by envconfig.
const EnvPrefix = "FOODRIDE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "FOODRIDE_DB_DSN"
	EnvDBHost = "FOODRIDE_DB_HOST"
	EnvDBUser = "FOODRIDE_DB_USER"
	EnvDBName = "FOODRIDE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
