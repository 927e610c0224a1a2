package config

import "github.com/caarlos0/env/v9"

type Config struct {
	Port                   string `env:"PORT" envDefault:"8080"`
	DBUser                 string `env:"DB_USER,required"`
	DBPassword             string `env:"DB_PASSWORD,required"`
	DBHost                 string `env:"DB_HOST,required"` // e.g. tcp(host:3306) or unix(/cloudsql/instance)
	DBName                 string `env:"DB_NAME,required"`
	DBPort                 string `env:"DB_PORT" envDefault:"3306"`
	InstanceConnectionName string `env:"INSTANCE_CONNECTION_NAME"`

	StripeSecretKey string `env:"STRIPE_SECRET_KEY"`
	ResendAPIKey    string `env:"RESEND_API_KEY"`
	FromEmail       string `env:"FROM_EMAIL" envDefault:"noreply@driftlab.dev"`
	OpsEmail        string `env:"OPS_EMAIL"`

	// JobToken guards the /internal/jobs endpoints. Empty disables them.
	JobToken string `env:"JOB_TOKEN"`
	// AdminUIDs is a comma-separated allowlist for the admin resolve endpoint.
	AdminUIDs []string `env:"ADMIN_UIDS" envSeparator:","`

	StaleThresholdHours int `env:"STALE_THRESHOLD_HOURS" envDefault:"24"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
