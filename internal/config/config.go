package config

import "github.com/caarlos0/env/v9"

type Config struct {
	Port       string `env:"PORT" envDefault:"8080"`
	DBUser     string `env:"DB_USER,required"`
	DBPassword string `env:"DB_PASSWORD,required"`
	DBHost     string `env:"DB_HOST,required"` // e.g. tcp(host:3306) or unix(/cloudsql/instance)
	DBName     string `env:"DB_NAME,required"`
	DBPort     string `env:"DB_PORT" envDefault:"3306"`

	InstanceConnectionName string `env:"INSTANCE_CONNECTION_NAME"`

	FirebaseProjectID string `env:"FIREBASE_PROJECT_ID"`
	FirebaseCredsFile string `env:"FIREBASE_CREDENTIALS_FILE"`

	GeminiModel string `env:"GEMINI_CHAT_MODEL" envDefault:"gemini-2.5-flash"`

	// BroadcastWorkers caps concurrent deliveries inside one notification job.
	BroadcastWorkers int `env:"BROADCAST_WORKERS" envDefault:"8"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
