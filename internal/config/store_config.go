package config

type StoreConfig interface {
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	UseRedis() bool
}

// Store selects the ephemeral store backend. Without REDIS_ADDR sessions and codes are
// kept in process memory and are lost on restart.
type Store struct {
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
}

var _ StoreConfig = Store{}

func (s Store) GetRedisAddr() string {
	return s.RedisAddr
}

func (s Store) GetRedisPassword() string {
	return s.RedisPassword
}

func (s Store) GetRedisDB() int {
	return s.RedisDB
}

func (s Store) UseRedis() bool {
	return s.RedisAddr != ""
}
