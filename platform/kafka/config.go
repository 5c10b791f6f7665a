package kafka

import (
	"github.com/caarlos0/env/v10"
)

// Config содержит конфигурацию для подключения к Kafka
type Config struct {
	// Brokers — список брокеров Kafka, через который будут подключаться сервисы.
	// Значение зависит от среды выполнения:
	//   - локальная разработка (go run): localhost:19092
	//   - запуск в Docker: kafka:9092
	// Можно указать несколько брокеров через запятую: "broker1:9092,broker2:9092"
	Brokers []string `env:"KAFKA_BROKERS" envSeparator:","`
}

// DefaultConfig возвращает конфигурацию с дефолтными значениями для локальной разработки.
// Сервисы получают актуальные значения через переменные окружения (KAFKA_BROKERS).
// Доменные топики (order.created, payment.confirmed, delivery.assigned и т.д.)
// задаются в конфигурации конкретного сервиса.
func DefaultConfig() Config {
	return Config{
		Brokers: []string{"localhost:19092"},
	}
}

// LoadEnv загружает конфигурацию из переменных окружения
// Использует пакет caarlos0/env/v10 для парсинга env-тегов
func LoadEnv(cfg *Config) error {
	return env.Parse(cfg)
}
