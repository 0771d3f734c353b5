package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config хранит все настройки приложения
type Config struct {
	Server ServerConfig
	Game   GameConfig
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port string
	// StaticDir — каталог со статикой клиента; пустая строка выключает раздачу.
	StaticDir string `mapstructure:"static_dir"`
}

// GameConfig содержит настройки игрового рантайма
type GameConfig struct {
	// MaxSessions — предел одновременно живущих сессий.
	MaxSessions int `mapstructure:"max_sessions"`

	// MaxPlayers — предел игроков в одной сессии.
	MaxPlayers int `mapstructure:"max_players"`

	// QuestionTimeSec — лимит времени на вопрос по умолчанию; парсер
	// проставляет его каждому вопросу, у которого нет собственного лимита.
	QuestionTimeSec int `mapstructure:"question_time_sec"`

	// ReconnectTimeoutSec — окно, в течение которого отключившийся хост или
	// игрок может вернуться, не теряя своего места в сессии.
	ReconnectTimeoutSec int `mapstructure:"reconnect_timeout"`
}

// ReconnectTimeout возвращает окно переподключения как time.Duration.
func (g GameConfig) ReconnectTimeout() time.Duration {
	return time.Duration(g.ReconnectTimeoutSec) * time.Second
}

// Load загружает конфигурацию из переменных окружения и, если он есть,
// файла configPath. Отсутствие файла не ошибка: все значения имеют
// дефолты, а окружение имеет приоритет над файлом.
func Load(configPath string) (*Config, error) {
	vip := viper.New() // Используем новый экземпляр Viper, чтобы избежать глобального состояния

	// 1. Значения по умолчанию
	vip.SetDefault("server.port", "3000")
	vip.SetDefault("server.static_dir", "")
	vip.SetDefault("game.max_sessions", 10)
	vip.SetDefault("game.max_players", 50)
	vip.SetDefault("game.question_time_sec", 20)
	vip.SetDefault("game.reconnect_timeout", 120)

	// 2. Привязываем переменные окружения ЯВНО
	vip.BindEnv("server.port", "PORT")
	vip.BindEnv("server.static_dir", "STATIC_DIR")
	vip.BindEnv("game.max_sessions", "MAX_SESSIONS")
	vip.BindEnv("game.max_players", "MAX_PLAYERS")
	vip.BindEnv("game.question_time_sec", "QUESTION_TIME_SEC")
	vip.BindEnv("game.reconnect_timeout", "RECONNECT_TIMEOUT")

	// 3. Опциональный конфигурационный файл
	if configPath != "" {
		vip.SetConfigFile(configPath)
		if err := vip.ReadInConfig(); err != nil {
			// При явном SetConfigFile отсутствие файла приходит как *fs.PathError,
			// а не viper.ConfigFileNotFoundError — терпим обе формы.
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
				log.Printf("[Config] Файл %s не найден, используются переменные окружения и дефолты", configPath)
			} else {
				return nil, fmt.Errorf("ошибка чтения конфигурационного файла %s: %w", configPath, err)
			}
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора конфигурации: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate проверяет, что числовые настройки имеют смысл.
func (c *Config) validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port не может быть пустым")
	}
	if c.Game.MaxSessions <= 0 {
		return fmt.Errorf("game.max_sessions должно быть положительным, получено %d", c.Game.MaxSessions)
	}
	if c.Game.MaxPlayers <= 0 {
		return fmt.Errorf("game.max_players должно быть положительным, получено %d", c.Game.MaxPlayers)
	}
	if c.Game.QuestionTimeSec <= 0 {
		return fmt.Errorf("game.question_time_sec должно быть положительным, получено %d", c.Game.QuestionTimeSec)
	}
	if c.Game.ReconnectTimeoutSec <= 0 {
		return fmt.Errorf("game.reconnect_timeout должно быть положительным, получено %d", c.Game.ReconnectTimeoutSec)
	}
	return nil
}
