package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Game     GameConfig     `mapstructure:"game"`
	Learning LearningConfig `mapstructure:"learning"`
}

type ServerConfig struct {
	HTTPAddress    string  `mapstructure:"http_address"`
	RPCAddress     string  `mapstructure:"rpc_address"`
	MetricsAddress string  `mapstructure:"metrics_address"`
	MessageRate    float64 `mapstructure:"message_rate"`
	MessageBurst   int     `mapstructure:"message_burst"`
	// Heartbeat drops connections that stay silent for twice this long.
	Heartbeat time.Duration `mapstructure:"heartbeat"`
	// MaxRooms caps concurrently open rooms, the default room included.
	MaxRooms int `mapstructure:"max_rooms"`
}

type DatabaseConfig struct {
	// Driver selects the persistence backend: "gorm", "pq" or "memory".
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	// QuestionPack is a JSON question file. It backs the memory driver and is
	// seeded into postgres by the others.
	QuestionPack string `mapstructure:"question_pack"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// GameConfig holds the per-room settings every new room is created with.
type GameConfig struct {
	MaxPlayers       int                `mapstructure:"max_players"`
	MaxLives         int                `mapstructure:"max_lives"`
	MaxRounds        int                `mapstructure:"max_rounds"`
	PointsPerCorrect int                `mapstructure:"points_per_correct"`
	AskingTimeout    time.Duration      `mapstructure:"asking_timeout"`
	RevealDelay      time.Duration      `mapstructure:"reveal_delay"`
	RoundEndDelay    time.Duration      `mapstructure:"round_end_delay"`
	NextRoundDelay   time.Duration      `mapstructure:"next_round_delay"`
	AutoResetDelay   time.Duration      `mapstructure:"auto_reset_delay"`
	TypeMix          map[string]float64 `mapstructure:"type_mix"`
}

// LearningConfig drives the periodic question retirement job.
type LearningConfig struct {
	Interval       time.Duration `mapstructure:"interval"`
	MinRounds      int           `mapstructure:"min_rounds"`
	MinCorrectRate float64       `mapstructure:"min_correct_rate"`
	MaxCorrectRate float64       `mapstructure:"max_correct_rate"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_address", ":8080")
	v.SetDefault("server.rpc_address", ":8081")
	v.SetDefault("server.metrics_address", ":9090")
	v.SetDefault("server.message_rate", 5)
	v.SetDefault("server.message_burst", 10)
	v.SetDefault("server.heartbeat", 30*time.Second)
	v.SetDefault("server.max_rooms", 100)

	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.question_pack", "questions.json")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "postgres")
	v.SetDefault("database.postgres.dbname", "trivia")

	v.SetDefault("log.level", "info")

	v.SetDefault("game.max_players", 8)
	v.SetDefault("game.max_lives", 3)
	v.SetDefault("game.max_rounds", 10)
	v.SetDefault("game.points_per_correct", 100)
	v.SetDefault("game.asking_timeout", 20*time.Second)
	v.SetDefault("game.reveal_delay", 1500*time.Millisecond)
	v.SetDefault("game.round_end_delay", 5*time.Second)
	v.SetDefault("game.next_round_delay", 3*time.Second)
	v.SetDefault("game.auto_reset_delay", 30*time.Second)
	v.SetDefault("game.type_mix", map[string]float64{
		"trivia":      0.60,
		"who-said-it": 0.15,
		"chaos":       0.15,
		"roast":       0.10,
	})

	v.SetDefault("learning.interval", time.Hour)
	v.SetDefault("learning.min_rounds", 20)
	v.SetDefault("learning.min_correct_rate", 0.05)
	v.SetDefault("learning.max_correct_rate", 0.95)
}

// LoadConfig reads config.yaml from path. A missing file is not an error:
// defaults and TRIVIA_* environment variables (optionally from a .env file)
// are enough to run.
func LoadConfig(path string) (config *Config, err error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("trivia")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	err = v.Unmarshal(&config)
	return
}
