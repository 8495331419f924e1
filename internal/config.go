package internal

import (
	"fmt"
	"time"
)

type Config struct {
	BufferSize           int    `env:"BUFFER_SIZE,required=true"`
	ConnectionBufferSize int    `env:"CONNECTION_BUFFER_SIZE,required=true"`
	RoomQueueSize        int    `env:"ROOM_QUEUE_SIZE,required=true"`
	RoomCapacity         int    `env:"ROOM_CAPACITY,required=true"`
	CharReplacement      string `env:"CHARACTER_REPLACEMENT,required=true"`
	LimitMessages        *int   `env:"LIMIT_MESSAGES"`

	SinkTimeout     time.Duration `env:"SINK_TIMEOUT,required=true"`
	MetricInterval  time.Duration `env:"METRIC_INTERVAL,required=true"`
	SweepInterval   time.Duration `env:"SWEEP_INTERVAL,required=true"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,required=true"`

	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`
	AuthTokenSecret   string        `env:"AUTH_TOKEN_SECRET,required=true"`
	BadgerFilepath    string        `env:"BADGER_FILEPATH,required=true"`
	LogLevel          string        `env:"LOG_LEVEL,required=true"`
	Host              string        `env:"HOST,required=true"`
	Port              int           `env:"PORT,required=true"`
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
