package env

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	// TeamNumber identifies the robot; its network address is derived
	// from it.
	TeamNumber uint16 `env:"ROBUDST_TEAM"`

	// JoystickProfile optionally points at a YAML file of joystick
	// descriptors to announce to the robot on connect.
	JoystickProfile string `env:"ROBUDST_JOYSTICKS"`

	DebugHTTP bool `env:"ROBUDST_DEBUG_HTTP"`
}

func LoadConfig(ctx context.Context) (*Config, error) {
	config := Config{}

	if err := godotenv.Load(".env.local"); err != nil {
		if !os.IsNotExist(err) {
			panic(err)
		}
	}

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
