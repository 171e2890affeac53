package env

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/frc4533-lincoln/robudst/protocol"
)

// LoadJoystickProfiles reads a YAML file of joystick descriptors, e.g.
//
//	- index: 0
//	  xbox: true
//	  kind: 1
//	  name: Gamepad
//	  axes: [0, 1, 2, 3]
//	  buttons: 10
//	  povs: 1
func LoadJoystickProfiles(path string) ([]protocol.JoystickDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading joystick profile: %w", err)
	}

	var descriptors []protocol.JoystickDescriptor
	if err := yaml.Unmarshal(data, &descriptors); err != nil {
		return nil, fmt.Errorf("parsing joystick profile %s: %w", path, err)
	}

	return descriptors, nil
}
