package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads the stack definition from the given filename (e.g., "carbonstack.yaml").
// If envFile names an existing dotenv file it is loaded into the
// process environment first; godotenv never overwrites variables that
// are already set, so the host environment keeps precedence over the
// file, and in-file ${VAR:-default} defaults rank last.
func Load(filename, envFile string) (*Stack, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("error loading env file %s: %w", envFile, err)
			}
		}
	}

	// Tell Viper what file to look for
	v := viper.New()
	v.SetConfigFile(filename)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("stack file %s not found. Run 'carbonstack init' to create one", filename)
		}
		return nil, fmt.Errorf("error reading stack file: %w", err)
	}

	// Unmarshal: Viper fills the struct fields based on the mapstructure tags
	var stack Stack
	if err := v.Unmarshal(&stack); err != nil {
		return nil, fmt.Errorf("unable to decode stack file: %w", err)
	}

	if stack.Name == "" {
		return nil, fmt.Errorf("stack file %s has no project name", filename)
	}
	return &stack, nil
}
