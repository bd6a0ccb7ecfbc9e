package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables holding the portal credentials.
const (
	EnvUsername = "TRIODOS_USERNAME"
	EnvPassword = "TRIODOS_PASSWORD"
)

// ErrMissingCredential is returned when a credential variable is unset or empty.
var ErrMissingCredential = errors.New("missing credential")

// Credentials authenticate the session driver.
type Credentials struct {
	Username string
	Password string
}

// String hides the password so credentials can be logged safely.
func (c Credentials) String() string {
	return fmt.Sprintf("%s:****", c.Username)
}

// LoadEnvFile seeds the process environment from a .env file.
// A missing file is not an error; variables already set win.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

// CredentialsFromEnv reads and validates credentials using getenv.
func CredentialsFromEnv(getenv func(string) string) (Credentials, error) {
	creds := Credentials{
		Username: getenv(EnvUsername),
		Password: getenv(EnvPassword),
	}
	if err := creds.Validate(); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

// Validate fails fast on empty values, naming the variable that is missing.
func (c Credentials) Validate() error {
	if c.Username == "" {
		return fmt.Errorf("%w: %s is not set", ErrMissingCredential, EnvUsername)
	}
	if c.Password == "" {
		return fmt.Errorf("%w: %s is not set", ErrMissingCredential, EnvPassword)
	}
	return nil
}
