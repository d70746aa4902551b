package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli"

	"github.com/phrazzld/miniminder/internal/push"
)

const (
	envVAPIDPublicKey  = "VAPID_PUBLIC_KEY"
	envVAPIDPrivateKey = "VAPID_PRIVATE_KEY"
)

func vapidAction(c *cli.Context) error {
	keys, err := push.GenerateVAPIDKeys()
	if err != nil {
		return err
	}

	if c.Bool("print") {
		printVAPIDKeys(c.App.Writer, keys)
		return nil
	}

	path := envFile(c)
	if err := writeVAPIDKeys(path, keys); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "VAPID keys written to %s\n", path)
	fmt.Fprintf(c.App.Writer, "%s=%s\n", envVAPIDPublicKey, keys.PublicKey)
	return nil
}

func printVAPIDKeys(out io.Writer, keys push.VAPIDKeys) {
	fmt.Fprintf(out, "%s=%s\n%s=%s\n",
		envVAPIDPublicKey, keys.PublicKey,
		envVAPIDPrivateKey, keys.PrivateKey)
}

// writeVAPIDKeys merges keys into the dotenv file at path, keeping every
// other entry. The file is created when missing.
func writeVAPIDKeys(path string, keys push.VAPIDKeys) error {
	env, err := godotenv.Read(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		env = make(map[string]string)
	}

	env[envVAPIDPublicKey] = keys.PublicKey
	env[envVAPIDPrivateKey] = keys.PrivateKey

	if err := godotenv.Write(env, path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
