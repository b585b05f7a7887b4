// Command devtoken mints a signed access token for local development.
//
//	go run ./cmd/devtoken -user alice
//
// The secret defaults to JWT_SECRET, read from the environment or a .env file.
package main

import (
	"flag"
	"fmt"
	"os"

	"relaychat/internal/app/user"
	"relaychat/internal/configs"
	"relaychat/internal/pkg/auth/jwt"
)

func main() {
	_ = configs.LoadDotEnv()

	username := flag.String("user", "", "identity to embed in the token")
	secret := flag.String("secret", os.Getenv("JWT_SECRET"), "HMAC signing secret")
	ttl := flag.Duration("ttl", jwt.AccessExpiration, "token lifetime")
	flag.Parse()

	identity := user.Identity(*username)
	if err := identity.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "devtoken: invalid -user: %v\n", err)
		os.Exit(2)
	}

	if *secret == "" {
		fmt.Fprintln(os.Stderr, "devtoken: -secret or JWT_SECRET is required")
		os.Exit(2)
	}

	token, err := jwt.GenerateToken(&jwt.Payload{Username: string(identity)}, *secret, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "devtoken: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
