// Command mocktoken mints a signed bearer token for exercising the
// gateway locally:
//
//	JWT_SECRET_KEY=dev-secret go run ./cmd/mocktoken -sub user-42 -ttl 1h
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func main() {
	sub := flag.String("sub", "dev-user", "subject claim")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	alg := flag.String("alg", "HS256", "signing algorithm (HS256, HS384 or HS512)")
	flag.Parse()

	secret, ok := os.LookupEnv("JWT_SECRET_KEY")
	if !ok || secret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET_KEY must be set")
		os.Exit(1)
	}

	method := jwt.GetSigningMethod(*alg)
	if method == nil {
		fmt.Fprintf(os.Stderr, "unknown signing algorithm %q\n", *alg)
		os.Exit(1)
	}

	now := time.Now()
	token := jwt.NewWithClaims(method, jwt.MapClaims{
		"sub": *sub,
		"iat": now.Unix(),
		"exp": now.Add(*ttl).Unix(),
	})

	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		fmt.Fprintln(os.Stderr, "signing token:", err)
		os.Exit(1)
	}

	fmt.Println(signed)
}
