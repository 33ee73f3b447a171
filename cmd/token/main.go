// Command token issues a signed access token for local testing.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Domenick1991/airreservations/config"
	"github.com/Domenick1991/airreservations/internal/auth"
	"github.com/Domenick1991/airreservations/internal/domain"
	"github.com/sirupsen/logrus"
)

func main() {
	userID := flag.Int64("user", 1, "user id")
	role := flag.String("role", string(domain.RoleCustomer), "role: customer or admin")
	flag.Parse()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}

	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL())
	token, err := tokens.Issue(domain.Actor{UserID: *userID, Role: domain.Role(*role)})
	if err != nil {
		logrus.Fatalf("issue token: %v", err)
	}
	fmt.Println(token)
}
