// Package main issues an access token for an operator. The service keeps
// no user store; tokens are minted by whoever holds the signing secret.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"pharmastock/internal/domain/auth"
	"pharmastock/internal/infrastructure/config"
)

func main() {
	configFile := flag.String("config", "", "path to config.toml")
	envFile := flag.String("env", ".env", "path to a .env file")
	userID := flag.String("user", "", "operator id (token subject)")
	name := flag.String("name", "", "display name stamped on edited sessions")
	roles := flag.String("roles", "pharmacist", "comma-separated roles")
	flag.Parse()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "-user is required")
		os.Exit(2)
	}

	cfg, err := config.Load(config.Options{ConfigFile: *configFile, EnvFile: *envFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	jwtCfg := auth.DefaultJWTConfig(cfg.JWT.Secret)
	jwtCfg.Issuer = cfg.JWT.Issuer
	jwtCfg.AccessTokenTTL = cfg.JWT.TTL
	svc, err := auth.NewJWTService(jwtCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid jwt configuration: %v\n", err)
		os.Exit(1)
	}

	var roleList []string
	for _, r := range strings.Split(*roles, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roleList = append(roleList, r)
		}
	}

	token, expiresAt, err := svc.GenerateAccessToken(*userID, *name, roleList)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "expires at %s\n", expiresAt.Format("2006-01-02T15:04:05Z07:00"))
	fmt.Println(token)
}
