// mint-token prints a signed session JWT for calling the API, useful for
// local testing and for issuing operator tokens.
package main

import (
	"flag"
	"fmt"
	"log"

	"marketplace-credits/internal/config"
	"marketplace-credits/internal/domain/model"
	"marketplace-credits/internal/infra/web"
)

func main() {
	subject := flag.String("subject", "", "user id the token identifies")
	role := flag.String("role", string(model.RoleMember), "MEMBER | PROFESSIONAL | ADMIN")

	// LoadConfig calls flag.Parse, picking up the flags above too.
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *subject == "" {
		log.Fatal("-subject is required")
	}
	switch model.Role(*role) {
	case model.RoleMember, model.RoleProfessional, model.RoleAdmin:
	default:
		log.Fatalf("unknown role %q", *role)
	}

	auth := web.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.CookieName, false, "", cfg.Auth.SessionTTL)
	token, err := auth.MintToken(*subject, model.Role(*role))
	if err != nil {
		log.Fatalf("mint: %v", err)
	}
	fmt.Println(token)
}
