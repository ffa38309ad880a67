// Command admintoken prints an administrator token signed with JWT_SECRET.
//
//	JWT_SECRET=... admintoken -username admin -ttl 720h
package main

import (
	"flag"
	"fmt"
	"os"

	"chatrelay/internal/configs"
	"chatrelay/internal/pkg/auth/jwt"
	"chatrelay/internal/pkg/logx"
)

func main() {
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logx.InitGlobalLogger(cfg.IsDevelopment())

	username := flag.String("username", cfg.AdminUsername, "administrator username the token is issued to")
	ttl := flag.Duration("ttl", jwt.AdminTokenExpiration, "token lifetime")
	flag.Parse()

	if *username == "" {
		logx.Fatal(fmt.Errorf("no username"), "ADMIN_USERNAME is unset and -username was not given")
	}

	token, err := jwt.GenerateToken(&jwt.Payload{Username: *username, Role: jwt.RoleAdmin}, cfg.JWTSecret, *ttl)
	if err != nil {
		logx.Fatal(err, "Failed to sign admin token")
	}

	fmt.Println(token)
}
