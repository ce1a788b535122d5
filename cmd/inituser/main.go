package main

import (
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/trashinator/internal/config"
	"github.com/trashinator/internal/db"
)

func main() {
	username := flag.String("username", "admin", "login name")
	password := flag.String("password", "", "login password")
	admin := flag.Bool("admin", false, "allow operations endpoints (close stale periods, recalculate stats)")
	flag.Parse()

	if *password == "" {
		log.Fatal("password is required")
	}

	if err := config.LoadDotEnv(); err != nil {
		log.Printf("failed to load .env: %v", err)
	}
	cfg := config.Load()

	// 初始化数据库
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatal("failed to initialize database:", err)
	}

	create := db.CreateUser
	if *admin {
		create = db.CreateAdminUser
	}
	user, err := create(db.DB, *username, *password)
	if errors.Is(err, db.ErrUserExists) {
		fmt.Printf("user %s already exists\n", *username)
		return
	}
	if err != nil {
		log.Fatal("failed to create user:", err)
	}

	fmt.Printf("created user %s (id %d, admin %t)\n", user.Username, user.ID, user.IsAdmin)
}
