package main

import (
	"fmt"
	"log"

	"pfmt-portal/internal/config"
	"pfmt-portal/internal/database"
	"pfmt-portal/internal/handlers"
	"pfmt-portal/internal/identity"
	"pfmt-portal/internal/server"
	"pfmt-portal/internal/store/gormstore"
)

func main() {
	cfg := config.Load()
	db := database.Init(cfg.DBDSN, cfg.AdminUsername, cfg.AdminPassword)

	stores := gormstore.New(db).Stores()
	resolver := identity.NewResolver(stores.Users)
	h := handlers.New(stores)

	r := server.NewRouter(cfg, h, resolver)

	addr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("starting server on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
