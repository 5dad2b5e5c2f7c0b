// Command oncoscanctl manages OncoScan users directly in the database.
package main

import (
	"fmt"
	"os"

	"gorm.io/gorm"

	"oncoscan/internal/config"
	"oncoscan/internal/database"
	"oncoscan/internal/logger"
	"oncoscan/internal/users"
)

func main() {
	if err := rootCommand(openRepository).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openRepository connects using the same environment as the API server.
func openRepository() (*users.Repository, func(), error) {
	cfg, err := config.NewLoader().Load()
	if err != nil {
		return nil, nil, err
	}
	lg := logger.New(cfg.LogLevel)
	db, err := database.Open(cfg.DatabaseURL, lg)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(db); err != nil {
		_ = database.Close(db)
		return nil, nil, err
	}
	return users.NewRepository(db, 0), closer(db), nil
}

func closer(db *gorm.DB) func() {
	return func() { _ = database.Close(db) }
}
