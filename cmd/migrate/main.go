package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/kdimtricp/shottime/internal/database"
	_ "github.com/mattn/go-sqlite3"
)

func main() {
	var (
		dbPath = flag.String("db", "./shottime.db", "SQLite database path")
		status = flag.Bool("status", false, "Show migration status only")
	)
	flag.Parse()

	if env := os.Getenv("SHOTTIME_DB_PATH"); env != "" {
		*dbPath = env
	}

	conn, err := sql.Open("sqlite3", *dbPath)
	if err != nil {
		log.Fatal("Failed to open database:", err)
	}
	defer conn.Close()

	migrator := database.NewMigrator(conn)

	if !*status {
		fmt.Printf("Running migrations on %s...\n", *dbPath)
		if err := migrator.Up(); err != nil {
			log.Fatal("Failed to run migrations:", err)
		}
		fmt.Println("Migrations completed successfully!")
		return
	}

	if err := migrator.Initialize(); err != nil {
		log.Fatal("Failed to initialize migrator:", err)
	}

	applied, err := migrator.GetAppliedMigrations()
	if err != nil {
		log.Fatal("Failed to get applied migrations:", err)
	}

	fmt.Println("Migration Status:")
	fmt.Println("=================")
	for _, m := range database.Migrations() {
		state := "pending"
		if applied[m.Version] {
			state = "applied"
		}
		fmt.Printf("%s - %s [%s]\n", m.Version, m.Name, state)
	}
}
