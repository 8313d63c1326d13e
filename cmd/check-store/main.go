package main

import (
	"flag"
	"fmt"
	"log"
	"sort"

	"github.com/kdimtricp/shottime/internal/config"
	"github.com/kdimtricp/shottime/internal/database"
)

func main() {
	limit := flag.Int("captures", 10, "number of recent captures to list")
	flag.Parse()

	cfg, err := config.Load("")
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	db, err := database.NewDB(database.Config{SQLitePath: cfg.DBPath})
	if err != nil {
		log.Fatal("Failed to open database:", err)
	}
	defer db.Close()

	fmt.Println("🔍 Checking Screenshot Store")
	fmt.Println("============================")
	fmt.Printf("Database: %s\n\n", cfg.DBPath)

	if cfg.GoogleVisionKey == "" {
		fmt.Println("⚠️  WARNING: No Google Vision key configured, face analysis is disabled")
		fmt.Println()
	}

	kv := database.NewKVStore(db)
	values, err := kv.All()
	if err != nil {
		log.Fatal("Failed to read stored values:", err)
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Printf("⚙️  Stored values: %d\n", len(keys))
	for _, k := range keys {
		fmt.Printf("   %s = %s\n", k, values[k])
	}
	fmt.Println()

	store := database.NewConfigStore(kv)
	if slots, ok := store.LoadSlots(); ok {
		fmt.Printf("⏰ Slots: %d (active=%v)\n", len(slots), store.LoadActive())
		for _, s := range slots {
			state := "off"
			if s.Enabled {
				state = "on"
			}
			if s.Triggered {
				state += ", triggered"
			}
			fmt.Printf("   #%d %s [%s]\n", s.ID, s.Time, state)
		}
	} else {
		fmt.Println("⏰ Slots: defaults (nothing stored yet)")
	}
	fmt.Println()

	captures, err := database.NewCaptureRepository(db).ListRecent(*limit)
	if err != nil {
		log.Fatal("Failed to list captures:", err)
	}
	fmt.Printf("📸 Recent captures: %d\n", len(captures))
	for _, c := range captures {
		fmt.Printf("   %s  %s  %dx%d  %s\n",
			c.CapturedAt.Format("2006-01-02 15:04:05"), c.Filename, c.Width, c.Height, c.Method)
	}
}
