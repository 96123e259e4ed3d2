package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// seed loads demo sites, equipment, alert rules, automations and schedules
// so a fresh database has something for the engines to evaluate.

type config struct {
	dsn              string
	siteCount        int
	equipmentPerSite int
	withRules        bool
}

func main() {
	cfg := parseConfig()
	if cfg.dsn == "" {
		log.Fatal("PG_DSN or DATABASE_URL is required")
	}

	db, err := sql.Open("pgx", cfg.dsn)
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("db ping: %v", err)
	}

	for s := 1; s <= cfg.siteCount; s++ {
		siteID := fmt.Sprintf("site-%03d", s)
		if err := seedSite(ctx, db, siteID, s); err != nil {
			log.Fatalf("seed site %s: %v", siteID, err)
		}
		for e := 1; e <= cfg.equipmentPerSite; e++ {
			if err := seedEquipment(ctx, db, siteID, s, e); err != nil {
				log.Fatalf("seed equipment for %s: %v", siteID, err)
			}
		}
		log.Printf("seeded %s with %d units", siteID, cfg.equipmentPerSite)
	}

	if cfg.withRules {
		if err := seedRules(ctx, db); err != nil {
			log.Fatalf("seed rules: %v", err)
		}
		log.Printf("seeded demo alert rule, automation and schedule")
	}
}

func parseConfig() config {
	var cfg config
	flag.StringVar(&cfg.dsn, "dsn", envDefault("PG_DSN", os.Getenv("DATABASE_URL")), "postgres dsn")
	flag.IntVar(&cfg.siteCount, "sites", 2, "number of sites")
	flag.IntVar(&cfg.equipmentPerSite, "equipment", 4, "equipment units per site")
	flag.BoolVar(&cfg.withRules, "rules", true, "seed demo rules")
	flag.Parse()
	return cfg
}

func envDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func seedSite(ctx context.Context, db *sql.DB, siteID string, n int) error {
	_, err := db.ExecContext(ctx, `
INSERT INTO sites (id, name, city, contact_name, contact_phone)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO NOTHING`,
		siteID, fmt.Sprintf("Facility %d", n), "Demo City", "duty engineer", "000-0000")
	return err
}

func seedEquipment(ctx context.Context, db *sql.DB, siteID string, s, e int) error {
	id := fmt.Sprintf("dg-%03d-%02d", s, e)
	equipmentType := "dg"
	if e%2 == 0 {
		id = fmt.Sprintf("ac-%03d-%02d", s, e)
		equipmentType = "hvac"
	}
	now := time.Now().UTC()
	_, err := db.ExecContext(ctx, `
INSERT INTO equipment (id, name, type, site_id, tower_id, status, rated_kw, serial_no, last_seen, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, 'OFF', $6, $7, NULL, $8, $8)
ON CONFLICT (id) DO NOTHING`,
		id, fmt.Sprintf("%s unit %d", equipmentType, e), equipmentType, siteID,
		fmt.Sprintf("tower-%03d-a", s), 50.0, fmt.Sprintf("SN-%03d-%02d", s, e), now)
	return err
}

func seedRules(ctx context.Context, db *sql.DB) error {
	now := time.Now().UTC()

	alertRule := map[string]any{
		"id":            "rule-dg-overload",
		"name":          "DG overload",
		"enabled":       true,
		"equipmentType": "dg",
		"severity":      "high",
		"defaultCondition": map[string]any{
			"metric":          "powerKw",
			"operator":        ">",
			"threshold":       50,
			"durationMinutes": 5,
		},
		"escalationConfig": map[string]any{
			"enabled":      true,
			"delayMinutes": 15,
			"notifyRoles":  []string{"supervisor"},
		},
	}
	ruleJSON, err := json.Marshal(alertRule)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `
INSERT INTO alert_rules (id, name, enabled, equipment_type, definition, created_at, updated_at)
VALUES ($1, $2, TRUE, $3, $4, $5, $5)
ON CONFLICT (id) DO NOTHING`,
		"rule-dg-overload", "DG overload", "dg", ruleJSON, now); err != nil {
		return err
	}

	automation := map[string]any{
		"id":      "auto-high-load-fan",
		"name":    "high load ventilation",
		"siteId":  "site-001",
		"enabled": true,
		"conditionGroups": []any{map[string]any{
			"id":    "g1",
			"logic": "AND",
			"conditions": []any{map[string]any{
				"id":          "c1",
				"kind":        "metric",
				"equipmentId": "dg-001-01",
				"metric":      "powerKw",
				"operator":    ">",
				"threshold":   45,
			}},
		}},
		"actions": []any{map[string]any{
			"id":       "a1",
			"kind":     "equipment",
			"targetId": "ac-001-02",
			"to":       "ON",
		}},
	}
	autoJSON, err := json.Marshal(automation)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `
INSERT INTO automations (id, name, site_id, enabled, definition, created_at, updated_at)
VALUES ($1, $2, $3, TRUE, $4, $5, $5)
ON CONFLICT (id) DO NOTHING`,
		"auto-high-load-fan", "high load ventilation", "site-001", autoJSON, now); err != nil {
		return err
	}

	targets, err := json.Marshal([]string{"ac-001-02"})
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
INSERT INTO schedules (id, name, site_id, cron, action, targets, enabled)
VALUES ($1, $2, $3, $4, $5, $6, TRUE)
ON CONFLICT (id) DO NOTHING`,
		"sched-night-off", "night shutdown", "site-001", "0 22 * * *", "OFF", targets)
	return err
}
