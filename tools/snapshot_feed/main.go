package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"time"
)

// snapshot_feed posts signed equipment snapshot batches to the ingest
// endpoint at a fixed interval. Metrics drift around a baseline so duration
// gates and automations have something to chew on; FEED_SPIKE_RATE makes a
// fraction of samples breach typical thresholds.

type feedConfig struct {
	baseURL   string
	secret    string
	siteID    string
	equipment []string
	interval  time.Duration
	spikeRate float64
}

type snapshotPayload struct {
	EquipmentID string             `json:"equipmentId"`
	SiteID      string             `json:"siteId"`
	Status      string             `json:"status"`
	Metrics     map[string]float64 `json:"metrics"`
	Alarms      []string           `json:"alarms,omitempty"`
	TS          int64              `json:"ts"`
}

func main() {
	cfg := feedConfig{
		baseURL:   getenvDefault("FEED_BASE_URL", "http://localhost:8080"),
		secret:    os.Getenv("INGEST_HMAC_SECRET"),
		siteID:    getenvDefault("FEED_SITE_ID", "site-demo"),
		interval:  getenvDuration("FEED_INTERVAL", 15*time.Second),
		spikeRate: getenvFloatDefault("FEED_SPIKE_RATE", 0.1),
	}
	count := getenvIntDefault("FEED_EQUIPMENT_COUNT", 4)
	for i := 1; i <= count; i++ {
		cfg.equipment = append(cfg.equipment, fmt.Sprintf("dg-%d", i))
	}
	if cfg.secret == "" {
		log.Fatal("INGEST_HMAC_SECRET is required")
	}

	client := &http.Client{Timeout: 10 * time.Second}
	log.Printf("feeding %d units at %s every %s", count, cfg.baseURL, cfg.interval)
	ticker := time.NewTicker(cfg.interval)
	defer ticker.Stop()
	for {
		if err := postBatch(client, cfg); err != nil {
			log.Printf("post batch: %v", err)
		}
		<-ticker.C
	}
}

func postBatch(client *http.Client, cfg feedConfig) error {
	now := time.Now().UTC()
	batch := struct {
		Snapshots []snapshotPayload `json:"snapshots"`
	}{}
	for _, id := range cfg.equipment {
		batch.Snapshots = append(batch.Snapshots, buildSnapshot(id, cfg.siteID, cfg.spikeRate, now))
	}
	body, err := json.Marshal(batch)
	if err != nil {
		return err
	}

	timestamp := strconv.FormatInt(now.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(cfg.secret))
	_, _ = mac.Write([]byte(timestamp))
	_, _ = mac.Write([]byte("\n"))
	_, _ = mac.Write(body)
	signature := hex.EncodeToString(mac.Sum(nil))

	req, err := http.NewRequest(http.MethodPost, cfg.baseURL+"/ingest/snapshots", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Ingest-Timestamp", timestamp)
	req.Header.Set("X-Ingest-Signature", signature)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("ingest returned %d", resp.StatusCode)
	}
	return nil
}

func buildSnapshot(equipmentID, siteID string, spikeRate float64, at time.Time) snapshotPayload {
	power := 30 + rand.Float64()*15
	temp := 35 + rand.Float64()*10
	fuel := 60 + rand.Float64()*30
	var alarms []string
	if rand.Float64() < spikeRate {
		power = 55 + rand.Float64()*20
		temp = 70 + rand.Float64()*15
		alarms = append(alarms, "overTemp")
	}
	return snapshotPayload{
		EquipmentID: equipmentID,
		SiteID:      siteID,
		Status:      "ON",
		Metrics: map[string]float64{
			"powerKw":      power,
			"temperature":  temp,
			"fuelLevelPct": fuel,
			"runHours":     float64(at.Unix() % 100000),
		},
		Alarms: alarms,
		TS:     at.UnixMilli(),
	}
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
