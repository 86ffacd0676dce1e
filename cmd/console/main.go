package main

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type ConsoleConfig struct {
	APIBaseURL string
	OwnerID    int
	Timeout    time.Duration
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func main() {
	ownerID, err := strconv.Atoi(getEnv("OWNER_ID", "1"))
	if err != nil || ownerID < 1 {
		fmt.Fprintf(os.Stderr, "OWNER_ID must be a positive integer\n")
		os.Exit(1)
	}

	cfg := &ConsoleConfig{
		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:8080"),
		OwnerID:    ownerID,
		Timeout:    30 * time.Second,
	}

	client := &http.Client{
		Timeout: cfg.Timeout,
	}

	if !testConnection(client, cfg.APIBaseURL) {
		fmt.Fprintf(os.Stderr, "Could not connect to API. Please ensure the API is running.\nTry: docker-compose up -d\n")
		os.Exit(1)
	}

	owner, err := getOwner(client, cfg.APIBaseURL, cfg.OwnerID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load owner pc:%d: %v\n", cfg.OwnerID, err)
		os.Exit(1)
	}

	p := tea.NewProgram(NewConsoleUI(cfg, client, owner),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
