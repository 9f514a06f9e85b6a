package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check a connector's /health endpoint",
	Run: func(cmd *cobra.Command, args []string) {
		fetchStatus()
	},
}

func fetchStatus() {
	client := &http.Client{Timeout: 5 * time.Second}
	url := fmt.Sprintf("%s/health", viper.GetString("url"))
	req, _ := http.NewRequest("GET", url, nil)
	if key := viper.GetString("key"); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("connector unreachable: %v\n", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		fmt.Println("Status: [HEALTHY]")
		return
	}
	fmt.Printf("Status: [UNHEALTHY] (%d)\n", resp.StatusCode)
}
