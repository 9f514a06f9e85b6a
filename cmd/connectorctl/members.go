package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(membersCmd)
}

var membersCmd = &cobra.Command{
	Use:   "members",
	Short: "List the cluster members a connector knows about",
	Run: func(cmd *cobra.Command, args []string) {
		fetchMembers()
	},
}

type member struct {
	ID       string `json:"ID"`
	Endpoint string `json:"Endpoint"`
	Region   string `json:"Region"`
	Status   string `json:"Status"`
}

func fetchMembers() {
	client := &http.Client{Timeout: 5 * time.Second}
	url := fmt.Sprintf("%s/api/cluster/members", viper.GetString("url"))
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

	var members []member
	if err := json.NewDecoder(resp.Body).Decode(&members); err != nil {
		fmt.Printf("error parsing members: %v\n", err)
		return
	}
	if len(members) == 0 {
		fmt.Println("no cluster members registered")
		return
	}
	for _, m := range members {
		fmt.Printf("%-16s %-32s %-12s %s\n", m.ID, m.Endpoint, m.Region, m.Status)
	}
}
