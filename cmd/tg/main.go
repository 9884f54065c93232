package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/taskgate/internal/client"
	"github.com/alfredjeanlab/taskgate/internal/ui"
)

var (
	serverAddr string
	httpURL    string
	transport  string
	jsonOutput bool
	actor      string
	authToken  string

	// apiClient serves every command; approvalClient serves the approval
	// workflow and follows --transport.
	apiClient      client.Client
	approvalClient client.ApprovalClient
)

func defaultActor() string {
	if s := os.Getenv("TASKGATE_ACTOR"); s != "" {
		return s
	}
	out, err := exec.Command("git", "config", "user.name").Output()
	if err == nil {
		name := strings.TrimSpace(string(out))
		if name != "" {
			return name
		}
	}
	return "unknown"
}

func defaultHTTPURL() string {
	if s := os.Getenv("TASKGATE_HTTP_URL"); s != "" {
		return s
	}
	if u := activeRemote().URL; u != "" {
		return u
	}
	return "http://localhost:8080"
}

func defaultServer() string {
	if s := os.Getenv("TASKGATE_SERVER"); s != "" {
		return s
	}
	if a := activeRemote().GRPCAddr; a != "" {
		return a
	}
	return "localhost:9090"
}

func defaultToken() string {
	if s := os.Getenv("TASKGATE_TOKEN"); s != "" {
		return s
	}
	return activeRemote().Token
}

// connect builds the clients for the chosen transport.
func connect() error {
	httpClient := client.NewHTTPClient(httpURL, authToken)
	apiClient = httpClient

	switch transport {
	case "http":
		approvalClient = httpClient
	case "grpc":
		c, err := client.NewGRPCClient(serverAddr, authToken)
		if err != nil {
			return fmt.Errorf("failed to connect to server: %w", err)
		}
		approvalClient = c
	default:
		return fmt.Errorf("unknown transport %q (must be http or grpc)", transport)
	}
	return nil
}

func disconnect() {
	if approvalClient != nil && approvalClient != client.ApprovalClient(apiClient) {
		approvalClient.Close()
	}
	if apiClient != nil {
		apiClient.Close()
	}
	apiClient, approvalClient = nil, nil
}

var rootCmd = &cobra.Command{
	Use:           "tg <command>",
	Short:         "CLI client for the taskgate approval service",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}
		return connect()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		disconnect()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", defaultHTTPURL(), "HTTP server URL")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", defaultServer(), "gRPC server address")
	rootCmd.PersistentFlags().StringVar(&transport, "transport", "http", "transport for approval commands (http or grpc)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", defaultActor(), "member ID to act as")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", defaultToken(), "bearer token for authentication")

	rootCmd.AddGroup(
		&cobra.Group{ID: "tasks", Title: "Tasks:"},
		&cobra.Group{ID: "workflow", Title: "Approvals:"},
		&cobra.Group{ID: "audit", Title: "Audit:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Tasks
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(stakeholdersCmd)

	// Approvals
	rootCmd.AddCommand(moveCmd)
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(rejectCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(approvalCmd)
	rootCmd.AddCommand(pendingCmd)

	// Audit
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(transitionsCmd)
	rootCmd.AddCommand(watchCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(remoteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
