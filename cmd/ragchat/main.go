// Command ragchat is a terminal client for the RAG agent service:
// interactive streaming chat, conversation management, and annotated
// document viewing.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/adoptiveai/ragchat/agentapi"
)

var (
	serverURL string
	userID    string
	model     string
	agentName string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "ragchat",
	Short: "Terminal client for the RAG agent service",
	Long: `Ragchat talks to a RAG agent service: it streams chat turns with
tool activity (SQL, graphs, document citations), manages stored
conversations, and renders cited documents with their highlights
burned in.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Agent service base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "", "User id for history and titles (overrides config)")
	rootCmd.PersistentFlags().StringVar(&model, "model", "", "Model to request (overrides config)")
	rootCmd.PersistentFlags().StringVar(&agentName, "agent", "", "Backend agent to target (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfig merges the config file with command-line overrides.
func resolveConfig() (*Config, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	if serverURL != "" {
		cfg.ServerURL = serverURL
	}
	if userID != "" {
		cfg.UserID = userID
	}
	if model != "" {
		cfg.Model = model
	}
	if agentName != "" {
		cfg.Agent = agentName
	}
	return cfg, nil
}

// newClient builds the service client from the resolved config.
func newClient(cfg *Config) *agentapi.Client {
	var opts []agentapi.Option
	if cfg.AuthToken != "" {
		opts = append(opts, agentapi.WithAuthToken(cfg.AuthToken))
	}
	return agentapi.NewClient(cfg.ServerURL, opts...)
}
