package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/akrisanov/canvas-mcp/internal/logging"
	"github.com/akrisanov/canvas-mcp/internal/mcp"
	"github.com/akrisanov/canvas-mcp/internal/tools"
)

var (
	flagArgs string
	flagJSON bool
)

var callCmd = &cobra.Command{
	Use:   "call <tool>",
	Short: "Run one tool and print its result",
	Long: `Call runs a single tool against the configured Canvas instance and prints
the same text an MCP client would receive.

Examples:
  canvas-mcp call canvas.list_courses --args '{"state":"all"}'
  canvas-mcp call canvas.search_assignments --args '{"query":"essay","dueBefore":"2024-05-01"}'
  canvas-mcp call canvas.get_assignment --args '{"courseId":"101","assignmentId":"7","formatType":"markdown"}' --json`,
	Args: cobra.ExactArgs(1),
	RunE: runCall,
}

func init() {
	rootCmd.AddCommand(callCmd)

	callCmd.Flags().StringVar(&flagArgs, "args", "{}", "Tool arguments as a JSON object")
	callCmd.Flags().BoolVar(&flagJSON, "json", false, "Print the structured result as JSON instead of text")
}

func runCall(cmd *cobra.Command, args []string) error {
	if !json.Valid([]byte(flagArgs)) {
		return errors.New("--args must be valid JSON")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.LogLevel, os.Stderr)
	server := mcp.NewServer(cfg, newService(cfg, logger), logger)

	out, err := server.CallTool(cmd.Context(), args[0], json.RawMessage(flagArgs))
	if err != nil {
		failure := tools.Describe(err)
		return fmt.Errorf("%s (%s)", failure.Message, failure.Code)
	}

	if flagJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out.Data)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), out.Text)
	return err
}
