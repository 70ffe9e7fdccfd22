// Command debugrun drives the staged guide pipeline from a terminal, the
// same way the admin debug-run endpoints do.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"devotion-guide-be/internal/bootstrap"
	"devotion-guide-be/internal/config"
	"devotion-guide-be/internal/dto"
	"devotion-guide-be/internal/pkg/serverutils"
	"devotion-guide-be/pkg/database"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	adminID        string
	targetUser     string
	conversationID string
	entrypoint     string
	message        string
	actions        []string
	stopAt         string
	timeout        time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "debugrun",
	Short: "Run, stop and resume guide pipeline debug runs",
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a debug run for a target user",
	Long: `Start a debug run. With --stop-at the run halts before that stage
(INGRESS, CONTEXT_CANDIDATES, PROMPT_ASSEMBLY or MODEL_CALL) and can be
resumed later with "debugrun continue".`,
	RunE: runStart,
}

var continueCmd = &cobra.Command{
	Use:   "continue <run-id>",
	Short: "Resume a stopped or failed debug run",
	Args:  cobra.ExactArgs(1),
	RunE:  runContinue,
}

var showCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print a debug run with its stage artifacts",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall timeout")

	startCmd.Flags().StringVar(&adminID, "admin", "", "admin user id recorded as the run creator")
	startCmd.Flags().StringVar(&targetUser, "user", "", "target user id (required)")
	startCmd.Flags().StringVar(&conversationID, "conversation", "", "conversation id")
	startCmd.Flags().StringVar(&entrypoint, "entrypoint", "home", "home or chat")
	startCmd.Flags().StringVarP(&message, "message", "m", "", "chat message")
	startCmd.Flags().StringSliceVar(&actions, "action", nil, "enabled action types")
	startCmd.Flags().StringVar(&stopAt, "stop-at", "", "stage to stop before")
	_ = startCmd.MarkFlagRequired("user")

	continueCmd.Flags().StringVar(&stopAt, "stop-at", "", "stage to stop before")

	rootCmd.AddCommand(startCmd, continueCmd, showCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func withContainer(fn func(ctx context.Context, c *bootstrap.Container) (*dto.DebugRunResponse, error)) error {
	cfg := config.Load()
	db, err := database.NewGormDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer database.Close(db)
	container := bootstrap.NewContainer(db, cfg)
	defer container.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	res, err := fn(ctx, container)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func runStart(cmd *cobra.Command, args []string) error {
	req := dto.StartDebugRunRequest{
		Entrypoint:     entrypoint,
		Message:        message,
		EnabledActions: actions,
		StopAt:         stopAt,
	}
	var err error
	if req.TargetUserId, err = uuid.Parse(targetUser); err != nil {
		return fmt.Errorf("invalid --user: %w", err)
	}
	if conversationID != "" {
		id, err := uuid.Parse(conversationID)
		if err != nil {
			return fmt.Errorf("invalid --conversation: %w", err)
		}
		req.ConversationId = &id
	}
	creator := uuid.Nil
	if adminID != "" {
		if creator, err = uuid.Parse(adminID); err != nil {
			return fmt.Errorf("invalid --admin: %w", err)
		}
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	return withContainer(func(ctx context.Context, c *bootstrap.Container) (*dto.DebugRunResponse, error) {
		return c.DebugRunService.Start(ctx, creator, &req)
	})
}

func runContinue(cmd *cobra.Command, args []string) error {
	runID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid run id: %w", err)
	}
	return withContainer(func(ctx context.Context, c *bootstrap.Container) (*dto.DebugRunResponse, error) {
		return c.DebugRunService.Continue(ctx, runID, &dto.ContinueDebugRunRequest{StopAt: stopAt})
	})
}

func runShow(cmd *cobra.Command, args []string) error {
	runID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid run id: %w", err)
	}
	return withContainer(func(ctx context.Context, c *bootstrap.Container) (*dto.DebugRunResponse, error) {
		return c.DebugRunService.Get(ctx, runID)
	})
}
