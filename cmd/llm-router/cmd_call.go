package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/upb/llm-router/app"
	"github.com/upb/llm-router/models"
	"github.com/upb/llm-router/services/routing"
)

var callCmd = &cobra.Command{
	Use:   "call <profile> <prompt...>",
	Short: "Send one prompt through a profile",
	Long: `Send a single user prompt through the providers of a profile and print
the first successful answer. When every provider is skipped, struck or
failing, the attempt trail is printed instead.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runCall,
}

func init() {
	callCmd.Flags().String("system", "", "System prompt sent before the user prompt")
	callCmd.Flags().String("model", "", "Model override for every provider")
	callCmd.Flags().Float64("temperature", routing.DefaultTemperature, "Sampling temperature")
	callCmd.Flags().Int("max-tokens", routing.DefaultMaxTokens, "Maximum tokens to generate")
	callCmd.Flags().Bool("json", false, "Print the full result as JSON")
}

func runCall(cmd *cobra.Command, args []string) error {
	profile := args[0]
	prompt := strings.Join(args[1:], " ")

	system, _ := cmd.Flags().GetString("system")
	model, _ := cmd.Flags().GetString("model")
	temperature, _ := cmd.Flags().GetFloat64("temperature")
	maxTokens, _ := cmd.Flags().GetInt("max-tokens")
	asJSON, _ := cmd.Flags().GetBool("json")

	var messages []models.Message
	if system != "" {
		messages = append(messages, models.Message{Role: "system", Content: system})
	}
	messages = append(messages, models.Message{Role: "user", Content: prompt})

	return withDependencies(cmd, func(ctx context.Context, deps *app.Dependencies) error {
		result, err := deps.Router.Call(ctx, profile, messages, routing.CallOptions{
			Model:       model,
			Temperature: &temperature,
			MaxTokens:   &maxTokens,
		})
		if err != nil {
			var exhausted *routing.ExhaustedError
			if errors.As(err, &exhausted) {
				printAttempts(cmd, exhausted.Attempts)
			}
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		fmt.Fprintln(out, result.Text)
		fmt.Fprintf(cmd.ErrOrStderr(), "[%s via %s, %d in / %d out tokens]\n",
			result.Model, result.ProviderName, result.Usage.InputTokens, result.Usage.OutputTokens)
		return nil
	})
}

func printAttempts(cmd *cobra.Command, attempts []models.Attempt) {
	w := cmd.ErrOrStderr()
	fmt.Fprintln(w, "Attempts:")
	for _, a := range attempts {
		line := fmt.Sprintf("  %-20s %-8s %s", a.Provider, a.Status, a.Reason)
		if a.RenewsAt != nil {
			line += fmt.Sprintf(" (renews %s)", a.RenewsAt.Format("2006-01-02 15:04:05 MST"))
		}
		fmt.Fprintln(w, line)
	}
}
