package cmd

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xinggonglie/lobe-chat-2/internal/client"
	"github.com/xinggonglie/lobe-chat-2/internal/models"
	"github.com/xinggonglie/lobe-chat-2/internal/plugin"
	"github.com/xinggonglie/lobe-chat-2/internal/settings"
)

var chatFlags struct {
	server     string
	provider   string
	model      string
	accessCode string
	apiKey     string
	plugins    []string
	system     string
}

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Send a chat message through the gateway and stream the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := os.Getenv("LOBE_TOKEN_SECRET")
		if secret == "" {
			return errors.New("LOBE_TOKEN_SECRET must be set to sign the auth payload")
		}

		store := settings.NewStore(settings.Settings{
			ServerURL:       chatFlags.server,
			AccessCode:      chatFlags.accessCode,
			DefaultProvider: chatFlags.provider,
			DefaultModel:    chatFlags.model,
			Providers: map[string]settings.ProviderSettings{
				chatFlags.provider: {Enabled: true, APIKey: chatFlags.apiKey},
			},
		})

		service := client.NewService(store, plugin.Default(), nil, secret)

		var messages []models.Message
		if chatFlags.system != "" {
			messages = append(messages, models.Message{Role: models.RoleSystem, Content: chatFlags.system})
		}
		messages = append(messages, models.Message{
			Role:    models.RoleUser,
			Content: strings.Join(args, " "),
		})

		resp, err := service.CreateAssistantMessage(cmd.Context(), client.Params{
			Messages:       messages,
			EnabledPlugins: chatFlags.plugins,
		})
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
			return fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}

		return printStream(cmd.OutOrStdout(), resp.Body)
	},
}

// printStream renders an SSE chat stream as plain text, passing non-SSE
// bodies through verbatim.
func printStream(w io.Writer, body io.Reader) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for scanner.Scan() {
		line := scanner.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		if data == "[DONE]" {
			break
		}

		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		for _, choice := range chunk.Choices {
			fmt.Fprint(w, choice.Delta.Content)
		}
	}
	fmt.Fprintln(w)

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return nil
}

func init() {
	chatCmd.Flags().StringVar(&chatFlags.server, "server", "http://127.0.0.1:3210", "gateway base URL")
	chatCmd.Flags().StringVar(&chatFlags.provider, "provider", "openai", "provider identifier")
	chatCmd.Flags().StringVar(&chatFlags.model, "model", "", "model identifier (provider default when empty)")
	chatCmd.Flags().StringVar(&chatFlags.accessCode, "access-code", "", "deployment access code")
	chatCmd.Flags().StringVar(&chatFlags.apiKey, "api-key", "", "user-supplied provider API key")
	chatCmd.Flags().StringSliceVar(&chatFlags.plugins, "plugin", nil, "enabled plugin identifiers")
	chatCmd.Flags().StringVar(&chatFlags.system, "system", "", "system prompt")
	rootCmd.AddCommand(chatCmd)
}
