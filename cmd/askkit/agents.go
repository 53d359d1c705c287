package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"AskKit/internal/ipc"
	"AskKit/internal/models"
	"AskKit/internal/native"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newAgentsCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "List agents and manage their API keys",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List agents, marking the current one",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withBridge(cmd, flags, func(br ipc.Bridge) error {
					return listAgents(cmd, br)
				})
			},
		},
		&cobra.Command{
			Use:   "use AGENT_ID",
			Short: "Make an agent the current one",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withBridge(cmd, flags, func(br ipc.Bridge) error {
					_, err := br.Invoke(cmd.Context(), models.CmdUpdateCurrentAgent, native.UpdateCurrentAgentArgs{AgentID: args[0]})
					if err != nil {
						return fmt.Errorf("failed to update current agent: %w", err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "current agent: %s\n", args[0])
					return nil
				})
			},
		},
		newSetKeyCmd(flags),
	)
	return cmd
}

func listAgents(cmd *cobra.Command, br ipc.Bridge) error {
	ctx := cmd.Context()
	agents, err := ipc.Invoke[[]models.Agent](ctx, br, models.CmdGetAgents, nil)
	if err != nil {
		return fmt.Errorf("failed to get agents: %w", err)
	}
	current, err := ipc.Invoke[*models.Agent](ctx, br, models.CmdGetCurrentAgent, nil)
	if err != nil {
		return fmt.Errorf("failed to get current agent: %w", err)
	}

	w := newTable(cmd.OutOrStdout())
	fmt.Fprintln(w, headerStyle.Render("  ID")+"\t"+headerStyle.Render("PROVIDER")+"\t"+headerStyle.Render("MODEL")+"\t"+headerStyle.Render("API KEY"))
	for _, a := range agents {
		marker := "  "
		if current != nil && current.ID == a.ID {
			marker = currentStyle.Render("* ")
		}
		cfg, err := ipc.Invoke[*models.AgentConfig](ctx, br, models.CmdGetAgentConfig, native.GetAgentConfigArgs{ID: a.ID})
		if err != nil {
			return fmt.Errorf("failed to get agent config: %w", err)
		}
		key := "-"
		if cfg != nil && cfg.APIKey != nil && *cfg.APIKey != "" {
			key = "set"
		}
		fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\n", marker, idStyle.Render(a.ID), a.Provider, a.Model, key)
	}
	return w.Flush()
}

func newSetKeyCmd(flags *globalFlags) *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "set-key AGENT_ID",
		Short: "Store an agent's API key",
		Long: `Stores the API key for an agent, encrypted. Without --key the key is read
from stdin, hidden when stdin is a terminal. An empty key clears it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("key") {
				var err error
				if key, err = readKey(cmd.InOrStdin(), cmd.ErrOrStderr()); err != nil {
					return err
				}
			}
			return withBridge(cmd, flags, func(br ipc.Bridge) error {
				upsert := native.UpsertAgentConfigArgs{
					ID:     args[0],
					Upsert: native.AgentConfigUpsert{APIKey: &key},
				}
				if _, err := ipc.Invoke[int64](cmd.Context(), br, models.CmdUpsertAgentConfig, upsert); err != nil {
					return fmt.Errorf("failed to store api key: %w", err)
				}
				if strings.TrimSpace(key) == "" {
					fmt.Fprintf(cmd.OutOrStdout(), "api key cleared for %s\n", args[0])
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "api key stored for %s\n", args[0])
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "API key (visible in shell history; prefer stdin)")
	return cmd
}

// readKey reads one line, without echo when in is a terminal
func readKey(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "API key: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("failed to read api key: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read api key: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// withBridge runs fn against the configured backend
func withBridge(cmd *cobra.Command, flags *globalFlags, fn func(ipc.Bridge) error) error {
	e, err := setup(cmd, flags)
	if err != nil {
		return err
	}
	defer e.close()

	br, err := e.bridge(cmd.Context())
	if err != nil {
		return err
	}
	return fn(br)
}
