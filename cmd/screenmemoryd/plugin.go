package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/arkohut/screenmemory/internal/catalog"
	"github.com/spf13/cobra"
)

var (
	pluginDescription string
	pluginWebhookURL   string
)

var pluginCmd = &cobra.Command{
	Use:   "plugin",
	Short: "Manage registered plugins and their per-library activation",
}

var pluginRegisterCmd = &cobra.Command{
	Use:   "register [name]",
	Short: "Register a new plugin",
	Args:  cobra.ExactArgs(1),
	RunE:  runPluginRegister,
}

var pluginListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered plugins",
	Args:  cobra.NoArgs,
	RunE:  runPluginList,
}

var pluginActivateCmd = &cobra.Command{
	Use:   "activate [library-id] [plugin-id]",
	Short: "Activate a plugin for a library",
	Args:  cobra.ExactArgs(2),
	RunE:  runPluginActivate,
}

var pluginDeactivateCmd = &cobra.Command{
	Use:   "deactivate [library-id] [plugin-id]",
	Short: "Deactivate a plugin for a library",
	Args:  cobra.ExactArgs(2),
	RunE:  runPluginDeactivate,
}

func init() {
	pluginRegisterCmd.Flags().StringVar(&pluginDescription, "description", "", "plugin description")
	pluginRegisterCmd.Flags().StringVar(&pluginWebhookURL, "webhook-url", "", "webhook URL the dispatcher posts extracted metadata to")

	pluginCmd.AddCommand(pluginRegisterCmd, pluginListCmd, pluginActivateCmd, pluginDeactivateCmd)
}

func runPluginRegister(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	p, err := a.store.RegisterPlugin(context.Background(), catalog.Plugin{
		Name:        args[0],
		Description: pluginDescription,
		WebhookURL:  pluginWebhookURL,
	})
	if err != nil {
		return err
	}
	return printJSON(cmd, p)
}

func runPluginList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	plugins, err := a.store.ListPlugins(context.Background())
	if err != nil {
		return err
	}
	return printJSON(cmd, plugins)
}

func runPluginActivate(cmd *cobra.Command, args []string) error {
	libraryID, pluginID, err := parsePluginIDs(args)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.store.ActivatePlugin(context.Background(), libraryID, pluginID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "activated plugin %d for library %d\n", pluginID, libraryID)
	return nil
}

func runPluginDeactivate(cmd *cobra.Command, args []string) error {
	libraryID, pluginID, err := parsePluginIDs(args)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.store.DeactivatePlugin(context.Background(), libraryID, pluginID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deactivated plugin %d for library %d\n", pluginID, libraryID)
	return nil
}

func parsePluginIDs(args []string) (libraryID, pluginID int64, err error) {
	libraryID, err = strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid library id %q: %w", args[0], err)
	}
	pluginID, err = strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid plugin id %q: %w", args[1], err)
	}
	return libraryID, pluginID, nil
}
