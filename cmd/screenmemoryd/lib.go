package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var libFolderType string

var libCmd = &cobra.Command{
	Use:   "lib",
	Short: "Manage libraries and their folders",
}

var libCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a library",
	Args:  cobra.ExactArgs(1),
	RunE:  runLibCreate,
}

var libListCmd = &cobra.Command{
	Use:   "list",
	Short: "List libraries",
	Args:  cobra.NoArgs,
	RunE:  runLibList,
}

var libRemoveCmd = &cobra.Command{
	Use:   "rm [id]",
	Short: "Delete a library and everything under it",
	Args:  cobra.ExactArgs(1),
	RunE:  runLibRemove,
}

var libAddFolderCmd = &cobra.Command{
	Use:   "add-folder [library-id] [path]",
	Short: "Register a folder under a library",
	Args:  cobra.ExactArgs(2),
	RunE:  runLibAddFolder,
}

var libRemoveFolderCmd = &cobra.Command{
	Use:   "rm-folder [folder-id]",
	Short: "Remove a folder and its entities",
	Args:  cobra.ExactArgs(1),
	RunE:  runLibRemoveFolder,
}

func init() {
	libAddFolderCmd.Flags().StringVar(&libFolderType, "type", "screenshots", "folder type")

	libCmd.AddCommand(libCreateCmd, libListCmd, libRemoveCmd, libAddFolderCmd, libRemoveFolderCmd)
}

func runLibCreate(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	lib, err := a.store.CreateLibrary(context.Background(), args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd, lib)
}

func runLibList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	libs, err := a.store.ListLibraries(context.Background())
	if err != nil {
		return err
	}
	return printJSON(cmd, libs)
}

func runLibRemove(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid library id %q: %w", args[0], err)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.store.DeleteLibrary(context.Background(), id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted library %d\n", id)
	return nil
}

func runLibAddFolder(cmd *cobra.Command, args []string) error {
	libraryID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid library id %q: %w", args[0], err)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	folder, err := a.store.AddFolder(context.Background(), libraryID, args[1], libFolderType)
	if err != nil {
		return err
	}
	return printJSON(cmd, folder)
}

func runLibRemoveFolder(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid folder id %q: %w", args[0], err)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.store.RemoveFolder(context.Background(), id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed folder %d\n", id)
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
