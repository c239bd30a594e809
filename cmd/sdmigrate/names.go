package main

import (
	"fmt"
	"strings"

	"github.com/sistedes/dspace-migrator/internal/names"
	"github.com/spf13/cobra"
)

func init() {
	namesCmd.AddCommand(namesSplitCmd)
	namesExceptionsCmd.AddCommand(namesExceptionsListCmd)
	namesExceptionsCmd.AddCommand(namesExceptionsSetCmd)
	namesCmd.AddCommand(namesExceptionsCmd)
	rootCmd.AddCommand(namesCmd)
}

var namesCmd = &cobra.Command{
	Use:   "names",
	Short: "Inspect and correct author name splitting",
}

var namesSplitCmd = &cobra.Command{
	Use:   "split <full name>",
	Short: "Show how a name is split into given and family names",
	Long: `Show how a name is split into given and family names, and whether the
split comes from the exceptions file.

Examples:
  sdmigrate names split "María del Carmen Pérez García"
  sdmigrate names split "Juan Pérez" --human`,
	Args: cobra.ExactArgs(1),
	RunE: runNamesSplit,
}

var namesExceptionsCmd = &cobra.Command{
	Use:   "exceptions",
	Short: "Manage the name-split exceptions file",
}

var namesExceptionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded name splits",
	Args:  cobra.NoArgs,
	RunE:  runNamesExceptionsList,
}

var namesExceptionsSetCmd = &cobra.Command{
	Use:   "set <full name> <given> <family> [email]",
	Short: "Record how a name must be split",
	Long: `Record how a name must be split. The entry overrides the heuristic on
every later run.

Examples:
  sdmigrate names exceptions set "Juan Carlos Pérez" "Juan Carlos" "Pérez"`,
	Args: cobra.RangeArgs(3, 4),
	RunE: runNamesExceptionsSet,
}

// SplitResponse is the output of names split.
type SplitResponse struct {
	names.Split
	Cached bool `json:"cached"`
}

func runNamesSplit(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	n, _, err := openNormalizer(cfg)
	if err != nil {
		return err
	}

	_, cached := n.Exceptions().Lookup(names.Normalize(args[0]))
	s, err := n.Split(args[0], "")
	if err != nil {
		return err
	}
	if humanOutput {
		source := "heuristic"
		if cached {
			source = "exceptions file"
		}
		outputHuman("given:  %s\nfamily: %s\n(%s)\n", s.Given, s.Family, source)
		return nil
	}
	return outputJSON(SplitResponse{Split: s, Cached: cached})
}

func runNamesExceptionsList(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	e, err := names.LoadExceptions(cfg.ExceptionsPath())
	if err != nil {
		return err
	}
	list := e.List()
	if !humanOutput {
		return outputJSON(list)
	}
	for _, s := range list {
		outputHuman("%s => %s | %s", s.FullName, s.Given, s.Family)
		if s.Email != "" {
			outputHuman(" <%s>", s.Email)
		}
		fmt.Println()
	}
	outputHuman("%d entries\n", len(list))
	return nil
}

func runNamesExceptionsSet(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	s := names.Split{
		FullName: names.Normalize(args[0]),
		Given:    names.Normalize(args[1]),
		Family:   names.Normalize(args[2]),
	}
	if len(args) == 4 {
		s.Email = strings.TrimSpace(args[3])
	}
	if s.FullName == "" || s.Given == "" || s.Family == "" {
		return fmt.Errorf("full, given and family names must not be empty")
	}

	path := cfg.ExceptionsPath()
	e, err := names.LoadExceptions(path)
	if err != nil {
		return err
	}
	e.Put(s)
	if err := e.Save(path); err != nil {
		return err
	}
	if humanOutput {
		outputHuman("Recorded %s => %s | %s\n", s.FullName, s.Given, s.Family)
		return nil
	}
	return outputJSON(StatusResponse{Status: "recorded", Path: path})
}
