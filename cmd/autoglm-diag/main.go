// autoglm-diag is the maintenance CLI for the phone agent's local
// persistence: log bundle export, retention cleanup, and configuration
// inspection.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"autoglm/internal/config"
	"autoglm/internal/deviceinfo"
	"autoglm/internal/devimport"
	"autoglm/internal/kv"
	"autoglm/internal/logstore"
	"autoglm/internal/profiles"
	"autoglm/internal/secrets"
)

// Overridden at build time via -ldflags.
var (
	version   = "dev"
	buildType = "debug"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
)

// app wires the persistence stores for one invocation.
type app struct {
	dataDir  string
	plain    *kv.FileStore
	secret   secrets.Store
	repo     *config.Repository
	registry *profiles.Registry
	logs     *logstore.Store
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".autoglm"
	}
	return filepath.Join(home, ".autoglm")
}

func openApp() (*app, error) {
	dataDir := viper.GetString("data-dir")
	if dataDir == "" {
		dataDir = defaultDataDir()
	}

	plain := kv.NewFileStore(filepath.Join(dataDir, "settings.json"), nil)
	secret := secrets.Open(filepath.Join(dataDir, "secrets"), nil)
	logs, err := logstore.Open(filepath.Join(dataDir, "logs"), logstore.Options{
		KeepDays: viper.GetInt("keep-days"),
		Info:     deviceinfo.Collect(version, buildType),
	})
	if err != nil {
		return nil, fmt.Errorf("open log store: %w", err)
	}

	return &app{
		dataDir:  dataDir,
		plain:    plain,
		secret:   secret,
		repo:     config.NewRepository(plain, secret, nil),
		registry: profiles.NewRegistry(plain, secret, nil),
		logs:     logs,
	}, nil
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "autoglm-diag",
		Short:         "Maintenance tooling for the phone agent's local persistence",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("data-dir", defaultDataDir(), "agent data directory")
	_ = viper.BindPFlag("data-dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	_ = viper.BindEnv("data-dir", "AUTOGLM_DATA_DIR")

	rootCmd.AddCommand(newLogsCommand())
	rootCmd.AddCommand(newConfigCommand())
	rootCmd.AddCommand(newProfilesCommand())
	return rootCmd
}

func newLogsCommand() *cobra.Command {
	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Inspect and bundle the agent's log files",
	}

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Bundle all log files plus device info into a zip",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.logs.Close()

			outDir, _ := cmd.Flags().GetString("out")
			archive, err := a.logs.Export(outDir)
			if err != nil {
				if err == logstore.ErrNoLogFiles {
					fmt.Fprintln(cmd.OutOrStdout(), yellow("no log files to export"))
					return nil
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", green("exported"), archive)
			return nil
		},
	}
	exportCmd.Flags().StringP("out", "o", ".", "directory for the exported archive")

	cleanCmd := &cobra.Command{
		Use:   "clean",
		Short: "Delete log files older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.logs.Close()

			keepDays, _ := cmd.Flags().GetInt("keep-days")
			a.logs.Cleanup(keepDays)
			fmt.Fprintf(cmd.OutOrStdout(), "%s kept last %d days, %s on disk\n",
				green("cleaned"), keepDays, logstore.FormatSize(a.logs.TotalSize()))
			return nil
		},
	}
	cleanCmd.Flags().Int("keep-days", logstore.DefaultKeepDays, "retention window in days")
	_ = viper.BindPFlag("keep-days", cleanCmd.Flags().Lookup("keep-days"))

	sizeCmd := &cobra.Command{
		Use:   "size",
		Short: "Show the aggregate size of all log files",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.logs.Close()

			fmt.Fprintln(cmd.OutOrStdout(), logstore.FormatSize(a.logs.TotalSize()))
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every file in the log directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.logs.Close()

			if err := a.logs.ClearAll(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), green("log directory cleared"))
			return nil
		},
	}

	logsCmd.AddCommand(exportCmd, cleanCmd, sizeCmd, clearCmd)
	return logsCmd
}

// configSnapshot is the YAML shape printed by `config show`.
type configSnapshot struct {
	Model config.ModelConfig `yaml:"model"`
	Agent config.AgentConfig `yaml:"agent"`
}

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the active configuration",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the active model and agent configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.logs.Close()

			snap := configSnapshot{Model: a.repo.ModelConfig(), Agent: a.repo.AgentConfig()}
			snap.Model.APIKey = redactKey(snap.Model.APIKey)

			encoded, err := yaml.Marshal(snap)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(encoded)
			return err
		},
	}

	configCmd.AddCommand(showCmd)
	return configCmd
}

func newProfilesCommand() *cobra.Command {
	profilesCmd := &cobra.Command{
		Use:   "profiles",
		Short: "Inspect and seed saved model profiles",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List saved profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.logs.Close()

			list := a.registry.List()
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), gray("no saved profiles"))
				return nil
			}
			current := a.registry.Current()
			for _, p := range list {
				marker := "  "
				if p.ID == current {
					marker = green("* ")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s%s  %s (%s)  key=%s\n",
					marker, p.ID, p.DisplayName, p.Config.ModelName, redactKey(p.Config.APIKey))
			}
			return nil
		},
	}

	importCmd := &cobra.Command{
		Use:   "import [file|-]",
		Short: "One-shot import of a profile document (bundled seed when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.logs.Close()

			document := devimport.BundledProfiles
			if len(args) == 1 {
				var data []byte
				if args[0] == "-" {
					data, err = io.ReadAll(cmd.InOrStdin())
				} else {
					data, err = os.ReadFile(args[0])
				}
				if err != nil {
					return fmt.Errorf("read import document: %w", err)
				}
				document = string(data)
			}

			importer := devimport.NewImporter(a.plain, a.registry, a.repo, nil)
			count, err := importer.Import(document)
			if err != nil {
				return fmt.Errorf("%s: %w", red("import failed"), err)
			}
			if count == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), yellow("nothing imported (already completed or empty document)"))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d profile(s)\n", green("imported"), count)
			return nil
		},
	}

	profilesCmd.AddCommand(listCmd, importCmd)
	return profilesCmd
}

// redactKey masks a real API key for display; the sentinel passes through.
func redactKey(key string) string {
	if key == "" || key == config.APIKeyEmpty {
		return config.APIKeyEmpty
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, red(err.Error()))
		os.Exit(1)
	}
}
