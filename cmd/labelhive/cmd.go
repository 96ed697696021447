package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/labelhive/labelhive/config"
	"github.com/labelhive/labelhive/internal"
	"github.com/labelhive/labelhive/pkg/testutils"
)

var (
	log *logrus.Logger

	cfgFile     string
	showVersion bool
	dumpConfig  bool
	generateKey bool
)

var cmd = &cobra.Command{
	Use:   "labelhive",
	Short: "labelhive selects candidate images for labelling campaigns and aggregates worker labels into consensus",
	Run:   func(cmd *cobra.Command, args []string) { run() },
}

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Test utilities",
}

var createFixturesCmd = &cobra.Command{
	Use:   "create-fixtures",
	Short: "Create label event fixtures for testing",
	Run: func(cmd *cobra.Command, args []string) {
		imageCount, _ := cmd.Flags().GetInt("images")
		workerCount, _ := cmd.Flags().GetInt("workers")
		outputDir, _ := cmd.Flags().GetString("outputDir")

		if err := createFixtures(imageCount, workerCount, outputDir); err != nil {
			log.Fatalf("Failed to create fixtures: %v", err)
		}
		fmt.Println("Fixtures created successfully.")
	},
}

var dumpJSONSchemaCmd = &cobra.Command{
	Use:     "json-schema",
	Short:   "Generates JSON Schema for labelhive's configuration file",
	Example: "labelhive json-schema > labelhive_config_schema.json",
	RunE: func(cmd *cobra.Command, args []string) error {
		schema, err := config.JSONSchema()
		if err != nil {
			return err
		}
		fmt.Println(string(schema))
		return nil
	},
}

func createFixtures(imageCount, workerCount int, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return err
	}
	events := testutils.GenerateLabelEvents(imageCount, workerCount)
	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outputDir, "label_events.json"), data, 0o644)
}

func init() {
	testCmd.AddCommand(createFixturesCmd)
	cmd.AddCommand(testCmd)
	cmd.AddCommand(dumpJSONSchemaCmd)

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default config.yaml)")
	cmd.PersistentFlags().BoolVarP(&showVersion, "version", "v", false, "print version number")
	cmd.PersistentFlags().BoolVarP(&dumpConfig, "dump-config", "d", false, "dump config")
	cmd.PersistentFlags().
		BoolVarP(&generateKey, "generate-token", "g", false, "generate a new JWT token")

	createFixturesCmd.Flags().Int("images", 100, "Number of fixture images")
	createFixturesCmd.Flags().Int("workers", 5, "Number of fixture workers")
	createFixturesCmd.Flags().String("outputDir", "./test_data", "Path to output fixtures")
}

// Execute executes the root cobra command.
func Execute() {
	log = internal.GetLogger()
	log.SetLevel(logrus.InfoLevel)

	err := cmd.Execute()

	if err != nil {
		os.Exit(1)
	}
}
