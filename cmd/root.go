/*
Package cmd implements the command-line interface for taxonet. It wires
input tables and inferred networks into the shared graph store and exposes
the set-algebra, agglomeration, metadata-association and export stages.
*/
package cmd

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/osmoslab/taxonet/pkg/stores/neo4j"
)

/*
Embed a mini filesystem into the binary to hold the default config file.
This will be written to the home directory of the user running the tool,
which allows a researcher to easily override the config file.
*/
//go:embed cfg/*
var embedded embed.FS

var (
	projectName = "taxonet"
	cfgFile     string

	rootCmd = &cobra.Command{
		Use:   "taxonet",
		Short: "Microbial co-occurrence networks in a shared property graph",
		Long:  longRoot,
	}
)

/*
Execute is the main entry point for the taxonet CLI.
*/
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yml",
		"config file (default is $HOME/."+projectName+"/config.yml)",
	)
}

func initConfig() {
	// A local .env may carry store credentials; absence is fine.
	_ = godotenv.Load()

	if err := writeConfig(); err != nil {
		log.Fatal("failed to write default config", "error", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	home, _ := os.UserHomeDir()
	viper.AddConfigPath(home + "/." + projectName)
	viper.SetEnvPrefix(projectName)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Fatal("failed to read config", "error", err)
	}
}

/*
writeConfig writes the default config file to the user's home directory
when none exists yet.
*/
func writeConfig() (err error) {
	var (
		home, _ = os.UserHomeDir()
		fh      fs.File
		buf     bytes.Buffer
	)

	configDir := home + "/." + projectName

	if !checkFileExists(configDir) {
		if err = os.MkdirAll(configDir, os.ModePerm); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	fullPath := configDir + "/" + cfgFile

	if checkFileExists(fullPath) {
		return nil
	}

	if fh, err = embedded.Open("cfg/" + cfgFile); err != nil {
		return fmt.Errorf("failed to open embedded config file: %w", err)
	}

	defer fh.Close()

	if _, err = io.Copy(&buf, fh); err != nil {
		return fmt.Errorf("failed to read embedded config file: %w", err)
	}

	if err = os.WriteFile(fullPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Info("wrote config file", "path", fullPath)
	return nil
}

func checkFileExists(filePath string) bool {
	_, err := os.Stat(filePath)
	return !errors.Is(err, os.ErrNotExist)
}

/*
storeClient builds the graph store client from the resolved configuration.
The store must be reachable; unreachability at startup is the one fatal
condition in this tool.
*/
func storeClient(cmd *cobra.Command) (*neo4j.Client, error) {
	client := neo4j.New(
		viper.GetString("store.endpoint"),
		viper.GetString("store.username"),
		viper.GetString("store.password"),
	)

	if err := client.Ping(cmd.Context()); err != nil {
		return nil, fmt.Errorf("graph store unreachable: %w", err)
	}

	return client, nil
}

var longRoot = `
taxonet imports microbial-abundance datasets and inferred co-occurrence
networks into a shared property graph, applies set algebra across networks,
agglomerates associations to higher taxonomic ranks, and tests statistical
links between taxa and sample metadata.
`
