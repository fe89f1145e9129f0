package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "talentsift",
	Short: "Retrieval-augmented matching of job descriptions against CVs",
	Long: `TalentSift chunks job descriptions and CVs with an LLM, embeds the
chunks into a vector index, and ranks candidates in two stages:
a chunk-level vector prefilter followed by LLM reasoning over the
full documents.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".talentsift.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
