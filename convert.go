package main

import (
	"fmt"
	"io"
	"os"

	"portfolio-cms/pkg/services"

	"github.com/spf13/cobra"
)

var convertCmd = &cobra.Command{
	Use:   "convert [file.html]",
	Short: "Convert a saved article page to Markdown",
	Long:  "Convert reads article HTML from a file or stdin and prints the Markdown document.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConvert,
}

var (
	convertURL    string
	convertTitle  string
	convertAuthor string
	convertOutput string
)

func init() {
	convertCmd.Flags().StringVar(&convertURL, "url", "", "Original URL of the page")
	convertCmd.Flags().StringVar(&convertTitle, "title", "", "Override the detected title")
	convertCmd.Flags().StringVar(&convertAuthor, "author", "", "Override the detected author")
	convertCmd.Flags().StringVarP(&convertOutput, "output", "o", "", "Write to this file instead of stdout")
}

func runConvert(cmd *cobra.Command, args []string) error {
	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	html, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	result, err := services.NewConverter(nil).Convert(cmd.Context(), services.ConvertInput{
		HTML:   string(html),
		URL:    convertURL,
		Title:  convertTitle,
		Author: convertAuthor,
	})
	if err != nil {
		return err
	}
	for _, w := range result.Validation.Warnings {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
	}
	if !result.Validation.Valid {
		for _, e := range result.Validation.Errors {
			fmt.Fprintln(cmd.ErrOrStderr(), "error:", e)
		}
		return fmt.Errorf("article failed validation")
	}

	if convertOutput != "" {
		return os.WriteFile(convertOutput, []byte(result.Markdown), 0644)
	}
	_, err = io.WriteString(cmd.OutOrStdout(), result.Markdown)
	return err
}
