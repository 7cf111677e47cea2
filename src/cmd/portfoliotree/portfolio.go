package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"portfoliotree/app/src/pkg/log"
	"portfoliotree/app/src/pkg/model"
)

var (
	portfolioUser string
	importReplace bool
)

var exportCmd = &cobra.Command{
	Use:   "export <portfolio-id> <file>",
	Short: "Export a portfolio to a .json, .xml or .yaml file",
	Long: `Export a portfolio with all of its nodes. The format follows the file
extension; a trailing .zst compresses the file with zstd.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("%w: portfolio id must be a number", model.ErrInvalidInput)
		}
		return runExport(cmd.Context(), id, args[1])
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a portfolio from a .json, .xml or .yaml file",
	Long: `Import a portfolio for the given user. An existing portfolio of the same name
is rejected unless --replace is set.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd.Context(), args[0])
	},
}

func init() {
	for _, c := range []*cobra.Command{exportCmd, importCmd} {
		c.Flags().StringVarP(&portfolioUser, "user", "u", "", "user to act as (required)")
		_ = c.MarkFlagRequired("user")
	}
	importCmd.Flags().BoolVar(&importReplace, "replace", false, "replace a portfolio with the same name")
}

func runExport(ctx context.Context, portfolioID int, filename string) error {
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	user, err := a.authenticate(ctx, portfolioUser)
	if err != nil {
		return err
	}
	if err := a.dataManager.PortfolioExportFile(ctx, user, portfolioID, filename); err != nil {
		a.logger.Error(ctx, "Export failed", log.Fields{"portfolioID": portfolioID, "error": err})
		return err
	}
	fmt.Printf("Portfolio %d exported to %s\n", portfolioID, filename)
	return nil
}

func runImport(ctx context.Context, filename string) error {
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	user, err := a.authenticate(ctx, portfolioUser)
	if err != nil {
		return err
	}
	portfolio, err := a.dataManager.PortfolioImportFile(ctx, user, filename, importReplace)
	if err != nil {
		a.logger.Error(ctx, "Import failed", log.Fields{"filename": filename, "error": err})
		return err
	}
	fmt.Printf("Portfolio '%s' imported with id %d\n", portfolio.Name, portfolio.ID)
	return nil
}
