package cmd

import (
	"errors"

	"badge-engine/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	seedPath   string
	exportPath string
	exportKey  string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load badges, collections, rules and season templates from a seed bundle",
	Long: `Reads a JSON seed bundle from --file, or from SEED_KEY in the R2 bucket,
or from SEED_FILE, and registers everything in it. Existing ids are updated.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := withTimeout(cmd)
		defer cancel()
		rt, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		seed, ok, err := loadSeed(ctx, seedPath)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("no seed configured: pass --file or set SEED_KEY / SEED_FILE")
		}
		return rt.engine.ApplySeed(ctx, seed)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the current catalog as a seed bundle to a file or the R2 bucket",
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportPath == "" && exportKey == "" {
			return errors.New("pass --file or --key")
		}
		ctx, cancel := withTimeout(cmd)
		defer cancel()
		rt, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		data, err := rt.engine.ExportSeed()
		if err != nil {
			return err
		}
		if exportPath != "" {
			if err := utils.WriteFile(exportPath, data); err != nil {
				return err
			}
			logger.Info("[SEED] exported", zap.String("file", exportPath), zap.Int("bytes", len(data)))
		}
		if exportKey != "" {
			bucket, err := utils.NewR2Bucket(ctx, cfg.R2AccountID, cfg.R2AccessKeyID, cfg.R2AccessKeySecret, cfg.R2Bucket)
			if err != nil {
				return err
			}
			if err := bucket.UploadObject(ctx, exportKey, data); err != nil {
				return err
			}
			logger.Info("[SEED] exported", zap.String("key", exportKey), zap.Int("bytes", len(data)))
		}
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVarP(&seedPath, "file", "f", "", "seed bundle path")
	exportCmd.Flags().StringVarP(&exportPath, "file", "f", "", "destination path")
	exportCmd.Flags().StringVar(&exportKey, "key", "", "destination object key in the R2 bucket")
	rootCmd.AddCommand(seedCmd, exportCmd)
}

