package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/grasp-labs/ds-keywrap-go-sdk/keywrap"
)

var sealCmd = &cobra.Command{
	Use:   "seal",
	Short: "Seal a raw secret key under an AES-256 KEK",
	Long: `seal encrypts a raw secret key with AES-256-GCM and writes the sealed
layout that wrap recognises. The KEK is read from --kek-file (32 raw bytes)
or, with --kms-wrapped-kek, unwrapped through AWS KMS.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		preset, _ := cmd.Flags().GetString("preset")
		in, _ := cmd.Flags().GetString("in")
		out, _ := cmd.Flags().GetString("out")

		kek, err := kekSource(ctx, cmd)
		if err != nil {
			return err
		}
		seckey, err := os.ReadFile(in)
		if err != nil {
			return fmt.Errorf("%w: read %s: %v", keywrap.ErrFileAccess, in, err)
		}
		f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return fmt.Errorf("%w: create %s: %v", keywrap.ErrFileAccess, out, err)
		}
		if err := keywrap.SealSecKey(ctx, kek, preset, seckey, f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		logger.Info().Str("preset", preset).Str("out", out).Msg("secret key sealed")
		return nil
	},
}

func kekSource(ctx context.Context, cmd *cobra.Command) (keywrap.KEKSource, error) {
	kekFile, _ := cmd.Flags().GetString("kek-file")
	wrapped := viper.GetString("kms.wrapped_kek")
	switch {
	case kekFile != "" && wrapped != "":
		return nil, fmt.Errorf("%w: --kek-file and --kms-wrapped-kek are exclusive", keywrap.ErrInvalidInput)
	case kekFile != "":
		b, err := os.ReadFile(kekFile)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", keywrap.ErrFileAccess, kekFile, err)
		}
		return keywrap.StaticKEK(b), nil
	case wrapped != "":
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		return keywrap.NewKMSKEKSourceB64(kms.NewFromConfig(awsCfg), strings.TrimSpace(wrapped),
			viper.GetString("kms.key_id"), viper.GetStringMapString("kms.encryption_context"),
			5*time.Minute, keywrap.WithLogger(logger))
	}
	return nil, fmt.Errorf("%w: one of --kek-file or --kms-wrapped-kek is required", keywrap.ErrInvalidInput)
}

func init() {
	sealCmd.Flags().String("preset", "", "parameter preset recorded in the sealed header (IP0, IP1, QF0, QF1)")
	sealCmd.Flags().String("kek-file", "", "file holding a raw 32-byte KEK")
	sealCmd.Flags().String("kms-wrapped-kek", "", "base64 KMS ciphertext of the KEK")
	sealCmd.Flags().String("kms-key-id", "", "KMS key id or ARN used to unwrap the KEK")
	sealCmd.Flags().String("in", "", "raw secret key file")
	sealCmd.Flags().String("out", "", "sealed output file")
	_ = sealCmd.MarkFlagRequired("preset")
	_ = sealCmd.MarkFlagRequired("in")
	_ = sealCmd.MarkFlagRequired("out")
	_ = viper.BindPFlag("kms.wrapped_kek", sealCmd.Flags().Lookup("kms-wrapped-kek"))
	_ = viper.BindPFlag("kms.key_id", sealCmd.Flags().Lookup("kms-key-id"))

	rootCmd.AddCommand(sealCmd)
}
