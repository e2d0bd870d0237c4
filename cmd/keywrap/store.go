package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/grasp-labs/ds-keywrap-go-sdk/keywrap"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Wrap a key and record its envelope in Postgres, optionally in SSM",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		kind, err := kindFlag(cmd)
		if err != nil {
			return err
		}
		kid, _ := cmd.Flags().GetString("kid")
		in, _ := cmd.Flags().GetString("in")
		store, err := keywrap.ParseStore(viper.GetString("store.kind"))
		if err != nil {
			return err
		}

		client, err := newClient(ctx, store == keywrap.StoreAWSSSM)
		if err != nil {
			return err
		}
		f, err := os.Open(in)
		if err != nil {
			return fmt.Errorf("%w: open %s: %v", keywrap.ErrFileAccess, in, err)
		}
		defer f.Close()
		rec, err := client.Publish(ctx, kind, kid, f, store)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), rec.Key)
		return nil
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch a published envelope and write the unwrapped key",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		kind, err := kindFlag(cmd)
		if err != nil {
			return err
		}
		kid, _ := cmd.Flags().GetString("kid")
		out, _ := cmd.Flags().GetString("out")

		client, err := newClient(ctx, true)
		if err != nil {
			return err
		}
		f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return fmt.Errorf("%w: create %s: %v", keywrap.ErrFileAccess, out, err)
		}
		if err := client.Fetch(ctx, kind, kid, f); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	},
}

func newClient(ctx context.Context, withSSM bool) (*keywrap.Client, error) {
	dsn := viper.GetString("pg_dsn")
	if dsn == "" {
		return nil, fmt.Errorf("%w: KEYWRAP_PG_DSN is not set", keywrap.ErrInvalidInput)
	}
	repo, err := keywrap.NewPostgresEnvelopeRepository(dsn, viper.GetString("store.table"))
	if err != nil {
		return nil, err
	}
	var store *keywrap.SSMEnvelopeStore
	if withSSM {
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		store = keywrap.NewSSMEnvelopeStore(ssm.NewFromConfig(awsCfg), viper.GetString("store.ssm_kms_key_id"))
	}
	m, err := newManager()
	if err != nil {
		return nil, err
	}
	return keywrap.NewClient(m, repo, store,
		keywrap.WithLogger(logger),
		keywrap.WithNamespace(viper.GetString("store.domain"), viper.GetString("store.service"))), nil
}

func init() {
	for _, c := range []*cobra.Command{publishCmd, fetchCmd} {
		c.Flags().String("kind", "", "key kind: sec, enc or eval")
		c.Flags().String("kid", "", "key identifier")
		_ = c.MarkFlagRequired("kind")
		_ = c.MarkFlagRequired("kid")
	}
	publishCmd.Flags().String("in", "", "raw key file")
	publishCmd.Flags().String("store", string(keywrap.StoreDB), "where the envelope body lives: db or aws_ssm")
	_ = publishCmd.MarkFlagRequired("in")
	_ = viper.BindPFlag("store.kind", publishCmd.Flags().Lookup("store"))

	fetchCmd.Flags().String("out", "", "file to write the raw key to")
	_ = fetchCmd.MarkFlagRequired("out")

	rootCmd.AddCommand(publishCmd, fetchCmd)
}
