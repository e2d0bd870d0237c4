package main

import (
	"github.com/spf13/cobra"

	"github.com/grasp-labs/ds-keywrap-go-sdk/keywrap"
)

var wrapCmd = &cobra.Command{
	Use:   "wrap",
	Short: "Wrap one raw key file into an envelope",
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := kindFlag(cmd)
		if err != nil {
			return err
		}
		kid, _ := cmd.Flags().GetString("kid")
		in, _ := cmd.Flags().GetString("in")
		out, _ := cmd.Flags().GetString("out")

		m, err := newManager()
		if err != nil {
			return err
		}
		switch kind {
		case keywrap.KindSec:
			err = m.WrapSecKeyFile(kid, in, out)
		case keywrap.KindEnc:
			err = m.WrapEncKeyFile(kid, in, out)
		default:
			err = m.WrapEvalKeyFile(kid, in, out)
		}
		if err != nil {
			return err
		}
		logger.Info().Str("kid", kid).Str("kind", string(kind)).Str("out", out).Msg("key wrapped")
		return nil
	},
}

var unwrapCmd = &cobra.Command{
	Use:   "unwrap",
	Short: "Recover the raw key from an envelope file",
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := kindFlag(cmd)
		if err != nil {
			return err
		}
		in, _ := cmd.Flags().GetString("in")
		out, _ := cmd.Flags().GetString("out")
		mode, _ := cmd.Flags().GetString("seal-mode")

		m, err := newManager()
		if err != nil {
			return err
		}
		switch kind {
		case keywrap.KindSec:
			sm, perr := keywrap.ParseSealMode(mode)
			if perr != nil {
				return perr
			}
			err = m.UnwrapSecKeyFile(in, out, &keywrap.SealInfo{Mode: sm})
		case keywrap.KindEnc:
			err = m.UnwrapEncKeyFile(in, out)
		default:
			err = m.UnwrapEvalKeyFile(in, out)
		}
		if err != nil {
			return err
		}
		logger.Info().Str("kind", string(kind)).Str("out", out).Msg("key unwrapped")
		return nil
	},
}

var wrapKeysCmd = &cobra.Command{
	Use:   "wrap-keys",
	Short: "Wrap EncKey.bin, EvalKey.bin and SecKey.bin in a directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		kid, _ := cmd.Flags().GetString("kid")
		dir, _ := cmd.Flags().GetString("dir")
		m, err := newManager()
		if err != nil {
			return err
		}
		if err := m.WrapKeys(kid, dir); err != nil {
			return err
		}
		logger.Info().Str("kid", kid).Str("dir", dir).Msg("key bundle wrapped")
		return nil
	},
}

var unwrapKeysCmd = &cobra.Command{
	Use:   "unwrap-keys",
	Short: "Unwrap a directory of envelopes into raw key files",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		outDir, _ := cmd.Flags().GetString("out-dir")
		m, err := newManager()
		if err != nil {
			return err
		}
		if err := m.UnwrapKeys(dir, outDir); err != nil {
			return err
		}
		logger.Info().Str("dir", dir).Str("out_dir", outDir).Msg("key bundle unwrapped")
		return nil
	},
}

func kindFlag(cmd *cobra.Command) (keywrap.KeyKind, error) {
	s, _ := cmd.Flags().GetString("kind")
	return keywrap.ParseKeyKind(s)
}

func init() {
	for _, c := range []*cobra.Command{wrapCmd, unwrapCmd} {
		c.Flags().String("kind", "", "key kind: sec, enc or eval")
		c.Flags().String("in", "", "input file")
		c.Flags().String("out", "", "output file")
		_ = c.MarkFlagRequired("kind")
		_ = c.MarkFlagRequired("in")
		_ = c.MarkFlagRequired("out")
	}
	wrapCmd.Flags().String("kid", "", "key identifier recorded in the envelope")
	_ = wrapCmd.MarkFlagRequired("kid")
	unwrapCmd.Flags().String("seal-mode", string(keywrap.SealNone), "seal mode of the secret key")

	wrapKeysCmd.Flags().String("kid", "", "key identifier recorded in every envelope")
	wrapKeysCmd.Flags().String("dir", "", "directory holding the .bin key files")
	_ = wrapKeysCmd.MarkFlagRequired("kid")
	_ = wrapKeysCmd.MarkFlagRequired("dir")

	unwrapKeysCmd.Flags().String("dir", "", "directory holding the .json envelopes")
	unwrapKeysCmd.Flags().String("out-dir", "", "directory to write .bin key files into")
	_ = unwrapKeysCmd.MarkFlagRequired("dir")
	_ = unwrapKeysCmd.MarkFlagRequired("out-dir")

	rootCmd.AddCommand(wrapCmd, unwrapCmd, wrapKeysCmd, unwrapKeysCmd)
}
