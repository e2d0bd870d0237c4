package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog"

	"github.com/grasp-labs/ds-keywrap-go-sdk/keywrap"
)

// Publishes the key bundle in $KEYWRAP_KEY_DIR: the evaluation key goes to
// SSM, the others stay in Postgres. The encryption key is then fetched back.
func main() {
	ctx := context.Background()
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	// GORM repo
	repo, err := keywrap.NewPostgresEnvelopeRepository(os.Getenv("KEYWRAP_PG_DSN"), "public.envelope_records")
	if err != nil {
		panic(err)
	}

	// AWS
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		panic(err)
	}
	store := keywrap.NewSSMEnvelopeStore(ssm.NewFromConfig(awsCfg), "")

	manager, err := keywrap.NewDefaultKeyManager(keywrap.WithLogger(log))
	if err != nil {
		panic(err)
	}
	client := keywrap.NewClient(manager, repo, store, keywrap.WithLogger(log))

	dir := os.Getenv("KEYWRAP_KEY_DIR")
	kid := "kid-example-0001"
	for _, kind := range []keywrap.KeyKind{keywrap.KindEnc, keywrap.KindEval, keywrap.KindSec} {
		f, err := os.Open(filepath.Join(dir, kind.BinFile()))
		if err != nil {
			panic(err)
		}
		where := keywrap.StoreDB
		if kind == keywrap.KindEval {
			where = keywrap.StoreAWSSSM
		}
		rec, err := client.Publish(ctx, kind, kid, f, where)
		f.Close()
		if err != nil {
			panic(err)
		}
		fmt.Println("published:", rec.Key)
	}

	var enc bytes.Buffer
	if err := client.Fetch(ctx, keywrap.KindEnc, kid, &enc); err != nil {
		panic(err)
	}
	fmt.Println("enc key bytes:", enc.Len())
}
