package keywrap

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Client publishes wrapped keys to a repository and fetches them back.
//
// Publish wraps the raw key with the manager, verifies the envelope it just
// produced, and saves an EnvelopeRecord. With StoreAWSSSM the envelope body
// goes to SSM under the record key and the record keeps only hashes.
//
// Fetch loads the record, pulls the body from SSM when needed, checks the
// stored AAD hash against the body, re-verifies every digest, refuses keys
// that are not active or have expired, and unwraps into dst. Unwrapped key
// bytes are never cached.
//
// Client is safe for concurrent use when the repository and SSM client are.
type Client struct {
	manager KeyManager
	repo    EnvelopeRepository
	ssm     *SSMEnvelopeStore

	domain  string
	service string
	now     func() time.Time
	log     zerolog.Logger
}

// NewClient panics if manager or repo is nil. ssm may be nil when only
// StoreDB is used.
func NewClient(manager KeyManager, repo EnvelopeRepository, ssm *SSMEnvelopeStore, opts ...Option) *Client {
	if manager == nil {
		panic("key manager is required")
	}
	if repo == nil {
		panic("envelope repository is required")
	}
	o := collectOptions(opts)
	return &Client{
		manager: manager,
		repo:    repo,
		ssm:     ssm,
		domain:  o.domain,
		service: o.service,
		now:     o.now,
		log:     o.log,
	}
}

// Key returns the lookup key the client uses for kind and kid.
func (c *Client) Key(kind KeyKind, kid string) string {
	return MakeKey(c.domain, c.service, kind, kid)
}

func (c *Client) Publish(ctx context.Context, kind KeyKind, kid string, src io.Reader, store Store) (*EnvelopeRecord, error) {
	if _, err := ParseStore(string(store)); err != nil {
		return nil, err
	}
	if store == StoreAWSSSM && c.ssm == nil {
		return nil, fmt.Errorf("%w: store %s without an SSM client", ErrUnsupported, store)
	}
	var body bytes.Buffer
	if err := c.manager.Wrap(kind, kid, src, &body); err != nil {
		return nil, err
	}
	env, err := ParseEnvelope(bytes.NewReader(body.Bytes()))
	if err != nil {
		return nil, err
	}
	if err := verifyEnvelope(env, kind); err != nil {
		return nil, err
	}
	rec, err := recordFor(env, kind, c.Key(kind, kid), store)
	if err != nil {
		return nil, err
	}

	switch store {
	case StoreAWSSSM:
		if err := c.ssm.Put(ctx, rec.Key, body.Bytes()); err != nil {
			return nil, err
		}
	default:
		rec.Envelope = body.String()
	}
	if err := c.repo.SaveEnvelope(ctx, rec); err != nil {
		return nil, err
	}
	c.log.Info().
		Str("key", rec.Key).
		Str("kid", kid).
		Str("kind", string(kind)).
		Str("store", string(store)).
		Msg("published envelope")
	return rec, nil
}

func (c *Client) Fetch(ctx context.Context, kind KeyKind, kid string, dst io.Writer) error {
	key := c.Key(kind, kid)
	rec, err := c.repo.GetEnvelope(ctx, key)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("%w: envelope for key %q", ErrNotFound, key)
	}
	if !rec.Active(c.now()) {
		return fmt.Errorf("%w: %s is %s, expires %s", ErrKeyInactive, key, rec.State, rec.ExpiresAt.Format(timestampLayout))
	}

	body := []byte(rec.Envelope)
	if rec.Store == StoreAWSSSM {
		if c.ssm == nil {
			return fmt.Errorf("%w: store %s without an SSM client", ErrUnsupported, rec.Store)
		}
		if body, err = c.ssm.Get(ctx, rec.Key); err != nil {
			return err
		}
	}
	env, err := ParseEnvelope(bytes.NewReader(body))
	if err != nil {
		return err
	}
	if env.AAD.Value != rec.AADHash {
		return fmt.Errorf("%w: stored aad hash does not match envelope for %s", ErrIntegrity, key)
	}
	if err := verifyEnvelope(env, kind); err != nil {
		return err
	}
	if env.State.Value != StateActive {
		return fmt.Errorf("%w: envelope state %s", ErrKeyInactive, env.State.Value)
	}
	if err := c.manager.Unwrap(kind, bytes.NewReader(body), dst); err != nil {
		return err
	}
	c.log.Debug().Str("key", key).Msg("fetched envelope")
	return nil
}

func verifyEnvelope(env *Envelope, kind KeyKind) error {
	if err := env.VerifyAAD(); err != nil {
		return err
	}
	if err := env.VerifyIntegrity(kind); err != nil {
		return err
	}
	return env.VerifyEntries()
}

func recordFor(env *Envelope, kind KeyKind, key string, store Store) (*EnvelopeRecord, error) {
	created, err := time.Parse(timestampLayout, env.CreatedAt)
	if err != nil {
		return nil, inputErrf("created_at", err, "bad timestamp")
	}
	expires, err := time.Parse(timestampLayout, env.ExpiresAt)
	if err != nil {
		return nil, inputErrf("expires_at", err, "bad timestamp")
	}
	entry := env.Entries[0]
	meta := map[string]string{
		"entry":  entry.Name,
		"format": env.Format,
	}
	if p := entry.Metadata.Parameter.Preset; p != "" {
		meta["preset"] = p
	}
	if entry.Metadata.EvalMode != "" {
		meta["eval_mode"] = entry.Metadata.EvalMode
	}
	if entry.Alg != "" {
		meta["alg"] = entry.Alg
	}
	metaCol, err := newJSONB(meta)
	if err != nil {
		return nil, err
	}
	tagCol, err := newJSONB(map[string]string{
		"requester_entity": env.Requester.Entity,
		"requester_type":   env.Requester.Type,
		"requester_method": env.Requester.Method,
	})
	if err != nil {
		return nil, err
	}
	return &EnvelopeRecord{
		Key:           key,
		KID:           env.KID,
		Kind:          kind,
		Usage:         env.Usage,
		KeyVersion:    env.KeyVersion,
		Store:         store,
		State:         env.State.Value,
		AADHash:       env.AAD.Value,
		IntegrityHash: env.Integrity.Value,
		EntryHash:     entry.Hash,
		Metadata:      metaCol,
		Tags:          tagCol,
		CreatedAt:     created,
		ExpiresAt:     expires,
	}, nil
}
