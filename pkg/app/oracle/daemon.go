package oracle

import (
	"errors"
	"fmt"
	"time"

	"troczen.dev/pkg/app/config"
	"troczen.dev/pkg/crypto/p256k"
	"troczen.dev/pkg/encoders/filter"
	"troczen.dev/pkg/encoders/filters"
	"troczen.dev/pkg/encoders/hex"
	"troczen.dev/pkg/encoders/kind"
	"troczen.dev/pkg/encoders/kinds"
	"troczen.dev/pkg/interfaces/signer"
	"troczen.dev/pkg/protocol/ws"
	"troczen.dev/pkg/utils/chk"
	"troczen.dev/pkg/utils/context"
	"troczen.dev/pkg/utils/keys"
	"troczen.dev/pkg/utils/log"
	"troczen.dev/pkg/utils/values"
)

// Reconnect policy: linear backoff of retryStep times the attempt count,
// reset whenever a connection succeeds.
const (
	maxRetries = 10
	retryStep  = 5 * time.Second
)

// ErrRelayUnreachable is returned by Run when the retry budget is spent
// without a working connection.
var ErrRelayUnreachable = errors.New("relay unreachable after retry budget")

// Daemon keeps one live subscription to kind 30502 attestations and feeds
// every incoming event into the issuance workflow. It carries nothing
// between connections: each dial builds a fresh Service around the new
// socket, so the relay stays the only source of truth.
type Daemon struct {
	cfg  *config.C
	sign signer.I
}

// NewDaemon validates the configuration and derives the issuer key. A
// missing or malformed ORACLE_NSEC_HEX is a startup error.
func NewDaemon(cfg *config.C) (d *Daemon, err error) {
	if cfg.OracleNsec == "" {
		return nil, errors.New("ORACLE_NSEC_HEX is not set")
	}
	var sec []byte
	if sec, err = keys.DecodeNsecOrHex(cfg.OracleNsec); err != nil {
		return nil, fmt.Errorf("invalid ORACLE_NSEC_HEX: %w", err)
	}
	sign := &p256k.Signer{}
	if err = sign.InitSec(sec); chk.E(err) {
		return nil, fmt.Errorf("invalid ORACLE_NSEC_HEX: %w", err)
	}
	d = &Daemon{cfg: cfg, sign: sign}
	log.I.F("oracle daemon initialised, pubkey %s", short(hex.Enc(sign.Pub())))
	return
}

// Pubkey returns the issuer public key in hex.
func (d *Daemon) Pubkey() string { return hex.Enc(d.sign.Pub()) }

// Run blocks listening for attestations until the context is cancelled or
// the reconnect budget is spent, in which case ErrRelayUnreachable comes
// back. A clean cancellation returns nil.
func (d *Daemon) Run(c context.T) (err error) {
	tries := 0
	for tries < maxRetries {
		if c.Err() != nil {
			return nil
		}
		var client *ws.Client
		if client, err = ws.RelayConnect(c, d.cfg.RelayURL); err != nil {
			tries++
			log.E.F(
				"relay %s unreachable: %v (attempt %d/%d)",
				d.cfg.RelayURL, err, tries, maxRetries,
			)
			if !d.pause(c, time.Duration(tries)*retryStep) {
				return nil
			}
			continue
		}
		tries = 0
		err = d.listen(c, client)
		chk.E(client.Close())
		if c.Err() != nil {
			return nil
		}
		tries++
		log.W.F(
			"connection to %s lost: %v (attempt %d/%d)",
			d.cfg.RelayURL, err, tries, maxRetries,
		)
		if !d.pause(c, time.Duration(tries)*retryStep) {
			return nil
		}
	}
	log.E.F("giving up on %s after %d attempts", d.cfg.RelayURL, maxRetries)
	return ErrRelayUnreachable
}

// listen holds one subscription open and processes events until the socket
// or the subscription dies.
func (d *Daemon) listen(c context.T, client *ws.Client) (err error) {
	svc := New(client, d.sign, d.cfg.PageSize, d.cfg.MaxResults)
	// limit 0 means future events only, the stored backlog was already
	// reconciled when those attestations first arrived.
	f := filter.New()
	f.Kinds = kinds.New(kind.Attestation)
	f.Limit = values.ToUintPointer(0)
	var sub *ws.Subscription
	if sub, err = client.Subscribe(c, filters.New(f)); chk.E(err) {
		return
	}
	defer sub.Unsub()
	log.I.F("oracle daemon listening for attestations on %s", d.cfg.RelayURL)
	for {
		select {
		case <-c.Done():
			return nil
		case <-client.Context().Done():
			return errors.New("relay connection closed")
		case reason := <-sub.ClosedReason:
			return fmt.Errorf("subscription closed by relay: %s", reason)
		case ev, ok := <-sub.Events:
			if !ok {
				return errors.New("event stream ended")
			}
			if !ev.Kind.Equal(kind.Attestation) {
				continue
			}
			if _, pErr := svc.ProcessAttestation(c, ev); pErr != nil {
				log.E.F("attestation processing failed: %v", pErr)
			}
		}
	}
}

// pause waits out a backoff delay, false when the context ends first.
func (d *Daemon) pause(c context.T, delay time.Duration) bool {
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-c.Done():
		return false
	case <-t.C:
		return true
	}
}
