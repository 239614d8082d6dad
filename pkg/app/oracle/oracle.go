// Package oracle implements the peer-certification service: it watches
// kind 30502 attestations, counts the unique attesters behind each permit
// request, and issues a signed verifiable credential once the threshold of
// the requested permit is met. The relay is the only store; the service
// keeps no state between events.
package oracle

import (
	"sort"
	"time"

	"troczen.dev/pkg/credentials"
	"troczen.dev/pkg/encoders/event"
	"troczen.dev/pkg/encoders/filter"
	"troczen.dev/pkg/encoders/hex"
	"troczen.dev/pkg/encoders/kind"
	"troczen.dev/pkg/encoders/kinds"
	"troczen.dev/pkg/encoders/tag"
	"troczen.dev/pkg/interfaces/relay"
	"troczen.dev/pkg/interfaces/signer"
	"troczen.dev/pkg/markets"
	"troczen.dev/pkg/permits"
	"troczen.dev/pkg/records"
	"troczen.dev/pkg/utils/chk"
	"troczen.dev/pkg/utils/context"
	"troczen.dev/pkg/utils/log"
	"troczen.dev/pkg/utils/values"
)

// Service runs the credential issuance workflow against one relay
// connection. All lookups go through the relay; concurrent attestations for
// the same request are reconciled by the existing-credential check and the
// replaceable d tag on the issued event.
type Service struct {
	relay      relay.I
	sign       signer.I
	gen        *credentials.Generator
	pageSize   int
	maxResults int
}

// New wires an oracle service to a relay connection and an initialised
// issuer key.
func New(r relay.I, sign signer.I, pageSize, maxResults int) *Service {
	return &Service{
		relay:      r,
		sign:       sign,
		gen:        credentials.NewGenerator(sign),
		pageSize:   pageSize,
		maxResults: maxResults,
	}
}

// Pubkey returns the issuer public key in hex.
func (s *Service) Pubkey() string { return hex.Enc(s.sign.Pub()) }

// ProcessAttestation runs the issuance workflow for one kind 30502 event
// and reports whether a credential was published. Domain rejections
// (self-attestation, unqualified attester, threshold not reached, already
// issued) drop the attestation without error; only transport and signing
// failures are returned.
func (s *Service) ProcessAttestation(c context.T, ev *event.E) (
	issued bool, err error,
) {
	att, ok := records.ParseAttestation(ev)
	if !ok {
		return false, nil
	}
	log.I.F(
		"attestation from %s for request %s",
		short(att.Attester), short(att.RequestRef),
	)
	existing, err := s.credentialForRequest(c, att.RequestRef)
	if chk.E(err) {
		return
	}
	if existing != nil {
		log.I.F("credential already issued for request %s", short(att.RequestRef))
		return false, nil
	}
	req, err := s.requestEvent(c, att.RequestRef)
	if chk.E(err) {
		return
	}
	if req == nil {
		log.W.F("request %s not found, dropping attestation", short(att.RequestRef))
		return false, nil
	}
	if att.Attester == req.Requester {
		log.W.F("self-attestation by %s rejected", short(att.Attester))
		return false, nil
	}
	qualified, err := s.attesterQualified(c, att.Attester, req.PermitID)
	if chk.E(err) {
		return
	}
	if !qualified {
		log.W.F(
			"attester %s lacks the parent credential for %s",
			short(att.Attester), req.PermitID,
		)
		return false, nil
	}
	attestors, err := s.uniqueAttestors(c, att.RequestRef, att.Attester)
	if chk.E(err) {
		return
	}
	def, err := s.definition(c, req.PermitID)
	if chk.E(err) {
		return
	}
	defRequired := 0
	var skills []string
	if def != nil {
		defRequired = def.RequiredAttestations
		skills = def.Skills
	}
	threshold := permits.RequiredAttestations(req.PermitID, defRequired)
	if len(attestors) < threshold {
		log.I.F(
			"threshold not reached for %s: %d/%d",
			req.PermitID, len(attestors), threshold,
		)
		return false, nil
	}
	log.I.F(
		"threshold reached for %s: %d/%d, issuing credential",
		req.PermitID, len(attestors), threshold,
	)
	credEv, _, err := s.gen.Generate(
		req.Requester, req.PermitID, req.EventID, attestors, skills, 0,
	)
	if chk.E(err) {
		return
	}
	if err = s.relay.Publish(c, credEv); chk.E(err) {
		return
	}
	log.I.F(
		"credential %s issued to %s", req.PermitID, short(req.Requester),
	)
	// Best effort from here on: the credential is out, badge and ladder
	// events must not fail the workflow.
	if bErr := s.publishBadge(c, req, credEv); bErr != nil {
		log.E.F("badge publication failed: %v", bErr)
	}
	if nErr := s.publishNextLevel(c, req.PermitID, skills); nErr != nil {
		log.E.F("next-level definition publication failed: %v", nErr)
	}
	return true, nil
}

// credentialForRequest finds a credential this issuer already published for
// the request, nil when none exists.
func (s *Service) credentialForRequest(c context.T, requestRef string) (
	cred *records.Credential, err error,
) {
	f := filter.New()
	f.Kinds = kinds.New(kind.Credential)
	f.Authors = f.Authors.Append(s.sign.Pub())
	f.Tags = f.Tags.AppendTags(tag.New("#e", requestRef))
	f.Limit = values.ToUintPointer(1)
	var evs event.S
	if evs, err = s.relay.QuerySync(c, f); chk.E(err) {
		return
	}
	for _, ev := range evs {
		if parsed, ok := records.ParseCredential(ev); ok {
			return parsed, nil
		}
	}
	return nil, nil
}

// requestEvent resolves the kind 30501 request behind an attestation
// reference: first as an event id, then as a d tag. Returns nil when the
// request cannot be found.
func (s *Service) requestEvent(c context.T, requestRef string) (
	req *records.PermitRequest, err error,
) {
	if id, decErr := hex.Dec(requestRef); decErr == nil && len(id) == 32 {
		f := filter.New()
		f.Ids = f.Ids.Append(id)
		f.Limit = values.ToUintPointer(1)
		var evs event.S
		if evs, err = s.relay.QuerySync(c, f); chk.E(err) {
			return
		}
		for _, ev := range evs {
			if parsed, ok := records.ParsePermitRequest(ev); ok {
				return parsed, nil
			}
		}
	}
	f := filter.New()
	f.Kinds = kinds.New(kind.PermitReq)
	f.Tags = f.Tags.AppendTags(tag.New("#d", requestRef))
	f.Limit = values.ToUintPointer(1)
	var evs event.S
	if evs, err = s.relay.QuerySync(c, f); chk.E(err) {
		return
	}
	for _, ev := range evs {
		if parsed, ok := records.ParsePermitRequest(ev); ok {
			return parsed, nil
		}
	}
	return nil, nil
}

// attesterQualified checks the WoTx2 ladder rule: anyone may attest a
// level 1 permit, higher levels need a credential for the parent permit
// issued by this oracle.
func (s *Service) attesterQualified(
	c context.T, attester, permitID string,
) (ok bool, err error) {
	if permits.ExtractLevel(permitID) <= 1 {
		return true, nil
	}
	parent := permits.ParentID(permitID)
	if parent == "" {
		return true, nil
	}
	f := filter.New()
	f.Kinds = kinds.New(kind.Credential)
	f.Authors = f.Authors.Append(s.sign.Pub())
	f.Tags = f.Tags.AppendTags(tag.New("#p", attester))
	f.Tags = f.Tags.AppendTags(tag.New("#permit_id", parent))
	f.Limit = values.ToUintPointer(1)
	var evs event.S
	if evs, err = s.relay.QuerySync(c, f); chk.E(err) {
		return
	}
	now := time.Now().Unix()
	for _, ev := range evs {
		if cred, parsed := records.ParseCredential(ev); parsed && cred.Valid(now) {
			return true, nil
		}
	}
	return false, nil
}

// uniqueAttestors returns the sorted union of everyone who attested the
// request so far plus the current attester. The current event may not have
// reached the relay's store yet, so it is always added.
func (s *Service) uniqueAttestors(
	c context.T, requestRef, current string,
) (attestors []string, err error) {
	f := filter.New()
	f.Kinds = kinds.New(kind.Attestation)
	f.Tags = f.Tags.AppendTags(tag.New("#e", requestRef))
	var evs event.S
	if evs, err = s.relay.QueryPaginated(
		c, f, s.pageSize, s.maxResults,
	); chk.E(err) {
		return
	}
	seen := map[string]struct{}{current: {}}
	for _, ev := range evs {
		seen[ev.PubKeyString()] = struct{}{}
	}
	for pk := range seen {
		attestors = append(attestors, pk)
	}
	sort.Strings(attestors)
	return
}

// definition fetches the kind 30500 definition of a permit, nil when it was
// never published.
func (s *Service) definition(c context.T, permitID string) (
	def *records.PermitDef, err error,
) {
	f := filter.New()
	f.Kinds = kinds.New(kind.PermitDef)
	f.Tags = f.Tags.AppendTags(tag.New("#d", permitID))
	f.Limit = values.ToUintPointer(1)
	var evs event.S
	if evs, err = s.relay.QuerySync(c, f); chk.E(err) {
		return
	}
	for _, ev := range evs {
		if parsed, ok := records.ParsePermitDef(ev); ok {
			return parsed, nil
		}
	}
	return nil, nil
}

// publishBadge mirrors a fresh credential as a NIP-58 badge pair.
func (s *Service) publishBadge(
	c context.T, req *records.PermitRequest, credEv *event.E,
) (err error) {
	definition, award, err := s.gen.Badge(
		req.Requester, req.PermitID, hex.Enc(credEv.ID), "",
	)
	if chk.E(err) {
		return
	}
	if err = s.relay.Publish(c, definition); chk.E(err) {
		return
	}
	return s.relay.Publish(c, award)
}

// publishNextLevel opens the next rung of the ladder: when a level n
// credential goes out and no definition exists yet for level n+1, one is
// published so holders can immediately request progression. The new level
// inherits the skills discovered at the current one.
func (s *Service) publishNextLevel(
	c context.T, permitID string, skills []string,
) (err error) {
	next := permits.NextLevelID(permitID)
	existing, err := s.definition(c, next)
	if chk.E(err) {
		return
	}
	if existing != nil {
		return nil
	}
	var ev *event.E
	if ev, err = permits.NextLevel(permitID, skills).Event(); chk.E(err) {
		return
	}
	if err = ev.Sign(s.sign); chk.E(err) {
		return
	}
	if err = s.relay.Publish(c, ev); chk.E(err) {
		return
	}
	log.I.F("published next-level permit definition %s", next)
	return nil
}

// PermitDefinitions lists every published permit definition, optionally
// narrowed to one market.
func (s *Service) PermitDefinitions(c context.T, market string) (
	defs []*records.PermitDef, err error,
) {
	f := filter.New()
	f.Kinds = kinds.New(kind.PermitDef)
	if market != "" {
		f.Tags = f.Tags.AppendTags(tag.New("#market", markets.Tag(market)))
	}
	var evs event.S
	if evs, err = s.relay.QueryPaginated(
		c, f, s.pageSize, s.maxResults,
	); chk.E(err) {
		return
	}
	defs = make([]*records.PermitDef, 0, len(evs))
	for _, ev := range evs {
		if def, ok := records.ParsePermitDef(ev); ok {
			defs = append(defs, def)
		}
	}
	return
}

// CredentialsFor lists the credentials this issuer granted to a user.
func (s *Service) CredentialsFor(c context.T, pubkey string) (
	creds []*records.Credential, err error,
) {
	f := filter.New()
	f.Kinds = kinds.New(kind.Credential)
	f.Authors = f.Authors.Append(s.sign.Pub())
	f.Tags = f.Tags.AppendTags(tag.New("#p", pubkey))
	var evs event.S
	if evs, err = s.relay.QueryPaginated(
		c, f, s.pageSize, s.maxResults,
	); chk.E(err) {
		return
	}
	creds = make([]*records.Credential, 0, len(evs))
	for _, ev := range evs {
		if cred, ok := records.ParseCredential(ev); ok {
			creds = append(creds, cred)
		}
	}
	return
}

// Stats counts the certification events visible on the relay.
type Stats struct {
	PermitsCount      int    `json:"permits_count"`
	RequestsCount     int    `json:"requests_count"`
	AttestationsCount int    `json:"attestations_count"`
	CredentialsCount  int    `json:"credentials_count"`
	OraclePubkey      string `json:"oracle_pubkey"`
}

// Stats tallies permits, requests, attestations and issued credentials.
func (s *Service) Stats(c context.T) (st *Stats, err error) {
	st = &Stats{OraclePubkey: s.Pubkey()}
	if st.PermitsCount, err = s.count(c, kind.PermitDef, false); chk.E(err) {
		return
	}
	if st.RequestsCount, err = s.count(c, kind.PermitReq, false); chk.E(err) {
		return
	}
	if st.AttestationsCount, err = s.count(c, kind.Attestation, false); chk.E(err) {
		return
	}
	if st.CredentialsCount, err = s.count(c, kind.Credential, true); chk.E(err) {
		return
	}
	return
}

func (s *Service) count(c context.T, k *kind.T, mine bool) (
	n int, err error,
) {
	f := filter.New()
	f.Kinds = kinds.New(k)
	if mine {
		f.Authors = f.Authors.Append(s.sign.Pub())
	}
	var evs event.S
	if evs, err = s.relay.QueryPaginated(
		c, f, s.pageSize, s.maxResults,
	); chk.E(err) {
		return
	}
	return len(evs), nil
}

func short(s string) string {
	if len(s) > 16 {
		return s[:16]
	}
	return s
}
