package oracle

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"troczen.dev/pkg/crypto/p256k"
	"troczen.dev/pkg/encoders/event"
	"troczen.dev/pkg/encoders/hex"
	"troczen.dev/pkg/encoders/kind"
	"troczen.dev/pkg/encoders/tag"
	"troczen.dev/pkg/encoders/tags"
	"troczen.dev/pkg/encoders/timestamp"
	"troczen.dev/pkg/interfaces/relay/relaytest"
	"troczen.dev/pkg/records"
	"troczen.dev/pkg/utils/context"
)

func pubkey(i int) string { return fmt.Sprintf("%064x", 0x3000+i) }

var (
	requester = pubkey(0)
	attester1 = pubkey(1)
	attester2 = pubkey(2)
	attester3 = pubkey(3)
)

var eventSeq int

func ev(k *kind.T, author string, createdAt int64, content string,
	tt ...*tag.T) *event.E {
	eventSeq++
	pk, _ := hex.Dec(author)
	id, _ := hex.Dec(fmt.Sprintf("%064x", eventSeq))
	return &event.E{
		ID:        id,
		Pubkey:    pk,
		CreatedAt: timestamp.FromUnix(createdAt),
		Kind:      k,
		Tags:      tags.New(tt...),
		Content:   []byte(content),
	}
}

func request(author, permitID, dTag string) *event.E {
	return ev(kind.PermitReq, author, time.Now().Unix()-3600, "",
		tag.New("d", dTag),
		tag.New("permit_id", permitID),
	)
}

func attestation(author, requestRef string) *event.E {
	return ev(kind.Attestation, author, time.Now().Unix(), "",
		tag.New("e", requestRef),
	)
}

func newService(t *testing.T, r *relaytest.Relay) *Service {
	t.Helper()
	sign := &p256k.Signer{}
	require.NoError(t, sign.Generate())
	return New(r, sign, 100, 1000)
}

func published(r *relaytest.Relay, k *kind.T) (evs []*event.E) {
	for _, ev := range r.Published() {
		if ev.Kind.Equal(k) {
			evs = append(evs, ev)
		}
	}
	return
}

func TestCommunityPermitIssuance(t *testing.T) {
	req := request(requester, "PERMIT_MARAICHAGE_X1", "req_maraichage")
	r := relaytest.New(req)
	svc := newService(t, r)

	issued, err := svc.ProcessAttestation(
		context.Bg(), attestation(attester1, hex.Enc(req.ID)),
	)
	require.NoError(t, err)
	assert.True(t, issued, "community permits need a single attestation")

	creds := published(r, kind.Credential)
	require.Len(t, creds, 1)
	valid, err := creds[0].Verify()
	require.NoError(t, err)
	assert.True(t, valid)

	cred, ok := records.ParseCredential(creds[0])
	require.True(t, ok)
	assert.Equal(t, requester, cred.Holder)
	assert.Equal(t, "PERMIT_MARAICHAGE_X1", cred.PermitID)
	assert.Equal(t, []string{attester1}, cred.Attestors)
	assert.Equal(t, hex.Enc(req.ID), cred.RequestID)
	assert.Equal(t, int64(365*86400), cred.ExpiresAt-cred.IssuedAt)
}

func TestIssuanceMirroredAsBadge(t *testing.T) {
	req := request(requester, "PERMIT_MARAICHAGE_X1", "req_maraichage")
	r := relaytest.New(req)
	svc := newService(t, r)

	issued, err := svc.ProcessAttestation(
		context.Bg(), attestation(attester1, hex.Enc(req.ID)),
	)
	require.NoError(t, err)
	require.True(t, issued)

	defs := published(r, kind.BadgeDefinition)
	require.Len(t, defs, 1)
	d := defs[0].Tags.GetFirst(tag.New("d"))
	require.NotNil(t, d)
	assert.Equal(t, "badge_PERMIT_MARAICHAGE_X1", d.S(1))

	awards := published(r, kind.BadgeAward)
	require.Len(t, awards, 1)
	p := awards[0].Tags.GetFirst(tag.New("p"))
	require.NotNil(t, p)
	assert.Equal(t, requester, p.S(1))
}

func TestIssuanceOpensNextLevel(t *testing.T) {
	req := request(requester, "PERMIT_MARAICHAGE_X1", "req_maraichage")
	r := relaytest.New(req)
	svc := newService(t, r)

	_, err := svc.ProcessAttestation(
		context.Bg(), attestation(attester1, hex.Enc(req.ID)),
	)
	require.NoError(t, err)

	defs := published(r, kind.PermitDef)
	require.Len(t, defs, 1)
	def, ok := records.ParsePermitDef(defs[0])
	require.True(t, ok)
	assert.Equal(t, "PERMIT_MARAICHAGE_X2", def.PermitID)
	assert.Equal(t, "PERMIT_MARAICHAGE_X1", def.ParentPermit)
	assert.Equal(t, 2, def.Level)
	assert.Equal(t, 1, def.RequiredAttestations)
}

func TestNextLevelNotRepublished(t *testing.T) {
	req := request(requester, "PERMIT_MARAICHAGE_X1", "req_maraichage")
	existing := ev(kind.PermitDef, pubkey(50), time.Now().Unix()-86400, "{}",
		tag.New("d", "PERMIT_MARAICHAGE_X2"),
	)
	r := relaytest.New(req, existing)
	svc := newService(t, r)

	_, err := svc.ProcessAttestation(
		context.Bg(), attestation(attester1, hex.Enc(req.ID)),
	)
	require.NoError(t, err)
	assert.Empty(t, published(r, kind.PermitDef))
}

func TestOfficialThreshold(t *testing.T) {
	req := request(requester, "PERMIT_SAFETY_V1", "req_safety")
	r := relaytest.New(req)
	svc := newService(t, r)
	c := context.Bg()

	first := attestation(attester1, hex.Enc(req.ID))
	issued, err := svc.ProcessAttestation(c, first)
	require.NoError(t, err)
	assert.False(t, issued, "one attestation is under the official threshold")
	assert.Empty(t, published(r, kind.Credential))

	// the first attestation is now stored on the relay
	r.Add(first)
	issued, err = svc.ProcessAttestation(c, attestation(attester2, hex.Enc(req.ID)))
	require.NoError(t, err)
	assert.True(t, issued)

	creds := published(r, kind.Credential)
	require.Len(t, creds, 1)
	cred, ok := records.ParseCredential(creds[0])
	require.True(t, ok)
	want := []string{attester1, attester2}
	assert.Equal(t, want, cred.Attestors, "attestors come back sorted")

	// a third attestation hits the idempotence check
	issued, err = svc.ProcessAttestation(c, attestation(attester3, hex.Enc(req.ID)))
	require.NoError(t, err)
	assert.False(t, issued)
	assert.Len(t, published(r, kind.Credential), 1)
}

func TestThresholdFromDefinition(t *testing.T) {
	req := request(requester, "PERMIT_SAFETY_V1", "req_safety")
	def := ev(kind.PermitDef, pubkey(50), time.Now().Unix()-86400,
		`{"name":"Safety","required_attestations":3}`,
		tag.New("d", "PERMIT_SAFETY_V1"),
	)
	first := attestation(attester1, hex.Enc(req.ID))
	r := relaytest.New(req, def, first)
	svc := newService(t, r)

	issued, err := svc.ProcessAttestation(
		context.Bg(), attestation(attester2, hex.Enc(req.ID)),
	)
	require.NoError(t, err)
	assert.False(t, issued, "definition raises the threshold to three")
}

func TestSelfAttestationRejected(t *testing.T) {
	req := request(requester, "PERMIT_MARAICHAGE_X1", "req_maraichage")
	r := relaytest.New(req)
	svc := newService(t, r)

	issued, err := svc.ProcessAttestation(
		context.Bg(), attestation(requester, hex.Enc(req.ID)),
	)
	require.NoError(t, err)
	assert.False(t, issued)
	assert.Empty(t, r.Published())
}

func TestMissingRequestDropped(t *testing.T) {
	r := relaytest.New()
	svc := newService(t, r)

	issued, err := svc.ProcessAttestation(
		context.Bg(), attestation(attester1, "req_nowhere"),
	)
	require.NoError(t, err)
	assert.False(t, issued)
	assert.Empty(t, r.Published())
}

func TestAttestationWithoutReferenceDropped(t *testing.T) {
	r := relaytest.New()
	svc := newService(t, r)

	bare := ev(kind.Attestation, attester1, time.Now().Unix(), "")
	issued, err := svc.ProcessAttestation(context.Bg(), bare)
	require.NoError(t, err)
	assert.False(t, issued)
}

func TestRequestResolvedByDTag(t *testing.T) {
	req := request(requester, "PERMIT_MARAICHAGE_X1", "req_maraichage_d")
	r := relaytest.New(req)
	svc := newService(t, r)

	// reference by the replaceable d tag instead of the event id
	att := ev(kind.Attestation, attester1, time.Now().Unix(), "",
		tag.New("a", "req_maraichage_d"),
	)
	issued, err := svc.ProcessAttestation(context.Bg(), att)
	require.NoError(t, err)
	assert.True(t, issued)
}

func TestHigherLevelNeedsParentCredential(t *testing.T) {
	req := request(requester, "PERMIT_MARAICHAGE_X2", "req_maraichage_2")
	r := relaytest.New(req)
	svc := newService(t, r)
	c := context.Bg()

	issued, err := svc.ProcessAttestation(
		c, attestation(attester1, hex.Enc(req.ID)),
	)
	require.NoError(t, err)
	assert.False(t, issued, "unqualified attester must be rejected")

	// grant the attester the parent credential, issued by this oracle
	parent := ev(kind.Credential, svc.Pubkey(), time.Now().Unix()-86400, "{}",
		tag.New("d", "vc_parent"),
		tag.New("p", attester1),
		tag.New("permit_id", "PERMIT_MARAICHAGE_X1"),
		tag.New("expires", fmt.Sprintf("%d", time.Now().Unix()+86400)),
	)
	r.Add(parent)
	issued, err = svc.ProcessAttestation(
		c, attestation(attester1, hex.Enc(req.ID)),
	)
	require.NoError(t, err)
	assert.True(t, issued)
}

func TestExpiredParentCredentialDoesNotQualify(t *testing.T) {
	req := request(requester, "PERMIT_MARAICHAGE_X2", "req_maraichage_2")
	parent := ev(kind.Credential, pubkey(999), time.Now().Unix()-86400, "{}",
		tag.New("d", "vc_parent"),
		tag.New("p", attester1),
		tag.New("permit_id", "PERMIT_MARAICHAGE_X1"),
		tag.New("expires", fmt.Sprintf("%d", time.Now().Unix()-1)),
	)
	r := relaytest.New(req, parent)
	svc := newService(t, r)

	issued, err := svc.ProcessAttestation(
		context.Bg(), attestation(attester1, hex.Enc(req.ID)),
	)
	require.NoError(t, err)
	assert.False(t, issued)
}

func TestPermitDefinitions(t *testing.T) {
	lyon := ev(kind.PermitDef, pubkey(50), 1000,
		`{"name":"Maraichage","required_attestations":1}`,
		tag.New("d", "PERMIT_MARAICHAGE_X1"),
		tag.New("market", "market_lyon"),
	)
	global := ev(kind.PermitDef, pubkey(50), 1000,
		`{"name":"Safety","required_attestations":2}`,
		tag.New("d", "PERMIT_SAFETY_V1"),
	)
	r := relaytest.New(lyon, global)
	svc := newService(t, r)
	c := context.Bg()

	all, err := svc.PermitDefinitions(c, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	scoped, err := svc.PermitDefinitions(c, "lyon")
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, "PERMIT_MARAICHAGE_X1", scoped[0].PermitID)
}

func TestCredentialsFor(t *testing.T) {
	req := request(requester, "PERMIT_MARAICHAGE_X1", "req_maraichage")
	r := relaytest.New(req)
	svc := newService(t, r)
	c := context.Bg()

	_, err := svc.ProcessAttestation(c, attestation(attester1, hex.Enc(req.ID)))
	require.NoError(t, err)

	// a credential from another issuer must not count
	r.Add(ev(kind.Credential, pubkey(999), time.Now().Unix(), "{}",
		tag.New("d", "vc_foreign"),
		tag.New("p", requester),
		tag.New("permit_id", "PERMIT_SOUDURE_X1"),
	))

	creds, err := svc.CredentialsFor(c, requester)
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, "PERMIT_MARAICHAGE_X1", creds[0].PermitID)
	assert.Equal(t, svc.Pubkey(), creds[0].Issuer)
}

func TestStats(t *testing.T) {
	req := request(requester, "PERMIT_MARAICHAGE_X1", "req_maraichage")
	def := ev(kind.PermitDef, pubkey(50), 1000, `{"name":"Maraichage"}`,
		tag.New("d", "PERMIT_MARAICHAGE_X1"),
	)
	att := attestation(attester1, hex.Enc(req.ID))
	r := relaytest.New(req, def, att)
	svc := newService(t, r)
	c := context.Bg()

	_, err := svc.ProcessAttestation(c, att)
	require.NoError(t, err)

	st, err := svc.Stats(c)
	require.NoError(t, err)
	// the seeded definition plus the next-level one issuance published
	assert.Equal(t, 2, st.PermitsCount)
	assert.Equal(t, 1, st.RequestsCount)
	assert.Equal(t, 1, st.AttestationsCount)
	assert.Equal(t, 1, st.CredentialsCount)
	assert.Equal(t, svc.Pubkey(), st.OraclePubkey)
}
