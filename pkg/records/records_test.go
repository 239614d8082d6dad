package records

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"troczen.dev/pkg/encoders/event"
	"troczen.dev/pkg/encoders/hex"
	"troczen.dev/pkg/encoders/kind"
	"troczen.dev/pkg/encoders/tag"
	"troczen.dev/pkg/encoders/tags"
	"troczen.dev/pkg/encoders/timestamp"
)

func testEvent(k *kind.T, pubkey string, createdAt int64, content string,
	tt ...*tag.T) *event.E {
	pk, _ := hex.Dec(pubkey)
	id, _ := hex.Dec("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	return &event.E{
		ID:        id,
		Pubkey:    pk,
		CreatedAt: timestamp.FromUnix(createdAt),
		Kind:      k,
		Tags:      tags.New(tt...),
		Content:   []byte(content),
	}
}

const (
	alice = "79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"
	bob   = "c6047f9441ed7d6d3045406e95c07cd85c778e4b8cef3ca7abac09b95c709ee5"
)

func TestParseBond(t *testing.T) {
	ev := testEvent(kind.Bond, alice, 1000, `{"hop_count":2,"path":["a","b"]}`,
		tag.New("d", "zen-bon42"),
		tag.New("market", "market_hackathon"),
		tag.New("value", "15.5"),
		tag.New("expires", "87400"),
		tag.New("issuer", bob),
	)
	b, ok := ParseBond(ev)
	require.True(t, ok)
	assert.Equal(t, "bon42", b.ID, "zen- prefix must be stripped")
	assert.Equal(t, bob, b.Issuer)
	assert.Equal(t, "market_hackathon", b.Market)
	assert.Equal(t, 15.5, b.ValueZen)
	assert.Equal(t, int64(1000), b.IssuedAt)
	assert.Equal(t, int64(87400), b.ExpiresAt)
	assert.Equal(t, 2, b.HopCount)
	assert.Equal(t, []string{"a", "b"}, b.Path)
	assert.True(t, b.InTransit())
	assert.InDelta(t, 1.0, b.TTLDays(), 1e-9)
	assert.True(t, b.Active(87399))
	assert.False(t, b.Active(87400))
}

func TestParseBondIssuerFallback(t *testing.T) {
	ev := testEvent(kind.Bond, alice, 1000, "opaque-ciphertext",
		tag.New("d", "bon1"),
		tag.New("value", "10"),
	)
	b, ok := ParseBond(ev)
	require.True(t, ok)
	assert.Equal(t, alice, b.Issuer, "missing issuer tag falls back to author")
	assert.Equal(t, "active", b.Status)
	assert.Zero(t, b.HopCount, "encrypted content parses to no hops")
}

func TestParseCircuit(t *testing.T) {
	ev := testEvent(kind.Circuit, bob, 2000,
		`{"issued_by":"`+alice+`","market_id":"market_lyon","value_zen":8,"age_days":4.5,"hop_count":3,"ttl_consumed":0.32,"skill_cert":"PERMIT_FOUR_X2"}`,
		tag.New("d", "circ1"),
		tag.New("bon_id", "bon42"),
	)
	c, ok := ParseCircuit(ev)
	require.True(t, ok)
	assert.Equal(t, "circ1", c.ID)
	assert.Equal(t, "bon42", c.BondID)
	assert.Equal(t, alice, c.IssuedBy)
	assert.Equal(t, "market_lyon", c.Market)
	assert.Equal(t, 3, c.HopCount)
	assert.Equal(t, 4.5, c.AgeDays)
	assert.Equal(t, 2, c.SkillLevel())
	assert.Equal(t, bob, c.ClosedBy)
}

func TestParsePermitDef(t *testing.T) {
	ev := testEvent(kind.PermitDef, alice, 3000,
		`{"description":"bakes bread","required_attestations":3,"skills":["baking"]}`,
		tag.New("d", "PERMIT_BOULANGER_X1"),
		tag.New("name", "Boulanger"),
	)
	d, ok := ParsePermitDef(ev)
	require.True(t, ok)
	assert.Equal(t, "PERMIT_BOULANGER_X1", d.PermitID)
	assert.Equal(t, "Boulanger", d.Name)
	assert.Equal(t, 1, d.Level)
	assert.Equal(t, 3, d.RequiredAttestations)
	assert.Equal(t, []string{"baking"}, d.Skills)
	assert.Equal(t, "skill", d.Category)

	// no d tag, no record
	_, ok = ParsePermitDef(testEvent(kind.PermitDef, alice, 3000, "{}"))
	assert.False(t, ok)
}

func TestParseAttestationRefFallback(t *testing.T) {
	ev := testEvent(kind.Attestation, bob, 4000, "",
		tag.New("a", "30501:"+alice+":req1"),
		tag.New("p", alice),
	)
	a, ok := ParseAttestation(ev)
	require.True(t, ok)
	assert.Equal(t, "30501:"+alice+":req1", a.RequestRef,
		"a tag serves when e tag is absent")
	assert.Equal(t, bob, a.Attester)

	_, ok = ParseAttestation(testEvent(kind.Attestation, bob, 4000, ""))
	assert.False(t, ok, "attestation without e or a tag is dropped")
}

func TestParseCredential(t *testing.T) {
	ev := testEvent(kind.Credential, alice, 5000, `{"@context":["https://www.w3.org/2018/credentials/v1"]}`,
		tag.New("d", "vc_0123456789abcdef"),
		tag.New("permit_id", "PERMIT_FOUR_X2"),
		tag.New("p", bob),
		tag.New("e", "req-event-id"),
		tag.New("expires", "31541000"),
		tag.New("attestations", "2"),
		tag.New("attestor", alice),
		tag.New("attestor", bob),
		tag.New("skill", "four"),
	)
	c, ok := ParseCredential(ev)
	require.True(t, ok)
	assert.Equal(t, "vc_0123456789abcdef", c.ID)
	assert.Equal(t, "PERMIT_FOUR_X2", c.PermitID)
	assert.Equal(t, 2, c.Level)
	assert.Equal(t, bob, c.Holder)
	assert.Equal(t, alice, c.Issuer)
	assert.Equal(t, []string{alice, bob}, c.Attestors)
	assert.Equal(t, 2, c.Count)
	assert.True(t, c.Valid(31540999))
	assert.False(t, c.Valid(31541000))
	assert.Equal(t, 365, c.DaysUntilExpiry(31541000-365*86400))
	assert.NotNil(t, c.VC)
}

func TestParseContactList(t *testing.T) {
	ev := testEvent(kind.FollowList, alice, 6000, "",
		tag.New("p", bob),
		tag.New("p", bob),
		tag.New("p", alice),
	)
	c, ok := ParseContactList(ev)
	require.True(t, ok)
	assert.Equal(t, []string{bob, alice}, c.Follows, "duplicates collapse")
	_, follows := c.FollowSet()[bob]
	assert.True(t, follows)
}

func TestFromEventDispatch(t *testing.T) {
	ev := testEvent(kind.Bond, alice, 1000, "", tag.New("d", "bon1"))
	rec, ok := FromEvent(ev)
	require.True(t, ok)
	_, isBond := rec.(*Bond)
	assert.True(t, isBond)

	_, ok = FromEvent(testEvent(kind.New(1), alice, 1000, "hello"))
	assert.False(t, ok, "unknown kinds are skipped")
}

func TestParseProfile(t *testing.T) {
	ev := testEvent(kind.ProfileMetadata, alice, 7000,
		`{"name":"Alice","about":"baker in Lyon"}`)
	p, ok := ParseProfile(ev)
	require.True(t, ok)
	assert.Equal(t, "Alice", p.Name)
	assert.Equal(t, alice, p.Pubkey)

	_, ok = ParseProfile(testEvent(kind.ProfileMetadata, alice, 7000, "not json"))
	assert.False(t, ok)
}
