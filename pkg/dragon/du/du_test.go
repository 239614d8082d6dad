package du

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"troczen.dev/pkg/dragon/params"
	"troczen.dev/pkg/encoders/event"
	"troczen.dev/pkg/encoders/hex"
	"troczen.dev/pkg/encoders/kind"
	"troczen.dev/pkg/encoders/tag"
	"troczen.dev/pkg/encoders/tags"
	"troczen.dev/pkg/encoders/timestamp"
	"troczen.dev/pkg/interfaces/relay/relaytest"
	"troczen.dev/pkg/utils/context"
)

func pubkey(i int) string { return fmt.Sprintf("%064x", 0x1000+i) }

var (
	user   = pubkey(0)
	oracle = pubkey(999)
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

func followList(author string, createdAt int64, follows ...string) *event.E {
	var tt []*tag.T
	for _, f := range follows {
		tt = append(tt, tag.New("p", f))
	}
	return ev(kind.FollowList, author, createdAt, "", tt...)
}

func bond(author, bonID string, value float64, expires int64) *event.E {
	return ev(kind.Bond, author, time.Now().Unix()-86400, "{}",
		tag.New("d", bonID),
		tag.New("market", "market_lyon"),
		tag.New("value", fmt.Sprintf("%g", value)),
		tag.New("expires", fmt.Sprintf("%d", expires)),
	)
}

func credential(issuer, holder, permitID string) *event.E {
	return ev(kind.Credential, issuer, time.Now().Unix()-86400, "{}",
		tag.New("d", "vc_"+permitID),
		tag.New("permit_id", permitID),
		tag.New("p", holder),
	)
}

func newEngine(r *relaytest.Relay, oraclePubkey string) *Engine {
	return NewEngine(r, params.NewEngine(r, 500, 10000), oraclePubkey, 500, 10000)
}

func TestN1Reciprocity(t *testing.T) {
	follows := []string{pubkey(1), pubkey(2), pubkey(3)}
	r := relaytest.New(
		followList(user, 100, follows...),
		followList(pubkey(1), 100, user),
		followList(pubkey(2), 100, pubkey(3)), // does not follow back
		// pubkey(3) has no follow list at all
	)
	e := newEngine(r, "")
	n1, err := e.N1(context.Bg(), user)
	require.NoError(t, err)
	assert.Equal(t, []string{pubkey(1)}, n1)
}

func TestN2ExcludesUserAndN1(t *testing.T) {
	r := relaytest.New(
		followList(user, 100, pubkey(1), pubkey(2)),
		followList(pubkey(1), 100, user, pubkey(2), pubkey(10), pubkey(11)),
		followList(pubkey(2), 100, user, pubkey(11), pubkey(12)),
	)
	e := newEngine(r, "")
	n2, err := e.N2(context.Bg(), user)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{pubkey(10), pubkey(11), pubkey(12)}, n2)
}

func TestActiveMass(t *testing.T) {
	now := time.Now().Unix()
	r := relaytest.New(
		bond(pubkey(1), "b1", 10, now+86400),
		bond(pubkey(1), "b2", 5, now-1), // expired
		bond(pubkey(2), "b3", 7, now+86400),
		bond(pubkey(9), "b4", 100, now+86400), // not in the set
	)
	e := newEngine(r, "")
	mass, err := e.ActiveMass(
		context.Bg(), []string{pubkey(1), pubkey(2)}, "lyon",
	)
	require.NoError(t, err)
	assert.Equal(t, 17.0, mass)

	mass, err = e.ActiveMass(context.Bg(), nil, "lyon")
	require.NoError(t, err)
	assert.Zero(t, mass)
}

func TestSkillScore(t *testing.T) {
	r := relaytest.New(
		credential(oracle, user, "PERMIT_FOUR_X2"),
		credential(oracle, user, "PERMIT_DRIVER_V4"),
		// signed by someone else, ignored
		credential(pubkey(5), user, "PERMIT_FOUR_X9"),
	)
	e := newEngine(r, oracle)
	score, err := e.SkillScore(context.Bg(), user)
	require.NoError(t, err)
	assert.Equal(t, 3.0, score, "mean of levels 2 and 4")

	// without an oracle key the score is always zero
	score, err = newEngine(r, "").SkillScore(context.Bg(), user)
	require.NoError(t, err)
	assert.Zero(t, score)
}

func TestCalculateInactiveBelowThreshold(t *testing.T) {
	r := relaytest.New(
		followList(user, 100, pubkey(1), pubkey(2)),
		followList(pubkey(1), 100, user),
		followList(pubkey(2), 100, user),
	)
	e := newEngine(r, "")
	res, err := e.Calculate(context.Bg(), user, "lyon")
	require.NoError(t, err)
	assert.False(t, res.Active)
	assert.Zero(t, res.DU)
	assert.Equal(t, InactiveReason, res.Reason)
	assert.Equal(t, 2, res.N1)
}

func TestCalculateActive(t *testing.T) {
	now := time.Now().Unix()
	var evs []*event.E
	peers := make([]string, 5)
	for i := range peers {
		peers[i] = pubkey(i + 1)
	}
	evs = append(evs, followList(user, 100, peers...))
	for _, p := range peers {
		evs = append(evs, followList(p, 100, user))
		evs = append(evs, bond(p, "b-"+p[:8], 12, now+86400))
	}
	r := relaytest.New(evs...)
	e := newEngine(r, "")
	res, err := e.Calculate(context.Bg(), user, "lyon")
	require.NoError(t, err)
	require.True(t, res.Active)
	assert.Equal(t, 5, res.N1)
	assert.Equal(t, 0, res.N2)
	assert.Equal(t, 60.0, res.MassN1)
	// no history: C² and α take their defaults, no credentials: multiplier 1
	assert.Equal(t, params.C2Default, res.C2)
	assert.Equal(t, 1.0, res.Multiplier)
	// 10 + 0.07·60/(5+1) = 10.7
	assert.Equal(t, 10.7, res.DUBase)
	assert.Equal(t, 10.7, res.DU)
	assert.Equal(t, 321.0, res.DUMonthly)
}

func TestCategory(t *testing.T) {
	assert.Equal(t, "starter", Category(4.99))
	assert.Equal(t, "standard", Category(5))
	assert.Equal(t, "expert", Category(15))
	assert.Equal(t, "master", Category(30))
}
