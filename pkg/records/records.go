// Package records projects raw nostr events into the typed domain records of
// the TrocZen economy. Each kind the system understands has a parse function;
// FromEvent dispatches on kind. Parsing never fails a batch: a malformed
// event yields (nil, false) and a warning, and the caller skips it.
package records

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"troczen.dev/pkg/encoders/event"
	"troczen.dev/pkg/encoders/kind"
	"troczen.dev/pkg/encoders/tag"
	"troczen.dev/pkg/encoders/tags"
	"troczen.dev/pkg/permits"
	"troczen.dev/pkg/utils/log"
)

// BondIDPrefix is the optional prefix some publishers put on the d tag of a
// bond event. It is stripped on parse so bond ids compare equal regardless of
// which client wrote them.
const BondIDPrefix = "zen-"

// Profile is the kind-0 user metadata record.
type Profile struct {
	Pubkey    string `json:"pubkey"`
	Name      string `json:"name"`
	About     string `json:"about"`
	Picture   string `json:"picture"`
	Banner    string `json:"banner"`
	Nip05     string `json:"nip05"`
	Lud16     string `json:"lud16"`
	Website   string `json:"website"`
	CreatedAt int64  `json:"created_at"`
}

// ContactList is the kind-3 follow list of one author.
type ContactList struct {
	Author  string
	Follows []string
}

// FollowSet returns the follows as a membership set.
func (c *ContactList) FollowSet() map[string]struct{} {
	s := make(map[string]struct{}, len(c.Follows))
	for _, f := range c.Follows {
		s[f] = struct{}{}
	}
	return s
}

// Bond is the kind-30303 transferable value unit. The content is normally
// encrypted; hop count and path are only populated when it is readable JSON.
type Bond struct {
	ID        string   `json:"bon_id"`
	EventID   string   `json:"event_id"`
	Issuer    string   `json:"issued_by"`
	IssuedAt  int64    `json:"issued_at"`
	ExpiresAt int64    `json:"expires_at"`
	ValueZen  float64  `json:"value_zen"`
	Market    string   `json:"market_id"`
	Status    string   `json:"status"`
	SkillCert string   `json:"skill_cert,omitempty"`
	HopCount  int      `json:"hop_count"`
	Path      []string `json:"path,omitempty"`
}

// Active reports whether the bond still carries mass at the given time.
func (b *Bond) Active(now int64) bool { return b.ExpiresAt > now }

// TTLDays is the lifetime the issuer gave the bond, in days.
func (b *Bond) TTLDays() float64 {
	if b.ExpiresAt <= b.IssuedAt {
		return 0
	}
	return float64(b.ExpiresAt-b.IssuedAt) / 86400
}

// ResidualDays is the time left before expiry, zero when already expired.
func (b *Bond) ResidualDays(now int64) float64 {
	if b.ExpiresAt <= now {
		return 0
	}
	return float64(b.ExpiresAt-now) / 86400
}

// InTransit reports whether the bond has left its issuer's hands.
func (b *Bond) InTransit() bool { return b.HopCount > 0 }

// Circuit is the kind-30304 record of a bond path that closed back to its
// issuer.
type Circuit struct {
	ID          string  `json:"circuit_id"`
	BondID      string  `json:"bon_id"`
	IssuedBy    string  `json:"issued_by"`
	Market      string  `json:"market_id"`
	DestMarket  string  `json:"dest_market_id,omitempty"`
	ValueZen    float64 `json:"value_zen"`
	AgeDays     float64 `json:"age_days"`
	HopCount    int     `json:"hop_count"`
	TTLConsumed float64 `json:"ttl_consumed"`
	SkillCert   string  `json:"skill_cert,omitempty"`
	ClosedAt    int64   `json:"closed_at"`
	ClosedBy    string  `json:"closed_by"`
}

// SkillLevel parses the level from the circuit's skill cert, 1 when the cert
// carries no suffix.
func (c *Circuit) SkillLevel() int {
	if c.SkillCert == "" {
		return 1
	}
	return permits.ExtractLevel(c.SkillCert)
}

// PermitDef is the kind-30500 permit definition.
type PermitDef struct {
	PermitID             string   `json:"permit_id"`
	Name                 string   `json:"name"`
	Description          string   `json:"description"`
	Category             string   `json:"category"`
	Level                int      `json:"level"`
	Type                 string   `json:"type"`
	RequiredAttestations int      `json:"required_attestations"`
	Skills               []string `json:"skills"`
	ParentPermit         string   `json:"parent_permit,omitempty"`
	Market               string   `json:"market,omitempty"`
	CreatedAt            int64    `json:"created_at"`
	CreatedBy            string   `json:"created_by"`
}

// PermitRequest is the kind-30501 request for a permit.
type PermitRequest struct {
	ID        string // d tag
	EventID   string
	PermitID  string
	Requester string
	CreatedAt int64
}

// Attestation is the kind-30502 endorsement of a permit request. RequestRef
// is taken from the e tag, falling back to the a tag; empty when neither is
// present.
type Attestation struct {
	EventID    string
	RequestRef string
	Attester   string
	CreatedAt  int64
}

// Credential is the kind-30503 verifiable credential record.
type Credential struct {
	ID        string          `json:"credential_id"`
	PermitID  string          `json:"permit_id"`
	Level     int             `json:"level"`
	Holder    string          `json:"holder"`
	Issuer    string          `json:"issuer"`
	RequestID string          `json:"request_id"`
	IssuedAt  int64           `json:"issued_at"`
	ExpiresAt int64           `json:"expires_at"`
	Attestors []string        `json:"attestors"`
	Count     int             `json:"attestations_count"`
	Skills    []string        `json:"skills"`
	VC        json.RawMessage `json:"vc_content,omitempty"`
}

// Valid reports whether the credential has not yet expired.
func (c *Credential) Valid(now int64) bool { return now < c.ExpiresAt }

// DaysUntilExpiry returns whole days before the credential lapses, zero when
// already expired.
func (c *Credential) DaysUntilExpiry(now int64) int {
	if c.ExpiresAt <= now {
		return 0
	}
	return int((c.ExpiresAt - now) / 86400)
}

// SkillLevel parses the permit level for scoring, 1 when the id carries no
// suffix.
func (c *Credential) SkillLevel() int { return permits.ExtractLevel(c.PermitID) }

// FromEvent dispatches an event to the parser for its kind and returns the
// typed record. Unknown kinds and malformed events return (nil, false).
func FromEvent(ev *event.E) (rec any, ok bool) {
	if ev == nil || ev.Kind == nil {
		return nil, false
	}
	switch ev.Kind.K {
	case kind.ProfileMetadata.K:
		return ParseProfile(ev)
	case kind.FollowList.K:
		return ParseContactList(ev)
	case kind.Bond.K:
		return ParseBond(ev)
	case kind.Circuit.K:
		return ParseCircuit(ev)
	case kind.PermitDef.K:
		return ParsePermitDef(ev)
	case kind.PermitReq.K:
		return ParsePermitRequest(ev)
	case kind.Attestation.K:
		return ParseAttestation(ev)
	case kind.Credential.K:
		return ParseCredential(ev)
	}
	return nil, false
}

// ParseProfile decodes a kind-0 event. An empty or malformed content yields
// (nil, false).
func ParseProfile(ev *event.E) (p *Profile, ok bool) {
	p = &Profile{
		Pubkey:    ev.PubKeyString(),
		CreatedAt: ev.CreatedAtInt64(),
	}
	if err := json.Unmarshal(ev.Content, p); err != nil {
		log.W.F("profile %s: bad content JSON: %v", ev.PubKeyString(), err)
		return nil, false
	}
	if p.Name == "" && p.About == "" && p.Picture == "" {
		return nil, false
	}
	return p, true
}

// ParseContactList decodes a kind-3 event into the author's follow list.
func ParseContactList(ev *event.E) (c *ContactList, ok bool) {
	c = &ContactList{Author: ev.PubKeyString()}
	seen := make(map[string]struct{})
	for _, t := range ev.Tags.GetAll(tag.New("p")).ToSliceOfTags() {
		v := t.S(1)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		c.Follows = append(c.Follows, v)
	}
	return c, true
}

// ParseBond decodes a kind-30303 event. The d tag may carry the bond id with
// or without the zen- prefix; when the issuer tag is absent the event author
// is the holder. Content is decoded opportunistically: bonds circulate with
// encrypted content and that is not an error.
func ParseBond(ev *event.E) (b *Bond, ok bool) {
	id := firstTag(ev.Tags, "d")
	id = strings.TrimPrefix(id, BondIDPrefix)
	if id == "" {
		id = ev.IDString()
	}
	issuer := firstTag(ev.Tags, "issuer")
	if issuer == "" {
		issuer = ev.PubKeyString()
	}
	b = &Bond{
		ID:        id,
		EventID:   ev.IDString(),
		Issuer:    issuer,
		IssuedAt:  ev.CreatedAtInt64(),
		ExpiresAt: tagInt(ev.Tags, "expires"),
		ValueZen:  tagFloat(ev.Tags, "value"),
		Market:    firstTag(ev.Tags, "market"),
		Status:    firstTag(ev.Tags, "status"),
		SkillCert: firstTag(ev.Tags, "skill_cert"),
	}
	if b.Status == "" {
		b.Status = "active"
	}
	var content struct {
		HopCount int      `json:"hop_count"`
		Path     []string `json:"path"`
	}
	if json.Unmarshal(ev.Content, &content) == nil {
		b.HopCount = content.HopCount
		b.Path = content.Path
	}
	return b, true
}

// ParseCircuit decodes a kind-30304 event. The market comes from the tag,
// falling back to the content's market_id.
func ParseCircuit(ev *event.E) (c *Circuit, ok bool) {
	c = &Circuit{
		ID:       firstTag(ev.Tags, "d"),
		BondID:   firstTag(ev.Tags, "bon_id"),
		IssuedBy: firstTag(ev.Tags, "issued_by"),
		Market:   firstTag(ev.Tags, "market"),
		ClosedAt: ev.CreatedAtInt64(),
		ClosedBy: ev.PubKeyString(),
	}
	var content struct {
		IssuedBy    string  `json:"issued_by"`
		MarketID    string  `json:"market_id"`
		DestMarket  string  `json:"dest_market_id"`
		ValueZen    float64 `json:"value_zen"`
		AgeDays     float64 `json:"age_days"`
		HopCount    int     `json:"hop_count"`
		TTLConsumed float64 `json:"ttl_consumed"`
		SkillCert   string  `json:"skill_cert"`
	}
	if err := json.Unmarshal(ev.Content, &content); err != nil {
		log.W.F("circuit %s: bad content JSON: %v", c.ID, err)
	} else {
		if c.IssuedBy == "" {
			c.IssuedBy = content.IssuedBy
		}
		if c.Market == "" {
			c.Market = content.MarketID
		}
		c.DestMarket = content.DestMarket
		c.ValueZen = content.ValueZen
		c.AgeDays = content.AgeDays
		c.HopCount = content.HopCount
		c.TTLConsumed = content.TTLConsumed
		c.SkillCert = content.SkillCert
	}
	return c, true
}

// ParsePermitDef decodes a kind-30500 event. Name and category prefer the
// tag over the content; skills are the union of skill tags and content.
func ParsePermitDef(ev *event.E) (d *PermitDef, ok bool) {
	id := firstTag(ev.Tags, "d")
	if id == "" {
		log.W.F("permit definition %s has no d tag", ev.IDString())
		return nil, false
	}
	d = &PermitDef{
		PermitID:     id,
		Name:         firstTag(ev.Tags, "name"),
		Category:     firstTag(ev.Tags, "category"),
		Level:        permits.ExtractLevel(id),
		Type:         permits.Type(id),
		ParentPermit: firstTag(ev.Tags, "parent"),
		Market:       firstTag(ev.Tags, "market"),
		CreatedAt:    ev.CreatedAtInt64(),
		CreatedBy:    ev.PubKeyString(),
	}
	for _, t := range ev.Tags.GetAll(tag.New("skill")).ToSliceOfTags() {
		if v := t.S(1); v != "" {
			d.Skills = append(d.Skills, v)
		}
	}
	var content struct {
		Name                 string   `json:"name"`
		Description          string   `json:"description"`
		Category             string   `json:"category"`
		RequiredAttestations int      `json:"required_attestations"`
		Skills               []string `json:"skills"`
	}
	if json.Unmarshal(ev.Content, &content) == nil {
		if d.Name == "" {
			d.Name = content.Name
		}
		if d.Category == "" {
			d.Category = content.Category
		}
		d.Description = content.Description
		d.RequiredAttestations = content.RequiredAttestations
		if len(d.Skills) == 0 {
			d.Skills = content.Skills
		}
	}
	if d.Category == "" {
		d.Category = "skill"
	}
	return d, true
}

// ParsePermitRequest decodes a kind-30501 event. A request without a
// permit_id tag is meaningless and dropped.
func ParsePermitRequest(ev *event.E) (r *PermitRequest, ok bool) {
	permitID := firstTag(ev.Tags, "permit_id")
	if permitID == "" {
		log.W.F("permit request %s has no permit_id tag", ev.IDString())
		return nil, false
	}
	return &PermitRequest{
		ID:        firstTag(ev.Tags, "d"),
		EventID:   ev.IDString(),
		PermitID:  permitID,
		Requester: ev.PubKeyString(),
		CreatedAt: ev.CreatedAtInt64(),
	}, true
}

// ParseAttestation decodes a kind-30502 event. The request reference is the
// e tag or, failing that, the a tag; an attestation referencing nothing is
// dropped.
func ParseAttestation(ev *event.E) (a *Attestation, ok bool) {
	ref := firstTag(ev.Tags, "e")
	if ref == "" {
		ref = firstTag(ev.Tags, "a")
	}
	if ref == "" {
		log.W.F("attestation %s references no request", ev.IDString())
		return nil, false
	}
	return &Attestation{
		EventID:    ev.IDString(),
		RequestRef: ref,
		Attester:   ev.PubKeyString(),
		CreatedAt:  ev.CreatedAtInt64(),
	}, true
}

// ParseCredential decodes a kind-30503 event.
func ParseCredential(ev *event.E) (c *Credential, ok bool) {
	c = &Credential{
		ID:        firstTag(ev.Tags, "d"),
		PermitID:  firstTag(ev.Tags, "permit_id"),
		Holder:    firstTag(ev.Tags, "p"),
		Issuer:    ev.PubKeyString(),
		RequestID: firstTag(ev.Tags, "e"),
		IssuedAt:  ev.CreatedAtInt64(),
		ExpiresAt: tagInt(ev.Tags, "expires"),
		Count:     int(tagInt(ev.Tags, "attestations")),
	}
	if lvl := tagInt(ev.Tags, "level"); lvl > 0 {
		c.Level = int(lvl)
	} else {
		c.Level = permits.ExtractLevel(c.PermitID)
	}
	for _, t := range ev.Tags.GetAll(tag.New("attestor")).ToSliceOfTags() {
		if v := t.S(1); v != "" {
			c.Attestors = append(c.Attestors, v)
		}
	}
	for _, t := range ev.Tags.GetAll(tag.New("skill")).ToSliceOfTags() {
		if v := t.S(1); v != "" {
			c.Skills = append(c.Skills, v)
		}
	}
	if json.Valid(ev.Content) {
		c.VC = json.RawMessage(ev.Content)
	}
	return c, true
}

// Now is the package clock, swappable in tests.
var Now = func() int64 { return time.Now().Unix() }

func firstTag(t *tags.T, name string) string {
	found := t.GetFirst(tag.New(name))
	if found == nil {
		return ""
	}
	return found.S(1)
}

func tagInt(t *tags.T, name string) int64 {
	v := firstTag(t, name)
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func tagFloat(t *tags.T, name string) float64 {
	v := firstTag(t, name)
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}
