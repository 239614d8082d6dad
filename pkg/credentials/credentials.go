// Package credentials builds W3C Verifiable Credentials for granted permits
// and wraps them in signed kind 30503 nostr events, plus the NIP-58 badge
// events that mirror them.
package credentials

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sha256 "github.com/minio/sha256-simd"
	"troczen.dev/pkg/encoders/event"
	"troczen.dev/pkg/encoders/hex"
	"troczen.dev/pkg/encoders/kind"
	"troczen.dev/pkg/encoders/tag"
	"troczen.dev/pkg/encoders/tags"
	"troczen.dev/pkg/encoders/timestamp"
	"troczen.dev/pkg/interfaces/signer"
	"troczen.dev/pkg/permits"
	"troczen.dev/pkg/utils/chk"
)

// JSON-LD contexts and credential types every issued VC carries.
var (
	Contexts = []string{
		"https://www.w3.org/2018/credentials/v1",
		"https://troczen.org/credentials/v1",
	}
	Types = []string{"VerifiableCredential", "TrocZenPermitCredential"}
)

// Validity tiers in days, chosen by permit id.
const (
	ValiditySkillDays     = 365
	ValidityLicenseDays   = 1825
	ValidityAuthorityDays = 3650
)

// VC is the W3C Verifiable Credential document stored in the event content.
type VC struct {
	Context        []string `json:"@context"`
	Type           []string `json:"type"`
	Issuer         Issuer   `json:"issuer"`
	IssuanceDate   string   `json:"issuanceDate"`
	ExpirationDate string   `json:"expirationDate"`
	Subject        Subject  `json:"credentialSubject"`
	Proof          *Proof   `json:"proof,omitempty"`
}

// Issuer identifies the oracle in DID form.
type Issuer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Subject is the credential subject block.
type Subject struct {
	ID           string         `json:"id"`
	Permit       Permit         `json:"permit"`
	Skills       []string       `json:"skills"`
	Attestations AttestationSet `json:"attestations"`
}

// Permit names the granted permit inside the subject block.
type Permit struct {
	ID    string `json:"id"`
	Level int    `json:"level"`
	Name  string `json:"name"`
}

// AttestationSet records who vouched for the grant.
type AttestationSet struct {
	Count     int      `json:"count"`
	Attestors []string `json:"attestors"`
}

// Proof is the detached signature block of a VC.
type Proof struct {
	Type               string `json:"type"`
	Created            string `json:"created"`
	ProofPurpose       string `json:"proofPurpose"`
	VerificationMethod string `json:"verificationMethod"`
	ProofValue         string `json:"proofValue"`
}

// Generator issues credentials signed with the oracle key.
type Generator struct {
	sign signer.I
}

// NewGenerator builds a generator around an initialised oracle signer.
func NewGenerator(sign signer.I) *Generator {
	return &Generator{sign: sign}
}

// Pubkey returns the oracle public key in hex.
func (g *Generator) Pubkey() string { return hex.Enc(g.sign.Pub()) }

// Generate issues a credential for a granted permit and returns the signed
// kind 30503 event alongside the VC document it embeds. validityDays of zero
// picks the tier implied by the permit id.
func (g *Generator) Generate(
	holder, permitID, requestID string, attestors, skills []string,
	validityDays int,
) (ev *event.E, vc *VC, err error) {
	issuedAt := time.Now().Unix()
	if validityDays <= 0 {
		validityDays = ValidityDays(permitID)
	}
	expiresAt := issuedAt + int64(validityDays)*86400
	level := permits.ExtractLevel(permitID)
	oracle := g.Pubkey()
	dids := make([]string, len(attestors))
	for i, a := range attestors {
		dids[i] = "did:nostr:" + a
	}
	if skills == nil {
		skills = []string{}
	}
	vc = &VC{
		Context:        Contexts,
		Type:           Types,
		Issuer:         Issuer{ID: "did:nostr:" + oracle, Name: "TrocZen Oracle"},
		IssuanceDate:   isoTime(issuedAt),
		ExpirationDate: isoTime(expiresAt),
		Subject: Subject{
			ID: "did:nostr:" + holder,
			Permit: Permit{
				ID:    permitID,
				Level: level,
				Name:  permitName(permitID),
			},
			Skills: skills,
			Attestations: AttestationSet{
				Count:     len(attestors),
				Attestors: dids,
			},
		},
	}
	var content []byte
	if content, err = json.Marshal(vc); chk.E(err) {
		return
	}
	t := tags.New(
		tag.New("d", CredentialID(holder, permitID, issuedAt)),
		tag.New("e", requestID),
		tag.New("p", holder),
		tag.New("permit_id", permitID),
		tag.New("level", fmt.Sprintf("%d", level)),
		tag.New("expires", fmt.Sprintf("%d", expiresAt)),
		tag.New("attestations", fmt.Sprintf("%d", len(attestors))),
	)
	for _, a := range attestors {
		t = t.AppendTags(tag.New("attestor", a))
	}
	for _, s := range skills {
		t = t.AppendTags(tag.New("skill", s))
	}
	ev = &event.E{
		CreatedAt: timestamp.FromUnix(issuedAt),
		Kind:      kind.Credential,
		Tags:      t,
		Content:   content,
	}
	if err = ev.Sign(g.sign); chk.E(err) {
		return
	}
	return
}

// Badge builds the NIP-58 pair mirroring a credential: the badge definition
// (kind 30008, one per permit id) and the award (kind 8) naming the holder.
// Both come back signed.
func (g *Generator) Badge(
	holder, permitID, credentialID, imageURL string,
) (definition, award *event.E, err error) {
	now := time.Now().Unix()
	oracle := g.Pubkey()
	level := permits.ExtractLevel(permitID)
	name := permitName(permitID)
	image := imageURL
	thumb := imageURL
	if image == "" {
		image = fmt.Sprintf("https://troczen.org/badges/%s.png", permitID)
		thumb = fmt.Sprintf("https://troczen.org/badges/%s_thumb.png", permitID)
	}
	definition = &event.E{
		CreatedAt: timestamp.FromUnix(now),
		Kind:      kind.BadgeDefinition,
		Tags: tags.New(
			tag.New("d", "badge_"+permitID),
			tag.New("name", name),
			tag.New("description",
				fmt.Sprintf("Mastery badge - Level X%d", level)),
			tag.New("image", image),
			tag.New("thumb", thumb),
		),
		Content: []byte{},
	}
	if err = definition.Sign(g.sign); chk.E(err) {
		return
	}
	award = &event.E{
		CreatedAt: timestamp.FromUnix(now),
		Kind:      kind.BadgeAward,
		Tags: tags.New(
			tag.New("a", fmt.Sprintf("30008:%s:badge_%s", oracle, permitID)),
			tag.New("p", holder),
			tag.New("e", credentialID),
		),
		Content: []byte(
			fmt.Sprintf("Congratulations! You earned the %s badge", name),
		),
	}
	if err = award.Sign(g.sign); chk.E(err) {
		return
	}
	return
}

// BuildProof derives the W3C proof block from a signed credential event.
func BuildProof(ev *event.E) *Proof {
	return &Proof{
		Type:               "NostrSignature2024",
		Created:            isoTime(ev.CreatedAtInt64()),
		ProofPurpose:       "assertionMethod",
		VerificationMethod: "did:nostr:" + ev.PubKeyString() + "#key-1",
		ProofValue:         ev.SigString(),
	}
}

// ValidityDays picks the validity tier implied by a permit id: licences run
// five years, authorities ten, everything else one.
func ValidityDays(permitID string) int {
	switch {
	case strings.Contains(permitID, "LICENSE"),
		strings.Contains(permitID, "DRIVER"):
		return ValidityLicenseDays
	case strings.Contains(permitID, "AUTHORITY"),
		strings.Contains(permitID, "ADMIN"):
		return ValidityAuthorityDays
	}
	return ValiditySkillDays
}

// CredentialID derives the stable d tag of a credential from its holder,
// permit and issue time.
func CredentialID(holder, permitID string, issuedAt int64) string {
	sum := sha256.Sum256(
		[]byte(fmt.Sprintf("%s:%s:%d", holder, permitID, issuedAt)),
	)
	return "vc_" + hex.Enc(sum[:8])
}

// permitName is the human name of a permit without its level suffix, eg
// PERMIT_MARAICHAGE_BIO_X2 becomes "Maraichage Bio".
func permitName(permitID string) string {
	base := strings.TrimPrefix(permits.ExtractBase(permitID), "PERMIT_")
	words := strings.Split(strings.ToLower(base), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func isoTime(ts int64) string {
	return time.Unix(ts, 0).UTC().Format("2006-01-02T15:04:05Z")
}
