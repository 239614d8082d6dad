package permits

import (
	"encoding/json"
	"fmt"
	"strings"

	"troczen.dev/pkg/encoders/event"
	"troczen.dev/pkg/encoders/kind"
	"troczen.dev/pkg/encoders/tag"
	"troczen.dev/pkg/encoders/tags"
	"troczen.dev/pkg/encoders/timestamp"
	"troczen.dev/pkg/utils/chk"
)

// Definition categories.
const (
	CategorySkill     = "skill"
	CategoryLicense   = "license"
	CategoryAuthority = "authority"
)

// Definition is the material of a permit definition before it becomes an
// event. Level and type are not stored; both derive from the ID suffix.
type Definition struct {
	ID          string
	Name        string
	Description string
	Category    string
	Skills      []string
	// Required is the attestation threshold; zero selects the default for
	// the permit type.
	Required int
	// Parent is the id of the permit one level below, empty for level 1.
	Parent string
	// Market scopes the definition to one market tag when set.
	Market string
}

// defContent is the JSON body of a kind 30500 event.
type defContent struct {
	Name                 string   `json:"name"`
	Description          string   `json:"description"`
	Category             string   `json:"category"`
	Skills               []string `json:"skills"`
	RequiredAttestations int      `json:"required_attestations"`
	Level                int      `json:"level"`
	Type                 string   `json:"type"`
}

// Event renders the definition as an unsigned kind 30500 event. The caller
// signs it with the oracle key before publishing.
func (d Definition) Event() (ev *event.E, err error) {
	category := d.Category
	if category == "" {
		category = CategorySkill
	}
	skills := d.Skills
	if skills == nil {
		skills = []string{}
	}
	var content []byte
	if content, err = json.Marshal(defContent{
		Name:                 d.Name,
		Description:          d.Description,
		Category:             category,
		Skills:               skills,
		RequiredAttestations: RequiredAttestations(d.ID, d.Required),
		Level:                ExtractLevel(d.ID),
		Type:                 Type(d.ID),
	}); chk.E(err) {
		return
	}
	t := tags.New(
		tag.New("d", d.ID),
		tag.New("name", d.Name),
		tag.New("category", category),
	)
	if d.Parent != "" {
		t.AppendTags(tag.New("parent", d.Parent))
	}
	if d.Market != "" {
		t.AppendTags(tag.New("market", d.Market))
	}
	for _, s := range skills {
		t.AppendTags(tag.New("skill", s))
	}
	ev = &event.E{
		CreatedAt: timestamp.Now(),
		Kind:      kind.PermitDef,
		Tags:      t,
		Content:   content,
	}
	return
}

// NextLevel builds the definition for the level above current, seeded with
// the skills discovered while the current level circulated. The next level
// is always a community permit needing a single attestation from a holder
// of the current one.
func NextLevel(currentID string, discovered []string) Definition {
	next := ExtractLevel(currentID) + 1
	base := titleWords(strings.TrimPrefix(ExtractBase(currentID), "PERMIT_"))
	return Definition{
		ID:          NextLevelID(currentID),
		Name:        fmt.Sprintf("%s - Level X%d", base, next),
		Description: fmt.Sprintf("Advanced mastery of %s, level %d", base, next),
		Category:    CategorySkill,
		Skills:      discovered,
		Required:    DefaultCommunityThreshold,
		Parent:      currentID,
	}
}
