package permits

import (
	"encoding/json"
	"testing"

	"troczen.dev/pkg/encoders/tag"
)

func TestIsValidID(t *testing.T) {
	valid := []string{
		"PERMIT_MARAICHAGE_X1",
		"PERMIT_ELEC_V2",
		"PERMIT_BOULANGERIE_BIO_X3",
		"PERMIT_A1_X10",
	}
	for _, id := range valid {
		if !IsValidID(id) {
			t.Errorf("expected %s to be valid", id)
		}
	}
	invalid := []string{
		"",
		"PERMIT_",
		"PERMIT_MARAICHAGE",
		"permit_maraichage_x1",
		"PERMIT_MARAICHAGE_X",
		"PERMIT_MARAICHAGE_Y1",
		"BADGE_MARAICHAGE_X1",
		"PERMIT_MARAÎCHAGE_X1",
	}
	for _, id := range invalid {
		if IsValidID(id) {
			t.Errorf("expected %s to be invalid", id)
		}
	}
}

func TestLevelAndBase(t *testing.T) {
	for _, tc := range []struct {
		id    string
		level int
		base  string
	}{
		{"PERMIT_MARAICHAGE_X1", 1, "PERMIT_MARAICHAGE"},
		{"PERMIT_MARAICHAGE_X3", 3, "PERMIT_MARAICHAGE"},
		{"PERMIT_ELEC_V2", 2, "PERMIT_ELEC"},
		{"PERMIT_NO_SUFFIX", 1, "PERMIT_NO_SUFFIX"},
		{"PERMIT_SOUDURE_X12", 12, "PERMIT_SOUDURE"},
	} {
		if l := ExtractLevel(tc.id); l != tc.level {
			t.Errorf("%s: level %d, expected %d", tc.id, l, tc.level)
		}
		if b := ExtractBase(tc.id); b != tc.base {
			t.Errorf("%s: base %s, expected %s", tc.id, b, tc.base)
		}
	}
}

func TestLadderNavigation(t *testing.T) {
	if next := NextLevelID("PERMIT_MARAICHAGE_X1"); next != "PERMIT_MARAICHAGE_X2" {
		t.Errorf("next of X1 was %s", next)
	}
	// official permits continue on the community ladder
	if next := NextLevelID("PERMIT_ELEC_V1"); next != "PERMIT_ELEC_X2" {
		t.Errorf("next of V1 was %s", next)
	}
	if p := ParentID("PERMIT_MARAICHAGE_X3"); p != "PERMIT_MARAICHAGE_X2" {
		t.Errorf("parent of X3 was %s", p)
	}
	if p := ParentID("PERMIT_MARAICHAGE_X1"); p != "" {
		t.Errorf("level 1 should have no parent, got %s", p)
	}
	if p := ParentID("PERMIT_ELEC_V1"); p != "" {
		t.Errorf("official level 1 should have no parent, got %s", p)
	}
}

func TestTypeClassification(t *testing.T) {
	if typ := Type("PERMIT_ELEC_V2"); typ != TypeOfficial {
		t.Errorf("V2 classified as %s", typ)
	}
	if typ := Type("PERMIT_MARAICHAGE_X1"); typ != TypeWotx2 {
		t.Errorf("X1 classified as %s", typ)
	}
	// _V inside the base must not make a permit official
	if typ := Type("PERMIT_VANNERIE_X1"); typ != TypeWotx2 {
		t.Errorf("PERMIT_VANNERIE_X1 classified as %s", typ)
	}
	if typ := Type("PERMIT_NO_SUFFIX"); typ != TypeWotx2 {
		t.Errorf("suffixless id classified as %s", typ)
	}
}

func TestRequiredAttestations(t *testing.T) {
	if n := RequiredAttestations("PERMIT_MARAICHAGE_X1", 0); n != 1 {
		t.Errorf("community threshold %d, expected 1", n)
	}
	// community permits ignore the definition override
	if n := RequiredAttestations("PERMIT_MARAICHAGE_X1", 5); n != 1 {
		t.Errorf("community threshold %d, expected 1", n)
	}
	if n := RequiredAttestations("PERMIT_ELEC_V1", 0); n != 2 {
		t.Errorf("official default threshold %d, expected 2", n)
	}
	if n := RequiredAttestations("PERMIT_ELEC_V1", 3); n != 3 {
		t.Errorf("official override threshold %d, expected 3", n)
	}
}

func TestGenerateID(t *testing.T) {
	for _, tc := range []struct {
		name     string
		level    int
		official bool
		id       string
	}{
		{"Maraîchage", 1, false, "PERMIT_MARAICHAGE_X1"},
		{"Boulangerie Bio", 1, false, "PERMIT_BOULANGERIE_BIO_X1"},
		{"Électricité", 2, true, "PERMIT_ELECTRICITE_V2"},
		{"soudure-alu", 1, false, "PERMIT_SOUDURE_ALU_X1"},
		{"Crème brûlée!", 1, false, "PERMIT_CREME_BRULEE_X1"},
	} {
		id := GenerateID(tc.name, tc.level, tc.official)
		if id != tc.id {
			t.Errorf("GenerateID(%q) = %s, expected %s", tc.name, id, tc.id)
		}
		if !IsValidID(id) {
			t.Errorf("generated id %s does not validate", id)
		}
	}
}

func TestDisplayName(t *testing.T) {
	if s := DisplayName("PERMIT_MARAICHAGE_BIO_X2"); s != "Maraichage Bio (level X2)" {
		t.Errorf("display name was %q", s)
	}
	if s := DisplayName("PERMIT_ELEC_V1"); s != "Elec (level V1)" {
		t.Errorf("display name was %q", s)
	}
}

func TestDefinitionEvent(t *testing.T) {
	ev, err := Definition{
		ID:          "PERMIT_MARAICHAGE_X1",
		Name:        "Maraichage",
		Description: "Basic market gardening",
		Skills:      []string{"sol_vivant", "semis"},
		Market:      "market_forcalquier",
	}.Event()
	if err != nil {
		t.Fatal(err)
	}
	if ev.KindInt() != 30500 {
		t.Fatalf("kind %d, expected 30500", ev.KindInt())
	}
	if d := ev.Tags.GetFirst(tag.New("d")); d.S(1) != "PERMIT_MARAICHAGE_X1" {
		t.Errorf("d tag was %s", d.S(1))
	}
	if m := ev.Tags.GetFirst(tag.New("market")); m.S(1) != "market_forcalquier" {
		t.Errorf("market tag was %s", m.S(1))
	}
	if p := ev.Tags.GetFirst(tag.New("parent")); p != nil {
		t.Errorf("unexpected parent tag on level 1 definition")
	}
	if n := len(ev.Tags.GetAll(tag.New("skill")).ToSliceOfTags()); n != 2 {
		t.Errorf("%d skill tags, expected 2", n)
	}
	var content struct {
		Name                 string   `json:"name"`
		Category             string   `json:"category"`
		Skills               []string `json:"skills"`
		RequiredAttestations int      `json:"required_attestations"`
		Level                int      `json:"level"`
		Type                 string   `json:"type"`
	}
	if err = json.Unmarshal(ev.Content, &content); err != nil {
		t.Fatal(err)
	}
	if content.Category != CategorySkill {
		t.Errorf("category defaulted to %s", content.Category)
	}
	if content.RequiredAttestations != 1 {
		t.Errorf("required_attestations %d, expected 1", content.RequiredAttestations)
	}
	if content.Level != 1 || content.Type != TypeWotx2 {
		t.Errorf("level %d type %s", content.Level, content.Type)
	}
	if len(ev.Pubkey) != 0 || len(ev.Sig) != 0 {
		t.Errorf("definition event should be unsigned")
	}
}

func TestNextLevelDefinition(t *testing.T) {
	d := NextLevel("PERMIT_MARAICHAGE_X1", []string{"greffe"})
	if d.ID != "PERMIT_MARAICHAGE_X2" {
		t.Errorf("next id %s", d.ID)
	}
	if d.Parent != "PERMIT_MARAICHAGE_X1" {
		t.Errorf("parent %s", d.Parent)
	}
	if d.Required != 1 {
		t.Errorf("required %d, expected 1", d.Required)
	}
	ev, err := d.Event()
	if err != nil {
		t.Fatal(err)
	}
	if p := ev.Tags.GetFirst(tag.New("parent")); p.S(1) != "PERMIT_MARAICHAGE_X1" {
		t.Errorf("parent tag %s", p.S(1))
	}
}
