package persona

import (
	"strings"
	"testing"
)

var mayaFacts = EntityFacts{Name: "Maya", CraftType: "pottery", Location: "Jaipur"}

func TestComposeBio_IntroAndCraftForAllTones(t *testing.T) {
	for _, tone := range AllTones() {
		p := PersonaParameters{Tone: tone, StorytellingDepth: 1}
		bio := ComposeBio(mayaFacts, p)
		set := templatesFor(tone, "Maya", "pottery", "Jaipur")

		if !strings.Contains(bio, set.intro) {
			t.Errorf("%s: intro missing from %q", tone, bio)
		}
		if !strings.Contains(bio, set.craft) {
			t.Errorf("%s: craft missing from %q", tone, bio)
		}
		if !strings.Contains(bio, "Maya") {
			t.Errorf("%s: name not substituted in %q", tone, bio)
		}
	}
}

func TestComposeBio_DepthGates(t *testing.T) {
	for _, tone := range AllTones() {
		prev := 0
		for depth := MinDepth; depth <= MaxDepth; depth++ {
			fragments := ComposeFragments(mayaFacts, PersonaParameters{Tone: tone, StorytellingDepth: depth})

			want := 2
			switch {
			case depth >= 9:
				want = 5
			case depth >= 7:
				want = 4
			case depth >= 5:
				want = 3
			}
			if len(fragments) != want {
				t.Fatalf("%s depth %d: expected %d fragments, got %d", tone, depth, want, len(fragments))
			}
			if len(fragments) < prev {
				t.Fatalf("%s depth %d: fragment count regressed", tone, depth)
			}
			prev = len(fragments)

			bio := ComposeBio(mayaFacts, PersonaParameters{Tone: tone, StorytellingDepth: depth})
			hasHeritage := strings.Contains(bio, "rich cultural heritage")
			hasClosing := strings.Contains(bio, "past, present, and future")
			if hasHeritage != (depth >= 7) {
				t.Errorf("%s depth %d: heritage presence = %v", tone, depth, hasHeritage)
			}
			if hasClosing != (depth >= 9) {
				t.Errorf("%s depth %d: closing presence = %v", tone, depth, hasClosing)
			}
		}
	}
}

func TestComposeBio_WarmDepthSeven(t *testing.T) {
	bio := ComposeBio(mayaFacts, NewPersonaParameters("warm", "", 7, "", ""))

	expected := strings.Join([]string{
		"Welcome to my world! I'm Maya, and pottery is not just my craft - it's my heart's language.",
		"From my cozy workshop in Jaipur, I pour love into every piece I create.",
		"I believe that handmade items carry the warmth of human touch and the joy of creation. Each piece is made with care, just for you.",
		"My pottery reflects the rich cultural heritage of Jaipur, where this art form has flourished for centuries.",
	}, " ")
	if bio != expected {
		t.Fatalf("unexpected bio:\n got: %q\nwant: %q", bio, expected)
	}
}

func TestComposeBio_DepthThreeHasTwoFragments(t *testing.T) {
	fragments := ComposeFragments(mayaFacts, NewPersonaParameters("warm", "", 3, "", ""))
	if len(fragments) != 2 {
		t.Fatalf("expected 2 fragments, got %d", len(fragments))
	}
	if fragments[0].Name != FragmentIntro || fragments[1].Name != FragmentCraft {
		t.Fatalf("unexpected fragments: %+v", fragments)
	}
}

func TestComposeBio_UnknownToneFallsBackToFriendly(t *testing.T) {
	sarcastic := NewPersonaParameters("sarcastic", "", 5, "", "")
	friendly := NewPersonaParameters("friendly", "", 5, "", "")
	if ComposeBio(mayaFacts, sarcastic) != ComposeBio(mayaFacts, friendly) {
		t.Fatal("unknown tone should compose exactly like friendly")
	}
}

func TestComposeBio_OutOfRangeDepth(t *testing.T) {
	low := ComposeFragments(mayaFacts, PersonaParameters{StorytellingDepth: -40})
	if len(low) != 2 {
		t.Fatalf("negative depth should clamp to 1, got %d fragments", len(low))
	}
	high := ComposeFragments(mayaFacts, PersonaParameters{StorytellingDepth: 99})
	if len(high) != 5 {
		t.Fatalf("depth 99 should clamp to 10, got %d fragments", len(high))
	}
	unset := ComposeFragments(mayaFacts, PersonaParameters{})
	if len(unset) != 3 {
		t.Fatalf("unset depth should default to 5, got %d fragments", len(unset))
	}
}

func TestComposeBio_Placeholders(t *testing.T) {
	bio := ComposeBio(EntityFacts{Name: "  "}, NewPersonaParameters("friendly", "", 10, "", ""))
	for _, want := range []string{PlaceholderName, PlaceholderCraft, PlaceholderLocation} {
		if !strings.Contains(bio, want) {
			t.Errorf("expected placeholder %q in %q", want, bio)
		}
	}
	if strings.Contains(bio, "  ") {
		t.Errorf("bio contains an empty gap: %q", bio)
	}
}

func TestComposeBio_Deterministic(t *testing.T) {
	p := NewPersonaParameters("poetic", "modern", 9, "", "")
	if ComposeBio(mayaFacts, p) != ComposeBio(mayaFacts, p) {
		t.Fatal("composeBio must be deterministic")
	}
}

func TestEnrichProductDescription(t *testing.T) {
	product := EntityFacts{Category: "block print scarf", BaseDescription: "Hand-stamped with indigo."}
	for _, tone := range AllTones() {
		out := EnrichProductDescription(product, tone)
		if !strings.Contains(out, "block print scarf") || !strings.Contains(out, "Hand-stamped with indigo.") {
			t.Errorf("%s: missing category or base description: %q", tone, out)
		}
	}

	empty := EnrichProductDescription(EntityFacts{CraftType: "woodcarving"}, ToneWarm)
	if empty == "" || !strings.Contains(empty, "woodcarving") {
		t.Fatalf("expected craft name in %q", empty)
	}
	if strings.Contains(empty, "  ") {
		t.Fatalf("empty base description left a gap: %q", empty)
	}

	if EnrichProductDescription(product, ParseTone("grumpy")) != EnrichProductDescription(product, ToneFriendly) {
		t.Fatal("unknown tone should enrich like friendly")
	}
}

func TestParseTone(t *testing.T) {
	cases := map[string]Tone{
		"warm":      ToneWarm,
		" Formal ":  ToneFormal,
		"POETIC":    TonePoetic,
		"":          ToneFriendly,
		"sarcastic": ToneFriendly,
	}
	for in, want := range cases {
		if got := ParseTone(in); got != want {
			t.Errorf("ParseTone(%q) = %s, want %s", in, got, want)
		}
	}
	if ParseToneOr("", ToneWarm) != ToneWarm {
		t.Error("ParseToneOr should honour default on empty input")
	}
}
