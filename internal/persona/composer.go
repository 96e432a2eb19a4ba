// internal/persona/composer.go
package persona

import (
	"fmt"
	"strings"
)

// FragmentName 传记片段名称
type FragmentName string

const (
	FragmentIntro    FragmentName = "intro"
	FragmentCraft    FragmentName = "craft"
	FragmentStory    FragmentName = "story"
	FragmentHeritage FragmentName = "heritage"
	FragmentClosing  FragmentName = "closing"
)

// 各层级出现所需的最低深度
const (
	storyDepth    = 5
	heritageDepth = 7
	closingDepth  = 9
)

// Fragment 传记中的一个片段
type Fragment struct {
	Name FragmentName `json:"name"`
	Text string       `json:"text"`
}

// toneSet 某一语气下的三段式模板
type toneSet struct {
	intro string
	craft string
	story string
}

// templatesFor 按语气生成模板，default 分支即 friendly
func templatesFor(tone Tone, name, craft, location string) toneSet {
	switch tone {
	case ToneFormal:
		return toneSet{
			intro: fmt.Sprintf("I am %s, a dedicated %s artisan.", name, craft),
			craft: fmt.Sprintf("My workshop in %s serves as the foundation for creating exceptional %s works.", location, craft),
			story: "My commitment lies in preserving traditional craftsmanship while incorporating contemporary design elements.",
		}
	case TonePoetic:
		return toneSet{
			intro: fmt.Sprintf("In the heart of %s, where tradition meets creativity, I am %s.", location, name),
			craft: fmt.Sprintf("My hands dance with clay and dreams, shaping %s that whisper ancient stories.", craft),
			story: "Every creation is a poem written in form and texture, a bridge between the wisdom of ancestors and the hopes of tomorrow.",
		}
	case ToneWarm:
		return toneSet{
			intro: fmt.Sprintf("Welcome to my world! I'm %s, and %s is not just my craft - it's my heart's language.", name, craft),
			craft: fmt.Sprintf("From my cozy workshop in %s, I pour love into every piece I create.", location),
			story: "I believe that handmade items carry the warmth of human touch and the joy of creation. Each piece is made with care, just for you.",
		}
	default:
		return toneSet{
			intro: fmt.Sprintf("Hi there! I'm %s, and I'm passionate about %s.", name, craft),
			craft: fmt.Sprintf("I've been creating beautiful %s pieces from my workshop in %s.", craft, location),
			story: "Each piece I create tells a story - a blend of traditional techniques passed down through generations and my own creative vision.",
		}
	}
}

// HeritageSentence depth >= 7 时追加的文化传承句
func HeritageSentence(craft, location string) string {
	return fmt.Sprintf("My %s reflects the rich cultural heritage of %s, where this art form has flourished for centuries.", craft, location)
}

// ClosingSentence depth >= 9 时追加的结尾句
const ClosingSentence = "When you choose my work, you're not just buying a product - you're becoming part of a story that connects past, present, and future."

// ComposeFragments 按深度返回有序片段，深度越高片段越多，不会减少
func ComposeFragments(facts EntityFacts, p PersonaParameters) []Fragment {
	name, craft, location := facts.NameOr(), facts.CraftOr(), facts.LocationOr()
	set := templatesFor(p.Tone, name, craft, location)
	depth := p.Depth()

	fragments := []Fragment{
		{Name: FragmentIntro, Text: set.intro},
		{Name: FragmentCraft, Text: set.craft},
	}
	if depth >= storyDepth {
		fragments = append(fragments, Fragment{Name: FragmentStory, Text: set.story})
	}
	if depth >= heritageDepth {
		fragments = append(fragments, Fragment{Name: FragmentHeritage, Text: HeritageSentence(craft, location)})
	}
	if depth >= closingDepth {
		fragments = append(fragments, Fragment{Name: FragmentClosing, Text: ClosingSentence})
	}
	return fragments
}

// ComposeBio 纯函数：根据事实和人设拼装工匠传记，永不失败
func ComposeBio(facts EntityFacts, p PersonaParameters) string {
	fragments := ComposeFragments(facts, p)
	parts := make([]string, 0, len(fragments))
	for _, f := range fragments {
		parts = append(parts, f.Text)
	}
	return strings.Join(parts, " ")
}

// EnrichProductDescription 用工匠语气包装商品基础描述；未知语气回落到 friendly
func EnrichProductDescription(product EntityFacts, tone Tone) string {
	category := product.CategoryOr()
	base := strings.TrimSpace(product.BaseDescription)

	var opening, closing string
	switch tone {
	case ToneFormal:
		opening = fmt.Sprintf("This %s represents the finest in traditional craftsmanship.", category)
		closing = "Each element has been carefully considered to ensure both aesthetic appeal and functional excellence."
	case TonePoetic:
		opening = fmt.Sprintf("Behold this %s, born from inspiration and shaped by skilled hands.", category)
		closing = "It carries within it the essence of creativity and the soul of artisanal tradition."
	case ToneWarm:
		opening = fmt.Sprintf("I'm so excited to share this special %s with you!", category)
		closing = "Made with love in my workshop, it's ready to bring joy and beauty to your space."
	default:
		opening = fmt.Sprintf("This beautiful %s piece is one of my favorites to create!", category)
		closing = "I put so much care into every detail, and I hope you'll love it as much as I enjoyed making it."
	}

	if base == "" {
		return opening + " " + closing
	}
	return opening + " " + base + " " + closing
}
