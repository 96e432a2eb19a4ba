// internal/persona/types.go
package persona

import (
	"strconv"
	"strings"
)

// Tone 叙述语气，封闭集合
type Tone int

const (
	ToneFriendly Tone = iota
	ToneFormal
	TonePoetic
	ToneWarm
)

// AllTones 按固定顺序返回全部语气
func AllTones() []Tone {
	return []Tone{ToneFriendly, ToneFormal, TonePoetic, ToneWarm}
}

// ParseTone 解析语气字符串，未知值一律回落到 friendly
func ParseTone(s string) Tone {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "formal":
		return ToneFormal
	case "poetic":
		return TonePoetic
	case "warm":
		return ToneWarm
	default:
		return ToneFriendly
	}
}

// ParseToneOr 空字符串时使用指定默认值，其它情况与 ParseTone 相同
func ParseToneOr(s string, def Tone) Tone {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return ParseTone(s)
}

func (t Tone) String() string {
	switch t {
	case ToneFormal:
		return "formal"
	case TonePoetic:
		return "poetic"
	case ToneWarm:
		return "warm"
	default:
		return "friendly"
	}
}

// MarshalText lets tones travel as plain strings in JSON.
func (t Tone) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Tone) UnmarshalText(b []byte) error {
	*t = ParseTone(string(b))
	return nil
}

const (
	MinDepth     = 1
	MaxDepth     = 10
	DefaultDepth = 5

	DefaultStyle              = "traditional"
	DefaultCommunicationStyle = "conversational"
	DefaultLanguage           = "en"
)

// ClampDepth 将叙事深度限制在 [1,10]；0 视为未设置，返回默认值
func ClampDepth(depth int) int {
	switch {
	case depth == 0:
		return DefaultDepth
	case depth < MinDepth:
		return MinDepth
	case depth > MaxDepth:
		return MaxDepth
	default:
		return depth
	}
}

// PersonaParameters 描述期望的叙述风格。按值传递，构造后不再修改。
type PersonaParameters struct {
	Tone               Tone   `json:"tone"`
	Style              string `json:"style"`
	StorytellingDepth  int    `json:"storytelling_depth"`
	CommunicationStyle string `json:"communication_style"`
	LanguagePreference string `json:"language_preference"`
}

// NewPersonaParameters 构造并规范化参数
func NewPersonaParameters(tone, style string, depth int, communicationStyle, language string) PersonaParameters {
	return PersonaParameters{
		Tone:               ParseTone(tone),
		Style:              orDefault(style, DefaultStyle),
		StorytellingDepth:  ClampDepth(depth),
		CommunicationStyle: orDefault(communicationStyle, DefaultCommunicationStyle),
		LanguagePreference: strings.ToLower(orDefault(language, DefaultLanguage)),
	}
}

// DefaultPersona friendly / traditional / depth 5
func DefaultPersona() PersonaParameters {
	return NewPersonaParameters("", "", 0, "", "")
}

// Depth 返回经过限制的深度，零值结构体也安全
func (p PersonaParameters) Depth() int {
	return ClampDepth(p.StorytellingDepth)
}

// EntityFacts 描述主体（工匠或商品）的事实集合，仅在一次调用内存在
type EntityFacts struct {
	Name                 string `json:"name"`
	CraftType            string `json:"craft_type"`
	Location             string `json:"location"`
	ExperienceYears      int    `json:"experience_years"`
	Category             string `json:"category"`
	Materials            string `json:"materials"`
	BaseDescription      string `json:"base_description"`
	CulturalSignificance string `json:"cultural_significance"`
}

const (
	PlaceholderName     = "this artisan"
	PlaceholderCraft    = "their craft"
	PlaceholderLocation = "their workshop"
	PlaceholderCategory = "handcraft"
)

func (f EntityFacts) NameOr() string {
	return orDefault(f.Name, PlaceholderName)
}

func (f EntityFacts) CraftOr() string {
	return orDefault(f.CraftType, PlaceholderCraft)
}

func (f EntityFacts) LocationOr() string {
	return orDefault(f.Location, PlaceholderLocation)
}

// CategoryOr 商品类别，缺省时依次使用工艺类型、"handcraft"
func (f EntityFacts) CategoryOr() string {
	if c := strings.TrimSpace(f.Category); c != "" {
		return c
	}
	return orDefault(f.CraftType, PlaceholderCategory)
}

// ExperienceOr 以文本形式返回从业年限
func (f EntityFacts) ExperienceOr(def int) string {
	if f.ExperienceYears > 0 {
		return strconv.Itoa(f.ExperienceYears)
	}
	return strconv.Itoa(def)
}

// Provenance 生成文本的来源
type Provenance string

const (
	ProvenanceGenerative       Provenance = "generative"
	ProvenanceTemplateFallback Provenance = "template-fallback"
)

// Kind 生成文本的用途
type Kind string

const (
	KindBio                Kind = "artisan_bio"
	KindStoryTitle         Kind = "story_title"
	KindProductDescription Kind = "product_description"
	KindCulturalContext    Kind = "cultural_context"
	KindMarketing          Kind = "marketing_content"
	KindProductBundles     Kind = "product_bundles"
	KindTranslation        Kind = "translation"
)

// GeneratedText 生成结果及其来源
type GeneratedText struct {
	Text           string     `json:"text"`
	Provenance     Provenance `json:"provenance"`
	Kind           Kind       `json:"kind"`
	Tone           string     `json:"tone,omitempty"`
	TargetLanguage string     `json:"target_language,omitempty"`
	SourceLanguage string     `json:"source_language,omitempty"`
}

// Generative 是否来自远程生成后端
func (g GeneratedText) Generative() bool {
	return g.Provenance == ProvenanceGenerative
}

func orDefault(v, def string) string {
	if s := strings.TrimSpace(v); s != "" {
		return s
	}
	return def
}
