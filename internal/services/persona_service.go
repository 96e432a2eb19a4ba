// internal/services/persona_service.go
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/Corphon/PersonaMarket/internal/llm"
	"github.com/Corphon/PersonaMarket/internal/persona"
	"github.com/Corphon/PersonaMarket/internal/utils"
)

// 最终兜底文本
const (
	DefaultStoryTitle      = "Artisan's Journey"
	DefaultCulturalText    = "Traditional craft with rich cultural heritage and historical significance."
	DefaultMarketingText   = "Discover authentic handcrafted treasures that celebrate traditional artistry."
	defaultExperienceYears = 5
)

// 营销内容类型
const (
	ContentTypeSocialMedia = "social_media"
	ContentTypeEmail       = "email"
)

// MarketingRequest 营销文案请求
type MarketingRequest struct {
	ContentType    string              `json:"type"`
	Platform       string              `json:"platform,omitempty"`
	CampaignType   string              `json:"campaign_type,omitempty"`
	TargetAudience string              `json:"target_audience,omitempty"`
	Tone           string              `json:"tone,omitempty"`
	Artisan        persona.EntityFacts `json:"artisan"`
	Product        persona.EntityFacts `json:"product"`
}

// PersonaService 合成门面：先尝试生成后端，失败时使用模板
// 所有方法都不返回错误，可并发调用
type PersonaService struct {
	backend    llm.TextGenerationBackend
	translator llm.Translator
	logger     *utils.Logger
	metrics    *utils.SynthesisMetrics
}

// NewPersonaService 创建合成服务；nil 依赖替换为不可用实现
func NewPersonaService(backend llm.TextGenerationBackend, translator llm.Translator, logger *utils.Logger) *PersonaService {
	if logger == nil {
		logger = utils.GetLogger()
	}
	if backend == nil {
		backend = llm.NewUnavailableBackend("no backend supplied", nil)
	}
	if translator == nil {
		translator = llm.NewUnavailableTranslator(nil)
	}
	return &PersonaService{backend: backend, translator: translator, logger: logger}
}

// WithMetrics 设置与后端共用的指标；生成结果在后处理中被降级时据此修正计数
func (s *PersonaService) WithMetrics(m *utils.SynthesisMetrics) *PersonaService {
	s.metrics = m
	return s
}

// BackendStatus 生成后端与翻译的可用状态
func (s *PersonaService) BackendStatus() (llm.BackendStatus, bool) {
	return s.backend.Describe(), s.translator.Available()
}

// PreviewBio 仅使用模板，确定性输出
func (s *PersonaService) PreviewBio(facts persona.EntityFacts, p persona.PersonaParameters) persona.GeneratedText {
	return persona.GeneratedText{
		Text:       persona.ComposeBio(facts, p),
		Provenance: persona.ProvenanceTemplateFallback,
		Kind:       persona.KindBio,
		Tone:       p.Tone.String(),
	}
}

// PreviewFragments 实时预览使用的分段结果
func (s *PersonaService) PreviewFragments(facts persona.EntityFacts, p persona.PersonaParameters) []persona.Fragment {
	return persona.ComposeFragments(facts, p)
}

func (s *PersonaService) GenerateArtisanBio(ctx context.Context, facts persona.EntityFacts, p persona.PersonaParameters) persona.GeneratedText {
	tone := p.Tone.String()
	prompt := fmt.Sprintf(`Create a compelling artisan biography with the following details:

Name: %s
Craft: %s
Location: %s
Experience: %s years
Tone: %s

Write a %s and engaging biography (150-200 words) that:
1. Tells their personal story and journey into the craft
2. Highlights their unique techniques or specializations
3. Connects their work to cultural heritage
4. Shows their passion and dedication
5. Makes customers feel connected to the artisan

Make it authentic, personal, and inspiring.`,
		facts.NameOr(), facts.CraftOr(), facts.LocationOr(), facts.ExperienceOr(defaultExperienceYears), tone, tone)

	return s.generate(ctx, persona.KindBio, tone, prompt, 300, 0.8, nil, func() string {
		return persona.ComposeBio(facts, p)
	})
}

// GenerateStoryTitle 返回值去掉首尾引号
func (s *PersonaService) GenerateStoryTitle(ctx context.Context, facts persona.EntityFacts, tone persona.Tone) persona.GeneratedText {
	t := tone.String()
	prompt := fmt.Sprintf(`Create a captivating story title for a craftsperson:

Craft: %s
Location: %s
Tone: %s

Generate a %s title (3-6 words) that:
1. Captures the essence of their craft
2. Evokes emotion and curiosity
3. Reflects cultural heritage
4. Is memorable and shareable

Examples: "Clay Whispers Ancient Secrets", "Threads of Heritage", "Carving Stories in Teak"

Return only the title, no explanation.`, facts.CraftOr(), facts.LocationOr(), t, t)

	return s.generate(ctx, persona.KindStoryTitle, t, prompt, 50, 0.9, stripQuotes, func() string {
		return DefaultStoryTitle
	})
}

func (s *PersonaService) GenerateProductDescription(ctx context.Context, product persona.EntityFacts, tone persona.Tone) persona.GeneratedText {
	t := tone.String()
	name := product.Name
	if strings.TrimSpace(name) == "" {
		name = "Handcrafted Item"
	}
	materials := product.Materials
	if strings.TrimSpace(materials) == "" {
		materials = "Traditional materials"
	}

	var extra strings.Builder
	if d := strings.TrimSpace(product.BaseDescription); d != "" {
		fmt.Fprintf(&extra, "Maker's notes: %s\n", d)
	}
	if c := strings.TrimSpace(product.CulturalSignificance); c != "" {
		fmt.Fprintf(&extra, "Cultural significance: %s\n", c)
	}

	prompt := fmt.Sprintf(`Write a product description in the maker's voice:

Product: %s
Category: %s
Materials: %s
Maker Persona: %s
%s
Create a %s description (100-150 words) that:
1. Describes the product from the maker's perspective
2. Explains the crafting process and techniques
3. Highlights unique features and quality
4. Connects to cultural significance
5. Creates emotional connection with buyers

Write in first person as if the maker is speaking directly to the customer.`,
		name, product.CategoryOr(), materials, t, extra.String(), t)

	return s.generate(ctx, persona.KindProductDescription, t, prompt, 250, 0.7, nil, func() string {
		return persona.EnrichProductDescription(product, tone)
	})
}

func (s *PersonaService) GenerateCulturalContext(ctx context.Context, craftType, location string) persona.GeneratedText {
	facts := persona.EntityFacts{CraftType: craftType, Location: location}
	prompt := fmt.Sprintf(`Explain the cultural context of a traditional craft for shoppers:

Craft: %s
Region: %s

Write 100-150 words covering:
1. The history of this craft in the region
2. Traditional techniques and how they are passed on
3. Symbolism and the occasions these pieces belong to

Keep it accurate, respectful, and engaging.`, facts.CraftOr(), facts.LocationOr())

	return s.generate(ctx, persona.KindCulturalContext, "", prompt, 250, 0.7, nil, func() string {
		return DefaultCulturalText
	})
}

// GenerateMarketingContent 按 ContentType 生成社交媒体帖子或邮件；未知类型直接返回静态文案
func (s *PersonaService) GenerateMarketingContent(ctx context.Context, req MarketingRequest) persona.GeneratedText {
	tone := persona.ParseToneOr(req.Tone, persona.ToneWarm).String()

	var prompt string
	switch req.ContentType {
	case ContentTypeSocialMedia:
		platform := req.Platform
		if strings.TrimSpace(platform) == "" {
			platform = "Instagram"
		}
		prompt = fmt.Sprintf(`Write a marketing post for %s promoting a handcrafted piece:

Maker: %s, %s from %s
Piece: %s
Tone: %s

Requirements:
1. Open with a hook that fits %s
2. Tell a short story about how the piece was made
3. End with a gentle call to action
4. Add 5-8 relevant hashtags

Keep it under 120 words.`,
			platform, orPlaceholder(req.Artisan.Name, "our maker"), req.Artisan.CraftOr(), req.Artisan.LocationOr(),
			orPlaceholder(req.Product.Name, "a signature handmade piece"), tone, platform)

	case ContentTypeEmail:
		campaign := req.CampaignType
		if strings.TrimSpace(campaign) == "" {
			campaign = "newsletter"
		}
		audience := req.TargetAudience
		if strings.TrimSpace(audience) == "" {
			audience = "customers"
		}
		prompt = fmt.Sprintf(`Write a marketing email campaign for a handmade marketplace:

Campaign type: %s
Target audience: %s
Tone: %s

Include a subject line, a short greeting, two paragraphs celebrating the makers and their heritage,
and a clear call to action. Keep it under 200 words.`, campaign, audience, tone)

	default:
		return persona.GeneratedText{
			Text:       DefaultMarketingText,
			Provenance: persona.ProvenanceTemplateFallback,
			Kind:       persona.KindMarketing,
			Tone:       req.ContentType,
		}
	}

	// Tone 字段回显内容类型
	return s.generate(ctx, persona.KindMarketing, req.ContentType, prompt, 300, 0.8, nil, func() string {
		return DefaultMarketingText
	})
}

// Translate 失败时原文返回
func (s *PersonaService) Translate(ctx context.Context, text, target, source string) persona.GeneratedText {
	if strings.TrimSpace(target) == "" {
		target = persona.DefaultLanguage
	}
	res := s.translator.Translate(ctx, text, target, source)

	provenance := persona.ProvenanceTemplateFallback
	if res.Translated {
		provenance = persona.ProvenanceGenerative
	}
	return persona.GeneratedText{
		Text:           res.Text,
		Provenance:     provenance,
		Kind:           persona.KindTranslation,
		TargetLanguage: res.TargetLanguage,
		SourceLanguage: res.SourceLanguage,
	}
}

// generate 调用后端；后端自身的兜底文本也为空时使用 finalResort
func (s *PersonaService) generate(ctx context.Context, kind persona.Kind, tone, prompt string,
	maxTokens int, temperature float32, post func(string) string, finalResort func() string) persona.GeneratedText {

	gen := s.backend.Generate(ctx, prompt, maxTokens, temperature)

	text := gen.Text
	if post != nil {
		text = post(text)
	}

	out := persona.GeneratedText{Kind: kind, Tone: tone, Text: text, Provenance: persona.ProvenanceTemplateFallback}
	if gen.Generative && strings.TrimSpace(text) != "" {
		out.Provenance = persona.ProvenanceGenerative
		return out
	}

	if strings.TrimSpace(text) == "" {
		if gen.Generative {
			s.recordDowngrade(gen.Provider)
		}
		s.logger.Warn("empty text after backend fallback, using local template", utils.Fields{"kind": string(kind)})
		out.Text = finalResort()
	}
	return out
}

// recordDowngrade 后端已计为 generative，但结果最终来自模板
func (s *PersonaService) recordDowngrade(provider string) {
	if s.metrics != nil {
		s.metrics.RecordDowngrade(provider)
	}
}

// 成对出现时才去掉的单引号
var singleQuotePairs = [][2]string{{"'", "'"}, {"‘", "’"}}

// stripQuotes 去掉标题首尾的空白和双引号；单引号只在首尾成对时去掉，保留所有格撇号
func stripQuotes(s string) string {
	s = strings.Trim(strings.TrimSpace(s), `"“” `)
	for _, q := range singleQuotePairs {
		if len(s) >= len(q[0])+len(q[1]) && strings.HasPrefix(s, q[0]) && strings.HasSuffix(s, q[1]) {
			s = strings.TrimSpace(s[len(q[0]) : len(s)-len(q[1])])
			break
		}
	}
	return s
}

func orPlaceholder(v, def string) string {
	if s := strings.TrimSpace(v); s != "" {
		return s
	}
	return def
}
