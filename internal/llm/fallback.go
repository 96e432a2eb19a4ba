package llm

import "strings"

// Canned texts used whenever the remote backend is unavailable or fails.
const (
	FallbackArtisanBio         = "Passionate artisan creating beautiful handcrafted pieces with traditional techniques passed down through generations. Each creation tells a story of cultural heritage and artistic dedication."
	FallbackProductDescription = "Exquisite handcrafted item made with premium materials and traditional techniques. Perfect for those who appreciate authentic artisanal quality and unique design."
	FallbackStoryTitle         = "Artisan's Journey"
	FallbackMarketing          = "Discover authentic handcrafted treasures that celebrate traditional artistry and cultural heritage."
	FallbackDefault            = "Beautiful handcrafted creation that embodies traditional artistry and cultural heritage."
)

// fallbackRules 顺序即优先级
var fallbackRules = []struct {
	keywords []string
	text     string
}{
	{[]string{"bio", "artisan"}, FallbackArtisanBio},
	{[]string{"product", "description"}, FallbackProductDescription},
	{[]string{"title"}, FallbackStoryTitle},
	{[]string{"marketing", "campaign"}, FallbackMarketing},
}

// Fallback 根据提示词关键字选择确定性的兜底文本，永不为空
func Fallback(prompt string) string {
	lower := strings.ToLower(prompt)
	for _, rule := range fallbackRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.text
			}
		}
	}
	return FallbackDefault
}
