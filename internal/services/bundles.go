// internal/services/bundles.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Corphon/PersonaMarket/internal/persona"
	"github.com/Corphon/PersonaMarket/internal/utils"
)

// DefaultBundleTheme 未指定主题时使用
const DefaultBundleTheme = "complementary"

const (
	defaultBundleName   = "Artisan's Collection"
	defaultBundleReason = "Handpicked pieces that celebrate traditional craftsmanship and cultural heritage."
	maxBundles          = 3
)

// ProductBundle 一组建议一起售卖的商品
type ProductBundle struct {
	Name     string   `json:"name"`
	Products []string `json:"products"`
	Reason   string   `json:"reason"`
}

// BundleSuggestions 商品组合建议
type BundleSuggestions struct {
	Bundles    []ProductBundle    `json:"bundles"`
	Theme      string             `json:"theme"`
	Provenance persona.Provenance `json:"provenance"`
	Kind       persona.Kind       `json:"kind"`
}

// GenerateProductBundles 按主题把商品分组。模型输出无法解析为组合时使用按类别分组的本地结果
func (s *PersonaService) GenerateProductBundles(ctx context.Context, products []persona.EntityFacts, theme string) BundleSuggestions {
	theme = strings.TrimSpace(theme)
	if theme == "" {
		theme = DefaultBundleTheme
	}
	out := BundleSuggestions{Theme: theme, Provenance: persona.ProvenanceTemplateFallback, Kind: persona.KindProductBundles}

	names := productNames(products)
	// 少于两件商品无从组合，不调用后端
	if len(names) < 2 {
		out.Bundles = DefaultBundles(products, theme)
		return out
	}

	var list strings.Builder
	for _, p := range products {
		if strings.TrimSpace(p.Name) == "" {
			continue
		}
		fmt.Fprintf(&list, "- %s (%s", strings.TrimSpace(p.Name), p.CategoryOr())
		if m := strings.TrimSpace(p.Materials); m != "" {
			fmt.Fprintf(&list, ", %s", m)
		}
		list.WriteString(")\n")
	}

	prompt := fmt.Sprintf(`Suggest product bundles for a handmade marketplace.

Theme: %s
Products:
%s
Group these products into 1-%d bundles that fit the theme. Each bundle needs at least two products.
Respond with JSON only: an array of objects with "name", "products" (exact names from the list) and "reason".`,
		theme, list.String(), maxBundles)

	gen := s.backend.Generate(ctx, prompt, 400, 0.7)
	if gen.Generative {
		if bundles := parseBundles(gen.Text, names); len(bundles) > 0 {
			out.Bundles = bundles
			out.Provenance = persona.ProvenanceGenerative
			return out
		}
		s.recordDowngrade(gen.Provider)
		s.logger.Warn("generated bundles unusable, using local grouping", utils.Fields{"provider": gen.Provider})
	}

	out.Bundles = DefaultBundles(products, theme)
	return out
}

// DefaultBundles 确定性的本地分组：同类别商品一组，再加一组跨类别的主题组合
func DefaultBundles(products []persona.EntityFacts, theme string) []ProductBundle {
	if strings.TrimSpace(theme) == "" {
		theme = DefaultBundleTheme
	}
	names := productNames(products)
	if len(names) < 2 {
		return []ProductBundle{{Name: defaultBundleName, Products: names, Reason: defaultBundleReason}}
	}

	caser := cases.Title(language.English)
	var order []string
	byCategory := map[string][]string{}
	for _, p := range products {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			continue
		}
		cat := strings.ToLower(p.CategoryOr())
		if _, seen := byCategory[cat]; !seen {
			order = append(order, cat)
		}
		byCategory[cat] = append(byCategory[cat], name)
	}

	var bundles []ProductBundle
	for _, cat := range order {
		if len(byCategory[cat]) < 2 || len(bundles) == maxBundles {
			continue
		}
		bundles = append(bundles, ProductBundle{
			Name:     caser.String(cat) + " Collection",
			Products: byCategory[cat],
			Reason:   fmt.Sprintf("Pieces from the same %s tradition, made to be displayed together.", cat),
		})
	}

	if len(order) >= 2 && len(bundles) < maxBundles {
		mixed := make([]string, 0, len(order))
		for _, cat := range order {
			mixed = append(mixed, byCategory[cat][0])
		}
		bundles = append(bundles, ProductBundle{
			Name:     caser.String(theme) + " Set",
			Products: mixed,
			Reason:   fmt.Sprintf("A %s set pairing different crafts from our makers.", theme),
		})
	}
	return bundles
}

// parseBundles 解析模型返回的 JSON 数组；只保留输入中存在的商品名，少于两件的组合丢弃
func parseBundles(text string, known []string) []ProductBundle {
	start, end := strings.Index(text, "["), strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil
	}
	var raw []ProductBundle
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil
	}

	canonical := make(map[string]string, len(known))
	for _, n := range known {
		canonical[strings.ToLower(n)] = n
	}

	var bundles []ProductBundle
	for _, b := range raw {
		name := strings.TrimSpace(b.Name)
		if name == "" {
			continue
		}
		seen := map[string]bool{}
		var items []string
		for _, p := range b.Products {
			n, ok := canonical[strings.ToLower(strings.TrimSpace(p))]
			if !ok || seen[n] {
				continue
			}
			seen[n] = true
			items = append(items, n)
		}
		if len(items) < 2 {
			continue
		}
		bundles = append(bundles, ProductBundle{Name: name, Products: items, Reason: strings.TrimSpace(b.Reason)})
		if len(bundles) == maxBundles {
			break
		}
	}
	return bundles
}

func productNames(products []persona.EntityFacts) []string {
	names := make([]string, 0, len(products))
	for _, p := range products {
		if n := strings.TrimSpace(p.Name); n != "" {
			names = append(names, n)
		}
	}
	return names
}
