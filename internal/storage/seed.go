// internal/storage/seed.go
package storage

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// SeedFile 示例数据文件（TOML）
type SeedFile struct {
	Artisans []SeedArtisan `toml:"artisans"`
}

type SeedArtisan struct {
	Name               string        `toml:"name"`
	CraftType          string        `toml:"craft_type"`
	Location           string        `toml:"location"`
	ExperienceYears    int           `toml:"experience_years"`
	CulturalBackground string        `toml:"cultural_background"`
	CraftHistory       string        `toml:"craft_history"`
	Persona            SeedPersona   `toml:"persona"`
	Products           []SeedProduct `toml:"products"`
}

type SeedPersona struct {
	Tone               string `toml:"tone"`
	Style              string `toml:"style"`
	StorytellingDepth  int    `toml:"storytelling_depth"`
	CommunicationStyle string `toml:"communication_style"`
	LanguagePreference string `toml:"language_preference"`
}

type SeedProduct struct {
	Name                 string  `toml:"name"`
	Description          string  `toml:"description"`
	Price                float64 `toml:"price"`
	StockQuantity        int     `toml:"stock_quantity"`
	Category             string  `toml:"category"`
	Materials            string  `toml:"materials"`
	CulturalSignificance string  `toml:"cultural_significance"`
	Status               string  `toml:"status"`
}

// LoadSeedFile 解析种子文件，拒绝未知字段
func LoadSeedFile(path string) (*SeedFile, error) {
	var seed SeedFile
	meta, err := toml.DecodeFile(path, &seed)
	if err != nil {
		return nil, fmt.Errorf("解析种子文件失败: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("seed file has unknown keys: %v", undecoded)
	}
	for i, a := range seed.Artisans {
		if a.Name == "" || a.CraftType == "" || a.Location == "" {
			return nil, fmt.Errorf("artisan #%d: name, craft_type and location are required", i+1)
		}
		for j, p := range a.Products {
			if p.Name == "" || p.Price <= 0 {
				return nil, fmt.Errorf("artisan %q product #%d: name and positive price are required", a.Name, j+1)
			}
		}
	}
	return &seed, nil
}
