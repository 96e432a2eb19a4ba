// internal/models/artisan.go
package models

import "time"

type Artisan struct {
	ID                 string    `json:"id" db:"id"`
	Name               string    `json:"name" db:"name"`
	CraftType          string    `json:"craft_type" db:"craft_type"`
	Location           string    `json:"location" db:"location"`
	ExperienceYears    int       `json:"experience_years,omitempty" db:"experience_years"`
	CulturalBackground string    `json:"cultural_background,omitempty" db:"cultural_background"`
	CraftHistory       string    `json:"craft_history,omitempty" db:"craft_history"`
	Bio                string    `json:"bio" db:"bio"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`

	Persona *ArtisanPersona `json:"persona,omitempty" db:"-"`
}

// ArtisanPersona 持久化的人设参数与生成的简介（一位工匠一条）
type ArtisanPersona struct {
	ArtisanID          string    `json:"artisan_id" db:"artisan_id"`
	Tone               string    `json:"tone" db:"tone"`
	Style              string    `json:"style" db:"style"`
	StorytellingDepth  int       `json:"storytelling_depth" db:"storytelling_depth"`
	CommunicationStyle string    `json:"communication_style" db:"communication_style"`
	LanguagePreference string    `json:"language_preference" db:"language_preference"`
	GeneratedBio       string    `json:"generated_bio" db:"generated_bio"`
	Provenance         string    `json:"provenance" db:"provenance"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
}
