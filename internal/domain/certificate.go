package domain

import (
	"fmt"
	"strings"
	"time"
)

// FallbackTemplateID is recorded on certificates issued while no template is marked default
const FallbackTemplateID = "default"

// CertificateLayout is the overall arrangement of a certificate template
type CertificateLayout string

const (
	LayoutClassic    CertificateLayout = "classic"
	LayoutModern     CertificateLayout = "modern"
	LayoutMinimalist CertificateLayout = "minimalist"
)

// FieldType says what a template field is filled with
type FieldType string

const (
	FieldText      FieldType = "text"
	FieldName      FieldType = "name"
	FieldDate      FieldType = "date"
	FieldCourse    FieldType = "course"
	FieldDuration  FieldType = "duration"
	FieldScore     FieldType = "score"
	FieldSignature FieldType = "signature"
)

// Position is a field anchor in percent of the page width and height
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CertificateField is one positioned element on a template
type CertificateField struct {
	ID         string    `json:"id"`
	Type       FieldType `json:"type"`
	Label      string    `json:"label,omitempty"`
	Value      string    `json:"value,omitempty"`
	FontSize   int       `json:"font_size"`
	FontWeight string    `json:"font_weight"`
	Color      string    `json:"color"`
	Alignment  string    `json:"alignment"`
	Position   Position  `json:"position"`
	Enabled    bool      `json:"enabled"`
}

// CertificateTemplate describes how completion certificates look. At most one
// template is the default; certificates fall back to FallbackTemplate otherwise.
type CertificateTemplate struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	BackgroundColor string             `json:"background_color"`
	BorderColor     string             `json:"border_color"`
	PrimaryColor    string             `json:"primary_color"`
	SecondaryColor  string             `json:"secondary_color"`
	FontFamily      string             `json:"font_family"`
	LogoURL         string             `json:"logo_url,omitempty"`
	Layout          CertificateLayout  `json:"layout"`
	Fields          []CertificateField `json:"fields"`
	IsDefault       bool               `json:"is_default"`
	CreatedBy       string             `json:"created_by,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
}

// Validate checks the template fields the configurator requires
func (t *CertificateTemplate) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("template ID cannot be empty")
	}
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("template name cannot be empty")
	}

	switch t.Layout {
	case LayoutClassic, LayoutModern, LayoutMinimalist:
	default:
		return fmt.Errorf("unknown layout %q", t.Layout)
	}

	switch t.FontFamily {
	case "serif", "sans-serif", "cursive":
	default:
		return fmt.Errorf("unknown font family %q", t.FontFamily)
	}

	seen := make(map[string]bool, len(t.Fields))
	for _, f := range t.Fields {
		if f.ID == "" {
			return fmt.Errorf("template field ID cannot be empty")
		}
		if seen[f.ID] {
			return fmt.Errorf("duplicate template field %q", f.ID)
		}
		seen[f.ID] = true

		switch f.Type {
		case FieldText, FieldName, FieldDate, FieldCourse, FieldDuration, FieldScore, FieldSignature:
		default:
			return fmt.Errorf("field %s has unknown type %q", f.ID, f.Type)
		}
		if f.Position.X < 0 || f.Position.X > 100 || f.Position.Y < 0 || f.Position.Y > 100 {
			return fmt.Errorf("field %s is positioned off the page", f.ID)
		}
	}

	return nil
}

// FallbackTemplate is the built-in classic certificate used when no template is the default
func FallbackTemplate() *CertificateTemplate {
	field := func(id string, typ FieldType, value string, size int, weight, color string, y float64) CertificateField {
		return CertificateField{
			ID:         id,
			Type:       typ,
			Value:      value,
			FontSize:   size,
			FontWeight: weight,
			Color:      color,
			Alignment:  "center",
			Position:   Position{X: 50, Y: y},
			Enabled:    true,
		}
	}

	return &CertificateTemplate{
		ID:              FallbackTemplateID,
		Name:            "Default Template",
		BackgroundColor: "#ffffff",
		BorderColor:     "#2563eb",
		PrimaryColor:    "#1e40af",
		SecondaryColor:  "#64748b",
		FontFamily:      "serif",
		Layout:          LayoutClassic,
		IsDefault:       true,
		Fields: []CertificateField{
			field("title", FieldText, "Certificate of Completion", 36, "bold", "#1e40af", 15),
			field("subtitle", FieldText, "This certifies that", 18, "normal", "#64748b", 30),
			field("name", FieldName, "[Student Name]", 32, "bold", "#000000", 42),
			field("course", FieldCourse, "[Course Name]", 20, "normal", "#374151", 55),
			field("date", FieldDate, "[Date]", 16, "normal", "#6b7280", 70),
		},
	}
}

// Certificate is issued once per user and completed training module
type Certificate struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	UserName         string    `json:"user_name"`
	ModuleID         string    `json:"module_id"`
	ModuleName       string    `json:"module_name"`
	CompletedAt      time.Time `json:"completed_at"`
	TemplateID       string    `json:"template_id"`
	VerificationCode string    `json:"verification_code"`
	IssuedAt         time.Time `json:"issued_at"`
}
