package puzzle

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed clues.json
var cluesJSON []byte

// Clue is one catalog entry.
type Clue struct {
	Clue   string `json:"clue"`
	Length int    `json:"length"`
}

// Catalog is the clue set for the loaded puzzle. The answers live only
// in the UI; the robot sees clue text and fill patterns.
type Catalog struct {
	Title  string          `json:"title"`
	Across map[string]Clue `json:"across"`
	Down   map[string]Clue `json:"down"`
}

// LoadCatalog parses the embedded default puzzle.
func LoadCatalog() (Catalog, error) {
	return ParseCatalog(cluesJSON)
}

// ParseCatalog parses a clue catalog from JSON.
func ParseCatalog(data []byte) (Catalog, error) {
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse clue catalog: %w", err)
	}
	if len(c.Across) == 0 && len(c.Down) == 0 {
		return Catalog{}, fmt.Errorf("clue catalog is empty")
	}
	return c, nil
}

// Text returns the clue text for a reference, or "" if unknown.
func (c Catalog) Text(ref ClueRef) string {
	switch ref.Direction {
	case "across":
		return c.Across[ref.Number].Clue
	case "down":
		return c.Down[ref.Number].Clue
	}
	return ""
}
