// Package board loads static board definitions and computes derived rent
// under current ownership state. The catalog is read-only after load; per
// match tile state lives on the Match record.
package board

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/sirupsen/logrus"

	"github.com/junh-oh/landrush/internal/models"
)

//go:embed schema.json
var schemaSrc string

//go:embed boards/*.json
var defaultBoards embed.FS

// Definition is one validated board template.
type Definition struct {
	Name          string        `json:"name"`
	Salary        int           `json:"salary"`
	StartMoney    int           `json:"startMoney"`
	WorldTourCost int           `json:"worldTourCost"`
	PrisonTerm    int           `json:"prisonTerm"`
	Tiles         []models.Tile `json:"tiles"`
}

// NewTiles clones the template tile list for a match to own and mutate.
func (d *Definition) NewTiles() []models.Tile {
	tiles := make([]models.Tile, len(d.Tiles))
	copy(tiles, d.Tiles)
	for i := range tiles {
		if tiles[i].Rent != nil {
			tiles[i].Rent = append([]int(nil), tiles[i].Rent...)
		}
	}
	return tiles
}

// FindIndex returns the index of the first tile of the given type, or -1.
func (d *Definition) FindIndex(t models.TileType) int {
	for i := range d.Tiles {
		if d.Tiles[i].Type == t {
			return i
		}
	}
	return -1
}

// Catalog holds every successfully loaded board definition.
type Catalog struct {
	boards map[string]*Definition
	schema *jsonschema.Schema
	log    *logrus.Entry
}

// Load builds a catalog from the embedded default boards. A malformed board
// is logged and skipped; the rest still load.
func Load(log *logrus.Logger) (*Catalog, error) {
	schema, err := jsonschema.CompileString("schema.json", schemaSrc)
	if err != nil {
		return nil, fmt.Errorf("compile board schema: %w", err)
	}
	c := &Catalog{
		boards: make(map[string]*Definition),
		schema: schema,
		log:    log.WithField("component", "board"),
	}
	entries, err := defaultBoards.ReadDir("boards")
	if err != nil {
		return nil, fmt.Errorf("read embedded boards: %w", err)
	}
	for _, e := range entries {
		raw, err := defaultBoards.ReadFile("boards/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read embedded board %s: %w", e.Name(), err)
		}
		c.add(e.Name(), raw)
	}
	if len(c.boards) == 0 {
		return nil, fmt.Errorf("no valid board definitions loaded")
	}
	return c, nil
}

// LoadDir adds or overrides boards from *.json files in dir.
func (c *Catalog) LoadDir(dir string) error {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return err
	}
	for _, p := range paths {
		raw, err := os.ReadFile(p)
		if err != nil {
			c.log.WithError(err).WithField("file", p).Error("reading board file")
			continue
		}
		c.add(filepath.Base(p), raw)
	}
	return nil
}

// add validates and registers a single definition; failures skip that board.
func (c *Catalog) add(source string, raw []byte) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		c.log.WithError(err).WithField("board", source).Error("board definition is not valid JSON, skipping")
		return
	}
	if err := c.schema.Validate(doc); err != nil {
		c.log.WithError(err).WithField("board", source).Error("board definition failed validation, skipping")
		return
	}
	var def Definition
	if err := json.Unmarshal(raw, &def); err != nil {
		c.log.WithError(err).WithField("board", source).Error("board definition did not decode, skipping")
		return
	}
	if len(def.Tiles)%4 != 0 {
		c.log.WithField("board", source).WithField("tiles", len(def.Tiles)).
			Error("tile count must be divisible by four, skipping")
		return
	}
	if def.StartMoney == 0 {
		def.StartMoney = 2000
	}
	if def.PrisonTerm == 0 {
		def.PrisonTerm = 2
	}
	placeTiles(def.Tiles)
	c.boards[def.Name] = &def
	c.log.WithFields(logrus.Fields{"board": def.Name, "tiles": len(def.Tiles)}).Info("board loaded")
}

// placeTiles assigns each tile a perimeter (x, y) coordinate from its index
// and the board side length.
func placeTiles(tiles []models.Tile) {
	side := len(tiles) / 4
	for i := range tiles {
		off := i % side
		switch i / side {
		case 0:
			tiles[i].X, tiles[i].Y = off, 0
		case 1:
			tiles[i].X, tiles[i].Y = side, off
		case 2:
			tiles[i].X, tiles[i].Y = side-off, side
		case 3:
			tiles[i].X, tiles[i].Y = 0, side-off
		}
	}
}

// Board returns a definition by name.
func (c *Catalog) Board(name string) (*Definition, bool) {
	d, ok := c.boards[name]
	return d, ok
}

// Names lists the loaded board names, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.boards))
	for n := range c.boards {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
