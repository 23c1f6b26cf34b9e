package models

// TileType discriminates the board tile variants. Landing and pre-roll
// behavior dispatches exhaustively on this tag.
type TileType string

const (
	TileStart     TileType = "start"
	TileDeed      TileType = "deed"     // buyable city lot, improvable with buildings
	TileRailroad  TileType = "railroad" // level tracks how many railroads the owner holds
	TileCompany   TileType = "company"  // utility, fee scales with the dice
	TileTax       TileType = "tax"
	TileChance    TileType = "chance"
	TilePrison    TileType = "prison" // visiting only
	TilePolice    TileType = "police" // go to prison
	TileWorldTour TileType = "worldtour"
	TileWorldCup  TileType = "worldcup"
)

// Tile is one board square: immutable template fields plus the dynamic
// ownership state mutated during play.
//
// Invariants: Owner is "" or a player id still seated in the match;
// Owner == "" implies Level == 0; at most one tile on the board carries
// the WorldCup flag.
type Tile struct {
	Name         string   `json:"name"`
	Type         TileType `json:"type"`
	Group        string   `json:"group,omitempty"` // color group, deeds only
	Price        int      `json:"price,omitempty"`
	Rent         []int    `json:"rent,omitempty"` // indexed by Level-1
	BuildingCost int      `json:"buildingCost,omitempty"`
	TaxRate      float64  `json:"taxRate,omitempty"`
	Multiplier   int      `json:"multiplier,omitempty"` // company fee per dice pip
	X            int      `json:"x"`
	Y            int      `json:"y"`

	Owner    string `json:"owner,omitempty"`
	Level    int    `json:"level,omitempty"`
	WorldCup bool   `json:"worldcup,omitempty"`
}

// Ownable reports whether the tile kind can be held by a player.
func (t *Tile) Ownable() bool {
	switch t.Type {
	case TileDeed, TileRailroad, TileCompany:
		return true
	}
	return false
}

// MaxLevel is the highest building level a deed supports; 0 for other kinds.
func (t *Tile) MaxLevel() int {
	if t.Type != TileDeed {
		return 0
	}
	return len(t.Rent)
}
