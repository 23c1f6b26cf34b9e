package board

import "github.com/junh-oh/landrush/internal/models"

// Rent computes the rent currently owed on tiles[idx] under the board's
// ownership state. Raw rent is the tile's rent table indexed by level.
// The rent doubles if the tile hosts the world cup; for deeds it doubles
// again when the owner holds the full color group, and again when the owner
// holds every deed on the tile's board side. The multipliers compound.
func Rent(tiles []models.Tile, idx int) int {
	t := &tiles[idx]
	if t.Owner == "" || t.Level == 0 || len(t.Rent) == 0 {
		return 0
	}
	level := t.Level
	if level > len(t.Rent) {
		level = len(t.Rent)
	}
	rent := t.Rent[level-1]
	if t.WorldCup {
		rent *= 2
	}
	if t.Type == models.TileDeed {
		if OwnsGroup(tiles, t.Owner, t.Group) {
			rent *= 2
		}
		if OwnsLine(tiles, t.Owner, idx) {
			rent *= 2
		}
	}
	return rent
}

// TileValue is the liquidation price of a tile: purchase price plus building
// spend for deeds, bare price otherwise.
func TileValue(t *models.Tile) int {
	if t.Type == models.TileDeed && t.Level > 1 {
		return t.Price + t.BuildingCost*(t.Level-1)
	}
	return t.Price
}

// OwnsGroup reports whether owner holds every tile of the color group.
func OwnsGroup(tiles []models.Tile, owner, group string) bool {
	if group == "" {
		return false
	}
	found := false
	for i := range tiles {
		if tiles[i].Type != models.TileDeed || tiles[i].Group != group {
			continue
		}
		found = true
		if tiles[i].Owner != owner {
			return false
		}
	}
	return found
}

// OwnsLine reports whether owner holds every deed tile on the board side
// containing tiles[idx]. The board divides into four lines of len/4 tiles.
func OwnsLine(tiles []models.Tile, owner string, idx int) bool {
	side := len(tiles) / 4
	lo := (idx / side) * side
	found := false
	for i := lo; i < lo+side; i++ {
		if tiles[i].Type != models.TileDeed {
			continue
		}
		found = true
		if tiles[i].Owner != owner {
			return false
		}
	}
	return found
}

// MonopolyCount returns how many complete color groups the owner holds.
func MonopolyCount(tiles []models.Tile, owner string) int {
	groups := make(map[string]bool)
	for i := range tiles {
		if tiles[i].Type == models.TileDeed && tiles[i].Group != "" {
			groups[tiles[i].Group] = true
		}
	}
	count := 0
	for g := range groups {
		if OwnsGroup(tiles, owner, g) {
			count++
		}
	}
	return count
}

// OwnedIndexes lists the tile indexes held by the player, in board order.
func OwnedIndexes(tiles []models.Tile, owner string) []int {
	var idxs []int
	for i := range tiles {
		if tiles[i].Owner == owner {
			idxs = append(idxs, i)
		}
	}
	return idxs
}

// OwnedValue sums TileValue over every tile the player holds.
func OwnedValue(tiles []models.Tile, owner string) int {
	total := 0
	for i := range tiles {
		if tiles[i].Owner == owner {
			total += TileValue(&tiles[i])
		}
	}
	return total
}

// RecountRailroads sets the level of every railroad held by owner to the
// number of railroads that player holds. Called after a railroad changes
// hands so sibling rents stay consistent.
func RecountRailroads(tiles []models.Tile, owner string) {
	count := 0
	for i := range tiles {
		if tiles[i].Type == models.TileRailroad && tiles[i].Owner == owner {
			count++
		}
	}
	for i := range tiles {
		if tiles[i].Type == models.TileRailroad && tiles[i].Owner == owner {
			tiles[i].Level = count
		}
	}
}
