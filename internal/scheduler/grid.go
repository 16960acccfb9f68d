package scheduler

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// NoBreak marks a grid without a reserved break block.
const NoBreak = -1

// Grid is the fixed weekly structure every schedule is laid out on.
type Grid struct {
	Days       []string `json:"days" yaml:"days"`
	Hours      []string `json:"hours" yaml:"hours"`
	BreakIndex int      `json:"break_index" yaml:"break_index"`
}

// Slot is a single (day, hour-index) cell of the grid.
type Slot struct {
	Day       string `json:"day"`
	HourIndex int    `json:"hour_index"`
}

// DefaultGrid mirrors the school day the product shipped with: five days, seven
// blocks, the fourth block reserved for the break.
func DefaultGrid() Grid {
	return Grid{
		Days: []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"},
		Hours: []string{
			"08:00 - 09:00",
			"09:00 - 10:00",
			"10:00 - 11:00",
			"11:00 - 11:30 (Break)",
			"11:30 - 12:30",
			"12:30 - 13:30",
			"13:30 - 14:30",
		},
		BreakIndex: 3,
	}
}

// LoadGridFile reads a YAML grid definition.
func LoadGridFile(path string) (Grid, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Grid{}, fmt.Errorf("read grid file %s: %w", path, err)
	}
	grid := Grid{BreakIndex: NoBreak}
	if err := yaml.Unmarshal(raw, &grid); err != nil {
		return Grid{}, fmt.Errorf("decode grid file %s: %w", path, err)
	}
	if err := grid.Validate(); err != nil {
		return Grid{}, err
	}
	return grid, nil
}

// Validate rejects structurally malformed grids.
func (g Grid) Validate() error {
	if len(g.Days) == 0 {
		return fmt.Errorf("grid has no days")
	}
	if len(g.Hours) == 0 {
		return fmt.Errorf("grid has no hour blocks")
	}
	seen := make(map[string]struct{}, len(g.Days))
	for _, day := range g.Days {
		key := strings.TrimSpace(day)
		if key == "" {
			return fmt.Errorf("grid day label is empty")
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("grid day %q is listed twice", day)
		}
		seen[key] = struct{}{}
	}
	if g.BreakIndex != NoBreak && (g.BreakIndex < 0 || g.BreakIndex >= len(g.Hours)) {
		return fmt.Errorf("break index %d outside 0..%d", g.BreakIndex, len(g.Hours)-1)
	}
	return nil
}

// SlotCount is the number of cells in the grid, break included.
func (g Grid) SlotCount() int {
	return len(g.Days) * len(g.Hours)
}

// AssignableCount is the number of cells that may hold an assignment.
func (g Grid) AssignableCount() int {
	perDay := len(g.Hours)
	if g.BreakIndex != NoBreak && g.BreakIndex >= 0 && g.BreakIndex < perDay {
		perDay--
	}
	return len(g.Days) * perDay
}

// IsBreak reports whether the hour index is the reserved break block.
func (g Grid) IsBreak(hourIndex int) bool {
	return g.BreakIndex != NoBreak && hourIndex == g.BreakIndex
}

// DayPosition returns the ordinal of a day label.
func (g Grid) DayPosition(day string) (int, bool) {
	for i, label := range g.Days {
		if label == day {
			return i, true
		}
	}
	return 0, false
}

// Contains reports whether (day, hourIndex) is a cell of the grid (break included).
func (g Grid) Contains(day string, hourIndex int) bool {
	_, ok := g.DayPosition(day)
	return ok && hourIndex >= 0 && hourIndex < len(g.Hours)
}

// Slots enumerates every assignable cell in day-major order.
func (g Grid) Slots() []Slot {
	slots := make([]Slot, 0, g.AssignableCount())
	for _, day := range g.Days {
		for hour := range g.Hours {
			if g.IsBreak(hour) {
				continue
			}
			slots = append(slots, Slot{Day: day, HourIndex: hour})
		}
	}
	return slots
}

// HourLabel returns the label of an hour block or a numeric fallback.
func (g Grid) HourLabel(hourIndex int) string {
	if hourIndex >= 0 && hourIndex < len(g.Hours) {
		return g.Hours[hourIndex]
	}
	return fmt.Sprintf("#%d", hourIndex)
}

// cell is the dense index of (day position, hour) used internally by the solver.
func (g Grid) cell(dayPos, hour int) int {
	return dayPos*len(g.Hours) + hour
}

func (g Grid) slotOf(cell int) Slot {
	perDay := len(g.Hours)
	return Slot{Day: g.Days[cell/perDay], HourIndex: cell % perDay}
}

// rank orders cells hour-major (every day's first block, then every day's second
// block), which matches the day-spreading value order.
func (g Grid) rank(cell int) int {
	return (cell%len(g.Hours))*len(g.Days) + cell/len(g.Hours)
}

func (g Grid) dayOf(cell int) int {
	return cell / len(g.Hours)
}

// cellOf resolves a labelled slot into its dense index.
func (g Grid) cellOf(day string, hourIndex int) (int, bool) {
	pos, ok := g.DayPosition(day)
	if !ok || hourIndex < 0 || hourIndex >= len(g.Hours) {
		return 0, false
	}
	return g.cell(pos, hourIndex), true
}

// assignableCells lists dense indexes of every non-break cell, ascending.
func (g Grid) assignableCells() []int {
	cells := make([]int, 0, g.AssignableCount())
	for pos := range g.Days {
		for hour := range g.Hours {
			if g.IsBreak(hour) {
				continue
			}
			cells = append(cells, g.cell(pos, hour))
		}
	}
	return cells
}
