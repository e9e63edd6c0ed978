package alloc

import (
	"math"
	"slices"
)

// SizeClassConfig shapes FastAllocator's segregated free lists. All sizes are
// whole cell sizes, header included.
//
// Classes step linearly by Step from MinCell up to LinearMax, then widen
// geometrically by Growth until MaxClassed. Larger cells share one unsorted list.
type SizeClassConfig struct {
	Name string

	MinCell   int // Smallest class lower bound, normally minCellSize
	LinearMax int // End of the linear range
	Step      int // Width of each linear class

	MaxClassed int     // Cells at or above this size go to the large list
	Growth     float64 // Ratio between consecutive geometric classes, > 1
}

// Presets. Value blocks are usually a few words, so the linear range is kept short
// and nothing past one default page is classed.
var (
	// ConfigFineGrained keeps one list per 8-byte step up to 128 bytes.
	ConfigFineGrained = SizeClassConfig{
		Name:       "FineGrained",
		MinCell:    minCellSize,
		LinearMax:  128,
		Step:       8,
		MaxClassed: 4096,
		Growth:     1.5,
	}

	ConfigBalanced = SizeClassConfig{
		Name:       "Balanced",
		MinCell:    minCellSize,
		LinearMax:  256,
		Step:       16,
		MaxClassed: 4096,
		Growth:     1.5,
	}

	// ConfigCoarse trades tighter fits for fewer lists.
	ConfigCoarse = SizeClassConfig{
		Name:       "Coarse",
		MinCell:    minCellSize,
		LinearMax:  256,
		Step:       32,
		MaxClassed: 4096,
		Growth:     2,
	}

	DefaultConfig = ConfigBalanced
)

func (c SizeClassConfig) validate() bool {
	return c.MinCell > 0 && c.Step > 0 && c.LinearMax >= c.MinCell &&
		c.MaxClassed >= c.LinearMax && c.Growth > 1
}

// classTable maps a cell size to its free list. limits[i] is the largest size
// filed under class i; limits is strictly increasing.
type classTable struct {
	name   string
	limits []int
}

func newClassTable(c SizeClassConfig) *classTable {
	var limits []int
	lo := c.MinCell
	for ; lo < c.LinearMax; lo += c.Step {
		limits = append(limits, lo+c.Step-1)
	}
	for lo < c.MaxClassed {
		hi := min(max(int(math.Ceil(float64(lo)*c.Growth)), lo+1), c.MaxClassed)
		limits = append(limits, hi-1)
		lo = hi
	}
	return &classTable{name: c.Name, limits: limits}
}

// classOf returns the class for a cell of size bytes, or len(limits) when the
// cell belongs on the large list.
func (t *classTable) classOf(size int) int {
	i, _ := slices.BinarySearch(t.limits, size)
	return i
}

func (t *classTable) classes() int { return len(t.limits) }
