package tasks

import "fmt"

type Kind string

const (
	KindPlow    Kind = "PLOW"
	KindPlant   Kind = "PLANT"
	KindWater   Kind = "WATER"
	KindHarvest Kind = "HARVEST"
)

// Kinds lists every work kind in eligibility priority order.
var Kinds = []Kind{KindPlow, KindPlant, KindWater, KindHarvest}

func (k Kind) Valid() bool {
	switch k {
	case KindPlow, KindPlant, KindWater, KindHarvest:
		return true
	default:
		return false
	}
}

func (k Kind) String() string { return string(k) }

func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown work kind %q", s)
	}
	return k, nil
}

// Cell addresses one field by its 1-indexed row and column.
type Cell struct{ Row, Col int }
