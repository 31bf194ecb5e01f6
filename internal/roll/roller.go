// Package roll evaluates dice expressions of the form NdS+K into completed
// rolls, producing the canvas payload the table renders.
package roll

import (
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"dicetable/server/internal/activity"
	"dicetable/server/internal/dice"
)

const (
	// MaxDiceCount caps a single expression; anything larger is rejected
	// outright rather than simulated.
	MaxDiceCount = 1000
	// VirtualThreshold is the largest quantity that still materializes
	// individual physics dice. Bigger rolls collapse into one virtual die
	// carrying the aggregate.
	VirtualThreshold = 10
)

var expressionPattern = regexp.MustCompile(`^(\d*)[dD](\d+)\s*(?:([+-])\s*(\d+))?$`)

// Roller is a thread-safe dice expression evaluator.
type Roller struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRoller seeds a roller. A zero seed falls back to the wall clock.
func NewRoller(seed int64) *Roller {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Roller{rng: rand.New(rand.NewSource(seed))}
}

// ProcessRoll evaluates one expression like "2d6", "d20", or "4d8+3".
func (r *Roller) ProcessRoll(expression string) (activity.Roll, error) {
	trimmed := strings.TrimSpace(expression)
	match := expressionPattern.FindStringSubmatch(trimmed)
	if match == nil {
		return activity.Roll{}, fmt.Errorf("cannot parse dice expression %q", expression)
	}

	count := 1
	if match[1] != "" {
		parsed, err := strconv.Atoi(match[1])
		if err != nil || parsed < 1 {
			return activity.Roll{}, fmt.Errorf("invalid dice count in %q", expression)
		}
		count = parsed
	}
	if count > MaxDiceCount {
		return activity.Roll{}, fmt.Errorf("dice count %d exceeds the limit of %d", count, MaxDiceCount)
	}

	sides, err := strconv.Atoi(match[2])
	if err != nil {
		return activity.Roll{}, fmt.Errorf("invalid die size in %q", expression)
	}
	kind := dice.Type("d" + match[2])
	if _, ok := dice.TableFor(kind); !ok {
		return activity.Roll{}, fmt.Errorf("unsupported die type d%d", sides)
	}

	modifier := 0
	if match[4] != "" {
		parsed, err := strconv.Atoi(match[4])
		if err != nil {
			return activity.Roll{}, fmt.Errorf("invalid modifier in %q", expression)
		}
		if match[3] == "-" {
			parsed = -parsed
		}
		modifier = parsed
	}

	rolls := make([]int, count)
	sum := 0
	r.mu.Lock()
	for i := range rolls {
		rolls[i] = r.rng.Intn(sides) + 1
		sum += rolls[i]
	}
	r.mu.Unlock()

	result := activity.Roll{
		Expression: trimmed,
		Rolls:      rolls,
		Total:      sum + modifier,
	}

	if count <= VirtualThreshold {
		result.Canvas = make([]activity.CanvasDie, count)
		for i, value := range rolls {
			result.Canvas[i] = activity.CanvasDie{
				DieID:   uuid.NewString(),
				DieType: string(kind),
				Result:  value,
			}
		}
		return result, nil
	}

	result.Canvas = []activity.CanvasDie{{
		DieID:        uuid.NewString(),
		DieType:      string(kind),
		Result:       sum,
		IsVirtual:    true,
		VirtualRolls: rolls,
	}}
	return result, nil
}
