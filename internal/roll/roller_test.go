package roll

import (
	"testing"
)

func TestProcessRollSingleDie(t *testing.T) {
	r := NewRoller(1)

	result, err := r.ProcessRoll("d20")
	if err != nil {
		t.Fatalf("ProcessRoll failed: %v", err)
	}
	if len(result.Rolls) != 1 {
		t.Fatalf("expected one roll, got %d", len(result.Rolls))
	}
	if result.Rolls[0] < 1 || result.Rolls[0] > 20 {
		t.Fatalf("d20 roll out of range: %d", result.Rolls[0])
	}
	if result.Total != result.Rolls[0] {
		t.Fatalf("total %d should equal the single roll %d", result.Total, result.Rolls[0])
	}
	if len(result.Canvas) != 1 || result.Canvas[0].DieType != "d20" {
		t.Fatalf("expected one d20 canvas die, got %+v", result.Canvas)
	}
	if result.Canvas[0].IsVirtual {
		t.Fatalf("a single die should not be virtual")
	}
}

func TestProcessRollMultipleWithModifier(t *testing.T) {
	r := NewRoller(7)

	result, err := r.ProcessRoll("3d6+2")
	if err != nil {
		t.Fatalf("ProcessRoll failed: %v", err)
	}
	if len(result.Rolls) != 3 {
		t.Fatalf("expected three rolls, got %d", len(result.Rolls))
	}
	sum := 0
	for _, value := range result.Rolls {
		if value < 1 || value > 6 {
			t.Fatalf("d6 roll out of range: %d", value)
		}
		sum += value
	}
	if result.Total != sum+2 {
		t.Fatalf("total %d should be rolls %d plus modifier 2", result.Total, sum)
	}
	if len(result.Canvas) != 3 {
		t.Fatalf("expected three canvas dice, got %d", len(result.Canvas))
	}
}

func TestProcessRollNegativeModifier(t *testing.T) {
	r := NewRoller(7)

	result, err := r.ProcessRoll("2d4-1")
	if err != nil {
		t.Fatalf("ProcessRoll failed: %v", err)
	}
	sum := result.Rolls[0] + result.Rolls[1]
	if result.Total != sum-1 {
		t.Fatalf("total %d should be rolls %d minus 1", result.Total, sum)
	}
}

func TestProcessRollLargeQuantityGoesVirtual(t *testing.T) {
	r := NewRoller(3)

	result, err := r.ProcessRoll("100d6")
	if err != nil {
		t.Fatalf("ProcessRoll failed: %v", err)
	}
	if len(result.Rolls) != 100 {
		t.Fatalf("expected 100 rolls, got %d", len(result.Rolls))
	}
	if len(result.Canvas) != 1 {
		t.Fatalf("expected one aggregate canvas die, got %d", len(result.Canvas))
	}
	die := result.Canvas[0]
	if !die.IsVirtual {
		t.Fatalf("expected the aggregate die to be virtual")
	}
	if len(die.VirtualRolls) != 100 {
		t.Fatalf("expected 100 virtual rolls, got %d", len(die.VirtualRolls))
	}
	if die.Result != result.Total {
		t.Fatalf("virtual die result %d should match total %d", die.Result, result.Total)
	}
}

func TestProcessRollRejectsBadExpressions(t *testing.T) {
	r := NewRoller(1)

	for _, expression := range []string{"", "banana", "2d", "d7", "0d6", "2000d6", "2d6++1"} {
		if _, err := r.ProcessRoll(expression); err == nil {
			t.Fatalf("expected %q to be rejected", expression)
		}
	}
}
