package reveal

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/protocol/internal/flow"
)

func TestAnswered_ThresholdBoundary(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{"empty", "", false},
		{"ten chars", "1234567890", false},
		{"eleven chars", "12345678901", true},
		{"ten chars padded", "   1234567890   ", false},
		{"eleven runes multibyte", "ééééééééééé", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Answered(tt.value))
		})
	}
}

func TestOnSet_ThresholdRevealsSuccessor(t *testing.T) {
	g := flow.Protocol()
	s := Initial(g)

	s, effects := OnSet(g, s, "q1", "1234567890")
	require.Empty(t, effects)
	require.False(t, s.Revealed("block-q2"))

	s, effects = OnSet(g, s, "q1", "12345678901")
	require.Equal(t, []Effect{{Kind: EffectReveal, ID: "block-q2"}}, effects)
	require.True(t, s.Revealed("block-q2"))
}

func TestOnSet_Idempotent(t *testing.T) {
	g := flow.Protocol()
	s := Initial(g)

	s, _ = OnSet(g, s, "q1", "a long enough answer")
	s, effects := OnSet(g, s, "q1", "another long answer")
	require.Empty(t, effects)
	require.True(t, s.Revealed("block-q2"))
}

func TestOnSet_TriggerRevealsContinue(t *testing.T) {
	g := flow.Protocol()
	s := Initial(g)

	s, effects := OnSet(g, s, "q4", "this is the unbearable truth")
	require.Equal(t, []Effect{{Kind: EffectAffordance, ID: "continue-excavation", Visible: true}}, effects)
	require.True(t, s.AffordanceVisible("continue-excavation"))
}

func TestOnSet_Monotonic(t *testing.T) {
	g := flow.Protocol()
	s := Initial(g)

	s, _ = OnSet(g, s, "q5", "an average Tuesday, every Tuesday")
	s, _ = OnSet(g, s, "q5", "")
	s, _ = OnSet(g, s, "q5", "short")
	require.True(t, s.Revealed("block-q6"))
}

func TestOnSet_DoesNotMutateInput(t *testing.T) {
	g := flow.Protocol()
	before := Initial(g)

	after, _ := OnSet(g, before, "q1", "a long enough answer")
	require.False(t, before.Revealed("block-q2"))
	require.True(t, after.Revealed("block-q2"))
}

func TestOnSet_UnknownKeyIgnored(t *testing.T) {
	g := flow.Protocol()
	s := Initial(g)

	next, effects := OnSet(g, s, "interrupt-1", "09:00 and a long tail")
	require.Empty(t, effects)
	require.Equal(t, s.RevealedBlocks(), next.RevealedBlocks())
}

func TestRestore_Fidelity(t *testing.T) {
	g := flow.Protocol()

	s, _ := Restore(g, map[string]string{
		"q1": "answer of length 20",
		"q2": "",
	})
	require.True(t, s.Revealed("block-q1"))
	require.True(t, s.Revealed("block-q2"))
	require.False(t, s.Revealed("block-q3"))
}

func TestRestore_WhitespaceValueRevealsOwnBlock(t *testing.T) {
	g := flow.Protocol()

	s, _ := Restore(g, map[string]string{"q3": "   "})
	require.True(t, s.Revealed("block-q3"))
	require.False(t, s.Revealed("block-q4"))
}

func TestRestore_MatchesIncremental(t *testing.T) {
	g := flow.Protocol()
	values := map[string]string{
		"q1":                   "first answer long enough",
		"q2":                   "second answer long enough",
		"q3":                   "short",
		"q5":                   "five years of Tuesdays",
		"q6":                   "ten years and nothing",
		"q7":                   "the cost was everything",
		"q8":                   "my uncle, sadly enough",
		"antivision-statement": "I refuse to drift another decade",
	}

	incremental := Initial(g)
	for _, key := range g.Keys() {
		if v, ok := values[key]; ok {
			incremental, _ = OnSet(g, incremental, key, v)
		}
	}

	restored, _ := Restore(g, values)
	require.Equal(t, incremental.RevealedBlocks(), restored.RevealedBlocks())
	require.Equal(t, incremental.VisibleAffordances(), restored.VisibleAffordances())
	require.True(t, restored.AffordanceVisible("continue-antivision"))
}

func TestReset_OnlyEntryBlocksAndBegin(t *testing.T) {
	g := flow.Protocol()

	s, effects := Reset(g)
	require.Equal(t, []string{"block-q1", "block-q5", "block-q9", "block-s1"}, s.RevealedBlocks())
	require.Equal(t, []string{"begin"}, s.VisibleAffordances())

	hidden := 0
	for _, e := range effects {
		if e.Kind == EffectHide {
			hidden++
		}
	}
	require.Equal(t, len(g.Blocks())-4, hidden)
}

func TestRepaint_CoversEveryBlockAndAffordance(t *testing.T) {
	g := flow.Journey()
	s := Initial(g)

	effects := s.Repaint(g)
	require.Len(t, effects, len(g.Blocks())+len(g.Affordances()))
}
