package grading

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func raw(s string) json.RawMessage { return json.RawMessage(s) }

func compare(t *testing.T, reg *Registry, typ ItemType, spec, submitted string) Outcome {
	t.Helper()
	cmp, err := reg.Comparator(typ)
	require.NoError(t, err)
	o, err := cmp(raw(spec), raw(submitted))
	require.NoError(t, err)
	return o
}

func TestMultipleSelectRequiresExactSet(t *testing.T) {
	reg := NewRegistry()
	spec := `{"options":["a","b","c"],"correctIndices":[0,2]}`

	cases := map[string]bool{
		`[0,2]`:   true,
		`[2,0]`:   true,
		`[0]`:     false,
		`[0,1,2]`: false,
		`[]`:      false,
	}
	for submitted, want := range cases {
		o := compare(t, reg, MultipleSelect, spec, submitted)
		assert.Equal(t, want, o.Correct, "submitted %s", submitted)
	}
}

func TestMultipleSelectRejectsBadShapes(t *testing.T) {
	reg := NewRegistry()
	cmp, err := reg.Comparator(MultipleSelect)
	require.NoError(t, err)
	spec := raw(`{"options":["a","b","c"],"correctIndices":[0,2]}`)

	for _, bad := range []string{`[0,0]`, `[3]`, `[-1]`, `"0"`, `[0.5]`} {
		_, err := cmp(spec, raw(bad))
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve, "submitted %s", bad)
	}
}

func TestChoiceAndTrueFalse(t *testing.T) {
	reg := NewRegistry()
	assert.True(t, compare(t, reg, MultipleChoice, `{"options":["x","y","z"],"correctIndex":1}`, `1`).Correct)
	assert.False(t, compare(t, reg, MultipleChoice, `{"options":["x","y","z"],"correctIndex":1}`, `2`).Correct)

	assert.True(t, compare(t, reg, TrueFalse, `{"correct":true}`, `1`).Correct)
	assert.True(t, compare(t, reg, TrueFalse, `{"correct":true}`, `true`).Correct)
	assert.False(t, compare(t, reg, TrueFalse, `{"correct":true}`, `0`).Correct)
	assert.True(t, compare(t, reg, TrueFalse, `{"correct":false}`, `false`).Correct)
}

func TestFillBlank(t *testing.T) {
	reg := NewRegistry()
	spec := `{"blanks":["Paris",["H2O","water"]]}`

	assert.True(t, compare(t, reg, FillBlank, spec, `["  paris ","WATER"]`).Correct)
	o := compare(t, reg, FillBlank, spec, `["Paris","ice"]`)
	assert.False(t, o.Correct)
	assert.Equal(t, "1/2 blanks correct", o.Detail)
	assert.False(t, compare(t, reg, FillBlank, spec, `["Paris"]`).Correct)

	cs := `{"blanks":["Paris"],"caseSensitive":true}`
	assert.False(t, compare(t, reg, FillBlank, cs, `["paris"]`).Correct)
	assert.True(t, compare(t, reg, FillBlank, cs, `[" Paris"]`).Correct)
}

func TestShortAnswerWithoutExactMatchIsPending(t *testing.T) {
	reg := NewRegistry()
	o := compare(t, reg, ShortAnswer, `{"acceptedAnswers":["photosynthesis"]}`, `"photosynthesis"`)
	assert.True(t, o.Pending)
	assert.False(t, o.Correct)

	o = compare(t, reg, ShortAnswer, `{"exactMatch":true,"acceptedAnswers":["photosynthesis"]}`, `"Photosynthesis "`)
	assert.False(t, o.Pending)
	assert.True(t, o.Correct)
}

func TestMatchingNormalizesIDs(t *testing.T) {
	reg := NewRegistry()
	spec := `{"correctMatch":{"1":3,"2":"b"}}`

	o := compare(t, reg, Matching, spec, `{"1":"3","2":"b"}`)
	assert.True(t, o.Correct)
	assert.Equal(t, 1.0, o.Fraction)

	o = compare(t, reg, Matching, spec, `{"1":3.0,"2":"a"}`)
	assert.False(t, o.Correct)
	assert.Equal(t, 0.5, o.Fraction)
}

func TestSequencePositions(t *testing.T) {
	reg := NewRegistry()
	items := []Item{{ID: "seq", Type: Sequence, Points: 1, Spec: raw(`{"order":["A","B","C"]}`)}}
	answers, err := reg.ValidateResponses(items, map[string]json.RawMessage{"seq": raw(`["B","A","C"]`)})
	require.NoError(t, err)

	is, err := reg.ScoreInteractive(items, answers)
	require.NoError(t, err)
	assert.Equal(t, 33.33, is.Score)
	assert.Equal(t, "1/3 items in position", is.PerElement[0].Detail)
	assert.Equal(t, 0.0, is.PointsEarned)
}

func TestDragDropAndHotspot(t *testing.T) {
	reg := NewRegistry()
	dd := `{"targets":["fruit","veg"],"placements":{"apple":0,"carrot":1,"pear":0,"leek":1}}`
	o := compare(t, reg, DragDrop, dd, `{"apple":0,"carrot":0,"pear":0}`)
	assert.Equal(t, 0.5, o.Fraction)

	hs := `{"regions":[{"correct":true},{"correct":false},{"correct":true},{"correct":true}]}`
	o = compare(t, reg, Hotspot, hs, `[0,1,2]`)
	assert.InDelta(t, 2.0/3.0, o.Fraction, 1e-9)
	o = compare(t, reg, Hotspot, hs, `[1]`)
	assert.Equal(t, 0.0, o.Fraction)
	o = compare(t, reg, Hotspot, hs, `[0,1,2,3]`)
	assert.True(t, o.Correct)
}

func TestTimelineTolerance(t *testing.T) {
	reg := NewRegistry()
	exact := `{"events":{"moon":"1969-07-20","columbus":1492}}`
	approx := `{"events":{"moon":"1969-07-20","columbus":1492},"allowApproximate":true}`
	submitted := `{"moon":"1970","columbus":"1492-10-12T00:00:00Z"}`

	assert.Equal(t, 0.5, compare(t, reg, Timeline, exact, submitted).Fraction)
	assert.True(t, compare(t, reg, Timeline, approx, submitted).Correct)
	assert.Equal(t, 0.5, compare(t, reg, Timeline, approx, `{"moon":1971,"columbus":1492}`).Fraction)

	wide := NewRegistry(WithApproximateYears(2))
	assert.True(t, compare(t, wide, Timeline, approx, `{"moon":1971,"columbus":1492}`).Correct)
}

func TestSimulationScoring(t *testing.T) {
	reg := NewRegistry()
	points := `{
		"start":"intro",
		"scenes":{
			"intro":{"choices":[{"id":"calm","correct":true,"points":5,"next":"talk"},{"id":"shout","points":0,"next":"talk"}]},
			"talk":{"choices":[{"id":"listen","correct":true,"points":5},{"id":"leave","points":1}]}
		}
	}`
	o := compare(t, reg, Simulation, points, `["calm","listen"]`)
	assert.True(t, o.Correct)
	o = compare(t, reg, Simulation, points, `["calm","leave"]`)
	assert.Equal(t, 0.6, o.Fraction)

	noPoints := `{
		"start":"a",
		"scenes":{
			"a":{"choices":[{"id":1,"correct":true,"next":"b"},{"id":2,"next":"b"}]},
			"b":{"choices":[{"id":3,"correct":true},{"id":4}]}
		}
	}`
	o = compare(t, reg, Simulation, noPoints, `["2","3"]`)
	assert.Equal(t, 0.5, o.Fraction)

	cmp, err := reg.Comparator(Simulation)
	require.NoError(t, err)
	_, err = cmp(raw(noPoints), raw(`[3]`))
	assert.Error(t, err, "choice not offered in the start scene")
	_, err = cmp(raw(noPoints), raw(`[1,3,4]`))
	assert.Error(t, err, "choice after the path ended")
}

func TestSimulationStoppedEarlyCountsMissingSteps(t *testing.T) {
	reg := NewRegistry()
	threeScenes := `{
		"start":"a",
		"scenes":{
			"a":{"choices":[{"id":"a","correct":true,"next":"b"},{"id":"x","next":"b"}]},
			"b":{"choices":[{"id":"b","correct":true,"next":"c"},{"id":"y","next":"c"}]},
			"c":{"choices":[{"id":"c","correct":true},{"id":"z"}]}
		}
	}`
	o := compare(t, reg, Simulation, threeScenes, `["a"]`)
	assert.False(t, o.Correct)
	assert.InDelta(t, 1.0/3, o.Fraction, 1e-9)
	assert.Equal(t, "1/3 choices correct", o.Detail)

	o = compare(t, reg, Simulation, threeScenes, `[]`)
	assert.Equal(t, 0.0, o.Fraction)

	o = compare(t, reg, Simulation, threeScenes, `["a","b","c"]`)
	assert.True(t, o.Correct)

	// a shortcut ending shortens what is still owed
	shortcut := `{
		"start":"a",
		"scenes":{
			"a":{"choices":[{"id":"a","correct":true,"next":"b"}]},
			"b":{"choices":[{"id":"done","correct":true},{"id":"more","next":"c"}]},
			"c":{"choices":[{"id":"c","correct":true}]}
		}
	}`
	o = compare(t, reg, Simulation, shortcut, `["a"]`)
	assert.Equal(t, 0.5, o.Fraction)

	points := `{
		"start":"a",
		"scenes":{
			"a":{"choices":[{"id":"a","correct":true,"points":1,"next":"b"}]},
			"b":{"choices":[{"id":"b","correct":true,"points":0}]}
		}
	}`
	o = compare(t, reg, Simulation, points, `["a"]`)
	assert.Equal(t, 1.0, o.Fraction)
	assert.False(t, o.Correct, "all points earned but the walk never ended")

	_, err := reg.Checker(Item{ID: "loop", Type: Simulation, Spec: raw(`{
		"start":"a",
		"scenes":{"a":{"choices":[{"id":"again","next":"a"}]}}
	}`)})
	assert.Error(t, err, "a simulation must have a reachable ending")
}

func TestQuizScenario(t *testing.T) {
	reg := NewRegistry()
	var items []Item
	resp := map[string]json.RawMessage{}
	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("q%d", i+1)
		items = append(items, Item{ID: id, Type: MultipleChoice, Points: 1, Spec: raw(`{"options":["a","b"],"correctIndex":0}`)})
		if i < 3 {
			resp[id] = raw(`0`)
		} else {
			resp[id] = raw(`1`)
		}
	}
	answers, err := reg.ValidateResponses(items, resp)
	require.NoError(t, err)

	qs, err := reg.ScoreQuiz(items, answers)
	require.NoError(t, err)
	assert.Equal(t, 3.0, qs.PointsEarned)
	assert.Equal(t, 4.0, qs.TotalPoints)
	assert.Equal(t, 75.0, qs.Percentage())
}

func TestQuizExcludesPendingShortAnswers(t *testing.T) {
	reg := NewRegistry()
	items := []Item{
		{ID: "mc", Type: MultipleChoice, Points: 2, Spec: raw(`{"options":["a","b"],"correctIndex":1}`)},
		{ID: "essay", Type: ShortAnswer, Points: 8, Spec: raw(`{}`)},
	}
	answers, err := reg.ValidateResponses(items, map[string]json.RawMessage{
		"mc":    raw(`1`),
		"essay": raw(`"a long answer"`),
	})
	require.NoError(t, err)

	qs, err := reg.ScoreQuiz(items, answers)
	require.NoError(t, err)
	assert.Equal(t, 2.0, qs.TotalPoints)
	assert.Equal(t, 100.0, qs.Percentage())
	assert.Equal(t, 1, qs.Pending)
	assert.False(t, qs.PerItem[1].Correct)
}

func TestValidateResponses(t *testing.T) {
	reg := NewRegistry()
	items := []Item{{ID: "q1", Type: MultipleChoice, Spec: raw(`{"options":["a","b"],"correctIndex":0}`)}}

	_, err := reg.ValidateResponses(items, map[string]json.RawMessage{"q9": raw(`0`)})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "q9", ve.ItemID)

	_, err = reg.ValidateResponses(items, map[string]json.RawMessage{"q1": raw(`5`)})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "q1", ve.ItemID)

	answers, err := reg.ValidateResponses(items, map[string]json.RawMessage{"q1": raw(`null`)})
	require.NoError(t, err)
	assert.Empty(t, answers)
}

func TestPassedIsInclusive(t *testing.T) {
	seventy := 70.0
	assert.True(t, Passed(70.0, &seventy))
	assert.False(t, Passed(69.99, &seventy))
	assert.True(t, Passed(0, nil))
}

func TestEvaluateRespectsBounds(t *testing.T) {
	reg := NewRegistry()
	pass := 50.0
	sig := Signature{
		Kind:   KindInteractive,
		Config: ContentConfig{MaxAttempts: 1, PassingScore: &pass},
		Items: []Item{
			{ID: "m", Type: Matching, Points: 3, Spec: raw(`{"correctMatch":{"a":1,"b":2}}`)},
			{ID: "s", Type: Sequence, Points: 1, Spec: raw(`{"order":[1,2,3,4]}`)},
		},
	}
	answers, err := reg.ValidateResponses(sig.Items, map[string]json.RawMessage{
		"m": raw(`{"a":"1","b":"1"}`),
		"s": raw(`[1,2,3,4]`),
	})
	require.NoError(t, err)

	s, err := reg.Evaluate(sig, answers)
	require.NoError(t, err)
	// (3*0.5 + 1*1) / 4
	assert.Equal(t, 62.5, s.Score)
	assert.True(t, s.Passed)
	assert.GreaterOrEqual(t, s.Score, 0.0)
	assert.LessOrEqual(t, s.Score, 100.0)
}

func TestValidateItems(t *testing.T) {
	reg := NewRegistry()
	mc := Item{ID: "a", Type: MultipleChoice, Spec: raw(`{"options":["a","b"],"correctIndex":0}`)}
	seq := Item{ID: "b", Type: Sequence, Spec: raw(`{"order":["x"]}`)}

	assert.NoError(t, reg.ValidateItems(KindQuiz, []Item{mc}))
	assert.Error(t, reg.ValidateItems(KindQuiz, []Item{mc, seq}))
	assert.Error(t, reg.ValidateItems(KindAssignment, []Item{mc}))
	assert.Error(t, reg.ValidateItems(KindQuiz, []Item{mc, mc}))
	assert.Error(t, reg.ValidateItems(KindQuiz, []Item{{ID: "c", Type: "ESSAY", Spec: raw(`{}`)}}))
}

func TestRetryEligibility(t *testing.T) {
	cfg := ContentConfig{MaxAttempts: 3}
	assert.True(t, CanRetry(cfg, 1, false))
	assert.False(t, CanRetry(cfg, 1, true))
	assert.False(t, CanRetry(cfg, 3, false))
	cfg.AllowReplay = true
	assert.True(t, CanRetry(cfg, 2, true))
	assert.Equal(t, 0, AttemptsRemaining(cfg, 5))
}

func TestIsComplete(t *testing.T) {
	yes, no := true, false
	pass := 60.0

	assert.True(t, IsComplete(KindQuiz, Result{Status: StatusGraded, Passed: &yes}, ContentConfig{}))
	assert.False(t, IsComplete(KindQuiz, Result{Status: StatusGraded, Passed: &no}, ContentConfig{}))
	assert.True(t, IsComplete(KindAssignment, Result{Status: StatusSubmitted}, ContentConfig{}))
	assert.False(t, IsComplete(KindAssignment, Result{Status: StatusInProgress}, ContentConfig{}))
	assert.True(t, IsComplete(KindInteractive, Result{Status: StatusGraded, Passed: &no}, ContentConfig{}))
	assert.False(t, IsComplete(KindInteractive, Result{Status: StatusGraded, Passed: &no}, ContentConfig{PassingScore: &pass}))
}

func TestForLearnerHidesAnswers(t *testing.T) {
	r := Result{PerItemBreakdown: []ItemResult{{ItemID: "a", CorrectAnswer: 1}}}
	hidden := r.ForLearner(ContentConfig{MaxAttempts: 2}, 1)
	assert.Nil(t, hidden.PerItemBreakdown[0].CorrectAnswer)
	assert.Equal(t, 1, r.PerItemBreakdown[0].CorrectAnswer)
	assert.Equal(t, 1, hidden.AttemptsRemaining)

	shown := r.ForLearner(ContentConfig{MaxAttempts: 2, ShowCorrectAnswers: true}, 2)
	assert.Equal(t, 1, shown.PerItemBreakdown[0].CorrectAnswer)
	assert.Equal(t, 0, shown.AttemptsRemaining)
}

func TestSignatureDigestIsStable(t *testing.T) {
	sig := Signature{
		Kind:   KindQuiz,
		Config: ContentConfig{MaxAttempts: 1},
		Items:  []Item{{ID: "a", Type: TrueFalse, Spec: raw(`{ "correct" : true }`)}},
	}
	b1, d1, err := sig.Encode()
	require.NoError(t, err)
	decoded, err := DecodeSignature(b1)
	require.NoError(t, err)
	_, d2, err := decoded.Encode()
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
	assert.True(t, Verify(b1, d1))

	// mutate the source after encoding; the encoded copy is unaffected
	sig.Items[0].Spec[3] = 'X'
	assert.True(t, Verify(b1, d1))
}

func TestCanonicalID(t *testing.T) {
	assert.Equal(t, "3", CanonicalID(" 3 "))
	assert.Equal(t, "3", CanonicalID("3.0"))
	assert.Equal(t, "abc", CanonicalID("abc"))
	assert.Equal(t, "1e3", CanonicalID("1e3"))

	var ids []FlexID
	require.NoError(t, json.Unmarshal(raw(`[3,"3","x",4.50]`), &ids))
	assert.Equal(t, []FlexID{"3", "3", "x", "4.5"}, ids)
	assert.Equal(t, "7", CanonicalID("+007"))
	assert.Equal(t, "0", CanonicalID("-0.00"))
	assert.Equal(t, "0.5", CanonicalID(".50"))
	assert.Equal(t, "-12.25", CanonicalID("-012.250"))

	// beyond float64 precision the digits still tell ids apart
	assert.Equal(t, "9007199254740993", CanonicalID("9007199254740993"))
	assert.NotEqual(t, CanonicalID("9007199254740993"), CanonicalID("9007199254740992"))
	require.NoError(t, json.Unmarshal(raw(`[9007199254740993,"9007199254740992"]`), &ids))
	assert.Equal(t, []FlexID{"9007199254740993", "9007199254740992"}, ids)

	reg := NewRegistry()
	o := compare(t, reg, Matching, `{"correctMatch":{"a":"9007199254740993"}}`, `{"a":"9007199254740992"}`)
	assert.False(t, o.Correct)
	o = compare(t, reg, Matching, `{"correctMatch":{"a":9007199254740993}}`, `{"a":"9007199254740993"}`)
	assert.True(t, o.Correct)
}

func TestCollidingIDsAreRejected(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Checker(Item{ID: "m", Type: Matching, Spec: raw(`{"correctMatch":{"3":"a","03":"b"}}`)})
	assert.Error(t, err)
	_, err = reg.Checker(Item{ID: "d", Type: DragDrop, Spec: raw(`{"targets":["x"],"placements":{"1":0,"1.0":0}}`)})
	assert.Error(t, err)

	cmp, err := reg.Comparator(Timeline)
	require.NoError(t, err)
	_, err = cmp(raw(`{"events":{"1":1969,"2":1492}}`), raw(`{"1":1969,"01":1970}`))
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestRedactKeepsLargeIDs(t *testing.T) {
	it, err := Redact(Item{ID: "s", Type: Sequence, Spec: raw(`{"order":[9007199254740993,9007199254740992]}`)})
	require.NoError(t, err)
	var spec struct {
		Items []string `json:"items"`
		Order []any    `json:"order"`
	}
	require.NoError(t, json.Unmarshal(it.Spec, &spec))
	assert.Nil(t, spec.Order)
	assert.Equal(t, []string{"9007199254740992", "9007199254740993"}, spec.Items)
}
