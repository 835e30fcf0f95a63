package grading

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// --- DRAG_DROP ---

type dragDropSpec struct {
	Targets    []string       `json:"targets"`
	Placements map[string]int `json:"placements"`
}

type dragDropChecker struct {
	targets    int
	placements map[string]int
}

func parseDragDrop(raw json.RawMessage, _ *config) (Checker, error) {
	var s dragDropSpec
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	if len(s.Targets) == 0 || len(s.Placements) == 0 {
		return nil, errors.New("targets and placements are required")
	}
	for id, t := range s.Placements {
		if t < 0 || t >= len(s.Targets) {
			return nil, fmt.Errorf("placement of %q: target %d out of range", id, t)
		}
	}
	placements, err := canonicalKeys(s.Placements)
	if err != nil {
		return nil, fmt.Errorf("placements: %w", err)
	}
	return dragDropChecker{targets: len(s.Targets), placements: placements}, nil
}

func (c dragDropChecker) Decode(raw json.RawMessage) (any, error) {
	var m map[string]int
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, errors.New("expected an object of item id to target index")
	}
	m, err := canonicalKeys(m)
	if err != nil {
		return nil, err
	}
	for id, t := range m {
		if _, ok := c.placements[id]; !ok {
			return nil, fmt.Errorf("unknown draggable %q", id)
		}
		if t < 0 || t >= c.targets {
			return nil, fmt.Errorf("target index %d out of range [0,%d)", t, c.targets)
		}
	}
	return m, nil
}

func (c dragDropChecker) Compare(resp any) Outcome {
	m, ok := resp.(map[string]int)
	if !ok {
		return Outcome{Detail: "unanswered"}
	}
	hits := 0
	for id, want := range c.placements {
		if got, ok := m[id]; ok && got == want {
			hits++
		}
	}
	return fractional(hits, len(c.placements), "items placed correctly")
}

func (c dragDropChecker) Answer() any { return c.placements }

// --- HOTSPOT ---

type hotspotRegion struct {
	Label   string `json:"label,omitempty"`
	Correct bool   `json:"correct"`
}

type hotspotSpec struct {
	Regions []hotspotRegion `json:"regions"`
}

type hotspotChecker struct {
	regions []hotspotRegion
	total   int
}

func parseHotspot(raw json.RawMessage, _ *config) (Checker, error) {
	var s hotspotSpec
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	total := 0
	for _, r := range s.Regions {
		if r.Correct {
			total++
		}
	}
	if total == 0 {
		return nil, errors.New("at least one correct region is required")
	}
	return hotspotChecker{regions: s.Regions, total: total}, nil
}

func (c hotspotChecker) Decode(raw json.RawMessage) (any, error) {
	var idx []int
	if err := json.Unmarshal(raw, &idx); err != nil {
		return nil, errors.New("expected an array of region indices")
	}
	return indexSet(idx, len(c.regions))
}

// Compare counts found correct regions. Wrong picks neither subtract nor count.
func (c hotspotChecker) Compare(resp any) Outcome {
	set, ok := resp.(map[int]bool)
	if !ok {
		return Outcome{Detail: "unanswered"}
	}
	found := 0
	for i := range set {
		if c.regions[i].Correct {
			found++
		}
	}
	return fractional(found, c.total, "hotspots found")
}

func (c hotspotChecker) Answer() any {
	var out []int
	for i, r := range c.regions {
		if r.Correct {
			out = append(out, i)
		}
	}
	return out
}

// --- SEQUENCE ---

type sequenceSpec struct {
	Order []FlexID `json:"order"`
}

type sequenceChecker struct {
	order []FlexID
	known map[FlexID]bool
}

func parseSequence(raw json.RawMessage, _ *config) (Checker, error) {
	var s sequenceSpec
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	if len(s.Order) == 0 {
		return nil, errors.New("order is required")
	}
	known := make(map[FlexID]bool, len(s.Order))
	for _, id := range s.Order {
		if known[id] {
			return nil, fmt.Errorf("duplicate id %q", id)
		}
		known[id] = true
	}
	return sequenceChecker{order: s.Order, known: known}, nil
}

func (c sequenceChecker) Decode(raw json.RawMessage) (any, error) {
	var got []FlexID
	if err := json.Unmarshal(raw, &got); err != nil {
		return nil, errors.New("expected an ordered array of ids")
	}
	if len(got) > len(c.order) {
		return nil, fmt.Errorf("got %d ids for %d positions", len(got), len(c.order))
	}
	seen := make(map[FlexID]bool, len(got))
	for _, id := range got {
		if !c.known[id] {
			return nil, fmt.Errorf("unknown id %q", id)
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate id %q", id)
		}
		seen[id] = true
	}
	return got, nil
}

func (c sequenceChecker) Compare(resp any) Outcome {
	got, ok := resp.([]FlexID)
	if !ok {
		return Outcome{Detail: "unanswered"}
	}
	hits := 0
	for i, want := range c.order {
		if i < len(got) && got[i] == want {
			hits++
		}
	}
	return fractional(hits, len(c.order), "items in position")
}

func (c sequenceChecker) Answer() any { return c.order }

// --- MATCHING ---

type matchingSpec struct {
	CorrectMatch map[string]FlexID `json:"correctMatch"`
}

type matchingChecker struct {
	correct map[string]FlexID
}

func parseMatching(raw json.RawMessage, _ *config) (Checker, error) {
	var s matchingSpec
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	if len(s.CorrectMatch) == 0 {
		return nil, errors.New("correctMatch is required")
	}
	correct, err := canonicalKeys(s.CorrectMatch)
	if err != nil {
		return nil, fmt.Errorf("correctMatch: %w", err)
	}
	return matchingChecker{correct: correct}, nil
}

func (c matchingChecker) Decode(raw json.RawMessage) (any, error) {
	var m map[string]FlexID
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, errors.New("expected an object of left id to right id")
	}
	m, err := canonicalKeys(m)
	if err != nil {
		return nil, err
	}
	for left := range m {
		if _, ok := c.correct[left]; !ok {
			return nil, fmt.Errorf("unknown left id %q", left)
		}
	}
	return m, nil
}

func (c matchingChecker) Compare(resp any) Outcome {
	m, ok := resp.(map[string]FlexID)
	if !ok {
		return Outcome{Detail: "unanswered"}
	}
	hits := 0
	for left, want := range c.correct {
		if got, ok := m[left]; ok && got == want {
			hits++
		}
	}
	return fractional(hits, len(c.correct), "pairs matched")
}

func (c matchingChecker) Answer() any { return c.correct }

// --- TIMELINE ---

// year decodes a placed date into its year. Accepted forms are a JSON
// number, "YYYY", "YYYY-MM", "YYYY-MM-DD" and RFC 3339 timestamps.
type year int

func (y *year) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		v, err := strconv.Atoi(n.String())
		if err != nil {
			return fmt.Errorf("year %s is not an integer", n)
		}
		*y = year(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.New("expected a date string or a year")
	}
	v, err := parseYear(s)
	if err != nil {
		return err
	}
	*y = year(v)
	return nil
}

func parseYear(s string) (int, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02", "2006-01"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Year(), nil
		}
	}
	return 0, fmt.Errorf("unrecognized date %q", s)
}

type timelineSpec struct {
	Events           map[string]year `json:"events"`
	AllowApproximate bool            `json:"allowApproximate"`
}

type timelineChecker struct {
	events    map[string]year
	tolerance int
}

func parseTimeline(raw json.RawMessage, cfg *config) (Checker, error) {
	var s timelineSpec
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	if len(s.Events) == 0 {
		return nil, errors.New("events are required")
	}
	events, err := canonicalKeys(s.Events)
	if err != nil {
		return nil, fmt.Errorf("events: %w", err)
	}
	c := timelineChecker{events: events}
	if s.AllowApproximate {
		c.tolerance = cfg.ApproximateYears
	}
	return c, nil
}

func (c timelineChecker) Decode(raw json.RawMessage) (any, error) {
	var m map[string]year
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("expected an object of event id to date: %v", err)
	}
	m, err := canonicalKeys(m)
	if err != nil {
		return nil, err
	}
	for id := range m {
		if _, ok := c.events[id]; !ok {
			return nil, fmt.Errorf("unknown event %q", id)
		}
	}
	return m, nil
}

func (c timelineChecker) Compare(resp any) Outcome {
	m, ok := resp.(map[string]year)
	if !ok {
		return Outcome{Detail: "unanswered"}
	}
	hits := 0
	for id, want := range c.events {
		got, ok := m[id]
		if !ok {
			continue
		}
		d := int(got - want)
		if d < 0 {
			d = -d
		}
		if d <= c.tolerance {
			hits++
		}
	}
	return fractional(hits, len(c.events), "events placed")
}

func (c timelineChecker) Answer() any { return c.events }

// --- SIMULATION ---

type simChoice struct {
	ID      FlexID   `json:"id"`
	Correct bool     `json:"correct"`
	Points  *float64 `json:"points,omitempty"`
	Next    string   `json:"next,omitempty"`
}

type simScene struct {
	Choices []simChoice `json:"choices"`
}

type simulationSpec struct {
	Start     string              `json:"start"`
	Scenes    map[string]simScene `json:"scenes"`
	MaxPoints float64             `json:"maxPoints,omitempty"`
}

type simulationChecker struct {
	spec      simulationSpec
	choices   map[FlexID]simChoice
	hasPoints bool
	maxPoints float64
	// toEnd is the fewest choices still needed to finish from each scene.
	toEnd map[string]int
}

// simPath is a decoded walk. Scene is where the walk stopped, empty once it ended.
type simPath struct {
	Choices []FlexID
	Scene   string
}

func parseSimulation(raw json.RawMessage, _ *config) (Checker, error) {
	var s simulationSpec
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	if _, ok := s.Scenes[s.Start]; !ok {
		return nil, fmt.Errorf("start scene %q not found", s.Start)
	}
	c := simulationChecker{spec: s, choices: map[FlexID]simChoice{}}
	for name, sc := range s.Scenes {
		for _, ch := range sc.Choices {
			if _, dup := c.choices[ch.ID]; dup {
				return nil, fmt.Errorf("duplicate choice id %q", ch.ID)
			}
			if ch.Next != "" {
				if _, ok := s.Scenes[ch.Next]; !ok {
					return nil, fmt.Errorf("scene %q: choice %q leads to unknown scene %q", name, ch.ID, ch.Next)
				}
			}
			if ch.Points != nil {
				c.hasPoints = true
			}
			c.choices[ch.ID] = ch
		}
	}
	c.toEnd = stepsToEnd(s.Scenes)
	if _, ok := c.toEnd[s.Start]; !ok {
		return nil, fmt.Errorf("no ending is reachable from start scene %q", s.Start)
	}
	if c.hasPoints {
		c.maxPoints = s.MaxPoints
		if c.maxPoints <= 0 {
			c.maxPoints = c.bestPath(s.Start, map[string]bool{}, map[string]float64{})
		}
	}
	return c, nil
}

// bestPath is the highest point total reachable from scene. Cycles end the path.
func (c simulationChecker) bestPath(scene string, onPath map[string]bool, memo map[string]float64) float64 {
	if v, ok := memo[scene]; ok {
		return v
	}
	if onPath[scene] {
		return 0
	}
	onPath[scene] = true
	best := 0.0
	for _, ch := range c.spec.Scenes[scene].Choices {
		v := 0.0
		if ch.Points != nil {
			v = *ch.Points
		}
		if ch.Next != "" {
			v += c.bestPath(ch.Next, onPath, memo)
		}
		if v > best {
			best = v
		}
	}
	delete(onPath, scene)
	memo[scene] = best
	return best
}

// stepsToEnd relaxes the scene graph until every scene that can reach an
// ending knows its shortest distance. Scenes without choices are endings.
func stepsToEnd(scenes map[string]simScene) map[string]int {
	dist := make(map[string]int, len(scenes))
	for changed := true; changed; {
		changed = false
		for name, sc := range scenes {
			best, ok := dist[name]
			if len(sc.Choices) == 0 {
				if !ok {
					dist[name] = 0
					changed = true
				}
				continue
			}
			for _, ch := range sc.Choices {
				d := 1
				if ch.Next != "" {
					n, reachable := dist[ch.Next]
					if !reachable {
						continue
					}
					d += n
				}
				if !ok || d < best {
					best, ok = d, true
					dist[name] = d
					changed = true
				}
			}
		}
	}
	return dist
}

// Decode checks that the choices form a walk through the scene graph from the
// start scene. A walk may stop early; Compare counts the missing steps as wrong.
func (c simulationChecker) Decode(raw json.RawMessage) (any, error) {
	var path []FlexID
	if err := json.Unmarshal(raw, &path); err != nil {
		return nil, errors.New("expected an array of choice ids")
	}
	scene := c.spec.Start
	for i, id := range path {
		if scene == "" {
			return nil, fmt.Errorf("choice %q made after the simulation ended", id)
		}
		ch, ok := c.choices[id]
		if !ok {
			return nil, fmt.Errorf("unknown choice %q", id)
		}
		if !sceneHas(c.spec.Scenes[scene], id) {
			return nil, fmt.Errorf("choice %d (%q) is not offered in scene %q", i, id, scene)
		}
		scene = ch.Next
	}
	return simPath{Choices: path, Scene: scene}, nil
}

func sceneHas(sc simScene, id FlexID) bool {
	for _, ch := range sc.Choices {
		if ch.ID == id {
			return true
		}
	}
	return false
}

func (c simulationChecker) Compare(resp any) Outcome {
	walk, ok := resp.(simPath)
	if !ok {
		return Outcome{Detail: "unanswered"}
	}
	path := walk.Choices
	if c.hasPoints {
		earned := 0.0
		for _, id := range path {
			if p := c.choices[id].Points; p != nil {
				earned += *p
			}
		}
		if c.maxPoints <= 0 {
			return Outcome{Detail: "no points available"}
		}
		f := clamp01(earned / c.maxPoints)
		return Outcome{
			Correct:  f == 1 && c.unplayed(walk) == 0,
			Fraction: f,
			Detail:   fmt.Sprintf("%s/%s points", fmtNum(earned), fmtNum(c.maxPoints)),
		}
	}
	hits := 0
	for _, id := range path {
		if c.choices[id].Correct {
			hits++
		}
	}
	return fractional(hits, len(path)+c.unplayed(walk), "choices correct")
}

// unplayed is how many more choices the walk needed to reach an ending.
func (c simulationChecker) unplayed(walk simPath) int {
	if walk.Scene == "" {
		return 0
	}
	if n, ok := c.toEnd[walk.Scene]; ok {
		return n
	}
	return 1
}

func (c simulationChecker) Answer() any {
	var out []FlexID
	for id, ch := range c.choices {
		if ch.Correct {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func fractional(hits, total int, what string) Outcome {
	f := ratio(hits, total)
	return Outcome{
		Correct:  total > 0 && hits == total,
		Fraction: f,
		Detail:   fmt.Sprintf("%d/%d %s", hits, total, what),
	}
}

func fmtNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
