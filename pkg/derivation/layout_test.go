package derivation

import (
	"reflect"
	"strings"
	"testing"

	"github.com/matzehuels/sqltree/pkg/errors"
)

func singleStep() Payload {
	return Payload{
		AlgebraRelacional: "R1",
		RootID:            "n1",
		Nodos: []Step{
			{ID: "n1", Fase: "AR", ARHeader: "R1", ARActual: "", Children: []string{}, Step: 0},
		},
	}
}

func TestBuildSingleStep(t *testing.T) {
	l := Build(singleStep(), Options{})

	if len(l.Nodes) != 2 || len(l.Edges) != 1 {
		t.Fatalf("nodes=%d edges=%d, want 2 and 1", len(l.Nodes), len(l.Edges))
	}
	root, n1 := l.Nodes[0], l.Nodes[1]
	if root.ID != VirtualRootID || !root.Data.IsRoot || root.Level != 0 {
		t.Errorf("root = %+v", root)
	}
	if root.Data.ARHeader != "R1" || root.Data.Step != -1 || root.Data.Fase != "AR" {
		t.Errorf("root data = %+v", root.Data)
	}
	if n1.Data.IsRoot || n1.Level != 1 {
		t.Errorf("n1 = %+v", n1)
	}
	if want := root.Position.Y + root.Height + DefaultVGap; n1.Position.Y != want {
		t.Errorf("n1.y = %v, want %v", n1.Position.Y, want)
	}
	if n1.Position.Y != 260 {
		t.Errorf("n1.y = %v, want 260", n1.Position.Y)
	}
	if root.Position.X != -130 || root.Width != 260 || root.Height != 140 {
		t.Errorf("root geometry = %+v %vx%v", root.Position, root.Width, root.Height)
	}
	want := Edge{ID: "e-__ar_root__-n1", Source: VirtualRootID, Target: "n1", Type: EdgeTypeSmoothStep}
	if l.Edges[0] != want {
		t.Errorf("edge = %+v, want %+v", l.Edges[0], want)
	}
}

func TestBuildEmpty(t *testing.T) {
	l := Build(Payload{AlgebraRelacional: "π a (R)", RootID: "x"}, Options{})
	if len(l.Nodes) != 1 || len(l.Edges) != 0 {
		t.Fatalf("nodes=%d edges=%d, want 1 and 0", len(l.Nodes), len(l.Edges))
	}
	if !l.Nodes[0].Data.IsRoot {
		t.Error("only node should be the virtual root")
	}
}

func TestVirtualRootAvoidsCollisions(t *testing.T) {
	p := Payload{
		RootID: "__ar_root__",
		Nodos: []Step{
			{ID: "__ar_root__", Children: []string{"__ar_root___1"}},
			{ID: "__ar_root___1"},
		},
	}
	l := Build(p, Options{})
	if l.RootID != "__ar_root___2" {
		t.Errorf("root id = %s, want __ar_root___2", l.RootID)
	}
	if len(l.Nodes) != 3 {
		t.Errorf("nodes = %d, want 3", len(l.Nodes))
	}
}

func TestSiblingsKeepInputOrder(t *testing.T) {
	p := Payload{
		RootID: "a",
		Nodos: []Step{
			{ID: "c", Step: 1},
			{ID: "a", Children: []string{"b", "c"}, Step: 0},
			{ID: "b", Step: 2},
		},
	}
	l := Build(p, Options{})
	c, _ := l.Node("c")
	b, _ := l.Node("b")
	if c.Level != 2 || b.Level != 2 {
		t.Fatalf("levels c=%d b=%d", c.Level, b.Level)
	}
	if c.Position.X != -300 || b.Position.X != 40 {
		t.Errorf("x: c=%v b=%v, want -300 and 40", c.Position.X, b.Position.X)
	}
	if c.Position.X+c.Width+DefaultHGap != b.Position.X {
		t.Error("siblings should be exactly hGap apart")
	}
}

func TestBuildConnectivity(t *testing.T) {
	p := Payload{
		AlgebraRelacional: "π nombre (σ edad > 30 (Empleado))",
		RootID:            "p",
		Nodos: []Step{
			{ID: "p", Fase: "Proyección", Children: []string{"s"}},
			{ID: "s", Fase: "Selección", Children: []string{"e", "d"}},
			{ID: "e", Fase: "Relación", SQL: "FROM Empleado"},
			{ID: "d", Fase: "Relación", SQL: "FROM Departamento"},
		},
	}
	l := Build(p, Options{})

	counts := map[string]int{}
	for _, n := range l.Nodes {
		counts[n.ID]++
	}
	for _, s := range p.Nodos {
		if counts[s.ID] != 1 {
			t.Errorf("step %s appears %d times", s.ID, counts[s.ID])
		}
		n, _ := l.Node(s.ID)
		if n.Level < 1 {
			t.Errorf("step %s level %d", s.ID, n.Level)
		}
	}
	var fromRoot int
	for _, e := range l.Edges {
		if e.Source == l.RootID {
			fromRoot++
			if e.Target != "p" {
				t.Errorf("root edge to %s", e.Target)
			}
		}
	}
	if fromRoot != 1 {
		t.Errorf("root has %d edges, want 1", fromRoot)
	}
	if len(l.Edges) != 4 {
		t.Errorf("edges = %d, want 4", len(l.Edges))
	}
}

func TestBuildDropsDanglingAndUnreachable(t *testing.T) {
	p := Payload{
		RootID: "a",
		Nodos: []Step{
			{ID: "a", Children: []string{"ghost", "b"}},
			{ID: "b"},
			{ID: "orphan", Children: []string{"b"}},
		},
	}
	l := Build(p, Options{})
	if _, ok := l.Node("orphan"); ok {
		t.Error("unreachable step was laid out")
	}
	for _, e := range l.Edges {
		if e.Target == "ghost" || e.Source == "orphan" {
			t.Errorf("unexpected edge %+v", e)
		}
	}
	if len(l.Edges) != 2 {
		t.Errorf("edges = %+v", l.Edges)
	}
}

func TestBuildDeterministic(t *testing.T) {
	p := Payload{
		AlgebraRelacional: "R",
		RootID:            "a",
		Nodos: []Step{
			{ID: "a", Children: []string{"b", "c", "d"}},
			{ID: "b", SQL: strings.Repeat("SELECT x ", 30)},
			{ID: "c", ARHeader: "σ a = 1"},
			{ID: "d", Children: []string{"e"}},
			{ID: "e"},
		},
	}
	first := Build(p, Options{})
	for i := 0; i < 5; i++ {
		if got := Build(p, Options{}); !reflect.DeepEqual(got, first) {
			t.Fatal("layout differs between runs")
		}
	}
}

func TestCumulativeY(t *testing.T) {
	p := Payload{
		AlgebraRelacional: strings.Repeat("x", 1000),
		RootID:            "a",
		Nodos: []Step{
			{ID: "a", Children: []string{"b"}},
			{ID: "b"},
		},
	}
	l := Build(p, Options{})
	root, a, b := l.Nodes[0], l.Nodes[1], l.Nodes[2]
	if root.Height != 260 {
		t.Fatalf("root height = %v, want 260", root.Height)
	}
	if a.Position.Y != 380 {
		t.Errorf("a.y = %v, want 380", a.Position.Y)
	}
	if b.Position.Y != a.Position.Y+a.Height+DefaultVGap {
		t.Errorf("b.y = %v", b.Position.Y)
	}
}

func TestEstimateSize(t *testing.T) {
	opts := Options{}.WithDefaults()
	tests := []struct {
		name string
		step Step
		want Size
	}{
		{"empty", Step{}, Size{260, 140}},
		{"short", Step{Fase: "AR", ARHeader: "R1"}, Size{260, 140}},
		{"100 chars", Step{SQL: strings.Repeat("a", 100)}, Size{740, 140}},
		{"clamped", Step{SQL: strings.Repeat("a", 1000)}, Size{900, 260}},
		{"runes not bytes", Step{SQL: strings.Repeat("σ", 100)}, Size{740, 140}},
		{"many lines", Step{SQL: strings.Repeat("a\n", 6) + "a", ARHeader: "b\nc"}, Size{260, 260}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateSize(tt.step, opts); got != tt.want {
				t.Errorf("EstimateSize = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestEstimateSizeZeroOptions(t *testing.T) {
	s := Step{SQL: strings.Repeat("a", 5000)}
	got := EstimateSize(s, Options{})
	if want := EstimateSize(s, Options{}.WithDefaults()); got != want {
		t.Errorf("EstimateSize(zero options) = %+v, want %+v", got, want)
	}
	if got.Width != DefaultMaxWidth {
		t.Errorf("width = %v, want %v", got.Width, DefaultMaxWidth)
	}
}

func TestOptionsWithDefaults(t *testing.T) {
	o := Options{HGap: 10, CenterX: 500}.WithDefaults()
	if o.HGap != 10 || o.VGap != DefaultVGap || o.CenterX != 500 || o.MinHeight != DefaultMinHeight {
		t.Errorf("WithDefaults = %+v", o)
	}
	l := Build(singleStep(), Options{CenterX: 500})
	if l.Nodes[0].Position.X != 370 {
		t.Errorf("centred x = %v, want 370", l.Nodes[0].Position.X)
	}
}

func TestWalk(t *testing.T) {
	p := Payload{RootID: "a", Nodos: []Step{
		{ID: "a", Children: []string{"b", "c"}},
		{ID: "b", Children: []string{"d"}},
		{ID: "c"},
		{ID: "d"},
	}}
	var got []string
	Build(p, Options{}).Walk(func(n Node, depth int) {
		got = append(got, strings.Repeat(".", depth)+n.ID)
	})
	want := []string{"__ar_root__", ".a", "..b", "...d", "..c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Walk = %v, want %v", got, want)
	}
}

func TestBounds(t *testing.T) {
	r := Build(singleStep(), Options{}).Bounds()
	if r != (Rect{MinX: -130, MinY: 0, MaxX: 130, MaxY: 400}) {
		t.Errorf("Bounds = %+v", r)
	}
}

func TestParsePayload(t *testing.T) {
	p, err := ParsePayload([]byte(`{"algebraRelacional":"R","rootId":"n1","nodos":[{"id":"n1","fase":"AR","arActual":"","children":[],"step":0}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if p.RootID != "n1" || len(p.Nodos) != 1 {
		t.Errorf("payload = %+v", p)
	}
	if _, err := ParsePayload([]byte(`{`)); !errors.Is(err, errors.ErrCodeInvalidJSON) {
		t.Errorf("error = %v, want INVALID_JSON", err)
	}
}
