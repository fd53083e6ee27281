package engine

import (
	"errors"
	"testing"

	"github.com/newtron-network/breathe/pkg/app"
	"github.com/newtron-network/breathe/pkg/config"
	"github.com/newtron-network/breathe/pkg/packet"
)

// simpleApp is a minimal test app exercising every optional capability.
type simpleApp struct {
	pullCalls, pushCalls, stopCalls, linkCalls, reconfigCalls int
	pullPanics, pushPanics                                    bool
	pullFn                                                    func(app.Ports)
	pushFn                                                    func(app.Ports)
}

func (a *simpleApp) Pull(p app.Ports) {
	a.pullCalls++
	if a.pullPanics {
		panic("boom-pull")
	}
	if a.pullFn != nil {
		a.pullFn(p)
	}
}

func (a *simpleApp) Push(p app.Ports) {
	a.pushCalls++
	if a.pushPanics {
		panic("boom-push")
	}
	if a.pushFn != nil {
		a.pushFn(p)
	}
}

func (a *simpleApp) Stop()          { a.stopCalls++ }
func (a *simpleApp) Link(app.Ports) { a.linkCalls++ }

// reconfigurable wraps simpleApp and additionally exposes Reconfig, so
// the reconfigurator can choose in-place reconfig over restart.
type reconfigurable struct {
	*simpleApp
}

func (r *reconfigurable) Reconfig(interface{}) error { r.reconfigCalls++; return nil }

// simpleClass constructs a fresh simpleApp each time, optionally failing
// or wrapping it to expose Reconfig.
type simpleClass struct {
	fail      bool
	reconfig  bool // whether the constructed app supports Reconfig
	construct func(arg interface{}) *simpleApp
}

func (c simpleClass) New(arg interface{}) (interface{}, error) {
	if c.fail {
		return nil, errors.New("construction failed")
	}
	var a *simpleApp
	if c.construct != nil {
		a = c.construct(arg)
	} else {
		a = &simpleApp{}
	}
	if c.reconfig {
		return &reconfigurable{simpleApp: a}, nil
	}
	return a, nil
}

func buildConfig(t *testing.T, apps map[string]config.Arg, class app.Class, links []string) *config.Configuration {
	t.Helper()
	c := config.New()
	for name, arg := range apps {
		if err := c.AddApp(name, "simple", class, arg); err != nil {
			t.Fatalf("AddApp(%q): %v", name, err)
		}
	}
	for _, spec := range links {
		if err := c.AddLink(spec); err != nil {
			t.Fatalf("AddLink(%q): %v", spec, err)
		}
	}
	return c
}

func TestConfigureFromEmptyAddsAppsAndLinks(t *testing.T) {
	e := New(DefaultOptions())
	class := simpleClass{reconfig: true}
	c1 := buildConfig(t, map[string]config.Arg{"a1": {}, "a2": {}}, class, []string{"a1.x -> a2.x"})

	if err := e.Configure(c1); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if len(e.appTable) != 2 {
		t.Fatalf("apps = %d, want 2", len(e.appTable))
	}
	if len(e.linkTable) != 1 {
		t.Fatalf("links = %d, want 1", len(e.linkTable))
	}
	if _, ok := e.appTable["a1"]; !ok {
		t.Error("a1 missing")
	}
	if _, ok := e.appTable["a2"]; !ok {
		t.Error("a2 missing")
	}
}

func TestConfigureWithUnchangedSpecKeepsIdentity(t *testing.T) {
	e := New(DefaultOptions())
	class := simpleClass{reconfig: true}
	c1 := buildConfig(t, map[string]config.Arg{"a1": {}, "a2": {}}, class, []string{"a1.x -> a2.x"})

	if err := e.Configure(c1); err != nil {
		t.Fatalf("Configure 1: %v", err)
	}
	a1Before, l1Before := e.appTable["a1"], e.linkTable["a1.x -> a2.x"]
	a2Before := e.appTable["a2"]

	c1b := buildConfig(t, map[string]config.Arg{"a1": {}, "a2": {}}, class, []string{"a1.x -> a2.x"})
	if err := e.Configure(c1b); err != nil {
		t.Fatalf("Configure 2: %v", err)
	}

	if e.appTable["a1"] != a1Before {
		t.Error("a1 identity changed on keep")
	}
	if e.appTable["a2"] != a2Before {
		t.Error("a2 identity changed on keep")
	}
	if e.linkTable["a1.x -> a2.x"] != l1Before {
		t.Error("link identity changed on keep")
	}
}

func TestConfigureAppliesArgAndTopologyChangesTogether(t *testing.T) {
	e := New(DefaultOptions())
	noReconfigClass := simpleClass{reconfig: false}
	c1 := buildConfig(t, map[string]config.Arg{"a1": {}, "a2": {}}, noReconfigClass, []string{"a1.x -> a2.x"})
	if err := e.Configure(c1); err != nil {
		t.Fatalf("Configure 1: %v", err)
	}
	a2Before := e.appTable["a2"]

	c2 := config.New()
	if err := c2.AddApp("a1", "simple", noReconfigClass, config.Arg{"mode": "config"}); err != nil {
		t.Fatalf("AddApp a1: %v", err)
	}
	if err := c2.AddApp("a2", "simple", noReconfigClass, config.Arg{}); err != nil {
		t.Fatalf("AddApp a2: %v", err)
	}
	if err := c2.AddLink("a1.x -> a2.x"); err != nil {
		t.Fatal(err)
	}
	if err := c2.AddLink("a2.x -> a1.x"); err != nil {
		t.Fatal(err)
	}
	if err := e.Configure(c2); err != nil {
		t.Fatalf("Configure 2: %v", err)
	}

	if e.appTable["a2"] != a2Before {
		t.Error("a2 identity should be unchanged (arg did not change)")
	}
	if len(e.linkTable) != 2 {
		t.Errorf("links = %d, want 2", len(e.linkTable))
	}
}

func TestConfigureToEmptyTearsDownGraph(t *testing.T) {
	e := New(DefaultOptions())
	class := simpleClass{reconfig: true}
	c1 := buildConfig(t, map[string]config.Arg{"a1": {}, "a2": {}}, class, []string{"a1.x -> a2.x"})
	if err := e.Configure(c1); err != nil {
		t.Fatal(err)
	}
	if err := e.Configure(config.New()); err != nil {
		t.Fatal(err)
	}
	if len(e.appTable) != 0 {
		t.Errorf("apps = %d, want 0", len(e.appTable))
	}
	if len(e.linkTable) != 0 {
		t.Errorf("links = %d, want 0", len(e.linkTable))
	}
}

func TestConfigureRejectsUnknownApp(t *testing.T) {
	e := New(DefaultOptions())
	class := simpleClass{reconfig: true}
	c := config.New()
	if err := c.AddApp("a1", "simple", class, config.Arg{}); err != nil {
		t.Fatal(err)
	}
	c.Links["a1.x -> ghost.x"] = config.LinkSpec{FromApp: "a1", FromPort: "x", ToApp: "ghost", ToPort: "x"}

	err := e.Configure(c)
	if !errors.Is(err, ErrUnknownApp) {
		t.Fatalf("err = %v, want ErrUnknownApp", err)
	}
	if len(e.appTable) != 0 {
		t.Error("failed Configure must leave the running graph unchanged")
	}
}

func TestConfigureRejectsBadConstructor(t *testing.T) {
	e := New(DefaultOptions())
	class := simpleClass{fail: true}
	c := config.New()
	if err := c.AddApp("a1", "simple", class, config.Arg{}); err != nil {
		t.Fatal(err)
	}

	err := e.Configure(c)
	var ce *ConfigureError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *ConfigureError", err)
	}
}

func TestAppFreeCreditsEngineCounters(t *testing.T) {
	e := New(DefaultOptions())
	var captured *app.Instance
	class := simpleClass{reconfig: true, construct: func(arg interface{}) *simpleApp {
		return &simpleApp{pullFn: func(p app.Ports) {
			pkt := packet.Allocate()
			pkt.Resize(10)
			p.Free(pkt)
		}}
	}}
	c := buildConfig(t, map[string]config.Arg{"a1": {}}, class, nil)
	if err := e.Configure(c); err != nil {
		t.Fatal(err)
	}
	captured = e.appTable["a1"]
	_ = captured

	e.Breath()
	if e.packetCounters.Frees != 1 {
		t.Errorf("Frees = %d, want 1", e.packetCounters.Frees)
	}
}
