package shader

import (
	"testing"
)

const fillSource = `
@compute @workgroup_size(64, 1, 1)
fn fill(@builtin(global_invocation_id) id: vec3<u32>) {
    var v: u32 = id.x * 2u;
}
`

func TestCompileSPIRV(t *testing.T) {
	c := NewCompiler(Options{})
	p, err := c.Compile(fillSource, TargetSPIRV)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	words := p.Words()
	if len(words) < 5 {
		t.Fatalf("SPIR-V too short: %d words", len(words))
	}
	if words[0] != 0x07230203 {
		t.Errorf("magic = %#x", words[0])
	}

	ep, ok := p.EntryPoint("")
	if !ok {
		t.Fatal("no compute entry point")
	}
	if ep.Name != "fill" || ep.Stage != StageCompute {
		t.Errorf("entry point = %+v", ep)
	}
	if ep.Workgroup != [3]uint32{64, 1, 1} {
		t.Errorf("workgroup = %v", ep.Workgroup)
	}
}

func TestCompileCaches(t *testing.T) {
	c := NewCompiler(Options{})
	a, err := c.Compile(fillSource, TargetHost)
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.Compile(fillSource, TargetHost)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("second compile did not hit the cache")
	}
	if _, err := c.Compile(fillSource, TargetSPIRV); err != nil {
		t.Fatal(err)
	}
	programs, hits := c.Cached()
	if programs != 2 || hits != 1 {
		t.Errorf("Cached() = %d, %d; want 2, 1", programs, hits)
	}
	if len(a.Code) != 0 || a.Text != "" {
		t.Error("host programs carry no code")
	}
}

func TestCompileCacheIsBounded(t *testing.T) {
	c := NewCompiler(Options{CacheSize: 1})
	if _, err := c.Compile(fillSource, TargetHost); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Compile(fillSource, TargetSPIRV); err != nil {
		t.Fatal(err)
	}
	if programs, _ := c.Cached(); programs != 1 {
		t.Errorf("cached programs = %d, want 1", programs)
	}
}

func TestCompileRejectsBadSource(t *testing.T) {
	if _, err := NewCompiler(Options{}).Compile("fn (", TargetSPIRV); err == nil {
		t.Error("expected a parse error")
	}
}

func TestParseTarget(t *testing.T) {
	for _, tgt := range []Target{TargetHost, TargetSPIRV, TargetMSL, TargetGLSL, TargetHLSL} {
		got, err := ParseTarget(tgt.String())
		if err != nil || got != tgt {
			t.Errorf("ParseTarget(%q) = %v, %v", tgt, got, err)
		}
	}
	if _, err := ParseTarget("dxil"); err == nil {
		t.Error("unknown target accepted")
	}
}
